package pipes

import (
	"fmt"

	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/syscalls"
)

// Registry owns every pipe of one verification and the global fd owner map.
type Registry struct {
	limits     limits.Limits
	pipes      map[uint64]*Pipe
	owners     map[syscalls.Fd]syscalls.Pid
	nextSlot   syscalls.Fd
	fdsCreated uint64
}

func NewRegistry(l limits.Limits) *Registry {
	return &Registry{
		limits:   l,
		pipes:    make(map[uint64]*Pipe),
		owners:   make(map[syscalls.Fd]syscalls.Pid),
		nextSlot: limits.FirstFd,
	}
}

type Stats struct {
	LivePipes  int
	FdsCreated uint64
	OwnedFds   int
}

func (r *Registry) Stats() Stats {
	return Stats{
		LivePipes:  len(r.pipes),
		FdsCreated: r.fdsCreated,
		OwnedFds:   len(r.owners),
	}
}

// Owner returns the pid owning fd.
func (r *Registry) Owner(fd syscalls.Fd) (syscalls.Pid, bool) {
	pid, ok := r.owners[fd]
	return pid, ok
}

func (r *Registry) Create(t *FdTable) (readFd, writeFd syscalls.Fd, err error) {
	if len(r.pipes) >= r.limits.MaxPipes {
		return 0, 0, syscalls.TooManyPipes
	}
	if r.fdsCreated+2 > r.limits.MaxFdsCreated {
		return 0, 0, syscalls.TooManyFds
	}

	readFd = r.nextSlot
	writeFd = readFd + 1
	r.nextSlot += 2
	r.fdsCreated += 2

	id := pipeID(readFd)
	r.pipes[id] = &Pipe{
		ID:       id,
		capacity: r.limits.PipeCapacity,
	}
	r.own(t, readFd)
	r.own(t, writeFd)

	return readFd, writeFd, nil
}

func (r *Registry) own(t *FdTable, fd syscalls.Fd) {
	r.owners[fd] = t.Owner
	t.owned[fd] = struct{}{}
}

func (r *Registry) disown(t *FdTable, fd syscalls.Fd) {
	delete(r.owners, fd)
	delete(t.owned, fd)
}

// lookup returns the pipe of an fd owned by t.
func (r *Registry) lookup(t *FdTable, fd syscalls.Fd) (*Pipe, error) {
	if !t.Owns(fd) {
		return nil, syscalls.InvalidFd
	}
	pipe, ok := r.pipes[pipeID(fd)]
	if !ok {
		// owned fds always reference live pipes
		panic(fmt.Errorf("fd %d owned by %d without pipe", fd, t.Owner))
	}
	return pipe, nil
}

func (r *Registry) Close(t *FdTable, fd syscalls.Fd) error {
	pipe, err := r.lookup(t, fd)
	if err != nil {
		return err
	}
	if IsReadEnd(fd) {
		pipe.readClosed = true
	} else {
		pipe.writeClosed = true
	}
	r.disown(t, fd)
	if pipe.dead() {
		delete(r.pipes, pipe.ID)
	}
	return nil
}

// Read takes up to max bytes from the pipe read by fd.
// A drained pipe whose writer has closed yields one empty read, then OtherEndClosed.
func (r *Registry) Read(t *FdTable, fd syscalls.Fd, max uint64) ([]byte, error) {
	pipe, err := r.lookup(t, fd)
	if err != nil {
		return nil, err
	}
	if !IsReadEnd(fd) {
		return nil, syscalls.NotReadable
	}
	if max == 0 {
		return []byte{}, nil
	}
	if len(pipe.buf) == 0 {
		if !pipe.writeClosed {
			return nil, ErrWouldBlock
		}
		if pipe.eofSeen {
			return nil, syscalls.OtherEndClosed
		}
		pipe.eofSeen = true
		return []byte{}, nil
	}
	n := min(uint64(len(pipe.buf)), max)
	data := make([]byte, n)
	copy(data, pipe.buf)
	pipe.buf = append(pipe.buf[:0], pipe.buf[n:]...)
	return data, nil
}

// Write appends as much of data as fits and returns the count.
func (r *Registry) Write(t *FdTable, fd syscalls.Fd, data []byte) (uint64, error) {
	pipe, err := r.lookup(t, fd)
	if err != nil {
		return 0, err
	}
	if IsReadEnd(fd) {
		return 0, syscalls.NotWritable
	}
	if pipe.readClosed {
		return 0, syscalls.OtherEndClosed
	}
	if len(data) == 0 {
		return 0, nil
	}
	space := pipe.Space()
	if space == 0 {
		return 0, ErrWouldBlock
	}
	n := min(space, len(data))
	pipe.buf = append(pipe.buf, data[:n]...)
	return uint64(n), nil
}

// CheckTransfer validates fds for a transfer without moving anything.
func (r *Registry) CheckTransfer(from *FdTable, fds []syscalls.Fd) error {
	seen := make(map[syscalls.Fd]bool, len(fds))
	for _, fd := range fds {
		if !from.Owns(fd) || seen[fd] {
			return syscalls.InvalidPipe
		}
		seen[fd] = true
	}
	return nil
}

// Transfer moves fds from one table to another, keeping handle numbers.
// Nothing moves unless every fd is valid.
func (r *Registry) Transfer(from, to *FdTable, fds []syscalls.Fd) error {
	if err := r.CheckTransfer(from, fds); err != nil {
		return err
	}
	for _, fd := range fds {
		r.disown(from, fd)
		r.own(to, fd)
		to.inherited = append(to.inherited, fd)
	}
	return nil
}

// Inherited returns the inherited fds t still owns, in the order the parent passed them.
func (r *Registry) Inherited(t *FdTable) []syscalls.Fd {
	var ret []syscalls.Fd
	for _, fd := range t.inherited {
		if t.Owns(fd) {
			ret = append(ret, fd)
		}
	}
	return ret
}

// CloseAll closes every fd of t in ascending order.
func (r *Registry) CloseAll(t *FdTable) {
	for _, fd := range t.Fds() {
		if err := r.Close(t, fd); err != nil {
			panic(err)
		}
	}
}
