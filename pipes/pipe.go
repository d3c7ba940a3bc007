package pipes

import "errors"

// ErrWouldBlock is returned by Read on an empty pipe whose writer is open,
// and by Write on a full pipe. The scheduler blocks the caller on it.
var ErrWouldBlock = errors.New("operation would block")

type Pipe struct {
	ID          uint64
	buf         []byte
	capacity    int
	readClosed  bool
	writeClosed bool
	eofSeen     bool
}

func (p *Pipe) Len() int {
	return len(p.buf)
}

func (p *Pipe) Space() int {
	return p.capacity - len(p.buf)
}

func (p *Pipe) dead() bool {
	return p.readClosed && p.writeClosed
}
