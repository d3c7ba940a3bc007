package pipes

import (
	"slices"

	"github.com/reusee/spawnvm/syscalls"
)

// IsReadEnd reports whether fd is the read end of its pipe.
func IsReadEnd(fd syscalls.Fd) bool {
	return fd%2 == 0
}

// Peer returns the other end of the pipe fd belongs to.
func Peer(fd syscalls.Fd) syscalls.Fd {
	return fd ^ 1
}

func pipeID(fd syscalls.Fd) uint64 {
	return uint64(fd / 2)
}

// FdTable is the set of pipe ends one instance owns.
type FdTable struct {
	Owner     syscalls.Pid
	owned     map[syscalls.Fd]struct{}
	inherited []syscalls.Fd
}

func NewFdTable(owner syscalls.Pid) *FdTable {
	return &FdTable{
		Owner: owner,
		owned: make(map[syscalls.Fd]struct{}),
	}
}

func (t *FdTable) Owns(fd syscalls.Fd) bool {
	_, ok := t.owned[fd]
	return ok
}

// Fds returns owned fds in ascending order.
func (t *FdTable) Fds() []syscalls.Fd {
	ret := make([]syscalls.Fd, 0, len(t.owned))
	for fd := range t.owned {
		ret = append(ret, fd)
	}
	slices.Sort(ret)
	return ret
}

func (t *FdTable) Len() int {
	return len(t.owned)
}
