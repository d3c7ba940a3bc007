package instances

import (
	"fmt"

	"github.com/reusee/spawnvm/pipes"
	"github.com/reusee/spawnvm/syscalls"
)

type State uint8

const (
	Runnable State = iota + 1
	Blocked
	Exited
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Blocked:
		return "blocked"
	case Exited:
		return "exited"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

type Instance struct {
	ID          syscalls.Pid
	Parent      syscalls.Pid
	HasParent   bool
	MemoryLimit uint64
	// cycles charged to this instance
	Cycles uint64
	State  State

	// set while Blocked: the call to retry and why it blocked
	Pending     syscalls.Call
	BlockReason string

	// set when Exited
	ExitCode int8

	Fds     *pipes.FdTable
	Machine Machine
	Argv    [][]byte

	Content      []byte
	ContentLimit uint64

	// delivered at the next Resume
	Reply syscalls.Reply
}

func (i *Instance) Block(call syscalls.Call, reason string) {
	i.State = Blocked
	i.Pending = call
	i.BlockReason = reason
}

func (i *Instance) Unblock(reply syscalls.Reply) {
	i.State = Runnable
	i.Pending = nil
	i.BlockReason = ""
	i.Reply = reply
}
