package instances

import (
	"bytes"
	"fmt"

	"github.com/reusee/spawnvm/syscalls"
)

// FaultExitCode is the exit code of an instance whose machine faulted.
const FaultExitCode int8 = -1

type TrapKind uint8

const (
	TrapSyscall TrapKind = iota + 1
	TrapExit
	TrapOutOfCycles
	TrapFault
)

func (k TrapKind) String() string {
	switch k {
	case TrapSyscall:
		return "syscall"
	case TrapExit:
		return "exit"
	case TrapOutOfCycles:
		return "out of cycles"
	case TrapFault:
		return "fault"
	}
	return fmt.Sprintf("trap(%d)", uint8(k))
}

// Trap is why a machine handed control back to the scheduler.
type Trap struct {
	Kind TrapKind
	// instruction cycles consumed since the last Resume
	Cycles uint64

	Call syscalls.Call // TrapSyscall
	Code int8          // TrapExit
	Err  error         // TrapFault
}

// Machine is one running interpreter instance.
// Resume runs until the next trap, spending at most budget cycles,
// and delivers reply as the result of the previous syscall.
type Machine interface {
	Resume(budget uint64, reply syscalls.Reply) Trap
	Close() error
}

// Interpreter loads code images.
// Images it cannot load are rejected with syscalls.WrongFormat.
type Interpreter interface {
	Instantiate(image []byte, argv [][]byte) (Machine, error)
}

type muxEntry struct {
	prefix      []byte
	interpreter Interpreter
}

// Mux selects an interpreter by the header of the image.
type Mux struct {
	entries []muxEntry
}

var _ Interpreter = new(Mux)

func (m *Mux) Handle(prefix string, interpreter Interpreter) *Mux {
	m.entries = append(m.entries, muxEntry{
		prefix:      []byte(prefix),
		interpreter: interpreter,
	})
	return m
}

func (m *Mux) Instantiate(image []byte, argv [][]byte) (Machine, error) {
	for _, entry := range m.entries {
		if bytes.HasPrefix(image, entry.prefix) {
			return entry.interpreter.Instantiate(image, argv)
		}
	}
	return nil, syscalls.WrongFormat
}
