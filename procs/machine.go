package procs

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/syscalls"
)

// StepCycles is the cost of running one step.
const StepCycles = 1

const Header = "#!proc"

// Program builds the first step of a native program.
type Program func(argv [][]byte) Step

// Registry maps names in "#!proc <name>" images to programs.
type Registry map[string]Program

var _ instances.Interpreter = Registry{}

func (r Registry) Instantiate(image []byte, argv [][]byte) (instances.Machine, error) {
	line, _, _ := bytes.Cut(image, []byte("\n"))
	name, ok := bytes.CutPrefix(line, []byte(Header))
	if !ok {
		return nil, syscalls.WrongFormat
	}
	program, ok := r[string(bytes.TrimSpace(name))]
	if !ok {
		return nil, syscalls.WrongFormat
	}
	return &Machine{
		proc: program(argv),
		ctx: &Context{
			Argv: argv,
		},
	}, nil
}

var ErrClosed = errors.New("machine closed")

type Machine struct {
	proc   Step
	ctx    *Context
	done   bool
	closed bool
}

var _ instances.Machine = new(Machine)

func (m *Machine) Resume(budget uint64, reply syscalls.Reply) instances.Trap {
	if m.closed || m.done {
		return instances.Trap{
			Kind: instances.TrapFault,
			Err:  ErrClosed,
		}
	}
	m.ctx.Reply = reply

	var used uint64
	for {
		if m.proc == nil {
			m.done = true
			return instances.Trap{
				Kind:   instances.TrapExit,
				Cycles: used,
			}
		}
		if used+StepCycles > budget {
			return instances.Trap{
				Kind:   instances.TrapOutOfCycles,
				Cycles: budget,
			}
		}

		next, err := m.proc.Run(m.ctx)
		used += StepCycles + m.ctx.charged
		m.ctx.charged = 0
		if err != nil {
			m.done = true
			return instances.Trap{
				Kind:   instances.TrapFault,
				Cycles: min(used, budget),
				Err:    fmt.Errorf("step: %w", err),
			}
		}
		m.proc = next
		if used > budget {
			return instances.Trap{
				Kind:   instances.TrapOutOfCycles,
				Cycles: budget,
			}
		}

		if m.ctx.exited {
			m.done = true
			return instances.Trap{
				Kind:   instances.TrapExit,
				Code:   m.ctx.code,
				Cycles: used,
			}
		}
		if call := m.ctx.call; call != nil {
			m.ctx.call = nil
			return instances.Trap{
				Kind:   instances.TrapSyscall,
				Call:   call,
				Cycles: used,
			}
		}
	}
}

func (m *Machine) Close() error {
	m.closed = true
	m.proc = nil
	return nil
}
