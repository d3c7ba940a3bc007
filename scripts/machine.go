package scripts

import (
	"errors"
	"fmt"

	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/logs"
	"github.com/reusee/spawnvm/syscalls"
	"go.starlark.net/starlark"
)

var (
	ErrClosed = errors.New("machine closed")
	errExit   = errors.New("exit")
)

// Machine runs one script on its own goroutine.
// Control passes back and forth over unbuffered channels, so the script
// and the scheduler never run at the same time.
type Machine struct {
	program     *starlark.Program
	argv        [][]byte
	logger      logs.Logger
	thread      *starlark.Thread
	predeclared starlark.StringDict

	replies  chan syscalls.Reply
	traps    chan instances.Trap
	finished chan struct{}

	started bool
	done    bool
	closed  bool

	// accessed by the script goroutine only while it runs
	maxSteps  uint64
	lastSteps uint64
	exited    bool
	exitCode  int8
	unwinding bool
}

var _ instances.Machine = new(Machine)

func newMachine(program *starlark.Program, argv [][]byte, logger logs.Logger) *Machine {
	m := &Machine{
		program:  program,
		argv:     argv,
		logger:   logger,
		replies:  make(chan syscalls.Reply),
		traps:    make(chan instances.Trap),
		finished: make(chan struct{}),
	}
	m.thread = &starlark.Thread{
		Name: "main",
		Print: func(_ *starlark.Thread, msg string) {
			logger.Debug("script print", "msg", msg)
		},
	}
	m.predeclared = m.builtins()
	return m
}

func (m *Machine) Resume(budget uint64, reply syscalls.Reply) instances.Trap {
	if m.done || m.closed {
		return instances.Trap{
			Kind: instances.TrapFault,
			Err:  ErrClosed,
		}
	}

	m.maxSteps = m.thread.ExecutionSteps() + budget
	m.thread.SetMaxExecutionSteps(m.maxSteps)
	if !m.started {
		m.started = true
		go m.run()
	} else {
		m.replies <- reply
	}
	trap := <-m.traps

	steps := m.thread.ExecutionSteps()
	trap.Cycles = min(steps-m.lastSteps, budget)
	m.lastSteps = steps
	if trap.Kind != instances.TrapSyscall {
		m.done = true
	}
	return trap
}

func (m *Machine) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	if m.started && !m.done {
		// unblocks the parked syscall, the script unwinds with ErrClosed
		close(m.replies)
		<-m.finished
	}
	return nil
}

func (m *Machine) run() {
	defer close(m.finished)
	trap := m.exec()
	if m.unwinding {
		return
	}
	m.traps <- trap
}

func (m *Machine) exec() (trap instances.Trap) {
	defer func() {
		if p := recover(); p != nil {
			trap = instances.Trap{
				Kind: instances.TrapFault,
				Err:  fmt.Errorf("panic: %v", p),
			}
		}
	}()

	globals, err := m.program.Init(m.thread, m.predeclared)
	if err != nil {
		return m.errorTrap(err)
	}
	main, ok := globals["main"]
	if !ok {
		return instances.Trap{
			Kind: instances.TrapFault,
			Err:  errors.New("main not defined"),
		}
	}

	argv := make([]starlark.Value, 0, len(m.argv))
	for _, arg := range m.argv {
		argv = append(argv, starlark.String(arg))
	}
	ret, err := starlark.Call(m.thread, main, starlark.Tuple{starlark.NewList(argv)}, nil)
	if err != nil {
		return m.errorTrap(err)
	}

	var code int8
	switch ret := ret.(type) {
	case starlark.NoneType:
	case starlark.Int:
		i, ok := ret.Int64()
		if !ok {
			return instances.Trap{
				Kind: instances.TrapFault,
				Err:  fmt.Errorf("exit code out of range: %v", ret),
			}
		}
		code = int8(i)
	default:
		return instances.Trap{
			Kind: instances.TrapFault,
			Err:  fmt.Errorf("bad exit code type: %s", ret.Type()),
		}
	}
	return instances.Trap{
		Kind: instances.TrapExit,
		Code: code,
	}
}

func (m *Machine) errorTrap(err error) instances.Trap {
	switch {
	case m.exited:
		return instances.Trap{
			Kind: instances.TrapExit,
			Code: m.exitCode,
		}
	case m.unwinding:
		return instances.Trap{}
	case m.thread.ExecutionSteps() >= m.maxSteps:
		return instances.Trap{
			Kind: instances.TrapOutOfCycles,
		}
	}
	return instances.Trap{
		Kind: instances.TrapFault,
		Err:  err,
	}
}

// syscall parks the script until the scheduler delivers the reply.
func (m *Machine) syscall(call syscalls.Call) (syscalls.Reply, error) {
	m.traps <- instances.Trap{
		Kind: instances.TrapSyscall,
		Call: call,
	}
	reply, ok := <-m.replies
	if !ok {
		m.unwinding = true
		return reply, ErrClosed
	}
	return reply, nil
}
