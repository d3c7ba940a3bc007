package procs

import (
	"github.com/reusee/spawnvm/syscalls"
)

// Context is the state a native program sees.
type Context struct {
	Argv [][]byte
	// result of the last syscall
	Reply syscalls.Reply

	call    syscalls.Call
	exited  bool
	code    int8
	charged uint64
}

type Step = Proc[*Context]

// Syscall issues call after the current step returns.
func (c *Context) Syscall(call syscalls.Call) {
	c.call = call
}

func (c *Context) Exit(code int8) {
	c.exited = true
	c.code = code
}

// Charge adds cycles to the current step.
func (c *Context) Charge(n uint64) {
	c.charged += n
}

// Call issues the syscall built by fn.
func Call(fn func(ctx *Context) syscalls.Call) Step {
	return Func[*Context](func(ctx *Context) (Step, error) {
		ctx.Syscall(fn(ctx))
		return nil, nil
	})
}

func Then(fn func(ctx *Context) error) Step {
	return Func[*Context](func(ctx *Context) (Step, error) {
		return nil, fn(ctx)
	})
}

func Exit(code int8) Step {
	return Func[*Context](func(ctx *Context) (Step, error) {
		ctx.Exit(code)
		return nil, nil
	})
}

// Until runs step repeatedly until cond holds.
// cond runs as a separate step, so it sees the reply of a syscall issued by step.
func Until(step Step, cond func(ctx *Context) bool) Step {
	var check Step
	run := func(ctx *Context) (Step, error) {
		next, err := step.Run(ctx)
		if err != nil {
			return nil, err
		}
		if next != nil {
			return Procs[*Context]{next, check}, nil
		}
		return check, nil
	}
	check = Func[*Context](func(ctx *Context) (Step, error) {
		if cond(ctx) {
			return nil, nil
		}
		return run(ctx)
	})
	return Func[*Context](run)
}
