package procs

import (
	"errors"
	"testing"

	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/syscalls"
)

func TestProcs(t *testing.T) {
	var trace []int
	step := func(i int) Step {
		return Func[*Context](func(ctx *Context) (Step, error) {
			trace = append(trace, i)
			return nil, nil
		})
	}
	var proc Step = Procs[*Context]{step(1), step(2), step(3)}
	ctx := new(Context)
	for proc != nil {
		var err error
		proc, err = proc.Run(ctx)
		if err != nil {
			t.Fatal(err)
		}
	}
	if len(trace) != 3 || trace[0] != 1 || trace[2] != 3 {
		t.Fatalf("got %v", trace)
	}
}

func TestMachine(t *testing.T) {
	registry := Registry{
		"foo": func(argv [][]byte) Step {
			return Procs[*Context]{
				Call(func(ctx *Context) syscalls.Call {
					return syscalls.ProcessID{}
				}),
				Func[*Context](func(ctx *Context) (Step, error) {
					ctx.Exit(int8(ctx.Reply.N) + int8(len(ctx.Argv)))
					return nil, nil
				}),
			}
		},
	}

	_, err := registry.Instantiate([]byte("#!proc bar"), nil)
	if !errors.Is(err, syscalls.WrongFormat) {
		t.Fatalf("got %v", err)
	}
	_, err = registry.Instantiate([]byte("#!star"), nil)
	if !errors.Is(err, syscalls.WrongFormat) {
		t.Fatalf("got %v", err)
	}

	m, err := registry.Instantiate([]byte("#!proc foo\n"), [][]byte{[]byte("a")})
	if err != nil {
		t.Fatal(err)
	}
	trap := m.Resume(100, syscalls.Reply{})
	if trap.Kind != instances.TrapSyscall {
		t.Fatalf("got %v", trap.Kind)
	}
	if _, ok := trap.Call.(syscalls.ProcessID); !ok {
		t.Fatalf("got %T", trap.Call)
	}
	if trap.Cycles != StepCycles {
		t.Fatalf("got %d", trap.Cycles)
	}
	trap = m.Resume(100, syscalls.Reply{N: 3})
	if trap.Kind != instances.TrapExit {
		t.Fatalf("got %v", trap.Kind)
	}
	if trap.Code != 4 {
		t.Fatalf("got %d", trap.Code)
	}
	trap = m.Resume(100, syscalls.Reply{})
	if trap.Kind != instances.TrapFault {
		t.Fatalf("got %v", trap.Kind)
	}
}

func TestMachineOutOfCycles(t *testing.T) {
	registry := Registry{
		"spin": func(argv [][]byte) Step {
			var spin Step
			spin = Func[*Context](func(ctx *Context) (Step, error) {
				ctx.Charge(10)
				return spin, nil
			})
			return spin
		},
	}
	m, err := registry.Instantiate([]byte("#!proc spin"), nil)
	if err != nil {
		t.Fatal(err)
	}
	trap := m.Resume(1000, syscalls.Reply{})
	if trap.Kind != instances.TrapOutOfCycles {
		t.Fatalf("got %v", trap.Kind)
	}
	if trap.Cycles != 1000 {
		t.Fatalf("got %d", trap.Cycles)
	}
}

func TestUntil(t *testing.T) {
	n := 0
	registry := Registry{
		"count": func(argv [][]byte) Step {
			return Procs[*Context]{
				Until(
					Call(func(ctx *Context) syscalls.Call {
						n++
						return syscalls.Yield{}
					}),
					func(ctx *Context) bool {
						return n == 3
					},
				),
				Exit(7),
			}
		},
	}
	m, err := registry.Instantiate([]byte("#!proc count"), nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		trap := m.Resume(100, syscalls.Reply{})
		if trap.Kind != instances.TrapSyscall {
			t.Fatalf("%d: got %v", i, trap.Kind)
		}
	}
	trap := m.Resume(100, syscalls.Reply{})
	if trap.Kind != instances.TrapExit || trap.Code != 7 {
		t.Fatalf("got %v %d", trap.Kind, trap.Code)
	}
}
