package schedulers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/loaders"
	"github.com/reusee/spawnvm/logs"
	"github.com/reusee/spawnvm/pipes"
	"github.com/reusee/spawnvm/syscalls"
)

// ErrCyclesExceeded rejects a verification whose instances used up the cycle budget.
// Deadlocked instance trees end with it too.
var ErrCyclesExceeded = errors.New("cycles exceeded")

// Tracer observes completed syscalls and exits.
type Tracer interface {
	Syscall(pid syscalls.Pid, number uint64, errno syscalls.Errno, cycles uint64)
	Exit(pid syscalls.Pid, code int8, cycles uint64)
}

type Config struct {
	Limits      limits.Limits
	MaxCycles   uint64
	Data        loaders.DataSource
	Interpreter instances.Interpreter
	Logger      logs.Logger
	Tracer      Tracer
}

type Result struct {
	ExitCode int8
	Cycles   uint64
	Content  []byte
}

// Scheduler runs one instance tree. Only one instance executes at any time.
type Scheduler struct {
	limits    limits.Limits
	costs     limits.Costs
	maxCycles uint64
	logger    logs.Logger
	tracer    Tracer

	pipes   *pipes.Registry
	manager *instances.Manager

	used    uint64
	last    syscalls.Pid
	started bool
}

func New(config Config) *Scheduler {
	registry := pipes.NewRegistry(config.Limits)
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		limits:    config.Limits,
		costs:     config.Limits.Costs,
		maxCycles: config.MaxCycles,
		logger:    logger,
		tracer:    config.Tracer,
		pipes:     registry,
		manager: instances.NewManager(
			config.Limits,
			registry,
			config.Data,
			config.Interpreter,
		),
	}
}

// Cycles returns the cycles consumed so far.
func (s *Scheduler) Cycles() uint64 {
	return s.used
}

func (s *Scheduler) Stats() pipes.Stats {
	return s.pipes.Stats()
}

// Run executes the script at loc as the root instance until it exits.
// Every instance and pipe is released before Run returns.
func (s *Scheduler) Run(ctx context.Context, loc syscalls.Locator, argv [][]byte) (ret Result, err error) {
	defer func() {
		if e := s.manager.Teardown(); e != nil {
			err = errors.Join(err, e)
		}
	}()

	root, err := s.manager.Boot(loc, argv)
	if err != nil {
		return ret, err
	}
	if err := s.consume(root.Cycles); err != nil {
		return ret, err
	}
	s.logger.DebugContext(ctx, "boot",
		"locator", loc,
		"cycles", root.Cycles,
	)

	for {
		select {
		case <-ctx.Done():
			return ret, ctx.Err()
		default:
		}

		if root.State == instances.Exited {
			return s.result(ctx, root), nil
		}

		inst := s.next()
		if inst == nil {
			// nothing can make progress
			s.logger.DebugContext(ctx, "deadlock",
				"cycles", s.used,
				"root", s.rootReason(),
			)
			s.used = s.maxCycles
			return ret, ErrCyclesExceeded
		}

		if err := s.runSlice(ctx, inst); err != nil {
			return ret, err
		}
		if root.State == instances.Exited {
			// pending calls of other instances are not retried
			return s.result(ctx, root), nil
		}

		if err := s.wakeBlocked(ctx); err != nil {
			return ret, err
		}
	}
}

func (s *Scheduler) rootReason() string {
	root, ok := s.manager.Root()
	if !ok {
		return ""
	}
	return root.BlockReason
}

func (s *Scheduler) result(ctx context.Context, root *instances.Instance) Result {
	s.logger.DebugContext(ctx, "root exited",
		"code", root.ExitCode,
		"cycles", s.used,
		"pipes", s.pipes.Stats(),
	)
	return Result{
		ExitCode: root.ExitCode,
		Cycles:   s.used,
		Content:  root.Content,
	}
}

// next picks the first runnable instance after the last one that ran, in pid order.
func (s *Scheduler) next() *instances.Instance {
	var first *instances.Instance
	for _, pid := range s.manager.Pids() {
		inst, ok := s.manager.Get(pid)
		if !ok || inst.State != instances.Runnable {
			continue
		}
		if first == nil {
			first = inst
		}
		if !s.started || pid > s.last {
			return s.pick(inst)
		}
	}
	if first != nil {
		return s.pick(first)
	}
	return nil
}

func (s *Scheduler) pick(inst *instances.Instance) *instances.Instance {
	s.started = true
	s.last = inst.ID
	return inst
}

// consume adds cycles to the global count.
func (s *Scheduler) consume(n uint64) error {
	if n > s.maxCycles-s.used {
		s.used = s.maxCycles
		return ErrCyclesExceeded
	}
	s.used += n
	return nil
}

// charge adds cycles to inst and to the global count.
func (s *Scheduler) charge(inst *instances.Instance, n uint64) error {
	inst.Cycles += n
	return s.consume(n)
}

// runSlice resumes inst until it blocks, yields or exits.
func (s *Scheduler) runSlice(ctx context.Context, inst *instances.Instance) error {
	for {
		budget := s.maxCycles - s.used
		if budget == 0 {
			return ErrCyclesExceeded
		}
		reply := inst.Reply
		inst.Reply = syscalls.Reply{}
		trap := inst.Machine.Resume(budget, reply)
		if err := s.charge(inst, trap.Cycles); err != nil {
			return err
		}

		switch trap.Kind {

		case instances.TrapOutOfCycles:
			s.used = s.maxCycles
			return ErrCyclesExceeded

		case instances.TrapFault:
			s.logger.DebugContext(ctx, "machine fault",
				"pid", inst.ID,
				"error", trap.Err,
			)
			return s.exit(ctx, inst, instances.FaultExitCode)

		case instances.TrapExit:
			return s.exit(ctx, inst, trap.Code)

		case instances.TrapSyscall:
			if err := s.charge(inst, s.costs.Syscall); err != nil {
				return err
			}
			reply, out, err := s.dispatch(ctx, inst, trap.Call)
			if err != nil {
				return err
			}
			switch out {
			case blocked:
				inst.Block(trap.Call, s.blockReason(trap.Call))
				s.logger.DebugContext(ctx, "blocked",
					"pid", inst.ID,
					"reason", inst.BlockReason,
				)
				return s.charge(inst, s.costs.Switch)
			case yielded:
				inst.Reply = reply
				return nil
			}
			inst.Reply = reply

		default:
			return fmt.Errorf("unknown trap: %v", trap.Kind)
		}
	}
}

func (s *Scheduler) exit(ctx context.Context, inst *instances.Instance, code int8) error {
	if err := s.manager.Exit(inst, code); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "exit",
		"pid", inst.ID,
		"code", code,
		"cycles", inst.Cycles,
	)
	if s.tracer != nil {
		s.tracer.Exit(inst.ID, code, inst.Cycles)
	}
	return nil
}

// wakeBlocked retries pending calls in pid order.
func (s *Scheduler) wakeBlocked(ctx context.Context) error {
	for _, pid := range s.manager.Pids() {
		// reaping in an earlier retry removes pids from the snapshot
		inst, ok := s.manager.Get(pid)
		if !ok || inst.State != instances.Blocked {
			continue
		}
		reply, out, err := s.dispatch(ctx, inst, inst.Pending)
		if err != nil {
			return err
		}
		if out == blocked {
			continue
		}
		inst.Unblock(reply)
		s.logger.DebugContext(ctx, "unblocked",
			"pid", inst.ID,
		)
	}
	return nil
}

// blockReason names what call waits for, and who holds the other side.
func (s *Scheduler) blockReason(call syscalls.Call) string {
	switch call := call.(type) {
	case syscalls.Read:
		return fmt.Sprintf("read fd %d%s", call.Fd, s.peerOwner(call.Fd))
	case syscalls.Write:
		return fmt.Sprintf("write fd %d%s", call.Fd, s.peerOwner(call.Fd))
	case syscalls.Wait:
		return fmt.Sprintf("wait pid %d", call.Pid)
	}
	return fmt.Sprintf("syscall %d", call.Number())
}

func (s *Scheduler) peerOwner(fd syscalls.Fd) string {
	pid, ok := s.pipes.Owner(pipes.Peer(fd))
	if !ok {
		return ""
	}
	return fmt.Sprintf(", peer held by pid %d", pid)
}
