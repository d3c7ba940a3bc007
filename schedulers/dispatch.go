package schedulers

import (
	"context"
	"errors"
	"fmt"

	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/pipes"
	"github.com/reusee/spawnvm/syscalls"
)

type outcome uint8

const (
	completed outcome = iota
	blocked
	yielded
)

// dispatch executes one call for inst. The base syscall cost is already charged.
// Errnos become replies; any other error aborts the verification.
func (s *Scheduler) dispatch(ctx context.Context, inst *instances.Instance, call syscalls.Call) (reply syscalls.Reply, out outcome, err error) {
	reply, out, err = s.execute(ctx, inst, call)
	if errors.Is(err, pipes.ErrWouldBlock) {
		return reply, blocked, nil
	}
	if err != nil {
		errno, ok := syscalls.ErrnoOf(err)
		if !ok {
			return reply, out, err
		}
		reply.Errno = errno
	}
	if out == blocked {
		return reply, out, nil
	}
	if s.tracer != nil {
		s.tracer.Syscall(inst.ID, call.Number(), reply.Errno, inst.Cycles)
	}
	return reply, out, nil
}

func (s *Scheduler) execute(ctx context.Context, inst *instances.Instance, call syscalls.Call) (reply syscalls.Reply, out outcome, err error) {
	switch call := call.(type) {

	case syscalls.Spawn:
		var argvBytes uint64
		for _, arg := range call.Argv {
			argvBytes += uint64(len(arg))
		}
		child, err := s.manager.Spawn(inst, call)
		if err != nil {
			return reply, completed, err
		}
		if err := s.consume(child.Cycles); err != nil {
			return reply, completed, err
		}
		cost := s.costs.Spawn(call.MemoryLimit) + limits.TransferredByteCycles(argvBytes)
		if err := s.charge(inst, cost); err != nil {
			return reply, completed, err
		}
		s.logger.DebugContext(ctx, "spawn",
			"parent", inst.ID,
			"child", child.ID,
			"locator", call.Locator,
			"memory", limits.MemoryBytes(call.MemoryLimit),
			"fds", call.Fds,
		)
		reply.Pid = child.ID
		return reply, completed, nil

	case syscalls.Pipe:
		readFd, writeFd, err := s.pipes.Create(inst.Fds)
		if err != nil {
			return reply, completed, err
		}
		reply.Fds = []syscalls.Fd{readFd, writeFd}
		return reply, completed, nil

	case syscalls.Read:
		data, err := s.pipes.Read(inst.Fds, call.Fd, call.Max)
		if err != nil {
			return reply, completed, err
		}
		if err := s.charge(inst, limits.TransferredByteCycles(uint64(len(data)))); err != nil {
			return reply, completed, err
		}
		reply.Data = data
		reply.N = uint64(len(data))
		return reply, completed, nil

	case syscalls.Write:
		n, err := s.pipes.Write(inst.Fds, call.Fd, call.Data)
		if err != nil {
			return reply, completed, err
		}
		if err := s.charge(inst, limits.TransferredByteCycles(n)); err != nil {
			return reply, completed, err
		}
		reply.N = n
		return reply, completed, nil

	case syscalls.Close:
		return reply, completed, s.pipes.Close(inst.Fds, call.Fd)

	case syscalls.Wait:
		code, content, done, err := s.manager.Wait(inst, call.Pid)
		if err != nil {
			return reply, completed, err
		}
		if !done {
			return reply, blocked, nil
		}
		if err := s.charge(inst, limits.TransferredByteCycles(uint64(len(content)))); err != nil {
			return reply, completed, err
		}
		reply.Code = code
		reply.Content = content
		return reply, completed, nil

	case syscalls.InheritedFds:
		fds := s.pipes.Inherited(inst.Fds)
		reply.N = uint64(len(fds))
		if call.Capacity < uint64(len(fds)) {
			reply.Fds = fds[:call.Capacity]
			return reply, completed, syscalls.LengthNotEnough
		}
		reply.Fds = fds
		return reply, completed, nil

	case syscalls.CurrentCycles:
		reply.N = inst.Cycles
		return reply, completed, nil

	case syscalls.ProcessID:
		reply.Pid = inst.ID
		reply.N = uint64(inst.ID)
		return reply, completed, nil

	case syscalls.Yield:
		return reply, yielded, nil

	case syscalls.SetContent:
		n := s.manager.SetContent(inst, call.Data)
		if err := s.charge(inst, limits.TransferredByteCycles(n)); err != nil {
			return reply, completed, err
		}
		reply.N = n
		return reply, completed, nil

	case syscalls.MemoryLimit:
		reply.N = inst.MemoryLimit
		return reply, completed, nil

	}

	return reply, completed, fmt.Errorf("unknown syscall: %T", call)
}
