package instances

import (
	"errors"
	"fmt"
	"slices"

	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/loaders"
	"github.com/reusee/spawnvm/pipes"
	"github.com/reusee/spawnvm/syscalls"
)

var ErrAlreadyBooted = errors.New("root instance already booted")

// Manager owns every instance of one verification, keyed by pid.
type Manager struct {
	limits      limits.Limits
	pipes       *pipes.Registry
	data        loaders.DataSource
	interpreter Interpreter

	instances map[syscalls.Pid]*Instance
	nextPid   syscalls.Pid

	// reaped pid -> the parent that reaped it
	reaped map[syscalls.Pid]syscalls.Pid

	// spawned instances not yet exited, root excluded
	live int

	// memory pages of instances not yet exited, root included
	memory uint64
}

func NewManager(
	l limits.Limits,
	registry *pipes.Registry,
	data loaders.DataSource,
	interpreter Interpreter,
) *Manager {
	return &Manager{
		limits:      l,
		pipes:       registry,
		data:        data,
		interpreter: interpreter,
		instances:   make(map[syscalls.Pid]*Instance),
		reaped:      make(map[syscalls.Pid]syscalls.Pid),
	}
}

func (m *Manager) Get(pid syscalls.Pid) (*Instance, bool) {
	inst, ok := m.instances[pid]
	return inst, ok
}

func (m *Manager) Root() (*Instance, bool) {
	return m.Get(syscalls.RootPid)
}

// Pids returns the pids of all instance records in ascending order.
func (m *Manager) Pids() []syscalls.Pid {
	ret := make([]syscalls.Pid, 0, len(m.instances))
	for pid := range m.instances {
		ret = append(ret, pid)
	}
	slices.Sort(ret)
	return ret
}

func (m *Manager) Live() int {
	return m.live
}

func (m *Manager) MemoryInUse() uint64 {
	return m.memory
}

// Boot loads the root instance.
func (m *Manager) Boot(loc syscalls.Locator, argv [][]byte) (*Instance, error) {
	if len(m.instances) > 0 || m.nextPid > 0 {
		return nil, ErrAlreadyBooted
	}
	image, err := loaders.Resolve(m.data, loc)
	if err != nil {
		return nil, fmt.Errorf("load root image %v: %w", loc, err)
	}
	machine, err := m.interpreter.Instantiate(image, argv)
	if err != nil {
		return nil, fmt.Errorf("instantiate root image: %w", err)
	}
	root := &Instance{
		ID:           syscalls.RootPid,
		MemoryLimit:  m.limits.MaxMemoryLimit,
		Cycles:       limits.TransferredByteCycles(uint64(len(image))),
		State:        Runnable,
		Fds:          pipes.NewFdTable(syscalls.RootPid),
		Machine:      machine,
		Argv:         argv,
		ContentLimit: uint64(m.limits.MaxContentLength),
	}
	m.instances[root.ID] = root
	m.nextPid = root.ID + 1
	m.memory += root.MemoryLimit
	return root, nil
}

// Spawn creates a child of parent. On error nothing changes.
// Errors that are not syscalls.Errno come from the data source or interpreter host and are fatal.
func (m *Manager) Spawn(parent *Instance, req syscalls.Spawn) (*Instance, error) {
	if req.MemoryLimit < m.limits.MinMemoryLimit || req.MemoryLimit > m.limits.MaxMemoryLimit {
		return nil, syscalls.MemoryLimitInvalid
	}
	if m.memory+req.MemoryLimit > m.limits.MaxPeakMemory {
		return nil, syscalls.PeakMemoryExceeded
	}
	if m.live >= m.limits.MaxVMs {
		return nil, syscalls.TooManyInstances
	}
	if err := m.pipes.CheckTransfer(parent.Fds, req.Fds); err != nil {
		return nil, err
	}

	image, err := loaders.Resolve(m.data, req.Locator)
	if err != nil {
		return nil, err
	}
	machine, err := m.interpreter.Instantiate(image, req.Argv)
	if err != nil {
		return nil, err
	}

	pid := m.nextPid
	child := &Instance{
		ID:           pid,
		Parent:       parent.ID,
		HasParent:    true,
		MemoryLimit:  req.MemoryLimit,
		Cycles:       limits.TransferredByteCycles(uint64(len(image))),
		State:        Runnable,
		Fds:          pipes.NewFdTable(pid),
		Machine:      machine,
		Argv:         req.Argv,
		ContentLimit: min(req.ContentLimit, uint64(m.limits.MaxContentLength)),
	}
	if err := m.pipes.Transfer(parent.Fds, child.Fds, req.Fds); err != nil {
		// checked above
		panic(err)
	}
	m.instances[pid] = child
	m.nextPid++
	m.live++
	m.memory += child.MemoryLimit

	return child, nil
}

// Exit terminates inst. Its fds are closed so peers observe end of stream.
func (m *Manager) Exit(inst *Instance, code int8) error {
	if inst.State == Exited {
		return nil
	}
	inst.State = Exited
	inst.ExitCode = code
	inst.Pending = nil
	inst.BlockReason = ""
	m.pipes.CloseAll(inst.Fds)
	if inst.HasParent {
		m.live--
	}
	m.memory -= inst.MemoryLimit
	return inst.Machine.Close()
}

// Wait reaps target if it has exited. done is false when the caller must block.
func (m *Manager) Wait(caller *Instance, target syscalls.Pid) (code int8, content []byte, done bool, err error) {
	inst, ok := m.instances[target]
	if !ok {
		if parent, ok := m.reaped[target]; ok && parent == caller.ID {
			return 0, nil, false, syscalls.DoubleWait
		}
		return 0, nil, false, syscalls.InvalidPid
	}
	if !inst.HasParent || inst.Parent != caller.ID {
		return 0, nil, false, syscalls.InvalidPid
	}
	if inst.State != Exited {
		return 0, nil, false, nil
	}
	delete(m.instances, target)
	m.reaped[target] = caller.ID
	return inst.ExitCode, inst.Content, true, nil
}

// SetContent stores data as the content of inst, truncated to its limit.
func (m *Manager) SetContent(inst *Instance, data []byte) uint64 {
	n := min(uint64(len(data)), inst.ContentLimit)
	inst.Content = slices.Clone(data[:n])
	return n
}

// Teardown closes every machine still alive and releases all fds.
func (m *Manager) Teardown() error {
	var errs []error
	for _, pid := range m.Pids() {
		inst := m.instances[pid]
		if inst.State == Exited {
			continue
		}
		inst.State = Exited
		m.pipes.CloseAll(inst.Fds)
		if err := inst.Machine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close instance %d: %w", pid, err))
		}
	}
	m.live = 0
	m.memory = 0
	return errors.Join(errs...)
}
