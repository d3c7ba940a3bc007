package scripts

import (
	"fmt"

	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/syscalls"
	"github.com/reusee/starlarkutil"
	"go.starlark.net/starlark"
)

var builtinNames = map[string]bool{
	"spawn":          true,
	"pipe":           true,
	"read":           true,
	"write":          true,
	"close":          true,
	"wait":           true,
	"inherited_fds":  true,
	"current_cycles": true,
	"process_id":     true,
	"memory_limit":   true,
	"set_content":    true,
	"yield_":         true,
	"exit":           true,
	"debug":          true,

	"SOURCE_INPUT":        true,
	"SOURCE_OUTPUT":       true,
	"SOURCE_CELL_DEP":     true,
	"SOURCE_GROUP_INPUT":  true,
	"SOURCE_GROUP_OUTPUT": true,
	"PLACE_CELL_DATA":     true,
	"PLACE_WITNESS":       true,
}

func isBuiltin(name string) bool {
	return builtinNames[name]
}

func errnoValue(errno syscalls.Errno) starlark.Value {
	return starlark.MakeInt(int(errno))
}

func (m *Machine) builtins() starlark.StringDict {
	return starlark.StringDict{
		"spawn":          starlark.NewBuiltin("spawn", m.spawn),
		"pipe":           starlark.NewBuiltin("pipe", m.pipe),
		"read":           starlark.NewBuiltin("read", m.read),
		"write":          starlark.NewBuiltin("write", m.write),
		"close":          starlark.NewBuiltin("close", m.close),
		"wait":           starlark.NewBuiltin("wait", m.wait),
		"inherited_fds":  starlark.NewBuiltin("inherited_fds", m.inheritedFds),
		"current_cycles": m.valueCall("current_cycles", syscalls.CurrentCycles{}),
		"process_id":     m.valueCall("process_id", syscalls.ProcessID{}),
		"memory_limit":   m.valueCall("memory_limit", syscalls.MemoryLimit{}),
		"set_content":    starlark.NewBuiltin("set_content", m.setContent),
		"yield_":         starlark.NewBuiltin("yield_", m.yield),
		"exit":           starlark.NewBuiltin("exit", m.exit),
		"debug": starlarkutil.MakeFunc("debug", func(msg string) {
			m.logger.Debug("script debug", "msg", msg)
		}),

		"SOURCE_INPUT":        starlark.MakeUint64(uint64(syscalls.SourceInput)),
		"SOURCE_OUTPUT":       starlark.MakeUint64(uint64(syscalls.SourceOutput)),
		"SOURCE_CELL_DEP":     starlark.MakeUint64(uint64(syscalls.SourceCellDep)),
		"SOURCE_GROUP_INPUT":  starlark.MakeUint64(uint64(syscalls.SourceGroupInput)),
		"SOURCE_GROUP_OUTPUT": starlark.MakeUint64(uint64(syscalls.SourceGroupOutput)),
		"PLACE_CELL_DATA":     starlark.MakeUint64(uint64(syscalls.PlaceCellData)),
		"PLACE_WITNESS":       starlark.MakeUint64(uint64(syscalls.PlaceWitness)),
	}
}

func toUint(v starlark.Value, what string) (uint64, error) {
	i, ok := v.(starlark.Int)
	if !ok {
		return 0, fmt.Errorf("%s: want int, got %s", what, v.Type())
	}
	u, ok := i.Uint64()
	if !ok {
		return 0, fmt.Errorf("%s: out of range: %v", what, i)
	}
	return u, nil
}

func toBytes(v starlark.Value, what string) ([]byte, error) {
	switch v := v.(type) {
	case starlark.String:
		return []byte(v), nil
	case starlark.Bytes:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("%s: want string or bytes, got %s", what, v.Type())
}

func each(v starlark.Value, what string, fn func(starlark.Value) error) error {
	iter := starlark.Iterate(v)
	if iter == nil {
		return fmt.Errorf("%s: want iterable, got %s", what, v.Type())
	}
	defer iter.Done()
	var elem starlark.Value
	for iter.Next(&elem) {
		if err := fn(elem); err != nil {
			return err
		}
	}
	return nil
}

func fdList(fds []syscalls.Fd) *starlark.List {
	elems := make([]starlark.Value, 0, len(fds))
	for _, fd := range fds {
		elems = append(elems, starlark.MakeUint64(uint64(fd)))
	}
	return starlark.NewList(elems)
}

func (m *Machine) spawn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		index        starlark.Value
		source       starlark.Value = starlark.MakeUint64(uint64(syscalls.SourceCellDep))
		place        starlark.Value = starlark.MakeInt(0)
		offset       starlark.Value = starlark.MakeInt(0)
		length       starlark.Value = starlark.MakeInt(0)
		argv         starlark.Value = starlark.NewList(nil)
		memoryLimit  starlark.Value = starlark.MakeInt(limits.MaxMemoryLimit)
		fds          starlark.Value = starlark.NewList(nil)
		contentLimit starlark.Value = starlark.MakeInt(0)
	)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"index", &index,
		"source?", &source,
		"place?", &place,
		"offset?", &offset,
		"length?", &length,
		"argv?", &argv,
		"memory_limit?", &memoryLimit,
		"fds?", &fds,
		"content_limit?", &contentLimit,
	); err != nil {
		return nil, err
	}

	var call syscalls.Spawn
	for _, field := range []struct {
		value  starlark.Value
		name   string
		target *uint64
	}{
		{index, "index", &call.Locator.Index},
		{offset, "offset", &call.Locator.Offset},
		{length, "length", &call.Locator.Length},
		{memoryLimit, "memory_limit", &call.MemoryLimit},
		{contentLimit, "content_limit", &call.ContentLimit},
	} {
		u, err := toUint(field.value, field.name)
		if err != nil {
			return nil, err
		}
		*field.target = u
	}
	u, err := toUint(source, "source")
	if err != nil {
		return nil, err
	}
	call.Locator.Source = syscalls.Source(u)
	u, err = toUint(place, "place")
	if err != nil {
		return nil, err
	}
	call.Locator.Place = syscalls.Place(u)

	if err := each(argv, "argv", func(v starlark.Value) error {
		arg, err := toBytes(v, "argv")
		if err != nil {
			return err
		}
		call.Argv = append(call.Argv, arg)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := each(fds, "fds", func(v starlark.Value) error {
		fd, err := toUint(v, "fds")
		if err != nil {
			return err
		}
		call.Fds = append(call.Fds, syscalls.Fd(fd))
		return nil
	}); err != nil {
		return nil, err
	}

	reply, err := m.syscall(call)
	if err != nil {
		return nil, err
	}
	return starlark.Tuple{
		errnoValue(reply.Errno),
		starlark.MakeUint64(uint64(reply.Pid)),
	}, nil
}

func (m *Machine) pipe(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	reply, err := m.syscall(syscalls.Pipe{})
	if err != nil {
		return nil, err
	}
	if reply.Errno != syscalls.Success {
		return starlark.Tuple{errnoValue(reply.Errno), starlark.None, starlark.None}, nil
	}
	return starlark.Tuple{
		errnoValue(reply.Errno),
		starlark.MakeUint64(uint64(reply.Fds[0])),
		starlark.MakeUint64(uint64(reply.Fds[1])),
	}, nil
}

func (m *Machine) read(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fd, n starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "fd", &fd, "n", &n); err != nil {
		return nil, err
	}
	var call syscalls.Read
	u, err := toUint(fd, "fd")
	if err != nil {
		return nil, err
	}
	call.Fd = syscalls.Fd(u)
	if call.Max, err = toUint(n, "n"); err != nil {
		return nil, err
	}
	reply, err := m.syscall(call)
	if err != nil {
		return nil, err
	}
	return starlark.Tuple{
		errnoValue(reply.Errno),
		starlark.String(reply.Data),
	}, nil
}

func (m *Machine) write(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fd, data starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "fd", &fd, "data", &data); err != nil {
		return nil, err
	}
	var call syscalls.Write
	u, err := toUint(fd, "fd")
	if err != nil {
		return nil, err
	}
	call.Fd = syscalls.Fd(u)
	if call.Data, err = toBytes(data, "data"); err != nil {
		return nil, err
	}
	reply, err := m.syscall(call)
	if err != nil {
		return nil, err
	}
	return starlark.Tuple{
		errnoValue(reply.Errno),
		starlark.MakeUint64(reply.N),
	}, nil
}

func (m *Machine) close(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fd starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "fd", &fd); err != nil {
		return nil, err
	}
	u, err := toUint(fd, "fd")
	if err != nil {
		return nil, err
	}
	reply, err := m.syscall(syscalls.Close{Fd: syscalls.Fd(u)})
	if err != nil {
		return nil, err
	}
	return errnoValue(reply.Errno), nil
}

func (m *Machine) wait(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pid starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "pid", &pid); err != nil {
		return nil, err
	}
	u, err := toUint(pid, "pid")
	if err != nil {
		return nil, err
	}
	reply, err := m.syscall(syscalls.Wait{Pid: syscalls.Pid(u)})
	if err != nil {
		return nil, err
	}
	return starlark.Tuple{
		errnoValue(reply.Errno),
		starlark.MakeInt(int(reply.Code)),
		starlark.String(reply.Content),
	}, nil
}

func (m *Machine) inheritedFds(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var capacity starlark.Value = starlark.MakeInt(limits.MaxPipes * 2)
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "capacity?", &capacity); err != nil {
		return nil, err
	}
	u, err := toUint(capacity, "capacity")
	if err != nil {
		return nil, err
	}
	reply, err := m.syscall(syscalls.InheritedFds{Capacity: u})
	if err != nil {
		return nil, err
	}
	return starlark.Tuple{
		errnoValue(reply.Errno),
		fdList(reply.Fds),
		starlark.MakeUint64(reply.N),
	}, nil
}

// valueCall builds a builtin for a call that cannot fail and returns reply.N.
func (m *Machine) valueCall(name string, call syscalls.Call) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
			return nil, err
		}
		reply, err := m.syscall(call)
		if err != nil {
			return nil, err
		}
		return starlark.MakeUint64(reply.N), nil
	})
}

func (m *Machine) setContent(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "data", &data); err != nil {
		return nil, err
	}
	bs, err := toBytes(data, "data")
	if err != nil {
		return nil, err
	}
	reply, err := m.syscall(syscalls.SetContent{Data: bs})
	if err != nil {
		return nil, err
	}
	return starlark.MakeUint64(reply.N), nil
}

func (m *Machine) yield(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if _, err := m.syscall(syscalls.Yield{}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (m *Machine) exit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var code int
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "code", &code); err != nil {
		return nil, err
	}
	m.exited = true
	m.exitCode = int8(code)
	return nil, errExit
}
