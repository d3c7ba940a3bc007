package verifiers

import (
	"github.com/reusee/dscope"
	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/logs"
	"github.com/reusee/spawnvm/procs"
	"github.com/reusee/spawnvm/scripts"
	"github.com/reusee/spawnvm/spawnconfigs"
)

type Module struct {
	dscope.Module
	Configs spawnconfigs.Module
}

func (Module) Limits() limits.Limits {
	return limits.Default()
}

// Programs are the native programs reachable through "#!proc <name>" images.
func (Module) Programs() procs.Registry {
	return procs.Registry{}
}

func (Module) Interpreter(
	logger logs.Logger,
	programs procs.Registry,
) instances.Interpreter {
	return new(instances.Mux).
		Handle(scripts.Header, &scripts.Interpreter{
			Logger: logger,
		}).
		Handle(procs.Header, programs)
}
