package spawnconfigs

import (
	"github.com/reusee/spawnvm/cmds"
	"github.com/reusee/spawnvm/configs"
)

// DefaultMaxCycles is the budget of one verification when nothing else is configured.
const DefaultMaxCycles = 3_500_000_000

type MaxCycles uint64

var _ configs.Configurable = MaxCycles(0)

func (MaxCycles) ConfigPath() string {
	return "max_cycles"
}

var maxCyclesFlag = cmds.Var[uint64]("-max-cycles")

// MaxCycles is the smallest of the flag and every config file value.
func (Module) MaxCycles(
	loader configs.Loader,
) MaxCycles {
	maxCycles := MaxCycles(DefaultMaxCycles)

	// flag
	if *maxCyclesFlag != 0 {
		maxCycles = min(maxCycles, MaxCycles(*maxCyclesFlag))
	}

	// config
	for _, n := range configs.Values[MaxCycles](loader) {
		maxCycles = min(maxCycles, n)
	}

	return maxCycles
}
