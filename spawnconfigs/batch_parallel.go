package spawnconfigs

import (
	"runtime"

	"github.com/reusee/spawnvm/cmds"
	"github.com/reusee/spawnvm/configs"
	"github.com/reusee/spawnvm/vars"
)

// BatchParallel bounds how many verifications of a batch run at once.
type BatchParallel int

var _ configs.Configurable = BatchParallel(0)

func (BatchParallel) ConfigPath() string {
	return "batch_parallel"
}

var batchParallelFlag = cmds.Var[int]("-parallel")

func (Module) BatchParallel(
	loader configs.Loader,
) BatchParallel {
	return vars.FirstNonZero(
		BatchParallel(*batchParallelFlag),
		configs.First[BatchParallel](loader, BatchParallel(0).ConfigPath()),
		BatchParallel(runtime.NumCPU()),
	)
}
