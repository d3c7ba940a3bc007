package verifiers

import (
	"context"

	"github.com/reusee/spawnvm/instances"
	"github.com/reusee/spawnvm/limits"
	"github.com/reusee/spawnvm/loaders"
	"github.com/reusee/spawnvm/logs"
	"github.com/reusee/spawnvm/schedulers"
	"github.com/reusee/spawnvm/spawnconfigs"
	"github.com/reusee/spawnvm/syscalls"
	"github.com/reusee/spawnvm/vars"
)

// Request is one script group to verify.
type Request struct {
	Data loaders.DataSource
	Root syscalls.Locator
	Argv [][]byte
	// zero means the configured MaxCycles
	MaxCycles uint64
	Tracer    schedulers.Tracer
}

type Verify func(ctx context.Context, req Request) (schedulers.Result, error)

func (Module) Verify(
	logger logs.Logger,
	newSpan logs.NewSpan,
	interpreter instances.Interpreter,
	l limits.Limits,
	maxCycles spawnconfigs.MaxCycles,
) Verify {
	return func(ctx context.Context, req Request) (res schedulers.Result, err error) {
		ctx, _ = newSpan(ctx, "")
		defer func() {
			if err != nil {
				err = logs.WrapSpan(ctx, err)
			}
		}()

		budget := vars.FirstNonZero(req.MaxCycles, uint64(maxCycles))
		scheduler := schedulers.New(schedulers.Config{
			Limits:      l,
			MaxCycles:   budget,
			Data:        req.Data,
			Interpreter: interpreter,
			Logger:      logger,
			Tracer:      req.Tracer,
		})
		res, err = scheduler.Run(ctx, req.Root, req.Argv)
		if err != nil {
			logger.WarnContext(ctx, "verification failed",
				"root", req.Root,
				"cycles", scheduler.Cycles(),
				"error", err,
			)
			return res, err
		}

		logger.InfoContext(ctx, "verified",
			"root", req.Root,
			"exit_code", res.ExitCode,
			"cycles", res.Cycles,
			"budget", budget,
		)
		return res, nil
	}
}
