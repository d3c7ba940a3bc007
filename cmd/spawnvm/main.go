package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/reusee/dscope"
	"github.com/reusee/spawnvm/cmds"
	"github.com/reusee/spawnvm/loaders"
	"github.com/reusee/spawnvm/logs"
	"github.com/reusee/spawnvm/modes"
	"github.com/reusee/spawnvm/schedulers"
	"github.com/reusee/spawnvm/storages"
	"github.com/reusee/spawnvm/traces"
	"github.com/reusee/spawnvm/verifiers"
)

var (
	fixturePaths = cmds.Collect[string]("run")
	traceFile    = cmds.Var[string]("-trace")
	dbFile       = cmds.Var[string]("-db")
	extraArgs    = cmds.Collect[string]("-arg")
	noCheck      = cmds.Switch("-no-check")
)

func main() {
	cmds.Execute(os.Args[1:])

	if len(*fixturePaths) == 0 {
		fmt.Fprintln(os.Stderr, "Error: run <fixture.toml> is required")
		cmds.GlobalExecutor.PrintUsage()
		os.Exit(2)
	}
	if len(*fixturePaths) > 1 && (*traceFile != "" || *dbFile != "") {
		fmt.Fprintln(os.Stderr, "Error: -trace and -db take a single fixture")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	failed := false
	dscope.New(
		new(verifiers.Module),
		modes.ForProduction(),
	).Call(func(
		logger logs.Logger,
		verifyBatch verifiers.VerifyBatch,
	) {
		fixtures, reqs, closers, err := prepare(ctx, *fixturePaths)
		defer func() {
			for _, fn := range closers {
				if err := fn(); err != nil {
					logger.Warn("close", "error", err)
				}
			}
		}()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed = true
			return
		}

		var recorder *traces.Recorder
		if *traceFile != "" {
			recorder = new(traces.Recorder)
			reqs[0].Tracer = recorder
		}

		results, err := verifyBatch(ctx, reqs)
		errs := verifiers.RequestErrors(err)
		for i, f := range fixtures {
			report(i, f, results[i], errs[i], &failed)
		}

		if recorder != nil {
			if err := writeTrace(recorder); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				failed = true
			}
		}
	})

	if failed {
		os.Exit(1)
	}
}

// prepare loads every fixture. Stores opened for -db are returned in closers
// even when a later fixture fails.
func prepare(ctx context.Context, paths []string) (
	fixtures []*loaders.Fixture,
	reqs []verifiers.Request,
	closers []func() error,
	err error,
) {
	for _, path := range paths {
		f, req, closer, err := load(ctx, path)
		if closer != nil {
			closers = append(closers, closer)
		}
		if err != nil {
			return nil, nil, closers, err
		}
		fixtures = append(fixtures, f)
		reqs = append(reqs, req)
	}
	return
}

func load(ctx context.Context, path string) (f *loaders.Fixture, req verifiers.Request, closer func() error, err error) {
	f, err = loaders.LoadFixture(path)
	if err != nil {
		return
	}
	data, err := f.TxData()
	if err != nil {
		return
	}

	var source loaders.DataSource = data
	if *dbFile != "" {
		store, err := storages.Open(*dbFile)
		if err != nil {
			return nil, req, nil, err
		}
		if err := store.Import(ctx, data); err != nil {
			store.Close()
			return nil, req, nil, err
		}
		source = store
		closer = store.Close
	}

	req, err = verifiers.FixtureRequest(f, source)
	if err != nil {
		return
	}
	for _, arg := range *extraArgs {
		req.Argv = append(req.Argv, []byte(arg))
	}
	return
}

func report(i int, f *loaders.Fixture, res schedulers.Result, err error, failed *bool) {
	path := (*fixturePaths)[i]
	if *noCheck {
		if err != nil {
			fmt.Printf("%s: error: %v\n", path, err)
			*failed = true
			return
		}
		fmt.Printf("%s: exit %d, %d cycles\n", path, res.ExitCode, res.Cycles)
		return
	}
	if checkErr := verifiers.Check(f.Expect, res, err); checkErr != nil {
		fmt.Printf("%s: FAIL: %v\n", path, checkErr)
		*failed = true
		return
	}
	if err != nil {
		fmt.Printf("%s: ok (%v)\n", path, err)
		return
	}
	fmt.Printf("%s: ok, exit %d, %d cycles\n", path, res.ExitCode, res.Cycles)
}

func writeTrace(recorder *traces.Recorder) error {
	data, err := recorder.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*traceFile, data, 0644); err != nil {
		return err
	}
	digest, err := recorder.Digest()
	if err != nil {
		return err
	}
	fmt.Printf("trace: %d events, digest %x\n", len(recorder.Events), digest)
	return nil
}
