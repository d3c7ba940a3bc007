package verifiers

import (
	"fmt"
	"strings"

	"github.com/reusee/spawnvm/loaders"
	"github.com/reusee/spawnvm/schedulers"
)

// FixtureRequest builds a request from f, reading cells from data.
func FixtureRequest(f *loaders.Fixture, data loaders.DataSource) (Request, error) {
	root, err := f.Locator()
	if err != nil {
		return Request{}, err
	}
	return Request{
		Data:      data,
		Root:      root,
		Argv:      f.Argv(),
		MaxCycles: f.MaxCycles,
	}, nil
}

// Check compares an outcome with the expectation of a fixture.
// A fixture without expectation accepts exit code 0 only.
func Check(expect *loaders.Expect, res schedulers.Result, err error) error {
	if expect == nil {
		expect = new(loaders.Expect)
	}
	if expect.Error != "" {
		if err == nil {
			return fmt.Errorf("expected error %q, exited with %d", expect.Error, res.ExitCode)
		}
		if !strings.Contains(err.Error(), expect.Error) {
			return fmt.Errorf("expected error %q, got: %w", expect.Error, err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	if res.ExitCode != expect.ExitCode {
		return fmt.Errorf("expected exit code %d, got %d", expect.ExitCode, res.ExitCode)
	}
	return nil
}
