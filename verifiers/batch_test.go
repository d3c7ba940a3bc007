package verifiers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/reusee/spawnvm/loaders"
	"github.com/reusee/spawnvm/schedulers"
	"github.com/reusee/spawnvm/spawnconfigs"
	"github.com/reusee/spawnvm/syscalls"
)

func memoryRequest(limit int) Request {
	parent := fmt.Sprintf(`#!star
def main(argv):
    err, pid = spawn(1, memory_limit = %d)
    if err != 0:
        return 100 + err
    err, code, content = wait(pid)
    return code
`, limit)
	child := `#!star
def main(argv):
    return memory_limit()
`
	return Request{
		Data: &loaders.TxData{
			CellDeps: [][]byte{[]byte(parent), []byte(child)},
		},
		Root: syscalls.Locator{
			Source: syscalls.SourceCellDep,
		},
		MaxCycles: 10_000_000,
	}
}

func TestBatch(t *testing.T) {
	testScope(t, func() spawnconfigs.BatchParallel {
		return 2
	}).Call(func(
		verifyBatch VerifyBatch,
	) {
		limits := []int{3, 7, 8, 1, 5}
		var reqs []Request
		for _, limit := range limits {
			reqs = append(reqs, memoryRequest(limit))
		}
		results, err := verifyBatch(context.Background(), reqs)
		if err != nil {
			t.Fatal(err)
		}
		for i, limit := range limits {
			if int(results[i].ExitCode) != limit {
				t.Fatalf("%d: got %d", i, results[i].ExitCode)
			}
		}
	})
}

func TestBatchErrors(t *testing.T) {
	testScope(t).Call(func(
		verifyBatch VerifyBatch,
	) {
		bad := memoryRequest(1)
		bad.MaxCycles = 10
		results, err := verifyBatch(context.Background(), []Request{
			memoryRequest(2),
			bad,
		})
		if !errors.Is(err, schedulers.ErrCyclesExceeded) {
			t.Fatalf("got %v", err)
		}
		if results[0].ExitCode != 2 {
			t.Fatalf("got %d", results[0].ExitCode)
		}
	})
}

func TestRequestErrors(t *testing.T) {
	errFoo := errors.New("foo")
	errs := RequestErrors(errors.Join(
		&RequestError{Index: 1, Err: errFoo},
		&RequestError{Index: 3, Err: schedulers.ErrCyclesExceeded},
	))
	if len(errs) != 2 {
		t.Fatalf("got %v", errs)
	}
	if errs[1] != errFoo {
		t.Fatalf("got %v", errs[1])
	}
	if !errors.Is(errs[3], schedulers.ErrCyclesExceeded) {
		t.Fatalf("got %v", errs[3])
	}
	if len(RequestErrors(nil)) != 0 {
		t.Fatal()
	}
}
