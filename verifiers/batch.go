package verifiers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/reusee/spawnvm/schedulers"
	"github.com/reusee/spawnvm/spawnconfigs"
	"github.com/reusee/spawnvm/syncs"
)

// VerifyBatch verifies independent script groups concurrently.
// Results are in request order. Each verification runs on its own scheduler.
type VerifyBatch func(ctx context.Context, reqs []Request) ([]schedulers.Result, error)

func (Module) VerifyBatch(
	verify Verify,
	parallel spawnconfigs.BatchParallel,
) VerifyBatch {
	return func(ctx context.Context, reqs []Request) ([]schedulers.Result, error) {
		results := make([]schedulers.Result, len(reqs))
		errs := make([]error, len(reqs))
		sem := syncs.NewSemaphore(max(int(parallel), 1))
		var wg sync.WaitGroup
		for i, req := range reqs {
			sem.Acquire()
			wg.Go(func() {
				defer sem.Release()
				res, err := verify(ctx, req)
				if err != nil {
					errs[i] = &RequestError{
						Index: i,
						Err:   err,
					}
					return
				}
				results[i] = res
			})
		}
		wg.Wait()
		return results, errors.Join(errs...)
	}
}

// RequestError is the failure of one request in a batch.
type RequestError struct {
	Index int
	Err   error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("request %d: %v", r.Index, r.Err)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

// RequestErrors maps the errors returned by VerifyBatch to request indices.
func RequestErrors(err error) map[int]error {
	ret := make(map[int]error)
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else if err != nil {
		errs = []error{err}
	}
	for _, err := range errs {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			ret[reqErr.Index] = reqErr.Err
		}
	}
	return ret
}
