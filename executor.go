package hypersig

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"
)

// Future is the result of work handed to an Executor. Require blocks until
// the work completes; Available polls without blocking. Calling Require
// more than once returns the same cached result.
type Future interface {
	Require() ([]byte, error)
	Available() ([]byte, bool)
}

// Executor schedules independent units of work. The only operations a
// caller may perform against a Future are Require and Available: all
// ordering between tasks submitted to the same Executor is unspecified,
// which is sound here because every OTS pubkey computation the package
// ever schedules is independent of every other one.
type Executor interface {
	Submit(fn func() ([]byte, error)) Future
}

type futureImpl struct {
	done   chan struct{}
	result []byte
	err    error
}

func newFuture() *futureImpl {
	return &futureImpl{done: make(chan struct{})}
}

func (f *futureImpl) finish(result []byte, err error) {
	f.result = result
	f.err = err
	close(f.done)
}

func (f *futureImpl) Require() ([]byte, error) {
	<-f.done
	return f.result, f.err
}

func (f *futureImpl) Available() ([]byte, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return nil, false
	}
}

// synchronousExecutor runs submitted work inline, on the calling
// goroutine, before Submit returns. Useful for tests that must assert
// byte-for-byte determinism independent of worker-pool scheduling.
type synchronousExecutor struct{}

// NewSynchronousExecutor returns an Executor that performs announced work
// immediately, inline with the call to Submit.
func NewSynchronousExecutor() Executor { return &synchronousExecutor{} }

func (e *synchronousExecutor) Submit(fn func() ([]byte, error)) Future {
	f := newFuture()
	result, err := fn()
	f.finish(result, err)
	return f
}

// goroutinePoolExecutor runs submitted work on background goroutines,
// bounded by a weighted semaphore so that a level key with a very large
// 2^h leaf count cannot spawn unboundedly many goroutines at once.
type goroutinePoolExecutor struct {
	sem *semaphore.Weighted
}

// NewExecutor returns an Executor backed by up to maxConcurrent
// concurrently-running goroutines. A maxConcurrent of 0 or less is
// treated as 1.
func NewExecutor(maxConcurrent int) Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &goroutinePoolExecutor{sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

func (e *goroutinePoolExecutor) Submit(fn func() ([]byte, error)) Future {
	f := newFuture()
	go func() {
		_ = e.sem.Acquire(context.Background(), 1)
		defer e.sem.Release(1)
		result, err := fn()
		f.finish(result, err)
	}()
	return f
}

// requireAll awaits every future, aggregating any errors with
// hashicorp/go-multierror so a caller sees every failure from a batch of
// parallel OTS pubkey computations rather than only the first.
func requireAll(futures []Future) ([][]byte, error) {
	results := make([][]byte, len(futures))
	var errs *multierror.Error
	for i, f := range futures {
		result, err := f.Require()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		results[i] = result
	}
	return results, errs.ErrorOrNil()
}
