package hypersig

import (
	"bytes"
	"errors"
	"testing"
)

func TestSynchronousExecutorRunsInline(t *testing.T) {
	ran := false
	e := NewSynchronousExecutor()
	f := e.Submit(func() ([]byte, error) {
		ran = true
		return []byte("done"), nil
	})
	if !ran {
		t.Fatalf("synchronous executor must run work before Submit returns")
	}
	result, ok := f.Available()
	if !ok {
		t.Fatalf("Available() = false right after a synchronous Submit")
	}
	if !bytes.Equal(result, []byte("done")) {
		t.Fatalf("Available() result = %q", result)
	}
}

func TestGoroutinePoolExecutorRequireBlocks(t *testing.T) {
	e := NewExecutor(2)
	f := e.Submit(func() ([]byte, error) {
		return []byte("async"), nil
	})
	result, err := f.Require()
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if !bytes.Equal(result, []byte("async")) {
		t.Fatalf("Require() result = %q", result)
	}
}

func TestNewExecutorTreatsNonPositiveAsOne(t *testing.T) {
	e := NewExecutor(0)
	pool := e.(*goroutinePoolExecutor)
	if !pool.sem.TryAcquire(1) {
		t.Fatalf("NewExecutor(0) admits no concurrent work, want 1")
	}
	if pool.sem.TryAcquire(1) {
		t.Fatalf("NewExecutor(0) admits more than 1 concurrent task, want 1")
	}
	pool.sem.Release(1)
	futures := make([]Future, 4)
	for i := range futures {
		i := i
		futures[i] = e.Submit(func() ([]byte, error) {
			return []byte{byte(i)}, nil
		})
	}
	results, err := requireAll(futures)
	if err != nil {
		t.Fatalf("requireAll: %v", err)
	}
	for i, r := range results {
		if len(r) != 1 || r[0] != byte(i) {
			t.Fatalf("result %d = %v, want [%d]", i, r, i)
		}
	}
}

func TestRequireAllAggregatesErrors(t *testing.T) {
	e := NewSynchronousExecutor()
	futures := []Future{
		e.Submit(func() ([]byte, error) { return []byte("ok"), nil }),
		e.Submit(func() ([]byte, error) { return nil, errors.New("boom one") }),
		e.Submit(func() ([]byte, error) { return nil, errors.New("boom two") }),
	}
	_, err := requireAll(futures)
	if err == nil {
		t.Fatalf("requireAll did not report the submitted errors")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("boom one")) {
		t.Fatalf("aggregated error %q missing first failure", err.Error())
	}
	if !bytes.Contains([]byte(err.Error()), []byte("boom two")) {
		t.Fatalf("aggregated error %q missing second failure", err.Error())
	}
}
