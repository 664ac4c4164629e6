package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// runner is the contract shared by WorkerPool and Serial.
type runner interface {
	Run(numTasks int, setup func(workers int) error, task func(taskID, workerID int) error) error
}

var (
	_ runner = (*WorkerPool)(nil)
	_ runner = Serial{}
)

// =============================================================================
// WorkerPool Creation Tests
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("Pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d (GOMAXPROCS)", n, got, want)
		}
		pool.Close()
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestWorkerPool_RunAllTasks(t *testing.T) {
	tests := []struct {
		name     string
		workers  int
		numTasks int
	}{
		{"single worker", 1, 50},
		{"fewer tasks than workers", 8, 3},
		{"many small tasks", 4, 10000},
		{"many workers", 32, 100},
		{"no tasks", 4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.workers)
			defer pool.Close()

			seen := make([]atomic.Int32, tt.numTasks)
			err := pool.Run(tt.numTasks, nil, func(id, worker int) error {
				if worker < 0 || worker >= tt.workers {
					t.Errorf("worker %d out of range", worker)
				}
				seen[id].Add(1)
				return nil
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			for i := range seen {
				if n := seen[i].Load(); n != 1 {
					t.Fatalf("task %d ran %d times", i, n)
				}
			}
		})
	}
}

func TestWorkerPool_RunSetupFirst(t *testing.T) {
	pool := NewWorkerPool(3)
	defer pool.Close()

	var slots []int
	err := pool.Run(10, func(workers int) error {
		slots = make([]int, workers)
		return nil
	}, func(_, worker int) error {
		slots[worker]++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 3 {
		t.Fatalf("setup saw %d workers, want 3", len(slots))
	}
	total := 0
	for _, n := range slots {
		total += n
	}
	if total != 10 {
		t.Errorf("tasks run = %d, want 10", total)
	}
}

func TestWorkerPool_RunSetupError(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	want := errors.New("no scratch")
	var ran atomic.Bool
	err := pool.Run(5, func(int) error { return want }, func(int, int) error {
		ran.Store(true)
		return nil
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
	if ran.Load() {
		t.Error("tasks ran after setup failed")
	}
}

func TestWorkerPool_RunFirstErrorStops(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	want := errors.New("task 3 failed")
	var started atomic.Int64
	err := pool.Run(100000, nil, func(id, _ int) error {
		started.Add(1)
		if id == 3 {
			return want
		}
		return nil
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
	if n := started.Load(); n == 100000 {
		t.Error("all tasks started despite an early failure")
	}
}

// No two tasks may run concurrently with the same worker ID; this is what
// lets callers keep unsynchronized per-worker scratch.
func TestWorkerPool_RunWorkerExclusive(t *testing.T) {
	const workers = 4
	pool := NewWorkerPool(workers)
	defer pool.Close()

	var inUse [workers]atomic.Bool
	err := pool.Run(400, nil, func(id, worker int) error {
		if !inUse[worker].CompareAndSwap(false, true) {
			return errors.New("worker slot used concurrently")
		}
		if id%16 == 0 {
			time.Sleep(time.Millisecond)
		}
		inUse[worker].Store(false)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestWorkerPool_RunConcurrentCallers(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Run(50, nil, func(int, int) error {
				counter.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()

	if got := counter.Load(); got != 8*50 {
		t.Errorf("counter = %d, want %d", got, 8*50)
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	pool := NewWorkerPool(4)

	pool.Close()
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("Pool should not be running after close")
	}
}

func TestWorkerPool_RunAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()

	var executed atomic.Bool
	err := pool.Run(3, nil, func(int, int) error {
		executed.Store(true)
		return nil
	})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
	if executed.Load() {
		t.Error("Work was executed on closed pool")
	}
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	runtime.GC()
	time.Sleep(50 * time.Millisecond)
	baseline := runtime.NumGoroutine()

	for range 5 {
		pool := NewWorkerPool(4)
		_ = pool.Run(100, nil, func(int, int) error { return nil })
		pool.Close()
	}

	runtime.GC()
	time.Sleep(100 * time.Millisecond)

	final := runtime.NumGoroutine()
	if final > baseline+2 {
		t.Errorf("goroutine count: baseline=%d, final=%d (leak detected)", baseline, final)
	}
}

// =============================================================================
// Serial Tests
// =============================================================================

func TestSerial(t *testing.T) {
	var order []int
	err := Serial{}.Run(5, func(workers int) error {
		if workers != 1 {
			t.Errorf("workers = %d, want 1", workers)
		}
		return nil
	}, func(id, worker int) error {
		if worker != 0 {
			t.Errorf("worker = %d, want 0", worker)
		}
		order = append(order, id)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, id := range order {
		if id != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}

	want := errors.New("stop")
	calls := 0
	err = Serial{}.Run(5, nil, func(id, _ int) error {
		calls++
		if id == 1 {
			return want
		}
		return nil
	})
	if !errors.Is(err, want) || calls != 2 {
		t.Errorf("err = %v after %d calls, want %v after 2", err, calls, want)
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkWorkerPool_Run(b *testing.B) {
	pool := NewWorkerPool(0)
	defer pool.Close()

	task := func(int, int) error { return nil }
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pool.Run(256, nil, task)
	}
}
