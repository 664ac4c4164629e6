// Package parallel dispatches independent tasks across a fixed set of
// worker slots.
package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Run on a pool that has been closed.
var ErrClosed = errors.New("parallel: pool closed")

// job is a unit of work. It receives the slot index of the worker that
// executes it, which may differ from the queue it was submitted to when
// the job is stolen.
type job func(worker int)

// WorkerPool is a pool of goroutines, one per worker slot.
//
// Each worker pulls from its own queue and steals from other queues when
// its own is empty. Every job learns the slot it runs on, so callers can
// index per-worker scratch state without locking.
//
// A worker runs one job at a time, so a slot never executes two tasks
// concurrently. Run must not be called from inside a task.
type WorkerPool struct {
	workers int

	// queues holds per-worker job queues.
	queues []chan job

	done chan struct{}
	wg   sync.WaitGroup

	running atomic.Bool
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan job, workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan job, queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(id, own)
			return
		case j := <-own:
			j(id)
		default:
			if stolen := p.steal(id); stolen != nil {
				stolen(id)
				continue
			}
			select {
			case <-p.done:
				p.drain(id, own)
				return
			case j := <-own:
				j(id)
			}
		}
	}
}

// drain runs whatever is left in queue.
func (p *WorkerPool) drain(id int, queue chan job) {
	for {
		select {
		case j := <-queue:
			j(id)
		default:
			return
		}
	}
}

// steal takes one job from another worker's queue, or returns nil.
func (p *WorkerPool) steal(id int) job {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case j := <-p.queues[i]:
			return j
		default:
		}
	}
	return nil
}

// Run calls setup once with the number of worker slots, then task for every
// taskID in [0, numTasks). workerID is in [0, workers) and no two tasks run
// concurrently on the same workerID.
//
// After the first error no further tasks are started; tasks already running
// complete. The first error is returned.
func (p *WorkerPool) Run(numTasks int, setup func(workers int) error, task func(taskID, workerID int) error) error {
	if !p.running.Load() {
		return ErrClosed
	}
	if setup != nil {
		if err := setup(p.workers); err != nil {
			return err
		}
	}
	if numTasks <= 0 {
		return nil
	}

	var (
		next    atomic.Int64
		failed  atomic.Bool
		errOnce sync.Once
		first   error
		wg      sync.WaitGroup
	)

	// One runner per slot that has work. Runners claim task IDs from a
	// shared counter so long tasks do not hold up a fixed share of work.
	runners := min(p.workers, numTasks)
	runner := func(worker int) {
		defer wg.Done()
		for !failed.Load() {
			id := int(next.Add(1) - 1)
			if id >= numTasks {
				return
			}
			if err := task(id, worker); err != nil {
				errOnce.Do(func() { first = err })
				failed.Store(true)
				return
			}
		}
	}

	wg.Add(runners)
	closed := false
	for i := range runners {
		select {
		case p.queues[i] <- job(runner):
		case <-p.done:
			closed = true
			wg.Done()
		}
	}
	wg.Wait()
	if first == nil && closed && next.Load() < int64(numTasks) {
		return ErrClosed
	}
	return first
}

// Close stops the pool after all queued work has run. It must not race
// with Run. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// Serial runs every task inline on the calling goroutine as worker 0.
type Serial struct{}

// Run implements the same contract as WorkerPool.Run with one worker.
func (Serial) Run(numTasks int, setup func(workers int) error, task func(taskID, workerID int) error) error {
	if setup != nil {
		if err := setup(1); err != nil {
			return err
		}
	}
	for i := range numTasks {
		if err := task(i, 0); err != nil {
			return err
		}
	}
	return nil
}
