// Package pool implements a fixed-size worker pool with a FIFO task queue,
// a completion barrier and drain-on-shutdown semantics.
package pool

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/notesaver/internal/metrics"
)

var (
	// ErrInvalidArgument reports a non-positive worker count or a nil task.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIllegalState reports use of a pool after Shutdown.
	ErrIllegalState = errors.New("illegal state")
)

// Task is a self-contained unit of work. It must capture everything it needs.
type Task func()

// Pool runs queued tasks on a fixed set of worker goroutines.
//
// The queue, the pending count and the disposed flag are only touched while
// holding mu. Workers park on work; Wait callers park on idle. Both
// conditions share mu.
type Pool struct {
	mu       sync.Mutex
	work     *sync.Cond
	idle     *sync.Cond
	queue    []Task
	pending  int
	disposed bool

	workers      int
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	logger       *zap.Logger
}

// New starts a pool with the given number of workers.
func New(workers int, logger *zap.Logger) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("worker count must be > 0, got %d: %w", workers, ErrInvalidArgument)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		workers: workers,
		logger:  logger,
	}
	p.work = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.run(i)
	}
	return p, nil
}

// QueueTask appends task to the queue and wakes one idle worker.
func (p *Pool) QueueTask(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return fmt.Errorf("queue task: pool is shut down: %w", ErrIllegalState)
	}
	if task == nil {
		return fmt.Errorf("queue task: nil task: %w", ErrInvalidArgument)
	}
	p.queue = append(p.queue, task)
	p.pending++
	metrics.SetQueuedTasks(len(p.queue))
	p.work.Signal()
	return nil
}

// Wait blocks until every queued and running task has finished. It may be
// called repeatedly and does not stop other callers from queueing more work.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
}

// Shutdown stops accepting tasks, lets the workers drain the queue and waits
// for them to exit. Later calls are no-ops.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.disposed = true
		p.work.Broadcast()
		p.mu.Unlock()

		p.wg.Wait()
		p.logger.Debug("worker pool stopped", zap.Int("workers", p.workers))
	})
}

// Pending returns the number of tasks queued or executing.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Workers returns the fixed worker count.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) run(index int) {
	defer p.wg.Done()
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.execute(index, task)

		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// next blocks until a task is available. It reports false once the pool is
// disposed and the queue is empty.
func (p *Pool) next() (Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.disposed {
		p.work.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	metrics.SetQueuedTasks(len(p.queue))
	return task, true
}

func (p *Pool) execute(index int, task Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.Int("worker", index),
				zap.Any("panic", r),
			)
		}
	}()
	task()
}
