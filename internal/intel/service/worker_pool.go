package service

import (
	"context"
	"errors"
	"sync"

	"competitive-intel-agent/pkg/logger"
	"competitive-intel-agent/pkg/utils"
)

// ErrQueueFull is returned when the task queue cannot accept more work.
var ErrQueueFull = errors.New("worker pool queue is full")

// WorkerPool runs pipeline stages and research jobs off the request path.
// A fixed number of workers drain a buffered queue; a panicking task never
// takes a worker down.
type WorkerPool struct {
	tasks  chan func(context.Context)
	logger *logger.Logger
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewWorkerPool creates a pool with the given queue capacity.
func NewWorkerPool(queueSize int, log *logger.Logger) *WorkerPool {
	return &WorkerPool{
		tasks:  make(chan func(context.Context), queueSize),
		logger: log,
	}
}

// Start launches workers that run until the context is cancelled and the
// queue is drained.
func (p *WorkerPool) Start(ctx context.Context, workers int) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		utils.GoSafe(func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					p.logger.Info("Worker stopping due to context cancellation")
					return
				case task, ok := <-p.tasks:
					if !ok {
						return
					}
					p.runTask(ctx, task)
				}
			}
		})
	}
}

func (p *WorkerPool) runTask(ctx context.Context, task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Recovered from panic in worker task", logger.Field("panic", r))
		}
	}()
	task(ctx)
}

// Submit enqueues a task without blocking the caller.
func (p *WorkerPool) Submit(task func(context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrQueueFull
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
