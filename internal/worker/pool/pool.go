package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var ErrPoolStopped = errors.New("worker pool is stopped")

type Task func()

type Stats struct {
	ActiveWorkers int   `json:"active_workers"`
	MaxWorkers    int   `json:"max_workers"`
	QueueLength   int   `json:"queue_length"`
	QueueCapacity int   `json:"queue_capacity"`
	Completed     int64 `json:"completed"`
	Panics        int64 `json:"panics"`
}

type WorkerPool struct {
	tasks      chan Task
	wg         sync.WaitGroup
	maxWorkers int
	logger     zerolog.Logger

	// stateMu guards started/stopped. Workers never take it, so a Submit
	// blocked on a full queue cannot deadlock a concurrent Stop.
	stateMu sync.RWMutex
	started bool
	stopped bool

	active    atomic.Int64
	completed atomic.Int64
	panics    atomic.Int64
}

func New(maxWorkers int, logger zerolog.Logger) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		tasks:      make(chan Task, maxWorkers*10),
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) error {
	wp.stateMu.Lock()
	defer wp.stateMu.Unlock()

	if wp.stopped {
		return ErrPoolStopped
	}
	if wp.started {
		return nil
	}
	wp.started = true

	wp.logger.Debug().Int("max_workers", wp.maxWorkers).Msg("Starting worker pool")

	for i := 0; i < wp.maxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}

	return nil
}

// Stop closes the queue and waits until every accepted task has run.
func (wp *WorkerPool) Stop() error {
	wp.stateMu.Lock()
	if wp.stopped {
		wp.stateMu.Unlock()
		return nil
	}
	wp.stopped = true
	close(wp.tasks)
	wp.stateMu.Unlock()

	wp.wg.Wait()

	wp.logger.Debug().
		Int64("completed", wp.completed.Load()).
		Int64("panics", wp.panics.Load()).
		Msg("Worker pool stopped")
	return nil
}

// Submit blocks until the task is queued or ctx is done. Nothing is dropped
// silently: a task that was not queued is reported through the error.
func (wp *WorkerPool) Submit(ctx context.Context, task Task) error {
	wp.stateMu.RLock()
	defer wp.stateMu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.tasks <- task:
		return nil
	default:
	}

	select {
	case wp.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for task := range wp.tasks {
		wp.run(id, task)
	}
}

func (wp *WorkerPool) run(id int, task Task) {
	wp.active.Add(1)
	defer func() {
		if r := recover(); r != nil {
			wp.panics.Add(1)
			wp.logger.Error().
				Int("worker_id", id).
				Interface("panic", r).
				Msg("Worker recovered from panic")
		}
		wp.active.Add(-1)
		wp.completed.Add(1)
	}()

	task()
}

func (wp *WorkerPool) GetActiveWorkers() int {
	return int(wp.active.Load())
}

func (wp *WorkerPool) GetQueueLength() int {
	return len(wp.tasks)
}

func (wp *WorkerPool) GetStats() Stats {
	return Stats{
		ActiveWorkers: wp.GetActiveWorkers(),
		MaxWorkers:    wp.maxWorkers,
		QueueLength:   len(wp.tasks),
		QueueCapacity: cap(wp.tasks),
		Completed:     wp.completed.Load(),
		Panics:        wp.panics.Load(),
	}
}
