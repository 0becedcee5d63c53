package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
)

var (
	// ErrQueueFull is returned by Submit when no slot is free.
	ErrQueueFull = eris.New("pipeline: job queue full")
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = eris.New("pipeline: job queue closed")
)

// JobRunner runs one job to completion.
type JobRunner interface {
	Run(ctx context.Context, job *model.PipelineJob) Outcome
}

// Queue runs submitted jobs on a fixed set of workers. Submit never blocks,
// which keeps the HTTP trigger fire-and-forget.
type Queue struct {
	runner JobRunner
	jobs   chan *model.PipelineJob
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a Queue holding up to size pending jobs.
func NewQueue(runner JobRunner, size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{runner: runner, jobs: make(chan *model.PipelineJob, size)}
}

// Start launches workers that run jobs under ctx until Close.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for job := range q.jobs {
				q.run(ctx, job)
			}
		}()
	}
}

func (q *Queue) run(ctx context.Context, job *model.PipelineJob) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Error("pipeline: job panicked",
				zap.String("job_id", job.ID),
				zap.Any("panic", p),
				zap.Stack("stack"),
			)
		}
	}()
	q.runner.Run(ctx, job)
}

// Submit enqueues job without blocking.
func (q *Queue) Submit(job *model.PipelineJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued jobs to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}
