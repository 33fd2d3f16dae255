package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/martinsuchenak/deskd/internal/log"
)

var ErrQueueStopped = errors.New("work queue stopped")

// Queue runs submitted jobs one at a time on a single worker. A job that
// arrives while another is running waits its turn; once started, a job
// always runs to completion.
type Queue struct {
	name   string
	jobs   chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Job represents a unit of work
type Job struct {
	ID      string
	Handler func(context.Context) error
	Result  chan error
}

// NewQueue creates a stopped queue
func NewQueue(name string) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		name:   name,
		jobs:   make(chan Job),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the worker
func (q *Queue) Start() {
	q.once.Do(func() {
		q.wg.Add(1)
		go q.worker()
		log.Debug("Work queue started", "queue", q.name)
	})
}

// Stop waits for the running job, if any, and stops the worker. Callers
// still waiting for their turn get ErrQueueStopped.
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

// Submit hands a job to the worker, waiting until it is accepted
func (q *Queue) Submit(ctx context.Context, job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-q.ctx.Done():
		return ErrQueueStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do queues fn and blocks until it has run. ctx only bounds the wait for a
// turn; fn receives a context that is never cancelled.
func (q *Queue) Do(ctx context.Context, id string, fn func(context.Context) error) error {
	job := Job{
		ID: id,
		Handler: func(context.Context) error {
			return fn(context.WithoutCancel(ctx))
		},
		Result: make(chan error, 1),
	}
	if err := q.Submit(ctx, job); err != nil {
		return err
	}
	return <-job.Result
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			log.Debug("Worker executing job", "queue", q.name, "job_id", job.ID)

			err := job.Handler(q.ctx)
			if job.Result != nil {
				job.Result <- err
			}
		}
	}
}
