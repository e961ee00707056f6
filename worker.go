package qsim

import (
	"context"
	"fmt"
)

// Worker processes jobs
type Worker struct {
	pool *Pool
	jobs chan Job
}

// run offers the worker's inbox to the pool, waits for a job, executes it
// and stores the result, until the pool context ends.
func (w *Worker) run() {
	ctx := w.pool.ctx
	for {
		select {
		case <-ctx.Done():
			return
		case w.pool.workers <- w.jobs:
		}

		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			result, err := w.processJob(job)
			w.pool.space.Store(job.ID, result, err, job.TTL)
		}
	}
}

func (w *Worker) processJob(job Job) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, r)
		}
		w.pool.metrics.recordJobExecution(job.StartTime, err == nil)
		if err != nil {
			logger.Warn("job failed", "job", job.ID, "err", err)
		}
	}()

	if job.Fn == nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, ErrInvalidArgument)
	}

	if err := job.caller().Err(); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID, err)
	}

	// the job stops with whichever of the pool and the caller ends first
	ctx, cancel := context.WithCancel(w.pool.ctx)
	defer cancel()
	stop := context.AfterFunc(job.caller(), cancel)
	defer stop()

	return job.Fn(ctx)
}
