package qsim

import (
	"context"
	"time"
)

// Job is one unit of work for the pool, typically a batch of shots.
type Job struct {
	ID        string
	Fn        func(ctx context.Context) (any, error)
	TTL       time.Duration
	StartTime time.Time
	Ctx       context.Context
}

// caller is the caller's context, or Background when none was given.
func (j Job) caller() context.Context {
	if j.Ctx == nil {
		return context.Background()
	}
	return j.Ctx
}

// JobOption is a function type for configuring jobs
type JobOption func(*Job)

// WithTTL bounds how long a finished job's result is kept in the space.
func WithTTL(ttl time.Duration) JobOption {
	return func(j *Job) {
		j.TTL = ttl
	}
}

// WithContext ties the job to a caller context. Cancelling it abandons the
// job while queued and cancels the ctx handed to Fn once running.
func WithContext(ctx context.Context) JobOption {
	return func(j *Job) {
		j.Ctx = ctx
	}
}
