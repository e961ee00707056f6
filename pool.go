package qsim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

// Pool is a fixed set of workers fed from a job queue. Results land in a
// Space keyed by job id, so submitting and collecting are decoupled.
type Pool struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	workers    chan chan Job
	jobs       chan Job
	space      *Space
	metrics    *Metrics
	workerMu   sync.Mutex
	workerList []*Worker
	config     *Config
	closeOnce  sync.Once
}

// NewPool starts config.Workers workers under ctx.
func NewPool(ctx context.Context, config *Config) *Pool {
	if config == nil {
		config = NewConfig()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(chan Job, config.Workers*10),
		workers: make(chan chan Job, config.Workers),
		space:   newSpace(time.Minute),
		metrics: newMetrics(),
		config:  config,
	}

	for i := 0; i < config.Workers; i++ {
		p.startWorker()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.manage()
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.collectMetrics()
	}()

	errnie.Info("pool started with %d workers", config.Workers)
	return p
}

// manage hands each queued job to the next idle worker, in queue order.
func (p *Pool) manage() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			if !p.dispatch(job) {
				return
			}
		}
	}
}

/*
dispatch waits for an idle worker and hands it the job. Batches are CPU
bound, so a long wait is normal under load: once it passes the scheduling
timeout it is logged and counted, but the job keeps waiting. dispatch
reports false once the pool is closing.
*/
func (p *Pool) dispatch(job Job) bool {
	slow := time.NewTimer(p.config.schedulingTimeout())
	defer slow.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.space.Store(job.ID, nil, p.ctx.Err(), job.TTL)
			return false
		case <-job.caller().Done():
			p.space.Store(job.ID, nil, fmt.Errorf("job %s: %w", job.ID, job.caller().Err()), job.TTL)
			return true
		case workerChan := <-p.workers:
			select {
			case workerChan <- job:
				return true
			case <-p.ctx.Done():
				p.space.Store(job.ID, nil, p.ctx.Err(), job.TTL)
				return false
			}
		case <-slow.C:
			logger.Warn("job still waiting for a worker", "job", job.ID, "after", p.config.schedulingTimeout())
			p.metrics.recordSchedulingDelay()
		}
	}
}

func (p *Pool) collectMetrics() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.metrics.mu.Lock()
			p.metrics.JobQueueSize = len(p.jobs)
			p.metrics.IdleWorkers = len(p.workers)
			p.metrics.mu.Unlock()
		}
	}
}

// Schedule queues fn and returns a channel that yields its result. It
// blocks while the queue is full; if the pool or the job's context (see
// WithContext) ends first, the channel carries that error instead.
func (p *Pool) Schedule(id string, fn func(ctx context.Context) (any, error), opts ...JobOption) chan Value {
	job := Job{
		ID:        id,
		Fn:        fn,
		StartTime: time.Now(),
	}
	for _, opt := range opts {
		opt(&job)
	}

	// register before queueing so a fast worker cannot store first
	result := p.space.Await(id)
	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
		p.space.Store(id, nil, fmt.Errorf("job %s: %w", id, p.ctx.Err()), job.TTL)
	case <-job.caller().Done():
		p.space.Store(id, nil, fmt.Errorf("job %s: %w", id, job.caller().Err()), job.TTL)
	}
	return result
}

// Metrics returns a snapshot of the pool counters.
func (p *Pool) Metrics() map[string]any {
	return p.metrics.ExportMetrics()
}

func (p *Pool) startWorker() {
	worker := &Worker{
		pool: p,
		jobs: make(chan Job),
	}
	p.workerMu.Lock()
	p.workerList = append(p.workerList, worker)
	p.workerMu.Unlock()

	p.metrics.mu.Lock()
	p.metrics.WorkerCount++
	count := p.metrics.WorkerCount
	p.metrics.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		worker.run()
	}()
	logger.Debug("started worker", "total", count)
}

// Close cancels outstanding work and waits for every goroutine to exit.
// It is safe to call more than once.
func (p *Pool) Close() {
	if p == nil {
		return
	}
	p.closeOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
		p.space.Close()

		p.workerMu.Lock()
		p.workerList = nil
		p.workerMu.Unlock()

		errnie.Info("pool closed")
	})
}
