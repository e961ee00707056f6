package qsim

import (
	"sort"
	"sync"
	"time"
)

// Metrics tracks pool throughput. All fields are guarded by mu.
type Metrics struct {
	mu               sync.RWMutex
	WorkerCount      int
	JobQueueSize     int
	IdleWorkers      int
	JobCount         int64
	FailedJobs       int64
	SchedulingDelays int64
	ShotsExecuted    int64
	TotalJobTime     time.Duration

	AverageJobLatency time.Duration
	P95JobLatency     time.Duration
	P99JobLatency     time.Duration
	JobSuccessRate    float64

	latencies  []time.Duration
	windowSize int
}

func newMetrics() *Metrics {
	return &Metrics{
		latencies:  make([]time.Duration, 0, 1000), // last 1000 jobs
		windowSize: 1000,
	}
}

func (m *Metrics) recordJobExecution(startTime time.Time, success bool) {
	duration := time.Since(startTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.TotalJobTime += duration
	m.JobCount++
	if !success {
		m.FailedJobs++
	}
	m.JobSuccessRate = float64(m.JobCount-m.FailedJobs) / float64(m.JobCount)
	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) recordShots(n int) {
	m.mu.Lock()
	m.ShotsExecuted += int64(n)
	m.mu.Unlock()
}

func (m *Metrics) recordSchedulingDelay() {
	m.mu.Lock()
	m.SchedulingDelays++
	m.mu.Unlock()
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageJobLatency = (m.AverageJobLatency*time.Duration(m.JobCount-1) + duration) / time.Duration(m.JobCount)

	m.latencies = append(m.latencies, duration)
	if len(m.latencies) > m.windowSize {
		m.latencies = m.latencies[1:]
	}

	sorted := append([]time.Duration(nil), m.latencies...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	p95 := min(int(float64(len(sorted))*0.95), len(sorted)-1)
	p99 := min(int(float64(len(sorted))*0.99), len(sorted)-1)
	m.P95JobLatency = sorted[p95]
	m.P99JobLatency = sorted[p99]
}

// ExportMetrics returns a snapshot keyed by metric name.
func (m *Metrics) ExportMetrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"worker_count":      m.WorkerCount,
		"queue_size":        m.JobQueueSize,
		"idle_workers":      m.IdleWorkers,
		"job_count":         m.JobCount,
		"failed_jobs":       m.FailedJobs,
		"scheduling_delays": m.SchedulingDelays,
		"shots_executed":    m.ShotsExecuted,
		"success_rate":      m.JobSuccessRate,
		"avg_latency":       m.AverageJobLatency.Milliseconds(),
		"p95_latency":       m.P95JobLatency.Milliseconds(),
		"p99_latency":       m.P99JobLatency.Milliseconds(),
	}
}
