package qsim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theapemachine/errnie"
)

// Result is the classical outcome of running a circuit many times.
// Character k of every key in Counts is classical bit k.
type Result struct {
	Shots   int
	Counts  Histogram
	Last    string
	Seed    uint64
	Backend BackendKind
	Elapsed time.Duration
}

type batch struct {
	counts Histogram
	last   string
}

/*
Runner executes circuits shot by shot. Shots are cut into batches of
Config.ShotsPerJob and spread over a worker pool; batch i draws its
randomness from a seed derived from the run seed and i, so a run is
reproducible for a fixed WithSeed no matter how batches get scheduled.
*/
type Runner struct {
	pool  *Pool
	cfg   *Config
	seed  uint64
	mu    sync.Mutex
	rng   *rand.Rand
	runID atomic.Uint64
}

// NewRunner starts a runner and its pool. Close it when done.
func NewRunner(ctx context.Context, opts ...Option) *Runner {
	o := buildOptions(opts)
	return &Runner{
		pool: NewPool(ctx, o.cfg),
		cfg:  o.cfg,
		seed: o.seed,
		rng:  newSource(o.seed),
	}
}

// Seed is the runner's root seed.
func (r *Runner) Seed() uint64 { return r.seed }

// Metrics exposes the pool counters.
func (r *Runner) Metrics() map[string]any { return r.pool.Metrics() }

// Close stops the pool.
func (r *Runner) Close() { r.pool.Close() }

func (r *Runner) nextSeed() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Uint64()
}

/*
Run executes the circuit shots times on a fresh backend of the given kind
and tallies the classical register. Circuits whose measurements are all
terminal are simulated once and sampled shots times, which yields the same
distribution at a fraction of the cost.
*/
func (r *Runner) Run(ctx context.Context, c *Circuit, shots int, kind BackendKind) (*Result, error) {
	if shots < 1 {
		return nil, fmt.Errorf("run: %d shots: %w", shots, ErrInvalidArgument)
	}
	if err := c.Validate(kind); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	seed := r.nextSeed()
	id := r.runID.Add(1)
	errnie.Info("run %d: %d qubits, %d ops, %d shots on %s", id, c.numQubits, len(c.ops), shots, kind)

	var (
		res *batch
		err error
	)
	if qubits, cbits, ok := c.terminal(); ok {
		res, err = r.sampleTerminal(ctx, c, qubits, cbits, shots, kind, seed)
	} else {
		res, err = r.replay(ctx, id, c, shots, kind, seed)
	}
	if err != nil {
		return nil, err
	}
	r.pool.metrics.recordShots(shots)

	return &Result{
		Shots:   shots,
		Counts:  res.counts,
		Last:    res.last,
		Seed:    seed,
		Backend: kind,
		Elapsed: time.Since(start),
	}, nil
}

// replay fans the shots out as batches and merges them in batch order.
func (r *Runner) replay(ctx context.Context, id uint64, c *Circuit, shots int, kind BackendKind, seed uint64) (*batch, error) {
	size := r.cfg.ShotsPerJob
	var results []chan Value
	var names []string
	for i := 0; i*size < shots; i++ {
		if ctx.Err() != nil {
			break
		}
		n := min(size, shots-i*size)
		bseed := splitmix(seed + uint64(i))
		name := fmt.Sprintf("run-%d-batch-%d", id, i)
		names = append(names, name)
		results = append(results, r.pool.Schedule(name, func(jobCtx context.Context) (any, error) {
			return runBatch(jobCtx, c, n, kind, bseed, r.cfg)
		}, WithTTL(time.Minute), WithContext(ctx)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &batch{counts: make(Histogram)}
	for i, ch := range results {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case v := <-ch:
			r.pool.space.Forget(names[i])
			if v.Error != nil {
				return nil, v.Error
			}
			b := v.Value.(*batch)
			out.counts.merge(b.counts)
			out.last = b.last
		}
	}
	return out, nil
}

// runBatch replays the circuit n times, each shot on a fresh register.
func runBatch(ctx context.Context, c *Circuit, n int, kind BackendKind, seed uint64, cfg *Config) (*batch, error) {
	rng := newSource(seed)
	out := &batch{counts: make(Histogram)}
	creg := make([]byte, c.numCbits)

	for shot := 0; shot < n; shot++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range creg {
			creg[i] = '0'
		}

		b, err := NewBackend(kind, c.numQubits, WithConfig(cfg), WithSeed(rng.Uint64()))
		if err != nil {
			return nil, err
		}
		err = execute(b, c.ops, creg)
		if rerr := b.Release(); err == nil {
			err = rerr
		}
		if err != nil {
			return nil, err
		}

		out.last = string(creg)
		out.counts[out.last]++
	}
	return out, nil
}

func execute(b Backend, ops []Op, creg []byte) error {
	for _, op := range ops {
		if op.Ctrl >= 0 && creg[op.Ctrl] != '1' {
			continue
		}
		switch {
		case op.Channel != nil:
			if err := b.ApplyChannel(*op.Channel, op.Gate.Qubits...); err != nil {
				return err
			}
		case op.Gate.Kind == GateMeasure:
			out, err := b.Measure(op.Gate.Qubits)
			if err != nil {
				return err
			}
			last := out.Last()
			for k, cb := range op.Cbits {
				creg[cb] = last[k]
			}
		case op.Gate.Kind == GateReset:
			if err := b.Reset(op.Gate.Qubits...); err != nil {
				return err
			}
		default:
			if err := b.Apply(op.Gate); err != nil {
				return err
			}
		}
	}
	return nil
}

// sampleTerminal applies the unitary part once and draws every shot from
// the final distribution over the measured qubits.
func (r *Runner) sampleTerminal(ctx context.Context, c *Circuit, qubits, cbits []int, shots int, kind BackendKind, seed uint64) (res *batch, err error) {
	empty := strings.Repeat("0", c.numCbits)
	if len(qubits) == 0 {
		return &batch{counts: Histogram{empty: shots}, last: empty}, nil
	}

	b, err := NewBackend(kind, c.numQubits, WithConfig(r.cfg), WithSeed(seed))
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := b.Release(); err == nil {
			err = rerr
		}
	}()

	for _, op := range c.ops {
		if op.Gate.Kind == GateMeasure {
			continue
		}
		if err := b.Apply(op.Gate); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := b.Measure(qubits, Shots(shots))
	if err != nil {
		return nil, err
	}

	remap := func(bits string) string {
		creg := []byte(empty)
		for k := range qubits {
			creg[cbits[k]] = bits[k]
		}
		return string(creg)
	}
	res = &batch{counts: make(Histogram), last: remap(out.Last())}
	for bits, n := range out.Frequency() {
		res.counts[remap(bits)] += n
	}
	return res, nil
}
