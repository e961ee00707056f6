package qsim

import (
	"math/rand/v2"
)

// Option configures an engine at construction time.
type Option func(*options)

type options struct {
	cfg     *Config
	seed    uint64
	hasSeed bool
}

// WithConfig sets the engine limits and tolerances.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithSeed makes the object's random stream reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
		o.hasSeed = true
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = NewConfig()
	}
	if !o.hasSeed {
		o.seed = rand.Uint64()
	}
	return o
}

// newSource builds a PCG generator for a seed. The second PCG word is
// derived so that nearby seeds give unrelated streams.
func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, splitmix(seed)))
}

// splitmix is the SplitMix64 finalizer, used to derive child seeds.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
