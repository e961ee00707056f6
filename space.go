package qsim

import (
	"sync"
	"time"
)

// Value wraps a job result with metadata
type Value struct {
	Value     any
	Error     error
	CreatedAt time.Time
	TTL       time.Duration
}

// Space holds finished job results until someone collects them. Awaiting an
// id that has not been stored yet parks a channel that Store fills later.
type Space struct {
	mu      sync.Mutex
	values  map[string]Value
	waiting map[string][]chan Value
	done    chan struct{}
	wg      sync.WaitGroup
}

func newSpace(sweep time.Duration) *Space {
	s := &Space{
		values:  make(map[string]Value),
		waiting: make(map[string][]chan Value),
		done:    make(chan struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.cleanup(sweep)
	}()

	return s
}

// Store records a result and wakes every waiter for it.
func (s *Space) Store(id string, value any, err error, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := Value{
		Value:     value,
		Error:     err,
		CreatedAt: time.Now(),
		TTL:       ttl,
	}
	s.values[id] = v
	logger.Debug("stored result", "job", id, "err", err)

	for _, ch := range s.waiting[id] {
		ch <- v
		close(ch)
	}
	delete(s.waiting, id)
}

// Await returns a channel that receives the value once it is stored. The
// channel is buffered, so Store never blocks on a slow reader.
func (s *Space) Await(id string) chan Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Value, 1)
	if v, ok := s.values[id]; ok {
		ch <- v
		close(ch)
		return ch
	}
	s.waiting[id] = append(s.waiting[id], ch)
	return ch
}

// Forget drops a stored result once it has been consumed.
func (s *Space) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, id)
}

func (s *Space) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.cleanupExpiredValues()
			s.mu.Unlock()
		}
	}
}

func (s *Space) cleanupExpiredValues() {
	now := time.Now()
	for id, v := range s.values {
		if v.TTL > 0 && now.Sub(v.CreatedAt) > v.TTL {
			delete(s.values, id)
		}
	}
}

// Close stops the sweeper. Results stay readable.
func (s *Space) Close() {
	select {
	case <-s.done:
		return
	default:
		close(s.done)
	}
	s.wg.Wait()
}
