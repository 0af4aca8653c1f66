package history

import (
	"slices"
	"sync"
	"time"
)

type stamped interface {
	Stamp() time.Time
}

// series is a per-interface, append-only sequence of samples. Readers get
// copies; eviction replaces the backing slice rather than mutating it.
type series[T stamped] struct {
	mu   sync.RWMutex
	data map[string][]T
}

func newSeries[T stamped]() *series[T] {
	return &series[T]{data: map[string][]T{}}
}

func (s *series[T]) append(entries []T, key func(T) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		k := key(e)
		s.data[k] = append(s.data[k], e)
	}
}

func (s *series[T]) since(name string, cutoff time.Time) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.data[name]
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		if !e.Stamp().Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

func (s *series[T]) evict(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, entries := range s.data {
		kept := make([]T, 0, len(entries))
		for _, e := range entries {
			if !e.Stamp().Before(cutoff) {
				kept = append(kept, e)
			}
		}
		removed += len(entries) - len(kept)
		if len(kept) == 0 {
			delete(s.data, name)
			continue
		}
		s.data[name] = kept
	}
	return removed
}

func (s *series[T]) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for name := range s.data {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func (s *series[T]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, entries := range s.data {
		n += len(entries)
	}
	return n
}
