package testutil

import (
	"fmt"
	"sync"
)

// Sequence is a thread-safe counter for deterministic ids in tests.
//
// The first call to Next returns 1. Reset starts over so a scenario can
// run twice with identical ids.
type Sequence struct {
	mu  sync.Mutex
	seq int64
}

// Next increments and returns the next value.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset resets the sequence to 0.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}

// IDs returns a generator producing prefix-1, prefix-2, ...
func (s *Sequence) IDs(prefix string) func() string {
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, s.Next())
	}
}
