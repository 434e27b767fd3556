// ABOUTME: Thread-safe fixed-capacity set for deduplicating message IDs.
// ABOUTME: Oldest entries are evicted FIFO once capacity is reached.

// Package dedupe tracks recently seen message IDs so the same message
// is never processed twice, using a bounded FIFO window.
package dedupe

import "sync"

// defaultCapacity bounds memory when the caller passes a non-positive size.
const defaultCapacity = 512

// Set remembers the most recent capacity keys it has been asked about.
// Membership checks are O(1); once full, marking a new key evicts the
// oldest one.
type Set struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	ring  []string
	next  int
	count int
}

// New creates a dedupe set holding at most capacity keys. Non-positive
// capacities fall back to a sensible default.
func New(capacity int) *Set {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Set{
		seen: make(map[string]struct{}, capacity),
		ring: make([]string, capacity),
	}
}

// Seen atomically checks whether key was already recorded and records it
// if not. Returns true if the key was a duplicate, false if it is new and
// now marked. The single check-and-mark avoids TOCTOU races between
// concurrent handlers.
func (s *Set) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return true
	}

	if s.count == len(s.ring) {
		delete(s.seen, s.ring[s.next])
	} else {
		s.count++
	}
	s.ring[s.next] = key
	s.seen[key] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return false
}

// Len reports how many keys are currently tracked.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
