package testutil

import (
	"sort"
	"sync"
	"time"
)

// Scheduler is a frame pacer driven by hand. Tick runs every callback
// requested before it was called.
type Scheduler struct {
	mu        sync.Mutex
	next      uint64
	pending   map[uint64]func(time.Time)
	Requested int
	Cancelled int
}

func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[uint64]func(time.Time))}
}

func (s *Scheduler) RequestFrame(fn func(time.Time)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.pending[s.next] = fn
	s.Requested++
	return s.next
}

func (s *Scheduler) CancelFrame(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[id]; ok {
		delete(s.pending, id)
		s.Cancelled++
	}
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(time.Time), len(ids))
	for i, id := range ids {
		fns[i] = s.pending[id]
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
}

// Leaky returns a scheduler whose CancelFrame is ignored, like a host that
// keeps firing callbacks after they were cancelled.
func Leaky() *LeakyScheduler {
	return &LeakyScheduler{Scheduler: NewScheduler()}
}

type LeakyScheduler struct {
	*Scheduler
}

func (*LeakyScheduler) CancelFrame(uint64) {}
