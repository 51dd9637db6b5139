package results

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventStepRecorded EventType = iota
	EventTrialCompleted
)

// Event is emitted to subscribers after every successful mutation.
type Event struct {
	Type   EventType
	Trial  int
	Report core.StepReport
}

// Store is an in-memory, thread-safe store of per-trial step reports.
type Store struct {
	mu sync.RWMutex

	trials map[int][]core.StepReport
	done   map[int]bool

	subs    map[int]func(Event)
	nextSub int
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		trials: make(map[int][]core.StepReport),
		done:   make(map[int]bool),
		subs:   make(map[int]func(Event)),
	}
}

// Record appends r to trial's series. Reports must arrive in timestep order
// and a completed trial rejects further reports.
func (s *Store) Record(trial int, r core.StepReport) error {
	s.mu.Lock()
	if s.done[trial] {
		s.mu.Unlock()
		return fmt.Errorf("trial %d already completed", trial)
	}
	series := s.trials[trial]
	if r.Timestep != len(series) {
		s.mu.Unlock()
		return fmt.Errorf("trial %d: got timestep %d, want %d", trial, r.Timestep, len(series))
	}
	s.trials[trial] = append(series, r)
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, Event{Type: EventStepRecorded, Trial: trial, Report: r})
	return nil
}

// Complete marks trial as finished.
func (s *Store) Complete(trial int) error {
	s.mu.Lock()
	if _, ok := s.trials[trial]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("trial %d not found", trial)
	}
	if s.done[trial] {
		s.mu.Unlock()
		return fmt.Errorf("trial %d already completed", trial)
	}
	s.done[trial] = true
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, Event{Type: EventTrialCompleted, Trial: trial})
	return nil
}

// Trial returns a copy of trial's reports, or nil if it is unknown.
func (s *Store) Trial(trial int) []core.StepReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.trials[trial])
}

// Trials returns the known trial indices in ascending order.
func (s *Store) Trials() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.trials))
}

// Completed reports how many trials have been marked complete.
func (s *Store) Completed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.done)
}

// Subscribe registers a callback for store events. Callbacks run outside
// the lock on the recording goroutine. It returns an unsubscribe function.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs must be called with s.mu held.
func (s *Store) snapshotSubs() []func(Event) {
	ids := slices.Sorted(maps.Keys(s.subs))
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
