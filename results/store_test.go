package results

import (
	"math"
	"sync"
	"testing"

	"github.com/signalsfoundry/mesh-relay-simulator/core"
)

func report(t int, blocked, unmatched int, capacity float64) core.StepReport {
	return core.StepReport{
		Timestep:      t,
		Match:         core.MatchResult{Timestep: t, Blocked: blocked, Matched: blocked - unmatched, Unmatched: unmatched},
		TotalCapacity: capacity,
	}
}

func TestRecordAndTrial(t *testing.T) {
	store := NewStore()
	if err := store.Record(0, report(0, 2, 0, 10)); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := store.Record(0, report(1, 3, 1, 20)); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	got := store.Trial(0)
	if len(got) != 2 || got[1].TotalCapacity != 20 {
		t.Fatalf("Trial(0) = %#v, want two reports ending at capacity 20", got)
	}
	got[0].TotalCapacity = 99
	if store.Trial(0)[0].TotalCapacity != 10 {
		t.Fatalf("Trial returned a shared slice")
	}
	if store.Trial(7) != nil {
		t.Fatalf("Trial(7) = %v, want nil", store.Trial(7))
	}
}

func TestRecordRejectsOutOfOrder(t *testing.T) {
	store := NewStore()
	if err := store.Record(0, report(1, 0, 0, 0)); err == nil {
		t.Fatalf("expected out-of-order Record to fail")
	}
	if err := store.Record(0, report(0, 0, 0, 0)); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := store.Complete(0); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if err := store.Record(0, report(1, 0, 0, 0)); err == nil {
		t.Fatalf("expected Record after Complete to fail")
	}
	if err := store.Complete(0); err == nil {
		t.Fatalf("expected second Complete to fail")
	}
	if err := store.Complete(5); err == nil {
		t.Fatalf("expected Complete of unknown trial to fail")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	store := NewStore()
	var events []Event
	unsubscribe := store.Subscribe(func(ev Event) { events = append(events, ev) })
	var other int
	store.Subscribe(func(Event) { other++ })

	_ = store.Record(3, report(0, 1, 0, 5))
	_ = store.Complete(3)
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != EventStepRecorded || events[0].Trial != 3 {
		t.Fatalf("first event = %#v, want step recorded for trial 3", events[0])
	}
	if events[1].Type != EventTrialCompleted {
		t.Fatalf("second event type = %v, want EventTrialCompleted", events[1].Type)
	}

	unsubscribe()
	unsubscribe()
	_ = store.Record(4, report(0, 1, 0, 5))
	if len(events) != 2 {
		t.Fatalf("events after unsubscribe = %d, want 2", len(events))
	}
	if other != 3 {
		t.Fatalf("remaining subscriber saw %d events, want 3", other)
	}
}

func TestAggregateMeans(t *testing.T) {
	store := NewStore()
	_ = store.Record(0, report(0, 4, 0, 10))
	_ = store.Record(0, report(1, 4, 2, 30))
	_ = store.Record(1, report(0, 2, 0, 20))
	_ = store.Record(1, report(1, 2, 0, 10))
	_ = store.Record(1, report(2, 6, 0, 40))

	sum := store.Aggregate()
	if sum.Trials != 2 {
		t.Fatalf("Trials = %d, want 2", sum.Trials)
	}
	if len(sum.Steps) != 3 {
		t.Fatalf("len(Steps) = %d, want 3", len(sum.Steps))
	}
	if got := sum.Steps[0].TotalCapacity; got != 15 {
		t.Fatalf("Steps[0].TotalCapacity = %v, want 15", got)
	}
	if got := sum.Steps[1].Unmatched; got != 1 {
		t.Fatalf("Steps[1].Unmatched = %v, want 1", got)
	}
	if got := sum.Steps[1].FailureRate; got != 0.5 {
		t.Fatalf("Steps[1].FailureRate = %v, want 0.5", got)
	}
	if sum.Steps[2].Trials != 1 || sum.Steps[2].Blocked != 6 {
		t.Fatalf("Steps[2] = %#v, want one trial with 6 blocked", sum.Steps[2])
	}
	if math.Abs(sum.MatchingFailure-0.5) > 1e-12 {
		t.Fatalf("MatchingFailure = %v, want 0.5", sum.MatchingFailure)
	}
}

func TestAggregateEmpty(t *testing.T) {
	sum := NewStore().Aggregate()
	if sum.Trials != 0 || len(sum.Steps) != 0 || sum.MatchingFailure != 0 {
		t.Fatalf("Aggregate() = %#v, want zero summary", sum)
	}
}

func TestConcurrentRecord(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for trial := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for step := range 5 {
				if err := store.Record(trial, report(step, 1, 0, 1)); err != nil {
					t.Errorf("Record(%d, %d) error: %v", trial, step, err)
				}
			}
			_ = store.Complete(trial)
		}()
	}
	wg.Wait()

	if got := store.Completed(); got != 8 {
		t.Fatalf("Completed() = %d, want 8", got)
	}
	if got := len(store.Trials()); got != 8 {
		t.Fatalf("len(Trials()) = %d, want 8", got)
	}
}
