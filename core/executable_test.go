package core

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/scenario-engine/model"
)

// fakeScheduler records queued events and supports remove/restore.
type fakeScheduler struct {
	nextID int64
	events []EventInfo
}

func (s *fakeScheduler) AddEvent(target EventTarget, args []any, eventTime *float64, priority float64) error {
	s.nextID++
	s.events = append(s.events, EventInfo{
		ID:       s.nextID,
		Target:   target,
		Args:     args,
		Time:     eventTime,
		Priority: priority,
	})
	return nil
}

func (s *fakeScheduler) RemoveAllEvents(target EventTarget, restorable bool) []EventInfo {
	var removed, kept []EventInfo
	for _, ev := range s.events {
		if ev.Target == target {
			removed = append(removed, ev)
		} else {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	if !restorable {
		return nil
	}
	return removed
}

func (s *fakeScheduler) RestoreAllEvents(events []EventInfo) {
	s.events = append(s.events, events...)
}

func (s *fakeScheduler) AllEvents(target EventTarget) []EventInfo {
	var out []EventInfo
	for _, ev := range s.events {
		if ev.Target == target {
			out = append(out, ev)
		}
	}
	return out
}

// execPart is a bare executable part for bookkeeping tests.
type execPart struct {
	*model.BasePart
	*Executable
}

func newExecPart(parent model.Part, name string, sched Scheduler, anim *AnimationMode) *execPart {
	p := &execPart{}
	p.BasePart = model.NewBasePart(p, parent, "test", name)
	p.Executable = NewExecutable(ExecutableConfig{
		Self:      p,
		Owner:     p,
		Scheduler: sched,
		Anim:      anim,
	})
	return p
}

// countingObserver tallies notifications.
type countingObserver struct {
	execDone int
	counters int
}

func (o *countingObserver) OnExecDone() { o.execDone++ }
func (o *countingObserver) OnQueueCountersChanged(next bool, concur, after int) { o.counters++ }

func TestQueueCounters(t *testing.T) {
	p := newExecPart(nil, "p", nil, nil)

	if p.Queued() {
		t.Fatalf("Queued() = true on a fresh part")
	}

	p.ChangeCountASAPSignals(2)
	p.ChangeCountTimeSignals(1)
	if got := p.CountQueued(); got != 3 {
		t.Fatalf("CountQueued() = %d, want 3", got)
	}
	if got := p.CountQueuedASAP(); got != 2 {
		t.Fatalf("CountQueuedASAP() = %d, want 2", got)
	}
	if got := p.CountQueuedTimed(); got != 1 {
		t.Fatalf("CountQueuedTimed() = %d, want 1", got)
	}
	if !p.QueuedASAP() || !p.QueuedTimed() || !p.Queued() {
		t.Fatalf("queued flags wrong: asap=%v timed=%v queued=%v",
			p.QueuedASAP(), p.QueuedTimed(), p.Queued())
	}

	p.ChangeCountConcurrentNext(1)
	if got := p.CountQueuedAfterNext(); got != 2 {
		t.Fatalf("CountQueuedAfterNext() = %d, want 2", got)
	}
	if !p.QueuedConcurNext() || !p.QueuedAfterNext() {
		t.Fatalf("concur flags wrong")
	}

	p.ResetQueuedConcurNext(3)
	if got := p.CountQueuedConcurNext(); got != 3 {
		t.Fatalf("CountQueuedConcurNext() = %d, want 3", got)
	}
	if p.QueuedAfterNext() {
		t.Fatalf("QueuedAfterNext() = true, want false")
	}

	p.SetQueuedNext(true)
	next, concur, after := p.QueueCounts()
	if !next || concur != 3 || after != 0 {
		t.Fatalf("QueueCounts() = %v, %d, %d, want true, 3, 0", next, concur, after)
	}
}

func TestQueueingTransitionsBubbleToActors(t *testing.T) {
	root := model.NewRootActor("scenario")
	inner := model.NewActorPart(root, "inner")
	p := newExecPart(inner, "p", nil, nil)

	if root.HasQueuedDescendants() {
		t.Fatalf("HasQueuedDescendants() = true before any event")
	}
	p.ChangeCountASAPSignals(1)
	if !inner.HasQueuedDescendants() || !root.HasQueuedDescendants() {
		t.Fatalf("queued transition did not bubble up the actor chain")
	}
	p.ChangeCountASAPSignals(1)
	p.ChangeCountASAPSignals(-2)
	if inner.HasQueuedDescendants() || root.HasQueuedDescendants() {
		t.Fatalf("unqueued transition did not bubble up the actor chain")
	}
}

func TestDispatchRecordsAndClearsLastError(t *testing.T) {
	p := newExecPart(nil, "p", nil, nil)
	boom := errors.New("boom")
	fail := true
	p.Bind(func(ctx context.Context, debugMode, asSignal bool, args ...any) (any, error) {
		if fail {
			return nil, boom
		}
		return "ok", nil
	})

	if _, err := p.Call(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Call() error = %v, want boom", err)
	}
	if !errors.Is(p.LastExecError(), boom) {
		t.Fatalf("LastExecError() = %v, want boom", p.LastExecError())
	}

	fail = false
	result, err := p.Call(context.Background())
	if err != nil {
		t.Fatalf("Call() error = %v, want nil", err)
	}
	if result != "ok" {
		t.Fatalf("Call() = %v, want ok", result)
	}
	if p.LastExecError() != nil {
		t.Fatalf("LastExecError() = %v after success, want nil", p.LastExecError())
	}
}

func TestSignalPassesAsSignal(t *testing.T) {
	p := newExecPart(nil, "p", nil, nil)
	var sawSignal bool
	p.Bind(func(ctx context.Context, debugMode, asSignal bool, args ...any) (any, error) {
		sawSignal = asSignal
		return nil, nil
	})
	if err := p.Signal(context.Background(), 1); err != nil {
		t.Fatalf("Signal() = %v", err)
	}
	if !sawSignal {
		t.Fatalf("signal dispatch did not set asSignal")
	}
}

func TestUnboundPartErrors(t *testing.T) {
	p := newExecPart(nil, "p", nil, nil)
	if _, err := p.Call(context.Background()); err == nil {
		t.Fatalf("Call() on unbound part = nil error")
	}
}

func TestObserversGatedByAnimation(t *testing.T) {
	anim := &AnimationMode{}
	p := newExecPart(nil, "p", nil, anim)
	p.Bind(func(ctx context.Context, debugMode, asSignal bool, args ...any) (any, error) {
		return nil, nil
	})
	ob := &countingObserver{}
	p.AddObserver(ob)

	p.Call(context.Background())
	p.ChangeCountASAPSignals(1)
	if ob.execDone != 0 || ob.counters != 0 {
		t.Fatalf("observer notified with animation off: exec=%d counters=%d",
			ob.execDone, ob.counters)
	}

	anim.SetEnabled(true)
	p.Call(context.Background())
	p.ChangeCountASAPSignals(1)
	if ob.execDone != 1 || ob.counters != 1 {
		t.Fatalf("observer counts = exec %d, counters %d, want 1, 1",
			ob.execDone, ob.counters)
	}
}

func TestResetQueuedConcurNextNoopSkipsNotify(t *testing.T) {
	anim := &AnimationMode{}
	anim.SetEnabled(true)
	p := newExecPart(nil, "p", nil, anim)
	ob := &countingObserver{}
	p.AddObserver(ob)

	p.ResetQueuedConcurNext(0)
	if ob.counters != 0 {
		t.Fatalf("unchanged reset notified observers")
	}
	p.ResetQueuedConcurNext(2)
	if ob.counters != 1 {
		t.Fatalf("changed reset notified %d times, want 1", ob.counters)
	}
}

func TestRemoveAndRestoreEvents(t *testing.T) {
	sched := &fakeScheduler{}
	p := newExecPart(nil, "p", sched, nil)
	other := newExecPart(nil, "other", sched, nil)

	when := 3.5
	p.AddEvent(p, []any{1}, nil, ASAPPriority)
	p.AddEvent(p, []any{2}, &when, 10)
	p.AddEvent(other, nil, nil, ASAPPriority)

	if got := len(p.PartEvents()); got != 2 {
		t.Fatalf("PartEvents() has %d events, want 2", got)
	}

	stash := p.OnRemovedFromScenario(true)
	if len(stash) != 2 {
		t.Fatalf("OnRemovedFromScenario(true) returned %d events, want 2", len(stash))
	}
	if got := len(p.PartEvents()); got != 0 {
		t.Fatalf("events remained after removal: %d", got)
	}
	if got := len(sched.AllEvents(other)); got != 1 {
		t.Fatalf("other part's events disturbed: %d, want 1", got)
	}

	p.OnRestoredToScenario(stash)
	if got := len(p.PartEvents()); got != 2 {
		t.Fatalf("PartEvents() after restore = %d, want 2", got)
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&CompileError{}, "compile"},
		{&CallError{}, "call"},
		{&RunError{}, "run"},
		{&InvalidLinkingError{}, "linking"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := errorKind(tt.err); got != tt.want {
			t.Fatalf("errorKind(%T) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
