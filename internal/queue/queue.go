// Package queue implements the discrete event queue driving scenario
// execution: ASAP events pop before every timed event in FIFO order, timed
// events pop in (time, priority, insertion) order, and each mutation keeps
// the queued-event bookkeeping of the affected parts current.
//
// The queue is not safe for concurrent use: scenario execution is
// single-threaded and the queue is only touched from the simulation loop.
package queue

import (
	"context"
	"fmt"
	"sort"

	"github.com/signalsfoundry/scenario-engine/core"
	"github.com/signalsfoundry/scenario-engine/internal/logging"
	"github.com/signalsfoundry/scenario-engine/internal/observability"
	"github.com/signalsfoundry/scenario-engine/timectrl"
)

// Config wires the queue's collaborators. A nil Clock gets a fresh clock at
// time zero; Log and Metrics may be nil.
type Config struct {
	Clock   *timectrl.Clock
	Log     logging.Logger
	Metrics *observability.ScriptCollector
}

// EventQueue holds pending part activations. It implements core.Scheduler.
type EventQueue struct {
	clock   *timectrl.Clock
	log     logging.Logger
	metrics *observability.ScriptCollector

	nextID int64
	asap   []core.EventInfo // FIFO
	timed  []core.EventInfo // time asc, priority desc, id asc

	// bookkeeping applied to parts for the current next time bin
	binCounts  map[core.EventTarget]int
	nextTarget core.EventTarget
}

func New(cfg Config) *EventQueue {
	clock := cfg.Clock
	if clock == nil {
		clock = timectrl.NewClock(0)
	}
	log := cfg.Log
	if log == nil {
		log = logging.Noop()
	}
	return &EventQueue{
		clock:     clock,
		log:       log,
		metrics:   cfg.Metrics,
		binCounts: map[core.EventTarget]int{},
	}
}

func (q *EventQueue) Clock() *timectrl.Clock { return q.clock }

func (q *EventQueue) Len() int      { return len(q.asap) + len(q.timed) }
func (q *EventQueue) IsEmpty() bool { return q.Len() == 0 }

// AddEvent queues an activation of target. A nil eventTime queues ASAP,
// which requires the ASAP priority; a timed event must not be in the past
// and must carry a schedulable priority.
func (q *EventQueue) AddEvent(target core.EventTarget, args []any, eventTime *float64, priority float64) error {
	if target == nil {
		return fmt.Errorf("cannot queue an event without a target")
	}

	q.nextID++
	ev := core.EventInfo{
		ID:       q.nextID,
		Target:   target,
		Args:     args,
		Time:     eventTime,
		Priority: priority,
	}

	if eventTime == nil {
		if priority != core.ASAPPriority {
			return fmt.Errorf("ASAP event for part %q must use the ASAP priority, got %v",
				target.Path(), priority)
		}
		q.asap = append(q.asap, ev)
		target.ChangeCountASAPSignals(1)
	} else {
		if *eventTime < q.clock.Now() {
			return fmt.Errorf("cannot schedule event for part %q at %v: simulation time is %v",
				target.Path(), *eventTime, q.clock.Now())
		}
		if priority <= 0 || priority > core.MaxSchedPriority {
			return fmt.Errorf("scheduled event for part %q has priority %v, want (0, %v]",
				target.Path(), priority, core.MaxSchedPriority)
		}
		q.insertTimed(ev)
		target.ChangeCountTimeSignals(1)
	}

	q.refreshNextBin()
	q.publishDepth()
	return nil
}

// insertTimed keeps the timed slice ordered by time ascending, priority
// descending, insertion order ascending.
func (q *EventQueue) insertTimed(ev core.EventInfo) {
	i := sort.Search(len(q.timed), func(i int) bool {
		other := q.timed[i]
		if *other.Time != *ev.Time {
			return *other.Time > *ev.Time
		}
		if other.Priority != ev.Priority {
			return other.Priority < ev.Priority
		}
		return other.ID > ev.ID
	})
	q.timed = append(q.timed, core.EventInfo{})
	copy(q.timed[i+1:], q.timed[i:])
	q.timed[i] = ev
}

// PopNext removes and returns the next event: the oldest ASAP event, else
// the earliest timed event (advancing the clock to its time). ok is false
// when the queue is empty.
func (q *EventQueue) PopNext() (ev core.EventInfo, ok bool) {
	switch {
	case len(q.asap) > 0:
		ev = q.asap[0]
		q.asap = q.asap[1:]
		ev.Target.ChangeCountASAPSignals(-1)
	case len(q.timed) > 0:
		ev = q.timed[0]
		q.timed = q.timed[1:]
		ev.Target.ChangeCountTimeSignals(-1)
		if err := q.clock.AdvanceTo(*ev.Time); err != nil {
			q.log.Warn(context.Background(), "event time behind simulation clock",
				logging.Float("event_time", *ev.Time), logging.Err(err))
		}
	default:
		return core.EventInfo{}, false
	}

	q.refreshNextBin()
	q.publishDepth()
	return ev, true
}

// ProcessNext pops and signals one event. processed is false when the
// queue was empty; a signal error is returned with processed true.
func (q *EventQueue) ProcessNext(ctx context.Context) (processed bool, err error) {
	ev, ok := q.PopNext()
	if !ok {
		return false, nil
	}
	q.log.Debug(ctx, "processing event",
		logging.String("part", ev.Target.Path()),
		logging.Float("time", q.clock.Now()))
	return true, ev.Target.Signal(ctx, ev.Args...)
}

// Run processes events until the queue drains, the context is cancelled,
// or a part execution fails. Returns how many events were processed.
func (q *EventQueue) Run(ctx context.Context) (processed int, err error) {
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ok, err := q.ProcessNext(ctx)
		if !ok {
			return processed, nil
		}
		processed++
		if err != nil {
			return processed, err
		}
	}
}

// RemoveAllEvents drops every event targeting the part. With restorable
// true the removed events are returned for a later RestoreAllEvents.
func (q *EventQueue) RemoveAllEvents(target core.EventTarget, restorable bool) []core.EventInfo {
	var removed []core.EventInfo

	keepA := q.asap[:0]
	for _, ev := range q.asap {
		if ev.Target == target {
			removed = append(removed, ev)
			target.ChangeCountASAPSignals(-1)
		} else {
			keepA = append(keepA, ev)
		}
	}
	q.asap = keepA

	keepT := q.timed[:0]
	for _, ev := range q.timed {
		if ev.Target == target {
			removed = append(removed, ev)
			target.ChangeCountTimeSignals(-1)
		} else {
			keepT = append(keepT, ev)
		}
	}
	q.timed = keepT

	q.refreshNextBin()
	q.publishDepth()
	if !restorable {
		return nil
	}
	return removed
}

// RestoreAllEvents re-instates events removed by RemoveAllEvents. Events
// whose time has meanwhile passed are re-queued ASAP.
func (q *EventQueue) RestoreAllEvents(events []core.EventInfo) {
	for _, ev := range events {
		if ev.Time == nil {
			q.asap = append(q.asap, ev)
			ev.Target.ChangeCountASAPSignals(1)
		} else if *ev.Time < q.clock.Now() {
			restored := ev
			restored.Time = nil
			restored.Priority = core.ASAPPriority
			q.asap = append(q.asap, restored)
			ev.Target.ChangeCountASAPSignals(1)
		} else {
			q.insertTimed(ev)
			ev.Target.ChangeCountTimeSignals(1)
		}
	}
	q.refreshNextBin()
	q.publishDepth()
}

// AllEvents lists the part's queued events, pop order.
func (q *EventQueue) AllEvents(target core.EventTarget) []core.EventInfo {
	var out []core.EventInfo
	for _, ev := range q.asap {
		if ev.Target == target {
			out = append(out, ev)
		}
	}
	for _, ev := range q.timed {
		if ev.Target == target {
			out = append(out, ev)
		}
	}
	return out
}

// ClearAll drops every event and resets the affected parts' bookkeeping.
func (q *EventQueue) ClearAll() {
	for _, ev := range q.asap {
		ev.Target.ChangeCountASAPSignals(-1)
	}
	for _, ev := range q.timed {
		ev.Target.ChangeCountTimeSignals(-1)
	}
	q.asap = nil
	q.timed = nil
	q.refreshNextBin()
	q.publishDepth()
}

// refreshNextBin recomputes which parts are concurrent with the next
// event. The next bin is every ASAP event when any exist, otherwise every
// timed event sharing the earliest time. Parts entering or leaving the bin
// have their concurrency counts reset, and the queued-next flag moves to
// the new head target.
func (q *EventQueue) refreshNextBin() {
	newCounts := map[core.EventTarget]int{}
	var newNext core.EventTarget

	switch {
	case len(q.asap) > 0:
		newNext = q.asap[0].Target
		for _, ev := range q.asap {
			newCounts[ev.Target]++
		}
	case len(q.timed) > 0:
		newNext = q.timed[0].Target
		t0 := *q.timed[0].Time
		for _, ev := range q.timed {
			if *ev.Time != t0 {
				break
			}
			newCounts[ev.Target]++
		}
	}

	for target := range q.binCounts {
		if _, still := newCounts[target]; !still {
			target.ResetQueuedConcurNext(0)
		}
	}
	for target, n := range newCounts {
		target.ResetQueuedConcurNext(n)
	}

	if q.nextTarget != newNext {
		if q.nextTarget != nil {
			q.nextTarget.SetQueuedNext(false)
		}
		if newNext != nil {
			newNext.SetQueuedNext(true)
		}
		q.nextTarget = newNext
	}
	q.binCounts = newCounts
}

func (q *EventQueue) publishDepth() {
	q.metrics.SetQueueDepth("asap", len(q.asap))
	q.metrics.SetQueueDepth("timed", len(q.timed))
}
