// Package core implements the scripted-part execution engine: the
// executable entry points and queue bookkeeping, the link proxy, the script
// sandbox and its error taxonomy, imports, and the scenario container that
// ties them together.
package core

import (
	"context"
	"errors"

	"github.com/signalsfoundry/scenario-engine/internal/logging"
	"github.com/signalsfoundry/scenario-engine/internal/observability"
	"github.com/signalsfoundry/scenario-engine/model"
)

const (
	// MaxSchedPriority is the highest priority a scheduled (timed) event may
	// carry.
	MaxSchedPriority = 1000000.0
	// ASAPPriority marks an event as ASAP: popped before every scheduled
	// event, FIFO among themselves.
	ASAPPriority = MaxSchedPriority + 1
)

// EventInfo describes one queued event. A nil Time means ASAP.
type EventInfo struct {
	ID       int64
	Target   EventTarget
	Args     []any
	Time     *float64
	Priority float64
}

// Scheduler is the event queue as seen by executable parts.
type Scheduler interface {
	AddEvent(target EventTarget, args []any, eventTime *float64, priority float64) error
	// RemoveAllEvents drops every event targeting the part. With restorable
	// true the removed events are returned for a later RestoreAllEvents.
	RemoveAllEvents(target EventTarget, restorable bool) []EventInfo
	RestoreAllEvents(events []EventInfo)
	AllEvents(target EventTarget) []EventInfo
}

// QueueTracker receives queue-count bookkeeping from the event queue. Only
// the event queue may call these.
type QueueTracker interface {
	SetQueuedNext(next bool)
	ChangeCountASAPSignals(delta int)
	ChangeCountTimeSignals(delta int)
	ChangeCountConcurrentNext(delta int)
	ResetQueuedConcurNext(count int)
}

// EventTarget is what the event queue holds: a part that can be signaled
// and tracks its queue counts.
type EventTarget interface {
	Path() string
	Signal(ctx context.Context, args ...any) error
	QueueTracker
}

// Runnable is an executable part as seen from a script: callable directly,
// in debug mode, or via signal.
type Runnable interface {
	Call(ctx context.Context, args ...any) (any, error)
	CallDebug(ctx context.Context, args ...any) (any, error)
	Signal(ctx context.Context, args ...any) error
}

// ExecFunc is a part's execution behaviour. asSignal distinguishes
// queue-driven signaling from direct calls; some part kinds behave
// differently for each.
type ExecFunc func(ctx context.Context, debugMode, asSignal bool, args ...any) (any, error)

// ExecObserver watches a part's execution and queue activity, typically for
// animation. Notifications fire only while the scenario's animation mode is
// on.
type ExecObserver interface {
	OnExecDone()
	OnQueueCountersChanged(next bool, concurNext, afterNext int)
}

// AnimationMode is the scenario-wide switch gating observer notifications.
// Turning it off makes execution and queue mutations silent (and cheap).
type AnimationMode struct {
	enabled bool
}

func (a *AnimationMode) SetEnabled(on bool) { a.enabled = on }

func (a *AnimationMode) Enabled() bool { return a != nil && a.enabled }

// ExecutableConfig wires an Executable to its part and scenario
// collaborators.
type ExecutableConfig struct {
	// Self is the concrete part embedding this Executable; events queued by
	// AddEvent on behalf of the part carry it as target.
	Self EventTarget
	// Owner is the same part, as a graph node (queueing transitions bubble
	// to its containing actor).
	Owner     model.Part
	Scheduler Scheduler
	Log       logging.Logger
	Metrics   *observability.ScriptCollector
	Anim      *AnimationMode
}

// Executable carries the execution entry points and event-queue bookkeeping
// common to every executable part kind. Concrete parts embed it and bind
// their behaviour with Bind.
type Executable struct {
	self      EventTarget
	owner     model.Part
	scheduler Scheduler
	log       logging.Logger
	metrics   *observability.ScriptCollector
	anim      *AnimationMode

	exec    ExecFunc
	lastErr error

	countQueued     int
	queueASAP       int
	queueTimed      int
	queueConcurNext int
	queueNext       bool

	observers []ExecObserver
}

func NewExecutable(cfg ExecutableConfig) *Executable {
	log := cfg.Log
	if log == nil {
		log = logging.Noop()
	}
	return &Executable{
		self:      cfg.Self,
		owner:     cfg.Owner,
		scheduler: cfg.Scheduler,
		log:       log,
		metrics:   cfg.Metrics,
		anim:      cfg.Anim,
	}
}

// Bind sets the part's execution behaviour. Must be called before the part
// is called or signaled.
func (e *Executable) Bind(exec ExecFunc) { e.exec = exec }

// AddObserver registers an execution observer.
func (e *Executable) AddObserver(ob ExecObserver) {
	e.observers = append(e.observers, ob)
}

// Call executes the part directly.
func (e *Executable) Call(ctx context.Context, args ...any) (any, error) {
	return e.dispatch(ctx, false, false, args...)
}

// CallDebug executes the part directly with debug suspension enabled.
func (e *Executable) CallDebug(ctx context.Context, args ...any) (any, error) {
	return e.dispatch(ctx, true, false, args...)
}

// Signal executes the part as the event queue does after popping one of its
// events.
func (e *Executable) Signal(ctx context.Context, args ...any) error {
	_, err := e.dispatch(ctx, false, true, args...)
	return err
}

// SignalDebug executes the part as a signal with debug suspension enabled.
func (e *Executable) SignalDebug(ctx context.Context, args ...any) error {
	_, err := e.dispatch(ctx, true, true, args...)
	return err
}

func (e *Executable) dispatch(ctx context.Context, debugMode, asSignal bool, args ...any) (any, error) {
	mode := "call"
	if asSignal {
		mode = "signal"
	}
	e.log.Debug(ctx, "executing part",
		logging.String("part", e.path()),
		logging.String("mode", mode),
		logging.Any("debug", debugMode))

	ctx, span := observability.StartPartSpan(ctx, e.path(), mode)
	defer span.End()

	if e.exec == nil {
		err := errors.New("part " + e.path() + " has no execution behaviour bound")
		e.recordError(err)
		return nil, err
	}

	e.lastErr = nil
	result, err := e.exec(ctx, debugMode, asSignal, args...)
	if err != nil {
		e.recordError(err)
		span.RecordError(err)
		e.metrics.ObserveExecution(mode, false)
		e.metrics.ObserveError(errorKind(err))
		return nil, err
	}

	e.metrics.ObserveExecution(mode, true)
	if e.anim.Enabled() {
		for _, ob := range e.observers {
			ob.OnExecDone()
		}
	}
	return result, nil
}

// LastExecError returns the error of the most recent execution, or nil when
// it succeeded. Each execution clears it before running.
func (e *Executable) LastExecError() error { return e.lastErr }

func (e *Executable) recordError(err error) { e.lastErr = err }

func errorKind(err error) string {
	var (
		ce *CompileError
		le *CallError
		re *RunError
		ie *InvalidLinkingError
	)
	switch {
	case errors.As(err, &ce):
		return "compile"
	case errors.As(err, &le):
		return "call"
	case errors.As(err, &re):
		return "run"
	case errors.As(err, &ie):
		return "linking"
	default:
		return "other"
	}
}

func (e *Executable) path() string {
	if e.self != nil {
		return e.self.Path()
	}
	return "?"
}

// ---- queue properties ----

// Queued reports whether the part has at least one event on the queue.
func (e *Executable) Queued() bool { return e.countQueued > 0 }

// QueuedNext reports whether the part's event is the next to pop.
func (e *Executable) QueuedNext() bool { return e.queueNext }

func (e *Executable) QueuedASAP() bool  { return e.queueASAP > 0 }
func (e *Executable) QueuedTimed() bool { return e.queueTimed > 0 }

// QueuedConcurNext reports whether the part is in the next concurrency bin
// at least once. An event is concurrent with itself.
func (e *Executable) QueuedConcurNext() bool { return e.queueConcurNext > 0 }

func (e *Executable) QueuedAfterNext() bool {
	return e.countQueued-e.queueConcurNext > 0
}

// CountQueued is how many times the part appears on the event queue.
func (e *Executable) CountQueued() int { return e.countQueued }

func (e *Executable) CountQueuedASAP() int  { return e.queueASAP }
func (e *Executable) CountQueuedTimed() int { return e.queueTimed }

func (e *Executable) CountQueuedConcurNext() int { return e.queueConcurNext }

// CountQueuedAfterNext is how many of the part's events are scheduled later
// than the next event's time bin.
func (e *Executable) CountQueuedAfterNext() int {
	return e.countQueued - e.queueConcurNext
}

// QueueCounts returns (next, concurrent-with-next, after-next) in one shot.
func (e *Executable) QueueCounts() (bool, int, int) {
	return e.queueNext, e.queueConcurNext, e.CountQueuedAfterNext()
}

// ---- bookkeeping, called only by the event queue ----

func (e *Executable) SetQueuedNext(next bool) {
	e.queueNext = next
	e.notifyCounters()
}

func (e *Executable) ChangeCountASAPSignals(delta int) {
	before := e.Queued()
	e.queueASAP += delta
	e.countQueued += delta
	e.bubbleQueueing(before)
	e.notifyCounters()
}

func (e *Executable) ChangeCountTimeSignals(delta int) {
	before := e.Queued()
	e.queueTimed += delta
	e.countQueued += delta
	e.bubbleQueueing(before)
	e.notifyCounters()
}

func (e *Executable) ChangeCountConcurrentNext(delta int) {
	e.queueConcurNext += delta
	e.notifyCounters()
}

func (e *Executable) ResetQueuedConcurNext(count int) {
	if e.queueConcurNext == count {
		return
	}
	e.queueConcurNext = count
	e.notifyCounters()
}

// bubbleQueueing reports queued-state transitions to the containing actor
// chain. Not gated by animation: actor aggregation must stay exact.
func (e *Executable) bubbleQueueing(before bool) {
	after := e.Queued()
	if before == after || e.owner == nil {
		return
	}
	model.NotifyQueueingChanged(e.owner, after)
}

func (e *Executable) notifyCounters() {
	if !e.anim.Enabled() {
		return
	}
	next, concur, after := e.QueueCounts()
	for _, ob := range e.observers {
		ob.OnQueueCountersChanged(next, concur, after)
	}
}

// ---- scheduler operations ----

// AddEvent queues an event for another executable part (or this one).
// A nil eventTime queues ASAP.
func (e *Executable) AddEvent(target EventTarget, args []any, eventTime *float64, priority float64) error {
	return e.scheduler.AddEvent(target, args, eventTime, priority)
}

// PartEvents lists this part's queued events.
func (e *Executable) PartEvents() []EventInfo {
	return e.scheduler.AllEvents(e.self)
}

// OnRemovedFromScenario drops this part's queued events. With restorable
// true the events are returned so OnRestoredToScenario can re-instate them
// (undo support).
func (e *Executable) OnRemovedFromScenario(restorable bool) []EventInfo {
	return e.scheduler.RemoveAllEvents(e.self, restorable)
}

// OnRestoredToScenario re-instates events stashed by OnRemovedFromScenario.
func (e *Executable) OnRestoredToScenario(events []EventInfo) {
	e.scheduler.RestoreAllEvents(events)
}
