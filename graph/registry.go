// Package graph tracks the parts of a live scenario: a path-keyed registry
// with add/remove/restore semantics and change events for anything that
// needs to follow scenario structure (UIs, recorders).
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/scenario-engine/core"
	"github.com/signalsfoundry/scenario-engine/model"
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventPartAdded EventType = iota
	EventPartRemoved
	EventPartRestored
)

// Event is emitted to subscribers when the scenario structure changes.
type Event struct {
	Type     EventType
	Path     string
	TypeName string
}

// eventOwner is a part that holds queued events needing stash/restore when
// the part leaves and re-enters the scenario. Executable parts satisfy it.
type eventOwner interface {
	OnRemovedFromScenario(restorable bool) []core.EventInfo
	OnRestoredToScenario(events []core.EventInfo)
}

// Registry is an in-memory, thread-safe store of a scenario's parts,
// keyed by path.
type Registry struct {
	mu sync.RWMutex

	parts map[string]model.Part
	// queued events stashed when a part was removed restorably
	stash map[string][]core.EventInfo

	subs    map[int]func(Event)
	nextSub int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		parts: make(map[string]model.Part),
		stash: make(map[string][]core.EventInfo),
		subs:  make(map[int]func(Event)),
	}
}

// AddPart registers a part. It returns an error if the path is taken.
func (r *Registry) AddPart(p model.Part) error {
	r.mu.Lock()
	path := p.Path()
	if _, exists := r.parts[path]; exists {
		r.mu.Unlock()
		return fmt.Errorf("part with path %q already exists", path)
	}
	r.parts[path] = p
	event := Event{Type: EventPartAdded, Path: path, TypeName: p.TypeName()}
	subs := r.snapshotSubs()
	r.mu.Unlock()

	r.notify(subs, event)
	return nil
}

// PartByPath returns the part at the given path, or nil.
func (r *Registry) PartByPath(path string) model.Part {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.parts[path]
}

// Parts returns a snapshot of all parts, ordered by path.
func (r *Registry) Parts() []model.Part {
	r.mu.RLock()
	paths := make([]string, 0, len(r.parts))
	for path := range r.parts {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	res := make([]model.Part, 0, len(paths))
	for _, path := range paths {
		res = append(res, r.parts[path])
	}
	r.mu.RUnlock()
	return res
}

// RemovePart unregisters a part. With restorable true, an executable
// part's queued events are stashed so RestorePart can re-instate them
// (undo support); otherwise they are dropped.
func (r *Registry) RemovePart(path string, restorable bool) error {
	r.mu.Lock()
	p, ok := r.parts[path]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("part with path %q not found", path)
	}
	delete(r.parts, path)

	if owner, ok := p.(eventOwner); ok {
		events := owner.OnRemovedFromScenario(restorable)
		if restorable && len(events) > 0 {
			r.stash[path] = events
		}
	}

	event := Event{Type: EventPartRemoved, Path: path, TypeName: p.TypeName()}
	subs := r.snapshotSubs()
	r.mu.Unlock()

	r.notify(subs, event)
	return nil
}

// RestorePart re-registers a previously removed part and re-instates any
// stashed queued events.
func (r *Registry) RestorePart(p model.Part) error {
	r.mu.Lock()
	path := p.Path()
	if _, exists := r.parts[path]; exists {
		r.mu.Unlock()
		return fmt.Errorf("part with path %q already exists", path)
	}
	r.parts[path] = p

	events := r.stash[path]
	delete(r.stash, path)

	event := Event{Type: EventPartRestored, Path: path, TypeName: p.TypeName()}
	subs := r.snapshotSubs()
	r.mu.Unlock()

	if owner, ok := p.(eventOwner); ok && len(events) > 0 {
		owner.OnRestoredToScenario(events)
	}
	r.notify(subs, event)
	return nil
}

// Subscribe registers a callback for registry events. It returns an
// unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

// snapshotSubs copies the subscriber set so notification can run outside
// the lock. Callers must hold mu.
func (r *Registry) snapshotSubs() []func(Event) {
	subs := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the registry lock to avoid deadlocks.
func (r *Registry) notify(subs []func(Event), event Event) {
	for _, fn := range subs {
		fn(event)
	}
}
