package model

// ActorPart is the container part type: it owns child parts and aggregates
// their queueing activity. A parent actor learns that some descendant has
// queued events through bubbled notifications, never by polling the subtree.
type ActorPart struct {
	*BasePart
	children []Part
	// number of immediate children that have (or contain) queued events
	queuedChildren int
}

func NewActorPart(parent Part, name string) *ActorPart {
	a := &ActorPart{}
	a.BasePart = NewBasePart(a, parent, "actor", name)
	return a
}

// NewRootActor builds the scenario's root container.
func NewRootActor(name string) *ActorPart {
	return NewActorPart(nil, name)
}

func (a *ActorPart) Children() []Part {
	out := make([]Part, len(a.children))
	copy(out, a.children)
	return out
}

func (a *ActorPart) AddChild(p Part) {
	a.children = append(a.children, p)
}

func (a *ActorPart) RemoveChild(p Part) bool {
	for i, c := range a.children {
		if c.SessionID() == p.SessionID() {
			a.children = append(a.children[:i], a.children[i+1:]...)
			return true
		}
	}
	return false
}

// ChildByName finds an immediate child by name, or nil.
func (a *ActorPart) ChildByName(name string) Part {
	for _, c := range a.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// HasQueuedDescendants reports whether any part inside this actor has
// queued events.
func (a *ActorPart) HasQueuedDescendants() bool { return a.queuedChildren > 0 }

// SetChildQueueingChanged is called by an immediate child when its queued
// state flips. The actor adjusts its count and bubbles its own transition
// to its parent, so the whole ancestor chain stays current without scans.
func (a *ActorPart) SetChildQueueingChanged(hasQueued bool) {
	before := a.queuedChildren > 0
	if hasQueued {
		a.queuedChildren++
	} else if a.queuedChildren > 0 {
		a.queuedChildren--
	}
	after := a.queuedChildren > 0
	if before == after {
		return
	}
	if parent, ok := a.Parent().(*ActorPart); ok && parent != nil {
		parent.SetChildQueueingChanged(after)
	}
}

// NotifyQueueingChanged is how a non-actor part reports its own queued-state
// transition to its containing actor.
func NotifyQueueingChanged(p Part, hasQueued bool) {
	if parent, ok := p.Parent().(*ActorPart); ok && parent != nil {
		parent.SetChildQueueingChanged(hasQueued)
	}
}

func init() {
	RegisterPartType("actor", func(parent Part, name string) (Part, error) {
		return NewActorPart(parent, name), nil
	})
}
