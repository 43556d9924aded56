// Package model holds the scenario graph: typed parts connected by named
// directed links between part frames. Parts are plain graph nodes here;
// execution semantics (scripts, events) live in core.
package model

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Target is anything a link can ultimately resolve to. Resolution yields a
// value to hand to a script; assignment pushes a script value back through
// the link.
type Target interface {
	// AsLinkTargetValue returns the value a script sees when it reads the
	// link: the part itself for most parts, the stored value for variable
	// parts.
	AsLinkTargetValue() any
	// AssignFromObject stores a script value through the link. Most parts
	// reject assignment.
	AssignFromObject(value any) error
}

// Part is a node in the scenario graph.
type Part interface {
	Target

	Name() string
	// Path is the slash-separated path from the root actor to this part.
	Path() string
	TypeName() string
	// SessionID identifies the part for the lifetime of the process. It is
	// not stable across sessions.
	SessionID() string
	Parent() Part
	Frame() *Frame

	// AsLinkTargetPart resolves pass-through parts to the part at the end of
	// the chain. Returns nil when the chain dead-ends.
	AsLinkTargetPart() Target
	// DebugLineOffset is the number of lines the part's execution machinery
	// prepends to the user's script in the debug copy.
	DebugLineOffset() int
	CanAddOutgoingLink() bool
}

// LinkObserver is implemented by parts that need to react to changes in
// their frame's outgoing links (cache invalidation, re-sorting).
type LinkObserver interface {
	OnOutgoingLinkAdded(link *Link)
	OnOutgoingLinkRemoved(link *Link)
	OnOutgoingLinkRenamed(oldName, newName string)
	OnLinkTargetChanged(link *Link)
}

// BasePart carries the state and behaviour common to every part type.
// Concrete parts embed a *BasePart and pass themselves as self so that
// overridable behaviour dispatches to the concrete type.
type BasePart struct {
	self      Part
	parent    Part
	name      string
	typeName  string
	sessionID string
	frame     *Frame
}

// NewBasePart builds the common state for a concrete part. self must be the
// embedding part.
func NewBasePart(self Part, parent Part, typeName, name string) *BasePart {
	b := &BasePart{
		self:      self,
		parent:    parent,
		name:      name,
		typeName:  typeName,
		sessionID: uuid.NewString(),
	}
	b.frame = newFrame(self)
	return b
}

func (b *BasePart) Name() string      { return b.name }
func (b *BasePart) TypeName() string  { return b.typeName }
func (b *BasePart) SessionID() string { return b.sessionID }
func (b *BasePart) Parent() Part      { return b.parent }
func (b *BasePart) Frame() *Frame     { return b.frame }

// SetName renames the part. Frames share the part's name.
func (b *BasePart) SetName(name string) { b.name = name }

func (b *BasePart) Path() string {
	if b.parent == nil {
		return "/" + b.name
	}
	return b.parent.Path() + "/" + b.name
}

func (b *BasePart) AsLinkTargetValue() any { return b.self }

func (b *BasePart) AssignFromObject(value any) error {
	return fmt.Errorf("part %q (type %s) cannot be assigned a value", b.Path(), b.typeName)
}

func (b *BasePart) AsLinkTargetPart() Target { return b.self }

func (b *BasePart) DebugLineOffset() int { return 0 }

func (b *BasePart) CanAddOutgoingLink() bool { return true }

// ---- part type registry ----

// Constructor builds a part of a registered type under the given parent.
type Constructor func(parent Part, name string) (Part, error)

var (
	partTypesMu sync.RWMutex
	partTypes   = map[string]Constructor{}
)

// RegisterPartType registers a constructor for a part type name. Later
// registrations of the same name replace earlier ones.
func RegisterPartType(typeName string, ctor Constructor) {
	partTypesMu.Lock()
	defer partTypesMu.Unlock()
	partTypes[typeName] = ctor
}

// NewPart builds a part of a registered type.
func NewPart(typeName string, parent Part, name string) (Part, error) {
	partTypesMu.RLock()
	ctor, ok := partTypes[typeName]
	partTypesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown part type %q", typeName)
	}
	return ctor(parent, name)
}

// PartTypeNames lists the registered part type names, sorted.
func PartTypeNames() []string {
	partTypesMu.RLock()
	defer partTypesMu.RUnlock()
	names := make([]string, 0, len(partTypes))
	for name := range partTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
