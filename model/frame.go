package model

import (
	"fmt"
	"sort"
)

// Frame is the linkable boundary of a part. Links run from frame to frame;
// the frame also carries the part's name as seen by linked scripts.
type Frame struct {
	part     Part
	outgoing map[string]*Link // keyed by link session ID
	incoming map[string]*Link // links targeting this frame, keyed by link session ID
}

func newFrame(part Part) *Frame {
	return &Frame{
		part:     part,
		outgoing: map[string]*Link{},
		incoming: map[string]*Link{},
	}
}

func (f *Frame) Part() Part   { return f.part }
func (f *Frame) Name() string { return f.part.Name() }

// OutgoingLink finds an outgoing link by its (real) name, or nil.
func (f *Frame) OutgoingLink(name string) *Link {
	for _, l := range f.outgoing {
		if l.name == name {
			return l
		}
	}
	return nil
}

// OutgoingLinkByID finds an outgoing link by its session ID, or nil.
func (f *Frame) OutgoingLinkByID(sessionID string) *Link {
	return f.outgoing[sessionID]
}

// OutgoingLinkByTempName finds an outgoing link by its pending temp name,
// or nil.
func (f *Frame) OutgoingLinkByTempName(name string) *Link {
	for _, l := range f.outgoing {
		if l.tempName == name {
			return l
		}
	}
	return nil
}

// OutgoingLinks returns the outgoing links sorted by name. Map order is not
// repeatable across runs; name order is, because names are unique per frame.
func (f *Frame) OutgoingLinks() []*Link {
	links := make([]*Link, 0, len(f.outgoing))
	for _, l := range f.outgoing {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].name < links[j].name })
	return links
}

// IncomingLinks returns the links targeting this frame, sorted by name.
func (f *Frame) IncomingLinks() []*Link {
	links := make([]*Link, 0, len(f.incoming))
	for _, l := range f.incoming {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return links[i].name < links[j].name })
	return links
}

func (f *Frame) IsLinkNameTaken(name string) bool {
	return f.OutgoingLink(name) != nil
}

func (f *Frame) IsLinkTempNameTaken(name string) bool {
	return f.OutgoingLinkByTempName(name) != nil
}

// CreateLinkTo adds an outgoing link to the target frame. The name must be
// unique among this frame's outgoing link names and temp names.
func (f *Frame) CreateLinkTo(target *Frame, name string) (*Link, error) {
	if !f.part.CanAddOutgoingLink() {
		return nil, fmt.Errorf("part %q (type %s) cannot have more outgoing links",
			f.part.Path(), f.part.TypeName())
	}
	if f.IsLinkNameTaken(name) || f.IsLinkTempNameTaken(name) {
		return nil, fmt.Errorf("part %q already has a link named %q", f.part.Path(), name)
	}
	l := newLink(f, target, name)
	f.outgoing[l.sessionID] = l
	target.incoming[l.sessionID] = l
	f.notifyLinkAdded(l)
	return l, nil
}

// RemoveLink detaches an outgoing link from this frame and its target.
func (f *Frame) RemoveLink(l *Link) {
	if _, ok := f.outgoing[l.sessionID]; !ok {
		return
	}
	delete(f.outgoing, l.sessionID)
	if l.target != nil {
		delete(l.target.incoming, l.sessionID)
	}
	f.notifyLinkRemoved(l)
}

// RenameLink changes a link's real name, keeping uniqueness.
func (f *Frame) RenameLink(l *Link, newName string) error {
	if l.name == newName {
		return nil
	}
	if f.IsLinkNameTaken(newName) || f.IsLinkTempNameTaken(newName) {
		return fmt.Errorf("part %q already has a link named %q", f.part.Path(), newName)
	}
	oldName := l.name
	l.name = newName
	f.notifyLinkRenamed(oldName, newName)
	return nil
}

// RetargetLink points an existing outgoing link at a new frame.
func (f *Frame) RetargetLink(l *Link, target *Frame) {
	if _, ok := f.outgoing[l.sessionID]; !ok {
		return
	}
	if l.target != nil {
		delete(l.target.incoming, l.sessionID)
	}
	l.target = target
	if target != nil {
		target.incoming[l.sessionID] = l
	}
	f.notifyLinkTargetChanged(l)
}

func (f *Frame) notifyLinkAdded(l *Link) {
	if ob, ok := f.part.(LinkObserver); ok {
		ob.OnOutgoingLinkAdded(l)
	}
}

func (f *Frame) notifyLinkRemoved(l *Link) {
	if ob, ok := f.part.(LinkObserver); ok {
		ob.OnOutgoingLinkRemoved(l)
	}
}

func (f *Frame) notifyLinkRenamed(oldName, newName string) {
	if ob, ok := f.part.(LinkObserver); ok {
		ob.OnOutgoingLinkRenamed(oldName, newName)
	}
}

func (f *Frame) notifyLinkTargetChanged(l *Link) {
	if ob, ok := f.part.(LinkObserver); ok {
		ob.OnLinkTargetChanged(l)
	}
}
