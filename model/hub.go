package model

// HubPart fans link resolution out: a part linked to a hub reaches all of
// the hub's own outgoing links attribute-style, through a HubProxy. The hub
// itself never appears as a script value.
type HubPart struct {
	*BasePart
}

func NewHubPart(parent Part, name string) *HubPart {
	h := &HubPart{}
	h.BasePart = NewBasePart(h, parent, "hub", name)
	return h
}

func (h *HubPart) AsLinkTargetPart() Target { return &HubProxy{hub: h} }

func (h *HubPart) AsLinkTargetValue() any { return &HubProxy{hub: h} }

// HubProxy resolves attribute access on a hub to the hub's outgoing links.
// It is a Target but not a Part: scripts traverse it, the graph never
// contains it.
type HubProxy struct {
	hub *HubPart
}

func (p *HubProxy) Hub() *HubPart { return p.hub }

func (p *HubProxy) AsLinkTargetValue() any { return p }

func (p *HubProxy) AssignFromObject(value any) error {
	return &LinkError{PartPath: p.hub.Path(), LinkName: "",
		Msg: "hub part \"" + p.hub.Path() + "\" cannot be assigned a value"}
}

// Resolve reads a hub attribute: the frame convention yields the linked
// part's frame, otherwise the resolved value of the named outgoing link.
func (p *HubProxy) Resolve(name string) (any, error) {
	if inner, ok := FrameLinkName(name); ok {
		l := p.hub.Frame().OutgoingLink(inner)
		if l == nil || l.Target() == nil {
			return nil, unknownHubLink(p.hub, inner)
		}
		return l.Target(), nil
	}
	l := p.hub.Frame().OutgoingLink(name)
	if l == nil || l.Target() == nil {
		return nil, unknownHubLink(p.hub, name)
	}
	target := l.Target().Part().AsLinkTargetPart()
	if target == nil {
		return nil, &DeadEndError{Path: l.Target().Part().Path()}
	}
	return target.AsLinkTargetValue(), nil
}

// Assign writes through a hub attribute to the named link's target.
func (p *HubProxy) Assign(name string, value any) error {
	l := p.hub.Frame().OutgoingLink(name)
	if l == nil || l.Target() == nil {
		return unknownHubLink(p.hub, name)
	}
	target := l.Target().Part().AsLinkTargetPart()
	if target == nil {
		return &DeadEndError{Path: l.Target().Part().Path()}
	}
	return target.AssignFromObject(value)
}

// Names lists the hub's outgoing link names, sorted.
func (p *HubProxy) Names() []string {
	links := p.hub.Frame().OutgoingLinks()
	names := make([]string, 0, len(links))
	for _, l := range links {
		names = append(names, l.Name())
	}
	return names
}

// Has reports whether the name resolves on this hub.
func (p *HubProxy) Has(name string) bool {
	if inner, ok := FrameLinkName(name); ok {
		return p.hub.Frame().OutgoingLink(inner) != nil
	}
	return p.hub.Frame().OutgoingLink(name) != nil
}

func unknownHubLink(hub *HubPart, name string) error {
	return &LinkError{
		PartPath: hub.Path(),
		LinkName: name,
		Msg:      "hub part \"" + hub.Path() + "\" does not have a link named \"" + name + "\"",
	}
}

// LinkError reports a failed link resolution on a part.
type LinkError struct {
	PartPath string
	LinkName string
	Msg      string
}

func (e *LinkError) Error() string { return e.Msg }

func init() {
	RegisterPartType("hub", func(parent Part, name string) (Part, error) {
		return NewHubPart(parent, name), nil
	})
}
