package model

// NodePart is a pass-through part: it carries at most one outgoing link and
// is transparent to link resolution. Reading through a node yields whatever
// the part at the end of the node chain yields; assigning through a node
// assigns to that endpoint.
type NodePart struct {
	*BasePart

	notifying bool
}

func NewNodePart(parent Part, name string) *NodePart {
	n := &NodePart{}
	n.BasePart = NewBasePart(n, parent, "node", name)
	return n
}

func (n *NodePart) CanAddOutgoingLink() bool {
	return len(n.Frame().outgoing) == 0
}

// EndpointPart walks the node chain and returns the first non-node part, or
// nil when the chain dead-ends or cycles.
func (n *NodePart) EndpointPart() Part {
	seen := map[string]bool{}
	var cur Part = n
	for {
		node, ok := cur.(*NodePart)
		if !ok {
			return cur
		}
		if seen[node.SessionID()] {
			return nil
		}
		seen[node.SessionID()] = true
		links := node.Frame().OutgoingLinks()
		if len(links) == 0 || links[0].Target() == nil {
			return nil
		}
		cur = links[0].Target().Part()
	}
}

func (n *NodePart) AsLinkTargetPart() Target {
	ep := n.EndpointPart()
	if ep == nil {
		return nil
	}
	return ep.AsLinkTargetPart()
}

func (n *NodePart) AsLinkTargetValue() any {
	ep := n.EndpointPart()
	if ep == nil {
		return nil
	}
	return ep.AsLinkTargetValue()
}

func (n *NodePart) AssignFromObject(value any) error {
	ep := n.EndpointPart()
	if ep == nil {
		return &DeadEndError{Path: n.Path()}
	}
	return ep.AssignFromObject(value)
}

// Link-change notifications propagate upstream so that parts whose links
// resolve through this node drop their stale caches.
func (n *NodePart) OnOutgoingLinkAdded(l *Link)   { n.propagateTargetChanged() }
func (n *NodePart) OnOutgoingLinkRemoved(l *Link) { n.propagateTargetChanged() }
func (n *NodePart) OnOutgoingLinkRenamed(oldName, newName string) {
	n.propagateTargetChanged()
}
func (n *NodePart) OnLinkTargetChanged(l *Link) { n.propagateTargetChanged() }

func (n *NodePart) propagateTargetChanged() {
	// A node cycle would ping-pong this notification forever; each node
	// forwards a given wave at most once.
	if n.notifying {
		return
	}
	n.notifying = true
	defer func() { n.notifying = false }()

	for _, in := range n.Frame().IncomingLinks() {
		src := in.Source()
		if src == nil {
			continue
		}
		src.notifyLinkTargetChanged(in)
	}
}

// DeadEndError is returned when resolution or assignment runs through a node
// chain that has no endpoint.
type DeadEndError struct {
	Path string
}

func (e *DeadEndError) Error() string {
	return "node chain from part \"" + e.Path + "\" has no endpoint"
}

func init() {
	RegisterPartType("node", func(parent Part, name string) (Part, error) {
		return NewNodePart(parent, name), nil
	})
}
