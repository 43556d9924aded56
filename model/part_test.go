package model

import (
	"errors"
	"testing"
)

func TestPartPath(t *testing.T) {
	root := NewRootActor("scenario")
	sub := NewActorPart(root, "sub")
	root.AddChild(sub)
	v := NewVariablePart(sub, "count")
	sub.AddChild(v)

	if got := v.Path(); got != "/scenario/sub/count" {
		t.Fatalf("Path() = %q, want %q", got, "/scenario/sub/count")
	}
	if got := root.Path(); got != "/scenario" {
		t.Fatalf("Path() = %q, want %q", got, "/scenario")
	}
}

func TestNewPartRegistry(t *testing.T) {
	root := NewRootActor("root")
	p, err := NewPart("variable", root, "v")
	if err != nil {
		t.Fatalf("NewPart(variable) error: %v", err)
	}
	if p.TypeName() != "variable" {
		t.Fatalf("TypeName() = %q, want %q", p.TypeName(), "variable")
	}

	if _, err := NewPart("nosuch", root, "x"); err == nil {
		t.Fatalf("NewPart(nosuch) = nil error, want unknown type error")
	}
}

func TestFrameLinkName(t *testing.T) {
	cases := []struct {
		in    string
		inner string
		ok    bool
	}{
		{"_flow_", "flow", true},
		{"_a_", "a", true},
		{"flow", "", false},
		{"_flow", "", false},
		{"flow_", "", false},
		{"__", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		inner, ok := FrameLinkName(tc.in)
		if ok != tc.ok || inner != tc.inner {
			t.Fatalf("FrameLinkName(%q) = (%q, %v), want (%q, %v)",
				tc.in, inner, ok, tc.inner, tc.ok)
		}
	}
}

func TestCreateLinkUniqueNames(t *testing.T) {
	root := NewRootActor("root")
	a := NewVariablePart(root, "a")
	b := NewVariablePart(root, "b")

	if _, err := a.Frame().CreateLinkTo(b.Frame(), "out"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	if _, err := a.Frame().CreateLinkTo(b.Frame(), "out"); err == nil {
		t.Fatalf("CreateLinkTo() with duplicate name = nil error, want error")
	}
}

func TestRenameLink(t *testing.T) {
	root := NewRootActor("root")
	a := NewVariablePart(root, "a")
	b := NewVariablePart(root, "b")
	c := NewVariablePart(root, "c")

	l1, _ := a.Frame().CreateLinkTo(b.Frame(), "one")
	if _, err := a.Frame().CreateLinkTo(c.Frame(), "two"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}

	if err := a.Frame().RenameLink(l1, "two"); err == nil {
		t.Fatalf("RenameLink() to taken name = nil error, want error")
	}
	if err := a.Frame().RenameLink(l1, "three"); err != nil {
		t.Fatalf("RenameLink() error: %v", err)
	}
	if a.Frame().OutgoingLink("one") != nil {
		t.Fatalf("OutgoingLink(one) still resolves after rename")
	}
	if a.Frame().OutgoingLink("three") != l1 {
		t.Fatalf("OutgoingLink(three) = %v, want renamed link", a.Frame().OutgoingLink("three"))
	}
}

func TestRemoveLinkDetachesBothSides(t *testing.T) {
	root := NewRootActor("root")
	a := NewVariablePart(root, "a")
	b := NewVariablePart(root, "b")

	l, _ := a.Frame().CreateLinkTo(b.Frame(), "out")
	if n := len(b.Frame().IncomingLinks()); n != 1 {
		t.Fatalf("IncomingLinks() = %d links, want 1", n)
	}
	a.Frame().RemoveLink(l)
	if n := len(a.Frame().OutgoingLinks()); n != 0 {
		t.Fatalf("OutgoingLinks() = %d links after remove, want 0", n)
	}
	if n := len(b.Frame().IncomingLinks()); n != 0 {
		t.Fatalf("IncomingLinks() = %d links after remove, want 0", n)
	}
}

func TestVariableRejectsParts(t *testing.T) {
	root := NewRootActor("root")
	v := NewVariablePart(root, "v")
	other := NewVariablePart(root, "other")

	if err := v.SetValue(other); err == nil {
		t.Fatalf("SetValue(part) = nil error, want rejection")
	}
	if err := v.SetValue(42); err != nil {
		t.Fatalf("SetValue(42) error: %v", err)
	}
	if got := v.AsLinkTargetValue(); got != 42 {
		t.Fatalf("AsLinkTargetValue() = %v, want 42", got)
	}
}

func TestNodeChainResolvesEndpoint(t *testing.T) {
	root := NewRootActor("root")
	n1 := NewNodePart(root, "n1")
	n2 := NewNodePart(root, "n2")
	v := NewVariablePart(root, "v")
	if err := v.SetValue("payload"); err != nil {
		t.Fatalf("SetValue() error: %v", err)
	}

	if _, err := n1.Frame().CreateLinkTo(n2.Frame(), "next"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	if _, err := n2.Frame().CreateLinkTo(v.Frame(), "next"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}

	if got := n1.EndpointPart(); got == nil || got.SessionID() != v.SessionID() {
		t.Fatalf("EndpointPart() = %v, want variable part", got)
	}
	if got := n1.AsLinkTargetValue(); got != "payload" {
		t.Fatalf("AsLinkTargetValue() through chain = %v, want %q", got, "payload")
	}
	if err := n1.AssignFromObject("updated"); err != nil {
		t.Fatalf("AssignFromObject() through chain error: %v", err)
	}
	if got := v.Value(); got != "updated" {
		t.Fatalf("Value() after assign through chain = %v, want %q", got, "updated")
	}
}

func TestNodeDeadEnd(t *testing.T) {
	root := NewRootActor("root")
	n := NewNodePart(root, "n")

	if got := n.EndpointPart(); got != nil {
		t.Fatalf("EndpointPart() on unlinked node = %v, want nil", got)
	}
	if got := n.AsLinkTargetPart(); got != nil {
		t.Fatalf("AsLinkTargetPart() on unlinked node = %v, want nil", got)
	}
	var deadEnd *DeadEndError
	if err := n.AssignFromObject(1); !errors.As(err, &deadEnd) {
		t.Fatalf("AssignFromObject() error = %v, want DeadEndError", err)
	}
}

func TestNodeCycleIsNil(t *testing.T) {
	root := NewRootActor("root")
	n1 := NewNodePart(root, "n1")
	n2 := NewNodePart(root, "n2")

	if _, err := n1.Frame().CreateLinkTo(n2.Frame(), "next"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	if _, err := n2.Frame().CreateLinkTo(n1.Frame(), "back"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	if got := n1.EndpointPart(); got != nil {
		t.Fatalf("EndpointPart() on cyclic chain = %v, want nil", got)
	}
}

func TestNodeSingleOutgoingLink(t *testing.T) {
	root := NewRootActor("root")
	n := NewNodePart(root, "n")
	a := NewVariablePart(root, "a")
	b := NewVariablePart(root, "b")

	if _, err := n.Frame().CreateLinkTo(a.Frame(), "one"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	if _, err := n.Frame().CreateLinkTo(b.Frame(), "two"); err == nil {
		t.Fatalf("CreateLinkTo() second link from node = nil error, want error")
	}
}

// watcherPart records link-target-change notifications it receives.
type watcherPart struct {
	*BasePart
	targetChanges int
}

func newWatcherPart(parent Part, name string) *watcherPart {
	w := &watcherPart{}
	w.BasePart = NewBasePart(w, parent, "test", name)
	return w
}

func (w *watcherPart) OnOutgoingLinkAdded(*Link)            {}
func (w *watcherPart) OnOutgoingLinkRemoved(*Link)          {}
func (w *watcherPart) OnOutgoingLinkRenamed(string, string) {}
func (w *watcherPart) OnLinkTargetChanged(*Link)            { w.targetChanges++ }

func TestNodeCyclePropagationTerminates(t *testing.T) {
	root := NewRootActor("root")
	w := newWatcherPart(root, "w")
	n1 := NewNodePart(root, "n1")
	n2 := NewNodePart(root, "n2")

	if _, err := w.Frame().CreateLinkTo(n1.Frame(), "in"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	if _, err := n1.Frame().CreateLinkTo(n2.Frame(), "next"); err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	w.targetChanges = 0

	// Closing the cycle notifies upstream once and must not recurse.
	back, err := n2.Frame().CreateLinkTo(n1.Frame(), "back")
	if err != nil {
		t.Fatalf("CreateLinkTo() error: %v", err)
	}
	if w.targetChanges != 1 {
		t.Fatalf("targetChanges after closing cycle = %d, want 1", w.targetChanges)
	}

	v := NewVariablePart(root, "v")
	n2.Frame().RetargetLink(back, v.Frame())
	if w.targetChanges != 2 {
		t.Fatalf("targetChanges after retarget = %d, want 2", w.targetChanges)
	}
	if got := n1.EndpointPart(); got != v {
		t.Fatalf("EndpointPart() after breaking cycle = %v, want v", got)
	}
}
