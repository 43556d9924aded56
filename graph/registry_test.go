package graph

import (
	"testing"

	"github.com/signalsfoundry/scenario-engine/core"
	"github.com/signalsfoundry/scenario-engine/model"
)

// queuedPart is a registry entry that owns queued events.
type queuedPart struct {
	*model.BasePart
	pending  []core.EventInfo
	restored []core.EventInfo
}

func newQueuedPart(parent model.Part, name string) *queuedPart {
	p := &queuedPart{}
	p.BasePart = model.NewBasePart(p, parent, "test", name)
	return p
}

func (p *queuedPart) OnRemovedFromScenario(restorable bool) []core.EventInfo {
	events := p.pending
	p.pending = nil
	if !restorable {
		return nil
	}
	return events
}

func (p *queuedPart) OnRestoredToScenario(events []core.EventInfo) {
	p.restored = events
}

func TestAddAndLookupPart(t *testing.T) {
	r := NewRegistry()
	root := model.NewRootActor("s")
	v := model.NewVariablePart(root, "v")

	if err := r.AddPart(v); err != nil {
		t.Fatalf("AddPart: %v", err)
	}
	if err := r.AddPart(v); err == nil {
		t.Fatalf("duplicate AddPart succeeded")
	}
	if got := r.PartByPath("/s/v"); got != v {
		t.Fatalf("PartByPath(/s/v) = %v", got)
	}
	if got := r.PartByPath("/s/missing"); got != nil {
		t.Fatalf("PartByPath(missing) = %v, want nil", got)
	}
}

func TestPartsSortedByPath(t *testing.T) {
	r := NewRegistry()
	root := model.NewRootActor("s")
	r.AddPart(model.NewVariablePart(root, "b"))
	r.AddPart(model.NewVariablePart(root, "a"))
	r.AddPart(model.NewVariablePart(root, "c"))

	parts := r.Parts()
	want := []string{"/s/a", "/s/b", "/s/c"}
	if len(parts) != len(want) {
		t.Fatalf("Parts() has %d entries, want %d", len(parts), len(want))
	}
	for i, p := range parts {
		if p.Path() != want[i] {
			t.Fatalf("Parts()[%d] = %q, want %q", i, p.Path(), want[i])
		}
	}
}

func TestRemoveStashesAndRestoreReinstates(t *testing.T) {
	r := NewRegistry()
	root := model.NewRootActor("s")
	p := newQueuedPart(root, "p")
	p.pending = []core.EventInfo{{ID: 1}, {ID: 2}}
	r.AddPart(p)

	if err := r.RemovePart("/s/p", true); err != nil {
		t.Fatalf("RemovePart: %v", err)
	}
	if r.PartByPath("/s/p") != nil {
		t.Fatalf("part still registered after removal")
	}

	if err := r.RestorePart(p); err != nil {
		t.Fatalf("RestorePart: %v", err)
	}
	if len(p.restored) != 2 {
		t.Fatalf("restored %d events, want 2", len(p.restored))
	}
	if r.PartByPath("/s/p") == nil {
		t.Fatalf("part not registered after restore")
	}
}

func TestNonRestorableRemovalDropsEvents(t *testing.T) {
	r := NewRegistry()
	root := model.NewRootActor("s")
	p := newQueuedPart(root, "p")
	p.pending = []core.EventInfo{{ID: 1}}
	r.AddPart(p)

	if err := r.RemovePart("/s/p", false); err != nil {
		t.Fatalf("RemovePart: %v", err)
	}
	if err := r.RestorePart(p); err != nil {
		t.Fatalf("RestorePart: %v", err)
	}
	if len(p.restored) != 0 {
		t.Fatalf("restored %d events after non-restorable removal, want 0", len(p.restored))
	}
}

func TestRemoveUnknownPart(t *testing.T) {
	r := NewRegistry()
	if err := r.RemovePart("/s/missing", false); err == nil {
		t.Fatalf("RemovePart(missing) succeeded")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	r := NewRegistry()
	root := model.NewRootActor("s")

	var events []Event
	unsubscribe := r.Subscribe(func(e Event) { events = append(events, e) })

	r.AddPart(model.NewVariablePart(root, "a"))
	r.RemovePart("/s/a", false)

	if len(events) != 2 {
		t.Fatalf("saw %d events, want 2", len(events))
	}
	if events[0].Type != EventPartAdded || events[0].Path != "/s/a" {
		t.Fatalf("events[0] = %+v", events[0])
	}
	if events[1].Type != EventPartRemoved {
		t.Fatalf("events[1] = %+v", events[1])
	}

	unsubscribe()
	r.AddPart(model.NewVariablePart(root, "b"))
	if len(events) != 2 {
		t.Fatalf("unsubscribed callback still notified")
	}
}

func TestUnsubscribeKeepsOtherSubscribers(t *testing.T) {
	r := NewRegistry()
	root := model.NewRootActor("s")

	var first, second, third int
	unsubFirst := r.Subscribe(func(Event) { first++ })
	r.Subscribe(func(Event) { second++ })
	unsubThird := r.Subscribe(func(Event) { third++ })

	unsubFirst()
	unsubThird()
	unsubThird() // repeated unsubscribe must not disturb the others

	r.AddPart(model.NewVariablePart(root, "a"))
	if first != 0 || third != 0 {
		t.Fatalf("unsubscribed callbacks notified: first=%d third=%d", first, third)
	}
	if second != 1 {
		t.Fatalf("remaining subscriber notified %d times, want 1", second)
	}
}
