package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/scenario-engine/internal/logging"
	"github.com/signalsfoundry/scenario-engine/internal/observability"
	"github.com/signalsfoundry/scenario-engine/model"
)

// LinkProxy gives a part's script attribute-style access to the parts at the
// end of its outgoing links. Resolution is cached at three levels: attribute
// name to link, link to resolved target (node chains make that walk
// expensive), and frame-convention names to frames. Link mutations
// invalidate selectively through the On* notification methods.
//
// A link being renamed may carry a temporary name; scripts referencing the
// temp name resolve through a temp-to-link mapping until the rename is
// applied or discarded.
type LinkProxy struct {
	part    model.Part
	log     logging.Logger
	metrics *observability.ScriptCollector

	linkCache   map[string]*model.Link  // attribute name -> link
	frameCache  map[string]*model.Frame // "_name_" -> target frame
	targetCache map[string]model.Target // link session ID -> resolved target
	tempToID    map[string]string       // temp link name -> link session ID
}

// NewLinkProxy builds a proxy for the given part's outgoing links. log and
// metrics may be nil.
func NewLinkProxy(part model.Part, log logging.Logger, metrics *observability.ScriptCollector) *LinkProxy {
	if log == nil {
		log = logging.Noop()
	}
	return &LinkProxy{
		part:        part,
		log:         log,
		metrics:     metrics,
		linkCache:   map[string]*model.Link{},
		frameCache:  map[string]*model.Frame{},
		targetCache: map[string]model.Target{},
		tempToID:    map[string]string{},
	}
}

func (p *LinkProxy) Part() model.Part { return p.part }

// Resolve reads an attribute: a plain name yields the resolved value of the
// named link's target, a frame-convention name ("_name_") yields the target
// part's frame.
func (p *LinkProxy) Resolve(attr string) (any, error) {
	if l, ok := p.linkCache[attr]; ok {
		p.metrics.LinkCacheHit()
		return p.resolveTarget(l)
	}
	if f, ok := p.frameCache[attr]; ok {
		p.metrics.LinkCacheHit()
		return f, nil
	}
	p.metrics.LinkCacheMiss()
	return p.resolveAndCache(attr)
}

func (p *LinkProxy) resolveAndCache(attr string) (any, error) {
	linkName := attr
	inner, isFrame := model.FrameLinkName(attr)
	if isFrame {
		linkName = inner
	}

	link, err := p.lookupLink(linkName)
	if err != nil {
		return nil, err
	}

	if isFrame {
		p.frameCache[attr] = link.Target()
		return link.Target(), nil
	}
	p.linkCache[attr] = link
	return p.resolveTarget(link)
}

// lookupLink finds an outgoing link by its current lookup key: the temp name
// while a rename is pending, the real name otherwise. Referencing the real
// name of a link with a pending rename is an error.
func (p *LinkProxy) lookupLink(linkName string) (*model.Link, error) {
	if id, ok := p.tempToID[linkName]; ok {
		link := p.part.Frame().OutgoingLinkByID(id)
		if link == nil {
			return nil, &model.LinkError{
				PartPath: p.part.Path(),
				LinkName: linkName,
				Msg: fmt.Sprintf("part %q does not have a link id mapped to %q",
					p.part.Name(), linkName),
			}
		}
		return link, nil
	}
	link := p.part.Frame().OutgoingLink(linkName)
	if link == nil {
		return nil, p.unknownLink(linkName)
	}
	if link.TempName() != "" {
		return nil, &model.LinkError{
			PartPath: p.part.Path(),
			LinkName: linkName,
			Msg: fmt.Sprintf("part %q has a link named %q, but has an unapplied name %q",
				p.part.Name(), linkName, link.TempName()),
		}
	}
	return link, nil
}

// resolveTarget resolves a link to its target value, caching the resolved
// target by link session ID.
func (p *LinkProxy) resolveTarget(link *model.Link) (any, error) {
	target, ok := p.targetCache[link.SessionID()]
	if !ok {
		target = link.Target().Part().AsLinkTargetPart()
		if target == nil {
			p.log.Debug(context.Background(), "link has no resolvable target",
				logging.String("part", p.part.Path()),
				logging.String("link", link.Name()))
			return nil, nil
		}
		p.targetCache[link.SessionID()] = target
	}
	return target.AsLinkTargetValue(), nil
}

// Assign writes through an attribute: the named link's target part receives
// the value. Frame-convention names cannot be assigned.
func (p *LinkProxy) Assign(attr string, value any) error {
	if _, isFrame := model.FrameLinkName(attr); isFrame {
		return &model.LinkError{
			PartPath: p.part.Path(),
			LinkName: attr,
			Msg: fmt.Sprintf("part %q cannot assign to frame reference %q",
				p.part.Name(), attr),
		}
	}
	link, ok := p.linkCache[attr]
	if !ok {
		var err error
		link, err = p.lookupLink(attr)
		if err != nil {
			return err
		}
		p.linkCache[attr] = link
	}
	return link.Target().Part().AssignFromObject(value)
}

// Has reports whether the attribute would resolve, without caching.
func (p *LinkProxy) Has(attr string) bool {
	if _, ok := p.linkCache[attr]; ok {
		return true
	}
	if _, ok := p.frameCache[attr]; ok {
		return true
	}
	linkName := attr
	if inner, isFrame := model.FrameLinkName(attr); isFrame {
		linkName = inner
	}
	if _, ok := p.tempToID[linkName]; ok {
		return true
	}
	return p.part.Frame().OutgoingLink(linkName) != nil
}

// Names lists every attribute reachable through the proxy: for each
// outgoing link its effective name (temp name while a rename is pending)
// and the frame-convention form.
func (p *LinkProxy) Names() []string {
	links := p.part.Frame().OutgoingLinks()
	names := make([]string, 0, 2*len(links))
	for _, l := range links {
		name := l.Name()
		if l.TempName() != "" {
			name = l.TempName()
		}
		names = append(names, name, "_"+name+"_")
	}
	return names
}

// InvalidateLinkCache drops the cache entries keyed by a link name: the link
// entry, its resolved target, and the frame-convention entry.
func (p *LinkProxy) InvalidateLinkCache(linkName string) {
	if l, ok := p.linkCache[linkName]; ok {
		p.log.Debug(context.Background(), "dropping cached link",
			logging.String("part", p.part.Path()), logging.String("link", linkName))
		delete(p.linkCache, linkName)
		p.InvalidateTargetCache(l)
	}
	delete(p.frameCache, "_"+linkName+"_")
}

// InvalidateTargetCache drops a link's resolved target.
func (p *LinkProxy) InvalidateTargetCache(link *model.Link) {
	delete(p.targetCache, link.SessionID())
}

// UpdateTempLinkName records that a link is being renamed to newTempName.
// Passing the link's real name back clears the pending rename.
func (p *LinkProxy) UpdateTempLinkName(newTempName string, link *model.Link) {
	p.InvalidateLinkCache(link.Name())
	p.InvalidateLinkCache(newTempName)
	if link.TempName() == "" {
		if newTempName != link.Name() {
			link.SetTempName(newTempName)
			p.tempToID[newTempName] = link.SessionID()
		}
		return
	}
	p.InvalidateLinkCache(link.TempName())
	delete(p.tempToID, link.TempName())
	if newTempName == link.Name() {
		link.SetTempName("")
	} else {
		link.SetTempName(newTempName)
		p.tempToID[newTempName] = link.SessionID()
	}
}

// ClearTempLinkNames discards every pending rename.
func (p *LinkProxy) ClearTempLinkNames() {
	for _, l := range p.part.Frame().OutgoingLinks() {
		p.InvalidateLinkCache(l.Name())
		if l.TempName() != "" {
			p.InvalidateLinkCache(l.TempName())
			l.SetTempName("")
		}
	}
	p.tempToID = map[string]string{}
}

// Link-change notifications, forwarded from the owning part.

func (p *LinkProxy) OnOutgoingLinkAdded(link *model.Link) {
	// a new link cannot be cached yet, but a stale negative result for the
	// frame name may be: nothing cached, nothing to drop
}

func (p *LinkProxy) OnOutgoingLinkRemoved(link *model.Link) {
	p.InvalidateLinkCache(link.Name())
}

func (p *LinkProxy) OnOutgoingLinkRenamed(oldName, newName string) {
	p.InvalidateLinkCache(oldName)
}

func (p *LinkProxy) OnLinkTargetChanged(link *model.Link) {
	p.InvalidateTargetCache(link)
}

func (p *LinkProxy) unknownLink(linkName string) error {
	return &model.LinkError{
		PartPath: p.part.Path(),
		LinkName: linkName,
		Msg: fmt.Sprintf("part %q does not have a link named %q",
			p.part.Name(), linkName),
	}
}
