package core

import (
	"context"

	"github.com/signalsfoundry/scenario-engine/internal/logging"
	"github.com/signalsfoundry/scenario-engine/model"
)

// MultiplierPart fans its activation out over every outgoing link, in link
// name order. A signal queues one ASAP event per linked executable part; a
// direct call invokes each in turn and collects the results. Linking a
// multiplier to anything that cannot execute is a linking error, surfaced
// at execution time.
type MultiplierPart struct {
	*model.BasePart
	*Executable

	log logging.Logger

	linkingChanged bool
	sortedLinks    []*model.Link
}

func NewMultiplierPart(parent model.Part, name string, scen *Scenario) *MultiplierPart {
	p := &MultiplierPart{log: scen.Log(), linkingChanged: true}
	p.BasePart = model.NewBasePart(p, parent, "multiplier", name)
	p.Executable = NewExecutable(ExecutableConfig{
		Self:      p,
		Owner:     p,
		Scheduler: scen.Scheduler(),
		Log:       scen.Log(),
		Metrics:   scen.Metrics(),
		Anim:      scen.Anim(),
	})
	p.Executable.Bind(p.execFanOut)
	return p
}

func (p *MultiplierPart) execFanOut(ctx context.Context, debugMode, asSignal bool, args ...any) (any, error) {
	if asSignal {
		return nil, p.fanOutSignal(ctx, args)
	}
	return p.fanOutCall(ctx, debugMode, args)
}

// fanOutSignal queues one ASAP event per linked part. Dead-end links are
// skipped with a warning so one broken chain does not starve the rest.
func (p *MultiplierPart) fanOutSignal(ctx context.Context, args []any) error {
	for _, link := range p.links() {
		target := p.linkEndpoint(link)
		if target == nil {
			p.log.Warn(ctx, "multiplier link leads nowhere, skipping",
				logging.String("part", p.Path()),
				logging.String("link", link.Name()))
			continue
		}
		et, ok := target.(EventTarget)
		if !ok {
			return &InvalidLinkingError{PartPath: p.Path(), TargetPath: targetPath(target, link)}
		}
		if err := p.AddEvent(et, args, nil, ASAPPriority); err != nil {
			return err
		}
	}
	return nil
}

// fanOutCall invokes each linked part directly, returning the results in
// link name order.
func (p *MultiplierPart) fanOutCall(ctx context.Context, debugMode bool, args []any) (any, error) {
	var results []any
	for _, link := range p.links() {
		target := p.linkEndpoint(link)
		if target == nil {
			p.log.Warn(ctx, "multiplier link leads nowhere, skipping",
				logging.String("part", p.Path()),
				logging.String("link", link.Name()))
			continue
		}
		r, ok := target.(Runnable)
		if !ok {
			return nil, &InvalidLinkingError{PartPath: p.Path(), TargetPath: targetPath(target, link)}
		}
		var (
			result any
			err    error
		)
		if debugMode {
			result, err = r.CallDebug(ctx, args...)
		} else {
			result, err = r.Call(ctx, args...)
		}
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// linkEndpoint resolves a link to the part that would execute, seeing
// through node chains. nil when the chain dead-ends.
func (p *MultiplierPart) linkEndpoint(link *model.Link) model.Target {
	frame := link.Target()
	if frame == nil {
		return nil
	}
	return frame.Part().AsLinkTargetPart()
}

func targetPath(target model.Target, link *model.Link) string {
	if tp, ok := target.(model.Part); ok {
		return tp.Path()
	}
	return link.Target().Part().Path()
}

// links returns the outgoing links in name order, refreshed only after a
// linking change.
func (p *MultiplierPart) links() []*model.Link {
	if p.linkingChanged || p.sortedLinks == nil {
		p.sortedLinks = p.Frame().OutgoingLinks()
		p.linkingChanged = false
	}
	return p.sortedLinks
}

func (p *MultiplierPart) OnOutgoingLinkAdded(l *model.Link) { p.linkingChanged = true }

func (p *MultiplierPart) OnOutgoingLinkRemoved(l *model.Link) { p.linkingChanged = true }

func (p *MultiplierPart) OnOutgoingLinkRenamed(oldName, newName string) { p.linkingChanged = true }

func (p *MultiplierPart) OnLinkTargetChanged(l *model.Link) { p.linkingChanged = true }
