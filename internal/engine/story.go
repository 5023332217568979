package engine

import (
	"slices"
	"strings"

	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// storyEventKind enumerates the signals the narrative tracker listens
// for. Everything that can advance the story funnels through
// classifyStoryEvent with one of these.
type storyEventKind int

const (
	eventBreach storyEventKind = iota
	eventChant
	eventCorruption
	eventFragments
	eventCoreReady
)

// grantFlag adds a flag to the progress set, reporting whether it was
// new. Every flag grant in the engine goes through here so the story
// tracker and region resolver see each one exactly once.
func (e *Engine) grantFlag(f world.FlagID) bool {
	if !e.progress.Flags.Add(f) {
		return false
	}
	if !world.KnownFlag(f) {
		e.log.Warn("unrecognized flag granted", "flag", f)
	}
	switch {
	case f == world.FlagChantComplete:
		e.classifyStoryEvent(eventChant, "")
	case f == world.FlagCoreReady:
		e.classifyStoryEvent(eventCoreReady, "")
	case strings.HasPrefix(string(f), world.PrefixFragment):
		e.classifyStoryEvent(eventFragments, "")
	case strings.HasPrefix(string(f), world.PrefixCorruption):
		e.classifyStoryEvent(eventCorruption, "")
	}
	e.syncRegionUnlocks(false)
	return true
}

// grantItem adds an item to the inventory, reporting whether it was new.
func (e *Engine) grantItem(id world.ItemID) bool {
	return e.progress.Inventory.Add(id)
}

// onBreachSuccess feeds a successful unlock into the tracker.
func (e *Engine) onBreachSuccess(loc world.LocationID) {
	e.classifyStoryEvent(eventBreach, loc)
}

// classifyStoryEvent is the single decision point for story advancement.
// An event only advances the tracker when the *current* step cares about
// it: a gating host fell, the chant completed during the chant step, a
// threshold crossed during the step watching it, or the core-ready
// signal landed on the final step.
func (e *Engine) classifyStoryEvent(kind storyEventKind, loc world.LocationID) {
	p := e.progress
	step, ok := e.world.Step(p.Story.Current)
	if !ok {
		return
	}
	switch kind {
	case eventBreach:
		if slices.Contains(step.Gating, loc) {
			e.advanceStoryLocked("breach:" + string(loc))
		}
	case eventChant:
		if step.Concern == world.ConcernChant {
			e.advanceStoryLocked("chant")
		}
	case eventCorruption:
		if step.Concern == world.ConcernCorruption && p.CorruptionLevel() >= e.tun.CorruptionThreshold {
			e.advanceStoryLocked("corruption")
		}
	case eventFragments:
		if step.Concern == world.ConcernFragments && p.FragmentCount() >= e.tun.FragmentsNeeded {
			e.advanceStoryLocked("fragments")
		}
	case eventCoreReady:
		if step.Concern == world.ConcernCore && e.world.LastStep() != nil && e.world.LastStep().ID == step.ID {
			e.advanceStoryLocked("core-ready")
		}
	}
}

// AdvanceStory forces the tracker to the next step. Gameplay normally
// advances through classified events; this is the raw operation behind
// them.
func (e *Engine) AdvanceStory(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.advanceStoryLocked(reason)
}

// advanceStoryLocked completes the current step and moves to the next,
// staying on the last step at the end of the line. The new step's cue
// fires once per step per save. If the new step's condition is already
// standing (fragments gathered before their step became current, say),
// the tracker chains forward immediately instead of waiting for an event
// that already happened.
func (e *Engine) advanceStoryLocked(reason string) {
	p := e.progress
	cur := p.Story.Current

	p.Story.Completed.Add(cur)
	p.Story.Flags.Add("advance:" + reason)
	e.metrics.RecordStoryAdvance(e.ctx(), reason)

	next := e.world.NextStep(cur)
	if next == nil {
		return
	}
	p.Story.Current = next.ID
	if p.Story.Beats.Add("cue:"+string(next.ID)) && next.Cue != "" {
		e.notify(NoticeStory, "net", "", next.Cue)
	}
	e.log.Info("story advanced", "from", cur, "to", next.ID, "reason", reason)

	e.syncRegionUnlocks(false)

	if next.ID != cur {
		switch next.Concern {
		case world.ConcernFragments:
			if p.FragmentCount() >= e.tun.FragmentsNeeded {
				e.advanceStoryLocked("fragments")
			}
		case world.ConcernCorruption:
			if p.CorruptionLevel() >= e.tun.CorruptionThreshold {
				e.advanceStoryLocked("corruption")
			}
		case world.ConcernChant:
			if p.Flags.Has(world.FlagChantComplete) {
				e.advanceStoryLocked("chant")
			}
		}
	}
}

// CurrentStoryStep returns the step the tracker is on.
func (e *Engine) CurrentStoryStep() *world.StoryStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	step, _ := e.world.Step(e.progress.Story.Current)
	return step
}

// storyReached reports whether the tracker has reached (or passed) the
// given step. Region predicates gate on this.
func (e *Engine) storyReached(id world.StepID) bool {
	p := e.progress
	if p.Story.Completed.Has(id) {
		return true
	}
	target := e.world.StepIndex(id)
	if target < 0 {
		return false
	}
	return e.world.StepIndex(p.Story.Current) >= target
}
