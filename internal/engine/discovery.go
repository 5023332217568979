package engine

import (
	"fmt"
	"strings"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// Discover adds hosts to the discovered set and returns the ones that
// were actually new. Hosts whose owning region is still sealed are
// parked as pending instead; they surface in one batch the moment the
// region opens.
func (e *Engine) Discover(ids []world.LocationID) []world.LocationID {
	e.mu.Lock()
	defer e.mu.Unlock()
	newly, _ := e.discoverLocked(ids)
	e.syncRegionUnlocks(false)
	return newly
}

func (e *Engine) discoverLocked(ids []world.LocationID) (newly []world.LocationID, pending int) {
	p := e.progress
	for _, id := range ids {
		loc, ok := e.world.Location(id)
		if !ok {
			e.log.Error("discover: unknown location", "id", id)
			continue
		}
		if p.Discovered.Has(id) {
			continue
		}
		r, owned := e.world.RegionFor(id)
		if owned && !p.Region.Unlocked.Has(r.ID) {
			if p.Region.Pending.Add(id) {
				pending++
			}
			continue
		}
		p.Discovered.Add(id)
		newly = append(newly, id)
		e.say(NoticeReward, fmt.Sprintf("host mapped :: %s", loc.Title))
	}
	if pending > 0 {
		e.say(NoticeSystem, fmt.Sprintf("%d signal(s) answer from behind a sealed route.", pending))
	}
	return newly, pending
}

// CanAccessNode reports whether a host's owning region is open. When it
// is not, the hint names every unmet piece of the region's unlock
// predicate.
func (e *Engine) CanAccessNode(id world.LocationID) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if denial := e.accessDenial(id); denial != nil {
		return false, denial.Message
	}
	return true, ""
}

// accessDenial returns the structured region denial for a host, or nil
// when its region is open (or it has no region).
func (e *Engine) accessDenial(id world.LocationID) *apperrors.Error {
	r, owned := e.world.RegionFor(id)
	if !owned || e.progress.Region.Unlocked.Has(r.ID) {
		return nil
	}
	parts := e.predicateGaps(r)
	msg := fmt.Sprintf("%s is sealed", r.Name)
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, "; ")
	}
	return apperrors.WithMetadata(apperrors.CodeAccessRegionLocked, msg,
		map[string]string{"region": string(r.ID)})
}

// predicateGaps lists the unmet pieces of a region's unlock predicate in
// player-readable form. Empty means the predicate holds.
func (e *Engine) predicateGaps(r *world.Region) []string {
	p := e.progress
	var parts []string

	for _, req := range r.Unlock.Requires {
		if !p.Region.Unlocked.Has(req) {
			name := string(req)
			if reg, ok := e.world.Region(req); ok {
				name = reg.Name
			}
			parts = append(parts, fmt.Sprintf("the %s must open first", name))
		}
	}
	var missing []string
	for _, f := range r.Unlock.Flags {
		if !p.Flags.Has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		parts = append(parts, "marks you don't carry: "+strings.Join(missing, ", "))
	}
	if len(r.Unlock.FlagsAny) > 0 {
		any := false
		for _, f := range r.Unlock.FlagsAny {
			if p.Flags.Has(f) {
				any = true
				break
			}
		}
		if !any {
			var names []string
			for _, f := range r.Unlock.FlagsAny {
				names = append(names, string(f))
			}
			parts = append(parts, "no mark of: "+strings.Join(names, " / "))
		}
	}
	if len(r.Unlock.Nodes) > 0 {
		any := false
		for _, n := range r.Unlock.Nodes {
			if p.Unlocked.Has(n) || p.Discovered.Has(n) {
				any = true
				break
			}
		}
		if !any {
			var names []string
			for _, n := range r.Unlock.Nodes {
				names = append(names, string(n))
			}
			parts = append(parts, "no foothold at: "+strings.Join(names, " / "))
		}
	}
	if r.Unlock.Story != "" && !e.storyReached(r.Unlock.Story) {
		parts = append(parts, "the drift hasn't pulled you that deep yet")
	}
	return parts
}

// AtlasRegion is one region's slice of the network map.
type AtlasRegion struct {
	ID   world.RegionID
	Name string
	Open bool

	// Hosts lists the region's discovered members. Sealed regions with
	// pending signals appear with no hosts.
	Hosts []LinkView
}

// Atlas maps what the player has touched so far: open regions with
// their discovered hosts, plus sealed regions that scans have already
// sensed something behind.
func (e *Engine) Atlas() []AtlasRegion {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	var out []AtlasRegion
	for _, r := range e.world.Regions {
		ar := AtlasRegion{ID: r.ID, Name: r.Name, Open: p.Region.Unlocked.Has(r.ID)}
		pending := false
		for _, m := range r.Members {
			if p.Region.Pending.Has(m) {
				pending = true
			}
			if !p.Discovered.Has(m) {
				continue
			}
			lv := LinkView{ID: m, State: LinkLocked}
			if p.Unlocked.Has(m) {
				lv.State = LinkOpen
			}
			if loc, ok := e.world.Location(m); ok {
				lv.Title = loc.Title
			}
			ar.Hosts = append(ar.Hosts, lv)
		}
		if !ar.Open && len(ar.Hosts) == 0 && !pending {
			continue
		}
		out = append(out, ar)
	}
	return out
}

// syncRegionUnlocks opens every region whose unlock predicate now holds,
// revealing its pending hosts in one batch. One region opening can
// satisfy another's prerequisites, so the pass loops to a fixpoint.
// Silent mode (used during restore) suppresses the route notices.
func (e *Engine) syncRegionUnlocks(silent bool) {
	p := e.progress
	for changed := true; changed; {
		changed = false
		for _, r := range e.world.Regions {
			if p.Region.Unlocked.Has(r.ID) {
				continue
			}
			if len(e.predicateGaps(r)) > 0 {
				continue
			}
			p.Region.Unlocked.Add(r.ID)
			changed = true

			revealed := 0
			for _, m := range r.Members {
				if p.Region.Pending.Has(m) {
					p.Region.Pending.Remove(m)
					p.Discovered.Add(m)
					revealed++
				}
			}
			if !silent {
				if revealed > 0 {
					e.say(NoticeStory, fmt.Sprintf("ROUTE OPENS :: %s. %d new host(s) answer.", r.Name, revealed))
				} else {
					e.say(NoticeStory, fmt.Sprintf("ROUTE OPENS :: %s.", r.Name))
				}
			}
			e.log.Info("region unlocked", "region", r.ID, "revealed", revealed)
		}
	}
}
