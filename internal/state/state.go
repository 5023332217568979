// Package state owns the mutable session record: everything the player has
// discovered, unlocked, collected, and risked. The engine mutates one
// Progress value through its operations; stores persist the Snapshot form.
package state

import (
	"slices"
	"strings"
	"time"

	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

const (
	// TrustMin and TrustMax bound the trust level.
	TrustMin = 1
	TrustMax = 4

	// DefaultTrustLevel is where a fresh drifter starts.
	DefaultTrustLevel = 2
	// DefaultTraceMax is the trace ceiling before upgrades.
	DefaultTraceMax = 4
	// DefaultGC is the starting credit balance.
	DefaultGC = 120
	// DefaultHandle names a drifter who never picked one.
	DefaultHandle = "drifter"
)

// Set is a string-keyed membership set.
type Set[T ~string] map[T]bool

// NewSet builds a set from its members.
func NewSet[T ~string](vs ...T) Set[T] {
	s := make(Set[T], len(vs))
	for _, v := range vs {
		s[v] = true
	}
	return s
}

// Add inserts v and reports whether it was newly added.
func (s Set[T]) Add(v T) bool {
	if s[v] {
		return false
	}
	s[v] = true
	return true
}

// Has reports membership.
func (s Set[T]) Has(v T) bool { return s[v] }

// Remove deletes v if present.
func (s Set[T]) Remove(v T) { delete(s, v) }

// Len returns the member count.
func (s Set[T]) Len() int { return len(s) }

// Sorted returns the members in sorted order.
func (s Set[T]) Sorted() []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (s Set[T]) Clone() Set[T] {
	out := make(Set[T], len(s))
	for v := range s {
		out[v] = true
	}
	return out
}

// Trust is the slow risk ledger: a 1..4 access level and the heat that
// erodes it.
type Trust struct {
	Level      int
	Heat       int
	LastScanAt time.Time
}

// Breach is an attempt in progress against one location's lock-stack.
type Breach struct {
	Location  world.LocationID
	LockIndex int
}

// RegionState tracks which regions answer and which nodes wait behind
// still-sealed ones.
type RegionState struct {
	Current  world.RegionID
	Unlocked Set[world.RegionID]
	Visited  Set[world.RegionID]
	// Pending holds nodes reported by scans before their owning region
	// unlocked; they reveal in one batch when it does.
	Pending Set[world.LocationID]
}

// StoryState is the narrative tracker's position and breadcrumbs.
type StoryState struct {
	Current   world.StepID
	Completed Set[world.StepID]
	Beats     Set[string]
	// Flags records advancement reasons for diagnostics; gameplay gating
	// reads the global flag set, never these.
	Flags Set[string]
}

// RogueProfile is the narrow adaptation tally one encounter reads.
type RogueProfile struct {
	Noise    int
	Careful  int
	Brute    int
	Failures int
}

// BehaviorProfile is the general play-style tally.
type BehaviorProfile struct {
	Noise      int
	Careful    int
	Aggressive int
	Patient    int
}

// Siphon is the passive-income rig's state.
type Siphon struct {
	Installed  bool
	Enabled    bool
	TotalYield int
}

// Waits tracks the anti-spam bookkeeping for the wait action.
type Waits struct {
	LastAt time.Time
	Streak int
}

// Progress is the whole mutable session record.
type Progress struct {
	Handle string

	Discovered Set[world.LocationID]
	Unlocked   Set[world.LocationID]
	Inventory  Set[world.ItemID]
	Flags      Set[world.FlagID]
	Upgrades   Set[world.UpgradeID]
	GC         int

	Trust        Trust
	Trace        int
	TraceMax     int
	LockoutUntil time.Time

	Breach   *Breach
	Region   RegionState
	Story    StoryState
	Rogue    RogueProfile
	Behavior BehaviorProfile

	Location world.LocationID
	Siphon   Siphon
	Waits    Waits
}

// New seeds a fresh session from the world's start tables.
func New(w *world.World, handle string) *Progress {
	if handle == "" {
		handle = DefaultHandle
	}
	p := &Progress{
		Handle:     handle,
		Discovered: NewSet(w.Start.Discovered...),
		Unlocked:   NewSet(w.Start.Unlocked...),
		Inventory:  NewSet[world.ItemID](),
		Flags:      NewSet[world.FlagID](),
		Upgrades:   NewSet[world.UpgradeID](),
		GC:         DefaultGC,
		Trust:      Trust{Level: DefaultTrustLevel},
		TraceMax:   DefaultTraceMax,
		Region: RegionState{
			Current:  w.Start.Region,
			Unlocked: NewSet(w.Start.Region),
			Visited:  NewSet(w.Start.Region),
			Pending:  NewSet[world.LocationID](),
		},
		Story: StoryState{
			Completed: NewSet[world.StepID](),
			Beats:     NewSet[string](),
			Flags:     NewSet[string](),
		},
		Location: w.Home,
	}
	if first := w.FirstStep(); first != nil {
		p.Story.Current = first.ID
	}
	return p
}

// CorruptionLevel counts minted corruption tiers.
func (p *Progress) CorruptionLevel() int {
	n := 0
	for f := range p.Flags {
		if strings.HasPrefix(string(f), world.PrefixCorruption) {
			n++
		}
	}
	return n
}

// FragmentCount counts recovered chant fragments.
func (p *Progress) FragmentCount() int {
	n := 0
	for f := range p.Flags {
		if strings.HasPrefix(string(f), world.PrefixFragment) {
			n++
		}
	}
	return n
}

// LockedOut reports whether the countermeasure lockout is still running.
func (p *Progress) LockedOut(now time.Time) bool {
	return now.Before(p.LockoutUntil)
}
