package state

import (
	"time"

	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// Snapshot is the persisted form of Progress: sets flatten to sorted
// slices, everything else is primitives. Loading is defensive: any field
// absent from an old save gets its constructor default instead of failing.
type Snapshot struct {
	Handle string `yaml:"handle" json:"handle"`

	Discovered []string `yaml:"discovered" json:"discovered"`
	Unlocked   []string `yaml:"unlocked" json:"unlocked"`
	Inventory  []string `yaml:"inventory" json:"inventory"`
	Flags      []string `yaml:"flags" json:"flags"`
	Upgrades   []string `yaml:"upgrades" json:"upgrades"`
	GC         int      `yaml:"gc" json:"gc"`

	Trust        TrustSnapshot `yaml:"trust" json:"trust"`
	Trace        int           `yaml:"trace" json:"trace"`
	TraceMax     int           `yaml:"trace_max" json:"trace_max"`
	LockoutUntil time.Time     `yaml:"lockout_until,omitempty" json:"lockout_until,omitempty"`

	Breach   *BreachSnapshot  `yaml:"breach,omitempty" json:"breach,omitempty"`
	Region   RegionSnapshot   `yaml:"region" json:"region"`
	Story    StorySnapshot    `yaml:"story" json:"story"`
	Rogue    RogueProfile     `yaml:"rogue" json:"rogue"`
	Behavior BehaviorSnapshot `yaml:"behavior" json:"behavior"`

	Location string         `yaml:"location" json:"location"`
	Siphon   SiphonSnapshot `yaml:"siphon" json:"siphon"`
	Waits    WaitsSnapshot  `yaml:"waits" json:"waits"`

	SavedAt time.Time `yaml:"saved_at,omitempty" json:"saved_at,omitempty"`
}

// TrustSnapshot mirrors Trust.
type TrustSnapshot struct {
	Level      int       `yaml:"level" json:"level"`
	Heat       int       `yaml:"heat" json:"heat"`
	LastScanAt time.Time `yaml:"last_scan_at,omitempty" json:"last_scan_at,omitempty"`
}

// BreachSnapshot mirrors Breach.
type BreachSnapshot struct {
	Location  string `yaml:"location" json:"location"`
	LockIndex int    `yaml:"lock_index" json:"lock_index"`
}

// RegionSnapshot mirrors RegionState.
type RegionSnapshot struct {
	Current  string   `yaml:"current,omitempty" json:"current,omitempty"`
	Unlocked []string `yaml:"unlocked" json:"unlocked"`
	Visited  []string `yaml:"visited" json:"visited"`
	Pending  []string `yaml:"pending" json:"pending"`
}

// StorySnapshot mirrors StoryState.
type StorySnapshot struct {
	Current   string   `yaml:"current,omitempty" json:"current,omitempty"`
	Completed []string `yaml:"completed" json:"completed"`
	Beats     []string `yaml:"beats" json:"beats"`
	Flags     []string `yaml:"flags" json:"flags"`
}

// BehaviorSnapshot mirrors BehaviorProfile.
type BehaviorSnapshot struct {
	Noise      int `yaml:"noise" json:"noise"`
	Careful    int `yaml:"careful" json:"careful"`
	Aggressive int `yaml:"aggressive" json:"aggressive"`
	Patient    int `yaml:"patient" json:"patient"`
}

// SiphonSnapshot mirrors Siphon.
type SiphonSnapshot struct {
	Installed  bool `yaml:"installed" json:"installed"`
	Enabled    bool `yaml:"enabled" json:"enabled"`
	TotalYield int  `yaml:"total_yield" json:"total_yield"`
}

// WaitsSnapshot mirrors Waits.
type WaitsSnapshot struct {
	LastAt time.Time `yaml:"last_at,omitempty" json:"last_at,omitempty"`
	Streak int       `yaml:"streak" json:"streak"`
}

func sortedStrings[T ~string](s Set[T]) []string {
	out := make([]string, 0, len(s))
	for _, v := range s.Sorted() {
		out = append(out, string(v))
	}
	return out
}

func setOf[T ~string](vs []string) Set[T] {
	s := make(Set[T], len(vs))
	for _, v := range vs {
		s[T(v)] = true
	}
	return s
}

// Snapshot flattens the progress record for persistence.
func (p *Progress) Snapshot() *Snapshot {
	s := &Snapshot{
		Handle:     p.Handle,
		Discovered: sortedStrings(p.Discovered),
		Unlocked:   sortedStrings(p.Unlocked),
		Inventory:  sortedStrings(p.Inventory),
		Flags:      sortedStrings(p.Flags),
		Upgrades:   sortedStrings(p.Upgrades),
		GC:         p.GC,
		Trust: TrustSnapshot{
			Level:      p.Trust.Level,
			Heat:       p.Trust.Heat,
			LastScanAt: p.Trust.LastScanAt,
		},
		Trace:        p.Trace,
		TraceMax:     p.TraceMax,
		LockoutUntil: p.LockoutUntil,
		Region: RegionSnapshot{
			Current:  string(p.Region.Current),
			Unlocked: sortedStrings(p.Region.Unlocked),
			Visited:  sortedStrings(p.Region.Visited),
			Pending:  sortedStrings(p.Region.Pending),
		},
		Story: StorySnapshot{
			Current:   string(p.Story.Current),
			Completed: sortedStrings(p.Story.Completed),
			Beats:     sortedStrings(p.Story.Beats),
			Flags:     sortedStrings(p.Story.Flags),
		},
		Rogue: p.Rogue,
		Behavior: BehaviorSnapshot{
			Noise:      p.Behavior.Noise,
			Careful:    p.Behavior.Careful,
			Aggressive: p.Behavior.Aggressive,
			Patient:    p.Behavior.Patient,
		},
		Location: string(p.Location),
		Siphon: SiphonSnapshot{
			Installed:  p.Siphon.Installed,
			Enabled:    p.Siphon.Enabled,
			TotalYield: p.Siphon.TotalYield,
		},
		Waits: WaitsSnapshot{
			LastAt: p.Waits.LastAt,
			Streak: p.Waits.Streak,
		},
	}
	if p.Breach != nil {
		s.Breach = &BreachSnapshot{
			Location:  string(p.Breach.Location),
			LockIndex: p.Breach.LockIndex,
		}
	}
	return s
}

// FromSnapshot rebuilds Progress from a persisted snapshot, applying
// defensive defaults for anything missing, out of range, or no longer in
// the content tables. It never fails: a nil or empty snapshot yields a
// fresh session.
func FromSnapshot(s *Snapshot, w *world.World) *Progress {
	if s == nil {
		return New(w, "")
	}
	p := New(w, s.Handle)

	for _, id := range s.Discovered {
		lid := world.LocationID(id)
		if _, ok := w.Location(lid); ok {
			p.Discovered.Add(lid)
		}
	}
	for _, id := range s.Unlocked {
		lid := world.LocationID(id)
		if _, ok := w.Location(lid); ok {
			p.Unlocked.Add(lid)
		}
	}
	// Repair rather than reject a save that drifted: unlocked implies
	// discovered.
	for id := range p.Unlocked {
		p.Discovered.Add(id)
	}

	p.Inventory = setOf[world.ItemID](s.Inventory)
	p.Flags = setOf[world.FlagID](s.Flags)
	p.Upgrades = setOf[world.UpgradeID](s.Upgrades)
	p.GC = max(0, s.GC)

	p.Trust.Level = clamp(s.Trust.Level, TrustMin, TrustMax, DefaultTrustLevel)
	p.Trust.Heat = max(0, s.Trust.Heat)
	p.Trust.LastScanAt = s.Trust.LastScanAt

	p.TraceMax = s.TraceMax
	if p.TraceMax <= 0 {
		p.TraceMax = DefaultTraceMax
	}
	p.Trace = min(max(0, s.Trace), p.TraceMax)
	p.LockoutUntil = s.LockoutUntil

	if s.Breach != nil {
		lid := world.LocationID(s.Breach.Location)
		if loc, ok := w.Location(lid); ok && len(loc.Locks) > 0 {
			idx := min(max(0, s.Breach.LockIndex), len(loc.Locks)-1)
			p.Breach = &Breach{Location: lid, LockIndex: idx}
		}
	}

	if rid := world.RegionID(s.Region.Current); rid != "" {
		if _, ok := w.Region(rid); ok {
			p.Region.Current = rid
		}
	}
	for _, id := range s.Region.Unlocked {
		rid := world.RegionID(id)
		if _, ok := w.Region(rid); ok {
			p.Region.Unlocked.Add(rid)
		}
	}
	for _, id := range s.Region.Visited {
		rid := world.RegionID(id)
		if _, ok := w.Region(rid); ok {
			p.Region.Visited.Add(rid)
		}
	}
	for _, id := range s.Region.Pending {
		lid := world.LocationID(id)
		if _, ok := w.Location(lid); ok {
			p.Region.Pending.Add(lid)
		}
	}

	if sid := world.StepID(s.Story.Current); sid != "" && w.StepIndex(sid) >= 0 {
		p.Story.Current = sid
	}
	p.Story.Completed = NewSet[world.StepID]()
	for _, id := range s.Story.Completed {
		sid := world.StepID(id)
		if w.StepIndex(sid) >= 0 {
			p.Story.Completed.Add(sid)
		}
	}
	p.Story.Beats = setOf[string](s.Story.Beats)
	p.Story.Flags = setOf[string](s.Story.Flags)

	p.Rogue = s.Rogue
	p.Behavior = BehaviorProfile{
		Noise:      s.Behavior.Noise,
		Careful:    s.Behavior.Careful,
		Aggressive: s.Behavior.Aggressive,
		Patient:    s.Behavior.Patient,
	}

	if lid := world.LocationID(s.Location); lid != "" {
		if _, ok := w.Location(lid); ok {
			p.Location = lid
		}
	}

	p.Siphon = Siphon{
		Installed:  s.Siphon.Installed,
		Enabled:    s.Siphon.Enabled,
		TotalYield: max(0, s.Siphon.TotalYield),
	}
	p.Waits = Waits{LastAt: s.Waits.LastAt, Streak: max(0, s.Waits.Streak)}

	return p
}

func clamp(v, low, high, fallback int) int {
	if v == 0 {
		return fallback
	}
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
