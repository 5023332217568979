// Package engine owns the DriftShell progression state machine: breach
// attempts, the trust/heat/trace risk model, behavioral profiling,
// region discovery, and the narrative step tracker. All mutation goes
// through a single Engine guarding a single Progress value; the
// presentation layer talks to it through plain method calls and receives
// narrative text through a Notifier.
//
// Expected gameplay outcomes (denials, wrong answers, lockouts) are
// returned as *apperrors.Error values, never panics. The engine is safe
// for concurrent use, though in practice the only concurrent callers are
// its own scheduled timers.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/ErebusAres/DriftShell-sub000/internal/answer"
	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/observe"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// Engine is the single owner of a session's Progress. The zero value is
// not usable; construct with New.
type Engine struct {
	mu       sync.Mutex
	world    *world.World
	progress *state.Progress

	clock    func() time.Time
	sched    Scheduler
	rng      *rand.Rand
	log      *slog.Logger
	notifier Notifier
	metrics  *observe.Metrics
	tun      Tunables

	pressureCancel CancelFunc
	siphonCancel   CancelFunc
	downloads      map[string]CancelFunc
}

// New builds an Engine around the given world and progress. A nil
// progress starts a fresh session with the default handle. If the
// progress arrives mid-session (siphon running, breach open against a
// boss host), the matching timers are re-armed.
func New(w *world.World, p *state.Progress, opts Options) *Engine {
	opts = opts.withDefaults()
	if p == nil {
		p = state.New(w, state.DefaultHandle)
	}
	e := &Engine{
		world:     w,
		progress:  p,
		clock:     opts.Clock,
		sched:     opts.Sched,
		rng:       opts.Rand,
		log:       opts.Logger,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		tun:       *opts.Tunables,
		downloads: make(map[string]CancelFunc),
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Siphon.Installed && p.Siphon.Enabled {
		e.armSiphon()
	}
	if p.Breach != nil {
		if loc, ok := w.Location(p.Breach.Location); ok && loc.Boss {
			e.armPressure(loc.ID)
		}
	}
	return e
}

// Close cancels all scheduled work. The engine must not be used after
// Close.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPressure()
	e.cancelSiphon()
	e.cancelDownloads()
}

// Handle returns the player's network handle.
func (e *Engine) Handle() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.Handle
}

// ComputeAnswer derives the player's answer for a payload text. This is
// the same computation the in-world hashrat script performs; the handle
// binding makes answers per-player, so they cannot be copy-pasted
// between sessions.
func (e *Engine) ComputeAnswer(payload string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return answer.Expected(payload, e.progress.Handle)
}

// Status is a read-only snapshot of the session for rendering.
type Status struct {
	Handle        string
	Location      world.LocationID
	LocationTitle string
	Region        world.RegionID
	RegionName    string

	TrustLevel    int
	Heat          int
	HeatThreshold int
	Trace         int
	TraceMax      int
	GC            int

	Step    world.StepID
	StepCue string

	Breaching      bool
	BreachLocation world.LocationID
	LockIndex      int
	LockTotal      int

	LockedOutFor time.Duration
	SiphonOn     bool
}

// Status reports the current session state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	s := Status{
		Handle:        p.Handle,
		Location:      p.Location,
		Region:        p.Region.Current,
		TrustLevel:    p.Trust.Level,
		Heat:          p.Trust.Heat,
		HeatThreshold: e.tun.HeatThreshold,
		Trace:         p.Trace,
		TraceMax:      p.TraceMax,
		GC:            p.GC,
		Step:          p.Story.Current,
		SiphonOn:      p.Siphon.Installed && p.Siphon.Enabled,
	}
	if loc, ok := e.world.Location(p.Location); ok {
		s.LocationTitle = loc.Title
	}
	if r, ok := e.world.Region(p.Region.Current); ok {
		s.RegionName = r.Name
	}
	if step, ok := e.world.Step(p.Story.Current); ok {
		s.StepCue = step.Cue
	}
	if p.Breach != nil {
		s.Breaching = true
		s.BreachLocation = p.Breach.Location
		s.LockIndex = p.Breach.LockIndex
		if loc, ok := e.world.Location(p.Breach.Location); ok {
			s.LockTotal = len(loc.Locks)
		}
	}
	if until := p.LockoutUntil; !until.IsZero() {
		if left := until.Sub(e.clock()); left > 0 {
			s.LockedOutFor = left
		}
	}
	return s
}

// LinkState describes how a neighboring host renders on a readout.
type LinkState string

const (
	// LinkOpen means the host is unlocked and can be entered.
	LinkOpen LinkState = "open"

	// LinkLocked means the host is discovered but still locked.
	LinkLocked LinkState = "locked"

	// LinkUnmapped means the host has not been discovered yet.
	LinkUnmapped LinkState = "unmapped"
)

// LinkView is one neighboring host on a location readout.
type LinkView struct {
	ID    world.LocationID
	Title string
	State LinkState
}

// LocationView is the renderable form of the player's current host.
type LocationView struct {
	ID     world.LocationID
	Title  string
	Desc   []string
	Links  []LinkView
	Files  []string
	Anchor bool
}

// CurrentLocation describes the host the player is connected to.
func (e *Engine) CurrentLocation() LocationView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locationView(e.mustLoc(e.progress.Location))
}

func (e *Engine) locationView(loc *world.Location) LocationView {
	v := LocationView{
		ID:     loc.ID,
		Title:  loc.Title,
		Desc:   loc.Desc,
		Anchor: loc.Anchor,
	}
	for _, link := range loc.Links {
		lv := LinkView{ID: link, State: LinkUnmapped}
		if e.progress.Discovered.Has(link) {
			lv.State = LinkLocked
			if e.progress.Unlocked.Has(link) {
				lv.State = LinkOpen
			}
			if target, ok := e.world.Location(link); ok {
				lv.Title = target.Title
			}
		}
		v.Links = append(v.Links, lv)
	}
	for name := range loc.Files {
		v.Files = append(v.Files, name)
	}
	slices.Sort(v.Files)
	return v
}

// mustLoc returns the location for id. Content validation guarantees
// every id stored in Progress resolves; a miss is a programming error,
// so fall back to home rather than panic mid-session.
func (e *Engine) mustLoc(id world.LocationID) *world.Location {
	if loc, ok := e.world.Location(id); ok {
		return loc
	}
	e.log.Error("dangling location id, falling back to home", "id", id)
	return e.world.Locations[e.world.Home]
}

// Enter moves the player to an unlocked host. Entering the current host
// re-describes it. Anchor hosts calm the player: heat cools and the
// profiler records a careful sample.
func (e *Engine) Enter(id world.LocationID) (LocationView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	loc, ok := e.world.Location(id)
	if !ok || !p.Discovered.Has(id) {
		return LocationView{}, apperrors.New(apperrors.CodeTravelUnknown,
			fmt.Sprintf("no route to %q", id))
	}
	if denial := e.accessDenial(id); denial != nil {
		return LocationView{}, denial
	}
	if !p.Unlocked.Has(id) {
		return LocationView{}, apperrors.New(apperrors.CodeTravelNotUnlocked,
			fmt.Sprintf("%s refuses the connection", id))
	}
	if p.Location == id {
		return e.locationView(loc), nil
	}

	p.Location = id
	if r, ok := e.world.RegionFor(id); ok {
		p.Region.Current = r.ID
		if p.Region.Visited.Add(r.ID) {
			for _, line := range r.Entry {
				e.notify(NoticeStory, "net", "", line)
			}
		}
	}
	if loc.Anchor {
		e.coolHeat(1, "anchor")
		e.recordBehavior(BehaviorCareful)
	}
	e.log.Debug("entered host", "location", id)
	return e.locationView(loc), nil
}

// ScanResult reports what a scan of the current host turned up.
type ScanResult struct {
	// Revealed lists hosts newly added to the discovered set.
	Revealed []world.LocationID

	// Pending counts hosts sensed behind a sealed route; they surface
	// when their region opens.
	Pending int

	// Rapid is set when the scan tripped the cooldown window and drew a
	// failure consequence instead of mapping anything.
	Rapid bool

	// Disconnected is set when that consequence overflowed the trace
	// meter.
	Disconnected bool
}

// Scan probes the current host's links. Scanning is noisy: every scan
// feeds the profiler, and scanning again inside the cooldown window
// draws the shared failure consequence instead of mapping anything.
func (e *Engine) Scan() ScanResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	now := e.clock()
	e.recordBehavior(BehaviorNoise)
	e.recordRogueBehavior(RogueNoise)

	rapid := !p.Trust.LastScanAt.IsZero() && now.Sub(p.Trust.LastScanAt) < e.tun.ScanCooldown
	p.Trust.LastScanAt = now

	if rapid {
		cons := e.failureConsequence(e.tun.TraceBase, "rapid scanning")
		e.say(NoticeWarning, "scan burst flagged by the grid. trace ticks upward.")
		return ScanResult{Rapid: true, Disconnected: cons.Disconnected}
	}

	loc := e.mustLoc(p.Location)
	newly, pending := e.discoverLocked(loc.Links)
	e.syncRegionUnlocks(false)
	return ScanResult{Revealed: newly, Pending: pending}
}

// WaitResult reports the outcome of a wait action.
type WaitResult struct {
	// Effective is true when the wait actually settled the meters.
	Effective bool

	// Caught is set when spamming wait drew a failure consequence.
	Caught bool

	// Disconnected is set when that consequence overflowed the trace
	// meter.
	Disconnected bool

	Trace int
	Heat  int
}

// Wait lets the net settle. An effective wait (spaced at least the wait
// interval from the previous one) decays trace by one and cools heat.
// Spamming wait gives no relief and, once a streak forms, risks a
// passive sweep catching the movement.
func (e *Engine) Wait() WaitResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	now := e.clock()

	if p.Waits.LastAt.IsZero() || now.Sub(p.Waits.LastAt) >= e.tun.WaitInterval {
		p.Waits.LastAt = now
		p.Waits.Streak = 0
		p.Trace = max(0, p.Trace-1)
		e.coolHeat(1, "wait")
		e.recordBehavior(BehaviorPatient)
		e.say(NoticeSystem, "you go quiet. the grid forgets a little.")
		return WaitResult{Effective: true, Trace: p.Trace, Heat: p.Trust.Heat}
	}

	p.Waits.Streak++
	if p.Waits.Streak >= 2 && e.rng.Intn(e.tun.WaitSpamOdds) == 0 {
		cons := e.failureConsequence(e.tun.TraceBase, "passive scan catches movement")
		e.say(NoticeWarning, "a passive sweep catches you fidgeting.")
		return WaitResult{Caught: true, Disconnected: cons.Disconnected, Trace: p.Trace, Heat: p.Trust.Heat}
	}
	e.say(NoticeSystem, "idling changes nothing. the net is still listening.")
	return WaitResult{Trace: p.Trace, Heat: p.Trust.Heat}
}

// Talk addresses whoever keeps the current host. Only anchor hosts have
// a keeper, the warden, who vouches for the player once, venting heat.
func (e *Engine) Talk() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc := e.mustLoc(e.progress.Location)
	if !loc.Anchor {
		return "", apperrors.New(apperrors.CodeTravelUnknown, "nobody keeps this host")
	}
	var line string
	if e.grantFlag(world.FlagWardenGrace) {
		e.coolHeat(2, "warden vouches")
		line = `the warden studies your handle. "i'll tell the grid you're weather, not signal. once."`
	} else {
		line = "the warden tends the watchfire and says nothing more."
	}
	e.notify(NoticeStory, "net", "warden", line)
	return line, nil
}

// Snapshot captures the full session state for persistence.
func (e *Engine) Snapshot() *state.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress.Snapshot()
}

// Restore replaces the session state wholesale from a snapshot, applying
// defensive defaults for anything missing or out of range. Saves from
// before the region system force-unlock any region the player had
// already touched, so old progress is not retroactively hidden. Timers
// are re-armed to match the restored state.
func (e *Engine) Restore(s *state.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancelPressure()
	e.cancelSiphon()
	e.cancelDownloads()

	p := state.FromSnapshot(s, e.world)
	e.progress = p

	if p.Region.Unlocked.Len() == 0 {
		for _, r := range e.world.Regions {
			for _, m := range r.Members {
				if p.Unlocked.Has(m) || p.Discovered.Has(m) {
					p.Region.Unlocked.Add(r.ID)
					break
				}
			}
		}
	}
	e.syncRegionUnlocks(true)

	if p.Siphon.Installed && p.Siphon.Enabled {
		e.armSiphon()
	}
	if p.Breach != nil {
		if loc, ok := e.world.Location(p.Breach.Location); ok && loc.Boss {
			e.armPressure(loc.ID)
		}
	}
	e.log.Info("session restored", "location", p.Location, "step", p.Story.Current)
}

func (e *Engine) cancelDownloads() {
	for name, cancel := range e.downloads {
		cancel()
		delete(e.downloads, name)
	}
}

func (e *Engine) ctx() context.Context { return context.Background() }
