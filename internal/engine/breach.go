package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ErebusAres/DriftShell-sub000/internal/answer"
	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// SubmitOutcome classifies the result of an answer submission.
type SubmitOutcome int

const (
	SubmitUnspecified SubmitOutcome = iota

	// SubmitAdvanced means the answer matched and more locks remain.
	SubmitAdvanced

	// SubmitUnlocked means the answer matched the final lock.
	SubmitUnlocked

	// SubmitFailed means the answer was wrong; the breach stays open at
	// the same lock.
	SubmitFailed

	// SubmitDisconnected means the wrong answer overflowed the trace
	// meter and the session was forcibly reset.
	SubmitDisconnected
)

func (o SubmitOutcome) String() string {
	switch o {
	case SubmitAdvanced:
		return "advanced"
	case SubmitUnlocked:
		return "unlocked"
	case SubmitFailed:
		return "failed"
	case SubmitDisconnected:
		return "disconnected"
	default:
		return "unspecified"
	}
}

// BreachView describes a freshly opened breach.
type BreachView struct {
	Location  world.LocationID
	LockIndex int
	LockTotal int

	// Prompt is the current lock's challenge. Empty when the host had
	// no locks and unlocked instantly.
	Prompt string

	// Unlocked is set for lockless hosts that opened on discovery
	// alone.
	Unlocked bool
}

// SubmitResult describes the outcome of one answer.
type SubmitResult struct {
	Outcome SubmitOutcome

	// Prompt is the next lock's challenge when Outcome is
	// SubmitAdvanced.
	Prompt string

	// Hint is the failed lock's nudge line, when the content provides
	// one.
	Hint string

	Trace    int
	TraceMax int
}

// StartBreach opens a challenge-response attempt against a discovered,
// locked host. Denials are returned as *apperrors.Error values and leave
// all state untouched. A lockless host unlocks immediately. Boss hosts
// additionally start a recurring countermeasure pulse that applies
// failure consequences while the breach stays open.
func (e *Engine) StartBreach(id world.LocationID) (BreachView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	now := e.clock()

	if p.LockedOut(now) {
		left := p.LockoutUntil.Sub(now).Round(time.Second)
		e.metrics.RecordBreachAttempt(e.ctx(), string(id), "denied")
		return BreachView{}, apperrors.WithMetadata(apperrors.CodeBreachLockoutActive,
			fmt.Sprintf("lockout active for another %s", left),
			map[string]string{"remaining": left.String()})
	}
	loc, ok := e.world.Location(id)
	if !ok {
		return BreachView{}, apperrors.New(apperrors.CodeBreachUnknownLocation,
			fmt.Sprintf("no host %q on any route", id))
	}
	if p.Breach != nil {
		return BreachView{}, apperrors.WithMetadata(apperrors.CodeBreachAlreadyBreaching,
			fmt.Sprintf("already breaching %s", p.Breach.Location),
			map[string]string{"location": string(p.Breach.Location)})
	}
	if p.Unlocked.Has(id) {
		return BreachView{}, apperrors.New(apperrors.CodeBreachAlreadyUnlocked,
			fmt.Sprintf("%s already answers to you", id))
	}
	if denial := e.accessDenial(id); denial != nil {
		e.metrics.RecordBreachAttempt(e.ctx(), string(id), "denied")
		return BreachView{}, apperrors.Wrap(apperrors.CodeBreachRegionLocked,
			fmt.Sprintf("the route to %s dissolves into static", id), denial)
	}
	if !p.Discovered.Has(id) {
		return BreachView{}, apperrors.New(apperrors.CodeBreachNotDiscovered,
			fmt.Sprintf("%s is not mapped yet", id))
	}
	if err := e.requirementsDenial(loc); err != nil {
		e.metrics.RecordBreachAttempt(e.ctx(), string(id), "denied")
		return BreachView{}, err
	}

	if len(loc.Locks) == 0 {
		e.metrics.RecordBreachAttempt(e.ctx(), string(id), "instant")
		e.finishUnlock(loc)
		return BreachView{Location: id, Unlocked: true}, nil
	}

	p.Breach = &state.Breach{Location: id, LockIndex: 0}
	e.adjustHeat(e.tun.BreachHeat, "breach start")
	if loc.Boss {
		e.bossIntro()
		e.armPressure(id)
	}
	e.metrics.RecordBreachAttempt(e.ctx(), string(id), "started")
	e.log.Info("breach opened", "location", id, "locks", len(loc.Locks))

	prompt := loc.Locks[0].Prompt
	e.say(NoticeSystem, prompt)
	return BreachView{Location: id, LockIndex: 0, LockTotal: len(loc.Locks), Prompt: prompt}, nil
}

// requirementsDenial checks a host's static requirements and, when
// unmet, names exactly what is missing.
func (e *Engine) requirementsDenial(loc *world.Location) error {
	p := e.progress
	var missingItems []string
	for _, it := range loc.Requires.Items {
		if !p.Inventory.Has(it) {
			missingItems = append(missingItems, string(it))
		}
	}
	var missingFlags []string
	for _, f := range loc.Requires.Flags {
		if !p.Flags.Has(f) {
			missingFlags = append(missingFlags, string(f))
		}
	}
	needTrust := 0
	if loc.Requires.Trust > 0 && !e.trustGate(loc.Requires.Trust) {
		needTrust = loc.Requires.Trust
	}
	if len(missingItems) == 0 && len(missingFlags) == 0 && needTrust == 0 {
		return nil
	}

	var parts []string
	if len(missingItems) > 0 {
		parts = append(parts, "missing gear: "+strings.Join(missingItems, ", "))
	}
	if len(missingFlags) > 0 {
		parts = append(parts, "missing marks: "+strings.Join(missingFlags, ", "))
	}
	if needTrust > 0 {
		parts = append(parts, fmt.Sprintf("needs trust %d (you hold %d)", needTrust, p.Trust.Level))
	}
	return apperrors.WithMetadata(apperrors.CodeBreachRequirements,
		strings.Join(parts, "; "),
		map[string]string{
			"items": strings.Join(missingItems, ","),
			"flags": strings.Join(missingFlags, ","),
			"trust": strconv.Itoa(needTrust),
		})
}

// bossIntro fires once per save: the warden-process reads the rogue
// profile and chooses how it greets the intruder.
func (e *Engine) bossIntro() {
	if !e.grantFlag(world.FlagWyrmProfiled) {
		return
	}
	r := e.progress.Rogue
	line := `the wyrm stirs. "quiet feet. you learned the drift before you came to rob it."`
	if r.Noise+r.Brute > r.Careful {
		line = `the wyrm uncoils. "I heard you three sectors out. loud little thief."`
	}
	e.notify(NoticeStory, "net", "wyrm", line)
}

// SubmitAnswer attempts the current lock. Matching is trimmed and
// case-insensitive. A wrong answer draws the shared failure consequence
// and leaves the breach open at the same lock for a retry, unless the
// trace meter overflows, which hard-resets the attempt.
func (e *Engine) SubmitAnswer(text string) (SubmitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	if p.Breach == nil {
		return SubmitResult{}, apperrors.New(apperrors.CodeBreachNoneActive, "no breach in progress")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return SubmitResult{}, apperrors.New(apperrors.CodeBreachEmptyAnswer, "empty answer")
	}

	loc := e.mustLoc(p.Breach.Location)
	if p.Breach.LockIndex >= len(loc.Locks) {
		// Snapshot clamping keeps this in range; a stale index means
		// the stack is exhausted, so treat the host as opened.
		e.finishUnlock(loc)
		return SubmitResult{Outcome: SubmitUnlocked, Trace: p.Trace, TraceMax: p.TraceMax}, nil
	}
	lock := loc.Locks[p.Breach.LockIndex]

	if strings.EqualFold(trimmed, e.expectedFor(lock)) {
		p.Breach.LockIndex++
		if p.Breach.LockIndex < len(loc.Locks) {
			prompt := loc.Locks[p.Breach.LockIndex].Prompt
			e.metrics.RecordBreachOutcome(e.ctx(), SubmitAdvanced.String())
			e.say(NoticeSystem, "layer peeled. "+prompt)
			return SubmitResult{Outcome: SubmitAdvanced, Prompt: prompt, Trace: p.Trace, TraceMax: p.TraceMax}, nil
		}
		e.metrics.RecordBreachOutcome(e.ctx(), SubmitUnlocked.String())
		e.finishUnlock(loc)
		return SubmitResult{Outcome: SubmitUnlocked, Trace: p.Trace, TraceMax: p.TraceMax}, nil
	}

	cons := e.failureConsequence(e.tun.TraceBase, "failed lock")
	res := SubmitResult{Outcome: SubmitFailed, Hint: lock.Hint, Trace: p.Trace, TraceMax: p.TraceMax}
	if cons.Disconnected {
		res.Outcome = SubmitDisconnected
		res.Hint = ""
	} else {
		e.say(NoticeWarning, fmt.Sprintf("the lock holds. trace %d/%d.", p.Trace, p.TraceMax))
	}
	e.metrics.RecordBreachOutcome(e.ctx(), res.Outcome.String())
	return res, nil
}

// expectedFor resolves a lock's accepted answer.
func (e *Engine) expectedFor(lock world.Lock) string {
	if lock.Kind == world.AnswerComputed {
		payload, ok := e.world.Payload(lock.Value)
		if !ok {
			// Content validation rejects dangling payload keys; keep a
			// deterministic fallback anyway.
			e.log.Error("dangling payload key", "key", lock.Value)
			payload = lock.Value
		}
		return answer.Expected(payload, e.progress.Handle)
	}
	return lock.Value
}

// CancelActiveBreach drops the current breach, if any. Reports whether
// a breach was actually open; calling with nothing active is a no-op.
func (e *Engine) CancelActiveBreach() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.progress.Breach == nil {
		return false
	}
	id := e.progress.Breach.Location
	e.progress.Breach = nil
	e.cancelPressure()
	e.say(NoticeSystem, "link dropped. the lock reseals behind you.")
	e.log.Debug("breach cancelled", "location", id)
	return true
}

// finishUnlock transitions a host to unlocked: clears the breach,
// cancels any countermeasure pulse, fires the host's entry effects, and
// lets the story tracker and region resolver react.
func (e *Engine) finishUnlock(loc *world.Location) {
	p := e.progress
	p.Unlocked.Add(loc.ID)
	p.Breach = nil
	e.cancelPressure()

	e.discoverLocked(loc.OnEnter.Discover)
	for _, f := range loc.OnEnter.Flags {
		e.grantFlag(f)
	}
	for _, line := range loc.OnEnter.Notice {
		e.notify(NoticeStory, "net", "", line)
	}

	e.onBreachSuccess(loc.ID)
	e.syncRegionUnlocks(false)

	e.say(NoticeReward, fmt.Sprintf("ACCESS GRANTED :: %s answers to %s now.", loc.Title, p.Handle))
	e.log.Info("host unlocked", "location", loc.ID)
}

// consequence reports what a failure consequence did.
type consequence struct {
	// TraceDelta is the profiled trace rise that was applied.
	TraceDelta int

	// Trace is the meter after the consequence (0 after a disconnect).
	Trace int

	// Disconnected is set when the meter overflowed and the session was
	// hard-reset.
	Disconnected bool
}

// failureConsequence is the shared penalty path for failed locks,
// countermeasure pulses, rapid scanning, and caught wait-spam: a
// profiled trace rise, a fixed heat bump, profiler samples, and, at the
// trace ceiling, a forced disconnect.
func (e *Engine) failureConsequence(base int, reason string) consequence {
	p := e.progress

	delta := e.profiledTraceRise(base, reason)
	p.Trace = min(p.TraceMax, p.Trace+delta)
	e.adjustHeat(e.tun.FailHeat, reason)
	e.recordRogueBehavior(RogueBrute)
	e.recordRogueBehavior(RogueFailure)
	e.recordBehavior(BehaviorAggressive)

	if p.Trace >= p.TraceMax {
		e.forceDisconnect(reason)
		return consequence{TraceDelta: delta, Trace: p.Trace, Disconnected: true}
	}
	e.log.Debug("failure consequence", "reason", reason, "delta", delta, "trace", p.Trace)
	return consequence{TraceDelta: delta, Trace: p.Trace}
}

// forceDisconnect is the trace-overflow hard reset: transfers die, a
// capped GC fine lands, the siphon vents with a partial heat refund, a
// timed lockout begins, and the player snaps back to the home host. The
// discovered/unlocked sets are untouched; only the attempt and the risk
// meters reset.
func (e *Engine) forceDisconnect(reason string) {
	p := e.progress
	now := e.clock()

	if len(e.downloads) > 0 {
		e.cancelDownloads()
		e.say(NoticeWarning, "all transfers killed mid-stream.")
	}

	fine := min(e.tun.DisconnectFine, p.GC)
	if fine > 0 {
		p.GC -= fine
		e.say(NoticeWarning, fmt.Sprintf("emergency reroute burns %d GC.", fine))
	}

	if p.Siphon.Enabled {
		p.Siphon.Enabled = false
		e.cancelSiphon()
		e.coolHeat(1, "siphon vented")
		e.say(NoticeWarning, "siphon rig vents and goes dark.")
	}

	p.LockoutUntil = now.Add(e.tun.LockoutDuration)
	p.Trace = 0
	p.Location = e.world.Home
	if r, ok := e.world.RegionFor(e.world.Home); ok {
		p.Region.Current = r.ID
	}
	p.Breach = nil
	e.cancelPressure()

	e.metrics.RecordTraceOverflow(e.ctx())
	e.say(NoticeWarning, "CARRIER LOST :: trace closed the loop. the grid spat you back to the gate.")
	e.log.Warn("forced disconnect", "reason", reason, "lockout_until", p.LockoutUntil)
}

// armPressure starts the boss countermeasure pulse against id, replacing
// any previous pulse.
func (e *Engine) armPressure(id world.LocationID) {
	e.cancelPressure()
	e.pressureCancel = e.sched.Every(e.tun.PressureTick, func() {
		e.pressureTick(id)
	})
}

// pressureTick fires on the boss pulse. It re-checks that the breach
// still targets the same host before acting; the pulse may race its own
// cancellation. The rogue profile nudges the pulse's bite by one in
// either direction.
func (e *Engine) pressureTick(id world.LocationID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	if p.Breach == nil || p.Breach.Location != id {
		return
	}
	base := 1
	if p.Rogue.Noise+p.Rogue.Brute > p.Rogue.Careful {
		base++
	} else {
		base--
	}
	e.say(NoticeWarning, "the wyrm sweeps the line.")
	e.failureConsequence(max(0, base), "countermeasure pulse")
}

func (e *Engine) cancelPressure() {
	if e.pressureCancel != nil {
		e.pressureCancel()
		e.pressureCancel = nil
	}
}
