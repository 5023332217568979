package engine

import (
	"fmt"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
)

// SiphonOn starts the passive credit siphon. Requires the rig upgrade.
func (e *Engine) SiphonOn() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	if !p.Siphon.Installed {
		return apperrors.New(apperrors.CodeSiphonNotInstalled, "no siphon rig installed")
	}
	if p.Siphon.Enabled {
		return apperrors.New(apperrors.CodeSiphonActive, "siphon already running")
	}
	p.Siphon.Enabled = true
	e.armSiphon()
	e.say(NoticeSystem, "siphon spun up. credits will bleed in while you work.")
	e.log.Info("siphon enabled")
	return nil
}

// SiphonOff stops the siphon. Turning off an already-stopped siphon is a
// no-op.
func (e *Engine) SiphonOff() {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	if !p.Siphon.Enabled {
		return
	}
	p.Siphon.Enabled = false
	e.cancelSiphon()
	e.say(NoticeSystem, "siphon wound down.")
	e.log.Info("siphon disabled")
}

// armSiphon replaces the siphon timer. Caller holds the lock.
func (e *Engine) armSiphon() {
	e.cancelSiphon()
	e.siphonCancel = e.sched.Every(e.tun.SiphonTick, func() {
		e.siphonTick()
	})
}

// siphonTick fires on the payout period. The installed/enabled check is
// the liveness gate: the rig can be vented between ticks, and a tick
// that lost the race must do nothing. Most ticks pay out; now and then
// the rig overheats and feeds the heat meter instead.
func (e *Engine) siphonTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	if !p.Siphon.Installed || !p.Siphon.Enabled {
		return
	}
	if e.rng.Intn(e.tun.SiphonOverheatOdds) == 0 {
		e.adjustHeat(1, "siphon overheat")
		e.metrics.RecordSiphonTick(e.ctx(), "overheat")
		e.say(NoticeWarning, "the siphon rig runs hot. the grid hears it.")
		return
	}
	p.GC += e.tun.SiphonYield
	p.Siphon.TotalYield += e.tun.SiphonYield
	e.metrics.RecordSiphonTick(e.ctx(), "yield")
	e.say(NoticeSystem, fmt.Sprintf("siphon hums. +%d GC.", e.tun.SiphonYield))
}

func (e *Engine) cancelSiphon() {
	if e.siphonCancel != nil {
		e.siphonCancel()
		e.siphonCancel = nil
	}
}
