package engine

import (
	"fmt"

	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// AdjustHeat raises heat by delta. Crossing the heat threshold wraps the
// meter and costs a trust level; at the trust floor it imposes a timed
// lockout instead. The first time heat ever moves off zero, a one-time
// explanation of the mechanic fires.
func (e *Engine) AdjustHeat(delta int, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adjustHeat(delta, reason)
}

func (e *Engine) adjustHeat(delta int, reason string) {
	if delta <= 0 {
		return
	}
	p := e.progress

	if p.Trust.Heat == 0 && e.grantFlag(world.FlagHeatTaught) {
		e.notify(NoticeStory, "net", "warden",
			"\"that hum? the grid noticing you. let it cool or it starts remembering your name.\"")
	}

	p.Trust.Heat += delta
	e.metrics.RecordHeatAdjustment(e.ctx(), "up", reason)
	e.log.Debug("heat up", "delta", delta, "heat", p.Trust.Heat, "reason", reason)

	for p.Trust.Heat >= e.tun.HeatThreshold {
		p.Trust.Heat = max(0, p.Trust.Heat-e.tun.HeatThreshold)
		if p.Trust.Level > 1 {
			p.Trust.Level--
			e.metrics.RecordTrustDemotion(e.ctx())
			e.say(NoticeWarning, fmt.Sprintf("the grid cools toward you. trust drops to %d.", p.Trust.Level))
			e.log.Info("trust demoted", "level", p.Trust.Level, "reason", reason)
			continue
		}
		p.LockoutUntil = e.clock().Add(e.tun.LockoutDuration)
		e.say(NoticeWarning, "the grid has no trust left to burn. routes freeze around you.")
		e.log.Warn("trust floor lockout", "until", p.LockoutUntil, "reason", reason)
	}
}

// CoolHeat lowers heat by amount, never below zero.
func (e *Engine) CoolHeat(amount int, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.coolHeat(amount, reason)
}

func (e *Engine) coolHeat(amount int, reason string) {
	if amount <= 0 {
		return
	}
	p := e.progress
	if p.Trust.Heat == 0 {
		return
	}
	p.Trust.Heat = max(0, p.Trust.Heat-amount)
	e.metrics.RecordHeatAdjustment(e.ctx(), "down", reason)
	e.log.Debug("heat down", "amount", amount, "heat", p.Trust.Heat, "reason", reason)
}

// TrustGate reports whether the player's trust level clears n. The
// requirement is clamped into the valid trust band first.
func (e *Engine) TrustGate(n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.trustGate(n)
}

func (e *Engine) trustGate(n int) bool {
	n = min(max(n, state.TrustMin), state.TrustMax)
	return e.progress.Trust.Level >= n
}
