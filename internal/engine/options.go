package engine

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/ErebusAres/DriftShell-sub000/internal/observe"
)

// Tunables are the pacing constants of the risk model. The defaults are
// the shipped game balance; tests shrink the durations to keep runs fast.
type Tunables struct {
	// HeatThreshold is the heat level at which heat wraps and trust
	// drops by one.
	HeatThreshold int

	// TraceBase is the baseline trace rise on a failed lock answer,
	// before profiling.
	TraceBase int

	// BreachHeat is the heat cost of opening a breach.
	BreachHeat int

	// FailHeat is the heat cost of a failed lock answer.
	FailHeat int

	// LockoutDuration is how long the net shuns the player after a
	// trace overflow or a trust-floor overheat.
	LockoutDuration time.Duration

	// ScanCooldown is the window within which a repeat scan counts as
	// rapid scanning and draws a failure consequence.
	ScanCooldown time.Duration

	// WaitInterval is the minimum spacing between effective waits.
	WaitInterval time.Duration

	// WaitSpamOdds is the 1-in-N chance that a spammed wait draws a
	// failure consequence once the spam streak is established.
	WaitSpamOdds int

	// PressureTick is the period of a boss countermeasure pulse.
	PressureTick time.Duration

	// SiphonTick is the period of the passive-income pulse.
	SiphonTick time.Duration

	// SiphonYield is the GC paid per clean siphon pulse.
	SiphonYield int

	// SiphonOverheatOdds is the 1-in-N chance a siphon pulse overheats
	// instead of paying out.
	SiphonOverheatOdds int

	// PullDuration is how long a file transfer takes.
	PullDuration time.Duration

	// DisconnectFine caps the GC fine taken on a forced disconnect.
	DisconnectFine int

	// CorruptionThreshold is the corruption level the bloom step waits
	// for.
	CorruptionThreshold int

	// FragmentsNeeded is how many chant fragments unlock
	// reconstruction.
	FragmentsNeeded int

	// ChantCloseDistance is the Levenshtein distance under which a
	// failed reconstruction reads as "close".
	ChantCloseDistance int
}

// DefaultTunables returns the shipped game balance.
func DefaultTunables() Tunables {
	return Tunables{
		HeatThreshold:       6,
		TraceBase:           1,
		BreachHeat:          1,
		FailHeat:            2,
		LockoutDuration:     8 * time.Second,
		ScanCooldown:        2 * time.Second,
		WaitInterval:        3 * time.Second,
		WaitSpamOdds:        4,
		PressureTick:        6 * time.Second,
		SiphonTick:          10 * time.Second,
		SiphonYield:         2,
		SiphonOverheatOdds:  6,
		PullDuration:        3 * time.Second,
		DisconnectFine:      50,
		CorruptionThreshold: 2,
		FragmentsNeeded:     2,
		ChantCloseDistance:  5,
	}
}

// Options configure an Engine. The zero value is usable: real clock,
// real timers, seeded RNG, default metrics, notices dropped.
type Options struct {
	// Clock supplies wall-clock time. Defaults to time.Now.
	Clock func() time.Time

	// Sched runs the pressure and siphon timers and download
	// completions. Defaults to a real ticker-backed scheduler.
	Sched Scheduler

	// Rand drives siphon overheats and wait-spam consequences.
	// Defaults to a clock-seeded source.
	Rand *rand.Rand

	// Logger receives structured engine events. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Notifier receives narrative and system notices. Nil drops them.
	Notifier Notifier

	// Metrics receives instrument updates. Defaults to the package
	// default instance.
	Metrics *observe.Metrics

	// Tunables override the game balance. Nil means DefaultTunables.
	Tunables *Tunables
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Sched == nil {
		o.Sched = NewTickerScheduler()
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(o.Clock().UnixNano()))
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Notifier == nil {
		o.Notifier = NotifierFunc(func(Notice) {})
	}
	if o.Metrics == nil {
		o.Metrics = observe.DefaultMetrics()
	}
	if o.Tunables == nil {
		t := DefaultTunables()
		o.Tunables = &t
	}
	return o
}
