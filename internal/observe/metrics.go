// Package observe provides OpenTelemetry metric instruments for the
// DriftShell engine: breach traffic, risk-meter movement, script runs, and
// story pacing. A package-level default instance ([DefaultMetrics]) records
// through the global meter provider; tests should build their own via
// [NewMetrics] with a manual reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all DriftShell metrics.
const meterName = "github.com/ErebusAres/DriftShell-sub000"

// Metrics holds all metric instruments. Fields are safe for concurrent
// use; the underlying OTel types handle their own synchronisation.
type Metrics struct {
	// BreachAttempts counts startBreach calls. Attributes:
	//   attribute.String("location", ...), attribute.String("outcome", "started"|"denied")
	BreachAttempts metric.Int64Counter

	// BreachOutcomes counts answer submissions by result. Attribute:
	//   attribute.String("outcome", "advanced"|"unlocked"|"failed"|"disconnected")
	BreachOutcomes metric.Int64Counter

	// TraceOverflows counts hard resets from trace hitting its ceiling.
	TraceOverflows metric.Int64Counter

	// HeatAdjustments counts heat movement. Attributes:
	//   attribute.String("direction", "up"|"down"), attribute.String("reason", ...)
	HeatAdjustments metric.Int64Counter

	// TrustDemotions counts trust level drops from heat overflow.
	TrustDemotions metric.Int64Counter

	// StoryAdvances counts narrative step transitions. Attribute:
	//   attribute.String("reason", ...)
	StoryAdvances metric.Int64Counter

	// ScriptRuns counts sandbox executions. Attributes:
	//   attribute.String("script", ...), attribute.String("status", "ok"|"error")
	ScriptRuns metric.Int64Counter

	// ScriptDuration tracks sandbox execution latency.
	ScriptDuration metric.Float64Histogram

	// ChantAttempts counts reconstruction tries. Attribute:
	//   attribute.String("outcome", "complete"|"close"|"cold")
	ChantAttempts metric.Int64Counter

	// SiphonTicks counts passive-income pulses. Attribute:
	//   attribute.String("result", "yield"|"overheat")
	SiphonTicks metric.Int64Counter
}

// scriptBuckets bound sandbox run times; world scripts are tiny.
var scriptBuckets = []float64{
	0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// provider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BreachAttempts, err = m.Int64Counter("driftshell.breach.attempts",
		metric.WithDescription("Total breach starts by location and outcome."),
	); err != nil {
		return nil, err
	}
	if met.BreachOutcomes, err = m.Int64Counter("driftshell.breach.outcomes",
		metric.WithDescription("Total answer submissions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.TraceOverflows, err = m.Int64Counter("driftshell.trace.overflows",
		metric.WithDescription("Total hard resets from trace overflow."),
	); err != nil {
		return nil, err
	}
	if met.HeatAdjustments, err = m.Int64Counter("driftshell.heat.adjustments",
		metric.WithDescription("Total heat movements by direction and reason."),
	); err != nil {
		return nil, err
	}
	if met.TrustDemotions, err = m.Int64Counter("driftshell.trust.demotions",
		metric.WithDescription("Total trust level drops from heat overflow."),
	); err != nil {
		return nil, err
	}
	if met.StoryAdvances, err = m.Int64Counter("driftshell.story.advances",
		metric.WithDescription("Total story step transitions by reason."),
	); err != nil {
		return nil, err
	}
	if met.ScriptRuns, err = m.Int64Counter("driftshell.script.runs",
		metric.WithDescription("Total sandbox executions by script and status."),
	); err != nil {
		return nil, err
	}
	if met.ScriptDuration, err = m.Float64Histogram("driftshell.script.duration",
		metric.WithDescription("Sandbox execution latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(scriptBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChantAttempts, err = m.Int64Counter("driftshell.chant.attempts",
		metric.WithDescription("Total chant reconstructions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.SiphonTicks, err = m.Int64Counter("driftshell.siphon.ticks",
		metric.WithDescription("Total siphon pulses by result."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Panics if instrument
// creation fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordBreachAttempt records a startBreach call.
func (m *Metrics) RecordBreachAttempt(ctx context.Context, location, outcome string) {
	m.BreachAttempts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("location", location),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordBreachOutcome records an answer submission result.
func (m *Metrics) RecordBreachOutcome(ctx context.Context, outcome string) {
	m.BreachOutcomes.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordTraceOverflow records a hard reset.
func (m *Metrics) RecordTraceOverflow(ctx context.Context) {
	m.TraceOverflows.Add(ctx, 1)
}

// RecordHeatAdjustment records heat movement.
func (m *Metrics) RecordHeatAdjustment(ctx context.Context, direction, reason string) {
	m.HeatAdjustments.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("direction", direction),
			attribute.String("reason", reason),
		),
	)
}

// RecordTrustDemotion records a trust level drop.
func (m *Metrics) RecordTrustDemotion(ctx context.Context) {
	m.TrustDemotions.Add(ctx, 1)
}

// RecordStoryAdvance records a step transition.
func (m *Metrics) RecordStoryAdvance(ctx context.Context, reason string) {
	m.StoryAdvances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordScriptRun records a sandbox execution with its wall time.
func (m *Metrics) RecordScriptRun(ctx context.Context, script, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("script", script),
		attribute.String("status", status),
	)
	m.ScriptRuns.Add(ctx, 1, attrs)
	m.ScriptDuration.Record(ctx, seconds, attrs)
}

// RecordChantAttempt records a reconstruction try.
func (m *Metrics) RecordChantAttempt(ctx context.Context, outcome string) {
	m.ChantAttempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordSiphonTick records a passive-income pulse.
func (m *Metrics) RecordSiphonTick(ctx context.Context, result string) {
	m.SiphonTicks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}
