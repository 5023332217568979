package engine

// BehaviorKind is a sample category for the general profiler.
type BehaviorKind string

const (
	BehaviorNoise      BehaviorKind = "noise"
	BehaviorCareful    BehaviorKind = "careful"
	BehaviorAggressive BehaviorKind = "aggressive"
	BehaviorPatient    BehaviorKind = "patient"
)

// RogueKind is a sample category for the narrower rogue profile read by
// the wyrm encounter.
type RogueKind string

const (
	RogueNoise   RogueKind = "noise"
	RogueCareful RogueKind = "careful"
	RogueBrute   RogueKind = "brute"
	RogueFailure RogueKind = "failure"
)

// RecordBehavior adds a sample to the general profile. Everyday actions
// feed this: scans are noise, effective waits are patient, lock failures
// are aggressive, anchor visits are careful.
func (e *Engine) RecordBehavior(kind BehaviorKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordBehavior(kind)
}

func (e *Engine) recordBehavior(kind BehaviorKind) {
	b := &e.progress.Behavior
	switch kind {
	case BehaviorNoise:
		b.Noise++
	case BehaviorCareful:
		b.Careful++
	case BehaviorAggressive:
		b.Aggressive++
	case BehaviorPatient:
		b.Patient++
	}
}

// RecordRogueBehavior adds a sample to the rogue profile.
func (e *Engine) RecordRogueBehavior(kind RogueKind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordRogueBehavior(kind)
}

func (e *Engine) recordRogueBehavior(kind RogueKind) {
	r := &e.progress.Rogue
	switch kind {
	case RogueNoise:
		r.Noise++
	case RogueCareful:
		r.Careful++
	case RogueBrute:
		r.Brute++
	case RogueFailure:
		r.Failures++
	}
}

// DominantBehavior returns the general-profile tally with the strictly
// highest count. The scan order is fixed (noise, careful, aggressive,
// patient), so an exact tie resolves to the earlier key; callers treat
// that as acceptable. Reports false when all tallies are zero.
func (e *Engine) DominantBehavior() (BehaviorKind, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dominantBehavior()
}

func (e *Engine) dominantBehavior() (BehaviorKind, bool) {
	b := e.progress.Behavior
	kinds := []struct {
		kind  BehaviorKind
		count int
	}{
		{BehaviorNoise, b.Noise},
		{BehaviorCareful, b.Careful},
		{BehaviorAggressive, b.Aggressive},
		{BehaviorPatient, b.Patient},
	}
	best := kinds[0]
	for _, k := range kinds[1:] {
		if k.count > best.count {
			best = k
		}
	}
	if best.count == 0 {
		return "", false
	}
	return best.kind, true
}

// profiledTraceRise turns a baseline trace delta into the applied one.
// Aggressive or noisy play pays an extra point when heat is past its
// midpoint or trace sits one below the ceiling; calm play with a clean
// meter gets its first mistake forgiven. The result never goes negative.
func (e *Engine) profiledTraceRise(base int, reason string) int {
	p := e.progress
	delta := base
	mid := e.tun.HeatThreshold / 2

	dom, ok := e.dominantBehavior()
	if ok {
		switch dom {
		case BehaviorNoise, BehaviorAggressive:
			if p.Trust.Heat > mid || p.Trace == p.TraceMax-1 {
				delta++
			}
		case BehaviorCareful, BehaviorPatient:
			if p.Trace == 0 && p.Trust.Heat < mid {
				delta--
			}
		}
	}
	if delta < 0 {
		delta = 0
	}
	if delta != base {
		e.log.Debug("profiled trace rise", "base", base, "delta", delta, "dominant", string(dom), "reason", reason)
	}
	return delta
}
