package engine

import (
	"strings"

	"github.com/antzucaro/matchr"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// ChantOutcome classifies a reconstruction attempt.
type ChantOutcome string

const (
	// ChantComplete means the phrase matched and the chant flag minted.
	ChantComplete ChantOutcome = "complete"

	// ChantClose means the attempt was within editing distance of the
	// phrase: wrong, but warmer.
	ChantClose ChantOutcome = "close"

	// ChantCold means the attempt was nowhere near.
	ChantCold ChantOutcome = "cold"
)

// ChantResult reports a reconstruction attempt.
type ChantResult struct {
	Outcome ChantOutcome

	// Distance is the Levenshtein distance to the expected phrase for
	// failed attempts.
	Distance int
}

// Reconstruct attempts to assemble the chant of statics from its
// recovered fragments. Matching ignores case, punctuation, and run-on
// whitespace. A miss raises heat; a near miss reads as close so the
// player knows to rearrange rather than start over.
func (e *Engine) Reconstruct(attempt string) (ChantResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.progress
	got := normalizePhrase(attempt)
	if got == "" {
		return ChantResult{}, apperrors.New(apperrors.CodeChantEmpty, "empty reconstruction")
	}
	if p.Flags.Has(world.FlagChantComplete) {
		return ChantResult{}, apperrors.New(apperrors.CodeChantComplete, "chant already reconstructed")
	}
	if p.FragmentCount() < e.tun.FragmentsNeeded {
		return ChantResult{}, apperrors.New(apperrors.CodeChantFragments, "not enough fragments recovered")
	}

	want := normalizePhrase(e.world.Chant.Phrase)
	if got == want {
		e.grantFlag(world.FlagChantComplete)
		e.metrics.RecordChantAttempt(e.ctx(), string(ChantComplete))
		e.say(NoticeStory, "the fragments seize and fuse. the chant of statics runs whole through the wire.")
		e.log.Info("chant reconstructed")
		return ChantResult{Outcome: ChantComplete}, nil
	}

	dist := matchr.Levenshtein(got, want)
	e.adjustHeat(1, "chant backlash")
	out := ChantCold
	if dist <= e.tun.ChantCloseDistance {
		out = ChantClose
		e.say(NoticeWarning, "the static leans in, then scatters. almost. the order matters.")
	} else {
		e.say(NoticeWarning, "the words die in the wire. the drowned don't answer to that.")
	}
	e.metrics.RecordChantAttempt(e.ctx(), string(out))
	return ChantResult{Outcome: out, Distance: dist}, nil
}

// normalizePhrase lowercases, strips everything but letters, digits, and
// spaces, and collapses whitespace runs.
func normalizePhrase(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
