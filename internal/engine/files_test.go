package engine

import (
	"testing"
	"time"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

func TestReadFileVariants(t *testing.T) {
	rig := newRig(t, nil)

	v, err := rig.e.ReadFile("readme.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if v.Body != "keep your handle close." || v.Ciphered {
		t.Errorf("readme = %+v", v)
	}

	// Scripts read back as their source.
	v, err = rig.e.ReadFile("hashrat.lua")
	if err != nil {
		t.Fatalf("ReadFile script: %v", err)
	}
	if v.Type != world.FileScript || v.Body == "" {
		t.Errorf("script view = %+v", v)
	}

	// Ciphered text shows rotated glyphs until decoded.
	v, err = rig.e.ReadFile("frag1.txt")
	if err != nil {
		t.Fatalf("ReadFile cipher: %v", err)
	}
	if !v.Ciphered || v.Body != "gur qebjarq" {
		t.Errorf("ciphered view = %+v", v)
	}

	_, err = rig.e.ReadFile("ghost.txt")
	assertCode(t, err, apperrors.CodeFileNotFound)

	_, err = rig.e.ReadFile("lens.bin")
	assertCode(t, err, apperrors.CodeFileNotReadable)
}

func TestDecodeDenials(t *testing.T) {
	rig := newRig(t, nil)

	_, err := rig.e.DecodeFile("frag1.txt")
	assertCode(t, err, apperrors.CodeFileNotReadable)
	if got := err.Error(); got != "the glyphs swim. you need a cipher lens" {
		t.Errorf("lensless decode error = %q", got)
	}

	_, err = rig.e.DecodeFile("readme.txt")
	assertCode(t, err, apperrors.CodeFileNotReadable)

	_, err = rig.e.DecodeFile("missing.txt")
	assertCode(t, err, apperrors.CodeFileNotFound)
}

func TestPullThenDecodeFlow(t *testing.T) {
	rig := newRig(t, nil)

	if err := rig.e.Pull("lens.bin"); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	// The same transfer can't be started twice mid-stream.
	assertCode(t, rig.e.Pull("lens.bin"), apperrors.CodeDownloadInProgress)

	rig.sched.fireAfter()
	if !rig.rec.has("pull complete :: cipher-lens secured.") {
		t.Fatal("transfer never landed")
	}

	v, err := rig.e.DecodeFile("frag1.txt")
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if v.Body != "the drowned" {
		t.Errorf("decoded body = %q", v.Body)
	}
	if !rig.rec.has("lens bites. frag1.txt resolves into plaintext.") {
		t.Error("missing decode notice")
	}

	// Decoding is remembered: reads come back plain, and a second decode
	// is quiet.
	v, err = rig.e.ReadFile("frag1.txt")
	if err != nil {
		t.Fatalf("ReadFile after decode: %v", err)
	}
	if v.Ciphered || v.Body != "the drowned" {
		t.Errorf("post-decode view = %+v", v)
	}
	if _, err := rig.e.DecodeFile("frag1.txt"); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if n := rig.rec.count("lens bites."); n != 1 {
		t.Errorf("decode notice fired %d times", n)
	}

	snap := rig.e.Snapshot()
	found := false
	for _, f := range snap.Flags {
		if f == "chant:fragment:one" {
			found = true
		}
	}
	if !found {
		t.Error("decode never granted the fragment")
	}
}

func TestPullDenials(t *testing.T) {
	rig := newRig(t, nil)

	assertCode(t, rig.e.Pull("readme.txt"), apperrors.CodeFileNotPullable)
	assertCode(t, rig.e.Pull("missing.bin"), apperrors.CodeFileNotFound)

	rig.seed(func(p *state.Progress) {
		p.LockoutUntil = rig.clk.Now().Add(time.Minute)
	})
	assertCode(t, rig.e.Pull("lens.bin"), apperrors.CodeUploadLockout)
}

func TestUpgradesApplyOnce(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(func(p *state.Progress) {
		p.Discovered.Add("vault")
		p.Unlocked.Add("vault")
		p.Location = "vault"
	})

	if err := rig.e.Pull("dampener.bin"); err != nil {
		t.Fatalf("Pull dampener: %v", err)
	}
	rig.sched.fireAfter()
	if !rig.rec.has("trace dampener online. the meter stretches to 6.") {
		t.Error("missing dampener notice")
	}
	if snap := rig.e.Snapshot(); snap.TraceMax != 6 {
		t.Errorf("trace max = %d, want 6", snap.TraceMax)
	}

	if err := rig.e.Pull("rig.bin"); err != nil {
		t.Fatalf("Pull rig: %v", err)
	}
	rig.sched.fireAfter()
	snap := rig.e.Snapshot()
	if !snap.Siphon.Installed {
		t.Error("siphon rig not installed")
	}

	// Pulling an installed upgrade again wastes the transfer.
	if err := rig.e.Pull("dampener.bin"); err != nil {
		t.Fatalf("re-pull dampener: %v", err)
	}
	rig.sched.fireAfter()
	if !rig.rec.has("trace-dampener already installed.") {
		t.Error("missing duplicate-install notice")
	}
	if snap := rig.e.Snapshot(); snap.TraceMax != 6 {
		t.Errorf("trace max after re-pull = %d, want 6", snap.TraceMax)
	}
}

func TestDisconnectKillsTransfersMidStream(t *testing.T) {
	rig := newRig(t, nil)

	if err := rig.e.Pull("lens.bin"); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	rig.seed(func(p *state.Progress) {
		p.Trace = 3
	})

	// One more failure overflows the meter and drops the carrier with
	// the transfer still in flight.
	if _, err := rig.e.StartBreach("relay"); err != nil {
		t.Fatalf("StartBreach: %v", err)
	}
	res, err := rig.e.SubmitAnswer("wrong")
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Outcome != SubmitDisconnected {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if !rig.rec.has("all transfers killed mid-stream.") {
		t.Error("missing kill notice")
	}
	if n := rig.sched.liveAfter(); n != 0 {
		t.Errorf("live transfers = %d, want 0", n)
	}

	// Firing the retired timer changes nothing.
	rig.sched.fireAfter()
	snap := rig.e.Snapshot()
	if len(snap.Inventory) != 0 {
		t.Errorf("inventory = %v, want the payload lost", snap.Inventory)
	}
}
