package engine

import (
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// fakeClock is a hand-advanced clock. Tests run single-threaded against
// the manual scheduler, so no locking is needed.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2123, 5, 1, 3, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// manualSched collects scheduled work and fires it only when the test
// says so.
type manualTask struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

type manualSched struct {
	every []*manualTask
	after []*manualTask
}

func (s *manualSched) Every(d time.Duration, fn func()) CancelFunc {
	t := &manualTask{d: d, fn: fn}
	s.every = append(s.every, t)
	return func() { t.stopped = true }
}

func (s *manualSched) After(d time.Duration, fn func()) CancelFunc {
	t := &manualTask{d: d, fn: fn}
	s.after = append(s.after, t)
	return func() { t.stopped = true }
}

// fireEvery runs every live periodic task body once.
func (s *manualSched) fireEvery() {
	for _, t := range s.every {
		if !t.stopped {
			t.fn()
		}
	}
}

// fireAfter runs and retires every live one-shot task.
func (s *manualSched) fireAfter() {
	for _, t := range s.after {
		if !t.stopped && !t.fired {
			t.fired = true
			t.fn()
		}
	}
}

func (s *manualSched) liveEvery() int {
	n := 0
	for _, t := range s.every {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (s *manualSched) liveAfter() int {
	n := 0
	for _, t := range s.after {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recorder captures notices for assertion.
type recorder struct {
	notices []Notice
}

func (r *recorder) Notify(n Notice) { r.notices = append(r.notices, n) }

func (r *recorder) count(sub string) int {
	n := 0
	for _, notice := range r.notices {
		if strings.Contains(notice.Text, sub) {
			n++
		}
	}
	return n
}

func (r *recorder) has(sub string) bool { return r.count(sub) > 0 }

// stubSource feeds rand.Rand a scripted Int63 sequence. A zero value
// makes the next Intn(n) return 0; 1<<32 makes it return 1.
type stubSource struct {
	vals []int64
	i    int
}

const (
	rollHit  = int64(0)
	rollMiss = int64(1) << 32
)

func (s *stubSource) Int63() int64 {
	if len(s.vals) == 0 {
		return rollMiss
	}
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func (s *stubSource) Seed(int64) {}

// testWorld is the fixture graph the engine tests play on.
//
//	surface: gate (home), beacon (anchor), relay, vault, locker
//	deeps:   archive, deep-1, wyrm (boss); opens on signal:traced
//	abyss:   core; opens when the story reaches the-chant
func testWorld() *world.World {
	w := &world.World{
		Home: "gate",
		Start: world.Start{
			Discovered: []world.LocationID{"gate", "beacon", "relay"},
			Unlocked:   []world.LocationID{"gate", "beacon"},
			Region:     "surface",
		},
		Payloads: map[string]string{
			"vault-key": "COLD COPPER HUM",
		},
		Chant: world.Chant{Phrase: "the drowned still sing"},
		Locations: map[world.LocationID]*world.Location{
			"gate": {
				ID:    "gate",
				Title: "Gate of Rust",
				Desc:  []string{"the first hop. everyone's first hop."},
				Links: []world.LocationID{"beacon", "relay"},
				Files: map[string]world.File{
					"readme.txt":  {Type: world.FileText, Content: "keep your handle close."},
					"payload.txt": {Type: world.FileText, Content: "GHOST WIRE"},
					"hashrat.lua": {Type: world.FileScript, Content: `print(net.call("checksum", net.read("payload.txt")))`},
					"lens.bin":    {Type: world.FileItem, Item: world.ItemCipherLens},
					"frag1.txt": {
						Type: world.FileText, Cipher: true, Content: "the drowned",
						Grants: []world.FlagID{"chant:fragment:one"},
					},
					"seeker.lua": {Type: world.FileScript, Content: "print(net.discover(\"vault\"))"},
				},
			},
			"beacon": {
				ID:     "beacon",
				Title:  "Warden's Beacon",
				Anchor: true,
			},
			"relay": {
				ID:    "relay",
				Title: "Relay Six",
				Locks: []world.Lock{
					{Prompt: "the relay asks for the day-code.", Kind: world.AnswerLiteral, Value: "abc", Hint: "three letters, all of them early."},
				},
				Links: []world.LocationID{"vault", "archive", "deep-1"},
			},
			"vault": {
				ID:    "vault",
				Title: "Cipher Vault",
				Locks: []world.Lock{
					{Prompt: "outer shell. speak the old word.", Kind: world.AnswerLiteral, Value: "alpha"},
					{Prompt: "inner shell hums a payload at you.", Kind: world.AnswerComputed, Value: "vault-key", Hint: "run the hum through your hashrat."},
				},
				OnEnter: world.Effects{
					Flags:  []world.FlagID{world.FlagSignalTraced},
					Notice: []string{"the vault exhales a route it kept for itself."},
				},
				Files: map[string]world.File{
					"frag2.txt": {
						Type: world.FileText, Cipher: true, Content: "still sing",
						Grants: []world.FlagID{"chant:fragment:two"},
					},
					"dampener.bin": {Type: world.FileUpgrade, Upgrade: world.UpgradeTraceDampener},
					"rig.bin":      {Type: world.FileUpgrade, Upgrade: world.UpgradeSiphonRig},
				},
			},
			"locker": {
				ID:    "locker",
				Title: "Bonded Locker",
				Requires: world.Requirements{
					Items: []world.ItemID{world.ItemCipherLens},
					Trust: 3,
				},
				Locks: []world.Lock{
					{Prompt: "the locker wants a bond-word.", Kind: world.AnswerLiteral, Value: "surety"},
				},
			},
			"archive": {ID: "archive", Title: "Drowned Archive"},
			"deep-1":  {ID: "deep-1", Title: "Deep Relay One", Links: []world.LocationID{"wyrm"}},
			"wyrm": {
				ID:    "wyrm",
				Title: "Wyrm's Coil",
				Boss:  true,
				Locks: []world.Lock{
					{Prompt: "the wyrm hums its own name.", Kind: world.AnswerComputed, Value: "vault-key"},
				},
			},
			"core": {
				ID:    "core",
				Title: "Drift Core",
				Locks: []world.Lock{
					{Prompt: "the core asks why you came.", Kind: world.AnswerLiteral, Value: "descend"},
				},
				OnEnter: world.Effects{Flags: []world.FlagID{world.FlagCoreReady}},
			},
		},
		Regions: []*world.Region{
			{ID: "surface", Name: "surface sprawl", Members: []world.LocationID{"gate", "beacon", "relay", "vault", "locker"}},
			{
				ID:      "deeps",
				Name:    "deeps",
				Members: []world.LocationID{"archive", "deep-1", "wyrm"},
				Unlock:  world.Predicate{Flags: []world.FlagID{world.FlagSignalTraced}},
				Entry:   []string{"the water gets colder here."},
			},
			{
				ID:      "abyss",
				Name:    "abyss",
				Members: []world.LocationID{"core"},
				Unlock:  world.Predicate{Story: "the-chant"},
			},
		},
		Steps: []*world.StoryStep{
			{ID: "first-hop", Gating: []world.LocationID{"relay"}, Cue: "find where the relay listens."},
			{ID: "the-vault", Gating: []world.LocationID{"vault"}, Cue: "the vault keeps what the drowned lost."},
			{ID: "the-fragments", Concern: world.ConcernFragments, Cue: "gather the statics."},
			{ID: "the-chant", Concern: world.ConcernChant, Cue: "speak it whole."},
			{ID: "the-core", Concern: world.ConcernCore, Cue: "the core is listening now."},
		},
	}
	w.Index()
	return w
}

// rigSetup is what newRig lets a test override before the engine is
// built.
type rigSetup struct {
	World    *world.World
	Progress *state.Progress
	Tun      Tunables
	Rand     rand.Source
}

type testRig struct {
	e     *Engine
	w     *world.World
	clk   *fakeClock
	sched *manualSched
	rec   *recorder
}

func newRig(t *testing.T, mod func(*rigSetup)) *testRig {
	t.Helper()
	setup := rigSetup{
		World: testWorld(),
		Tun:   DefaultTunables(),
		Rand:  rand.NewSource(1),
	}
	if mod != nil {
		mod(&setup)
	}

	clk := newFakeClock()
	sched := &manualSched{}
	rec := &recorder{}
	e := New(setup.World, setup.Progress, Options{
		Clock:    clk.Now,
		Sched:    sched,
		Rand:     rand.New(setup.Rand),
		Logger:   slog.New(slog.DiscardHandler),
		Notifier: rec,
		Tunables: &setup.Tun,
	})
	t.Cleanup(e.Close)
	return &testRig{e: e, w: setup.World, clk: clk, sched: sched, rec: rec}
}

// seed hands the test direct access to the progress record for setup
// that has no gameplay path in the fixture.
func (r *testRig) seed(fn func(*state.Progress)) {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	fn(r.e.progress)
}

// grant mints a flag through the engine's own dispatch, so the story
// tracker and region resolver react exactly as they would in play.
func (r *testRig) grant(f world.FlagID) {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	r.e.grantFlag(f)
}

func (r *testRig) status() Status { return r.e.Status() }

func TestStatusFresh(t *testing.T) {
	rig := newRig(t, nil)
	s := rig.status()

	if s.Handle != state.DefaultHandle {
		t.Errorf("Handle = %q, want %q", s.Handle, state.DefaultHandle)
	}
	if s.Location != "gate" || s.LocationTitle != "Gate of Rust" {
		t.Errorf("location = %s (%q)", s.Location, s.LocationTitle)
	}
	if s.Region != "surface" || s.RegionName != "surface sprawl" {
		t.Errorf("region = %s (%q)", s.Region, s.RegionName)
	}
	if s.TrustLevel != state.DefaultTrustLevel || s.Heat != 0 {
		t.Errorf("trust = %d heat = %d", s.TrustLevel, s.Heat)
	}
	if s.Trace != 0 || s.TraceMax != state.DefaultTraceMax {
		t.Errorf("trace = %d/%d", s.Trace, s.TraceMax)
	}
	if s.GC != state.DefaultGC {
		t.Errorf("GC = %d, want %d", s.GC, state.DefaultGC)
	}
	if s.Step != "first-hop" || s.StepCue != "find where the relay listens." {
		t.Errorf("step = %s (%q)", s.Step, s.StepCue)
	}
	if s.Breaching || s.LockedOutFor != 0 || s.SiphonOn {
		t.Errorf("fresh status carries live activity: %+v", s)
	}
}

func TestCurrentLocationView(t *testing.T) {
	rig := newRig(t, nil)
	v := rig.e.CurrentLocation()

	if v.ID != "gate" || v.Anchor {
		t.Fatalf("view = %+v", v)
	}
	wantFiles := []string{"frag1.txt", "hashrat.lua", "lens.bin", "payload.txt", "readme.txt", "seeker.lua"}
	if len(v.Files) != len(wantFiles) {
		t.Fatalf("files = %v", v.Files)
	}
	for i, name := range wantFiles {
		if v.Files[i] != name {
			t.Errorf("files[%d] = %q, want %q", i, v.Files[i], name)
		}
	}
	if len(v.Links) != 2 {
		t.Fatalf("links = %+v", v.Links)
	}
	if v.Links[0].ID != "beacon" || v.Links[0].State != LinkOpen || v.Links[0].Title != "Warden's Beacon" {
		t.Errorf("beacon link = %+v", v.Links[0])
	}
	if v.Links[1].ID != "relay" || v.Links[1].State != LinkLocked {
		t.Errorf("relay link = %+v", v.Links[1])
	}
}

// assertCode fails the test unless err carries the given code.
func assertCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("no error, want %s", code)
	}
	if !apperrors.IsCode(err, code) {
		t.Fatalf("error = %v (code %s), want code %s", err, apperrors.GetCode(err), code)
	}
}

func TestEnterDenials(t *testing.T) {
	rig := newRig(t, nil)

	_, err := rig.e.Enter("wyrm")
	assertCode(t, err, apperrors.CodeTravelUnknown)

	_, err = rig.e.Enter("relay")
	assertCode(t, err, apperrors.CodeTravelNotUnlocked)

	rig.seed(func(p *state.Progress) { p.Discovered.Add("archive") })
	_, err = rig.e.Enter("archive")
	assertCode(t, err, apperrors.CodeAccessRegionLocked)
}

func TestEnterAnchorCoolsHeat(t *testing.T) {
	rig := newRig(t, nil)
	rig.e.AdjustHeat(3, "test setup")

	v, err := rig.e.Enter("beacon")
	if err != nil {
		t.Fatalf("Enter(beacon): %v", err)
	}
	if !v.Anchor {
		t.Error("beacon view not marked anchor")
	}
	if got := rig.status().Heat; got != 2 {
		t.Errorf("heat = %d, want 2", got)
	}
	if kind, ok := rig.e.DominantBehavior(); !ok || kind != BehaviorCareful {
		t.Errorf("dominant = %q ok=%t, want careful", kind, ok)
	}
}

func TestEnterSameHostRedescribes(t *testing.T) {
	rig := newRig(t, nil)
	if _, err := rig.e.Enter("gate"); err != nil {
		t.Fatalf("Enter(gate): %v", err)
	}
	if got := rig.status().Location; got != "gate" {
		t.Errorf("location = %s", got)
	}
}

func TestRegionEntryLinesFireOnce(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(func(p *state.Progress) {
		p.Region.Unlocked.Add("deeps")
		p.Discovered.Add("deep-1")
		p.Unlocked.Add("deep-1")
	})

	if _, err := rig.e.Enter("deep-1"); err != nil {
		t.Fatalf("Enter(deep-1): %v", err)
	}
	if _, err := rig.e.Enter("gate"); err != nil {
		t.Fatalf("Enter(gate): %v", err)
	}
	if _, err := rig.e.Enter("deep-1"); err != nil {
		t.Fatalf("re-Enter(deep-1): %v", err)
	}
	if got := rig.rec.count("the water gets colder here."); got != 1 {
		t.Errorf("entry line fired %d times, want 1", got)
	}
}

func TestScanRevealsAndParks(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(func(p *state.Progress) {
		p.Unlocked.Add("relay")
		p.Location = "relay"
	})

	res := rig.e.Scan()
	if res.Rapid || res.Disconnected {
		t.Fatalf("scan = %+v", res)
	}
	if len(res.Revealed) != 1 || res.Revealed[0] != "vault" {
		t.Errorf("revealed = %v, want [vault]", res.Revealed)
	}
	if res.Pending != 2 {
		t.Errorf("pending = %d, want 2", res.Pending)
	}
	if !rig.rec.has("host mapped :: Cipher Vault") {
		t.Error("no mapping notice for the vault")
	}
	if !rig.rec.has("2 signal(s) answer from behind a sealed route.") {
		t.Error("no pending notice")
	}

	rig.clk.Advance(5 * time.Second)
	res = rig.e.Scan()
	if len(res.Revealed) != 0 || res.Pending != 0 {
		t.Errorf("second scan = %+v, want nothing new", res)
	}
}

func TestScanCooldownDrawsConsequence(t *testing.T) {
	rig := newRig(t, nil)

	first := rig.e.Scan()
	if first.Rapid {
		t.Fatal("first scan counted as rapid")
	}
	second := rig.e.Scan()
	if !second.Rapid {
		t.Fatal("back-to-back scan not flagged rapid")
	}
	if len(second.Revealed) != 0 {
		t.Errorf("rapid scan still revealed %v", second.Revealed)
	}
	s := rig.status()
	if s.Trace != 1 {
		t.Errorf("trace = %d, want 1", s.Trace)
	}
	if s.Heat == 0 {
		t.Error("rapid scan left heat untouched")
	}

	rig.clk.Advance(DefaultTunables().ScanCooldown)
	third := rig.e.Scan()
	if third.Rapid {
		t.Error("scan at the cooldown boundary counted as rapid")
	}
}

func TestWaitDecaysAndCools(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(func(p *state.Progress) {
		p.Trace = 2
		p.Trust.Heat = 3
	})

	res := rig.e.Wait()
	if !res.Effective {
		t.Fatal("first wait not effective")
	}
	if res.Trace != 1 || res.Heat != 2 {
		t.Errorf("after wait: trace=%d heat=%d, want 1/2", res.Trace, res.Heat)
	}
	if kind, _ := rig.e.DominantBehavior(); kind != BehaviorPatient {
		t.Errorf("dominant = %q, want patient", kind)
	}
}

func TestWaitSpamGivesNoRelief(t *testing.T) {
	rig := newRig(t, func(s *rigSetup) {
		s.Tun.WaitSpamOdds = 1
	})
	rig.e.AdjustHeat(4, "test setup")

	if res := rig.e.Wait(); !res.Effective {
		t.Fatal("first wait not effective")
	}
	// Same instant: streak builds, no relief yet, no consequence on the
	// first spam.
	res := rig.e.Wait()
	if res.Effective || res.Caught {
		t.Fatalf("first spam wait = %+v", res)
	}
	// Second spam with the streak formed always rolls the consequence at
	// odds 1.
	res = rig.e.Wait()
	if !res.Caught {
		t.Fatalf("second spam wait = %+v, want caught", res)
	}
	if res.Trace != 1 {
		t.Errorf("trace after caught spam = %d, want 1", res.Trace)
	}

	rig.clk.Advance(DefaultTunables().WaitInterval)
	if res := rig.e.Wait(); !res.Effective {
		t.Error("spaced wait after spam not effective")
	}
}

func TestTalkWardenVouchesOnce(t *testing.T) {
	rig := newRig(t, nil)

	if _, err := rig.e.Talk(); err == nil {
		t.Error("Talk at a keeperless host succeeded")
	}

	rig.e.AdjustHeat(3, "test setup")
	if _, err := rig.e.Enter("beacon"); err != nil {
		t.Fatalf("Enter(beacon): %v", err)
	}
	line, err := rig.e.Talk()
	if err != nil {
		t.Fatalf("Talk: %v", err)
	}
	if !strings.Contains(line, "weather, not signal") {
		t.Errorf("vouch line = %q", line)
	}
	// Heat was 3, cooled 1 by the anchor and 2 by the vouch.
	if got := rig.status().Heat; got != 0 {
		t.Errorf("heat = %d, want 0", got)
	}

	again, err := rig.e.Talk()
	if err != nil {
		t.Fatalf("second Talk: %v", err)
	}
	if strings.Contains(again, "weather, not signal") {
		t.Error("warden vouched twice")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	rig := newRig(t, nil)
	breachWith(t, rig, "relay", "abc")
	if _, err := rig.e.Enter("relay"); err != nil {
		t.Fatalf("Enter(relay): %v", err)
	}
	rig.e.Scan()

	snap := rig.e.Snapshot()

	rig2 := newRig(t, nil)
	rig2.e.Restore(snap)
	s := rig2.status()
	if s.Location != "relay" {
		t.Errorf("restored location = %s", s.Location)
	}
	if s.Step != "the-vault" {
		t.Errorf("restored step = %s", s.Step)
	}
	if s.Heat != rig.status().Heat || s.Trace != rig.status().Trace {
		t.Errorf("restored meters %d/%d, want %d/%d", s.Heat, s.Trace, rig.status().Heat, rig.status().Trace)
	}
	// Restore is silent: no route notices replay.
	if rig2.rec.has("ROUTE OPENS") {
		t.Error("restore replayed route notices")
	}
	// The restored session keeps playing: the vault was discovered by the
	// scan, so a breach opens.
	if _, err := rig2.e.StartBreach("vault"); err != nil {
		t.Errorf("StartBreach(vault) after restore: %v", err)
	}
}

func TestRestoreLegacySaveForceUnlocksTouchedRegions(t *testing.T) {
	rig := newRig(t, nil)
	snap := rig.e.Snapshot()
	snap.Region.Unlocked = nil

	rig2 := newRig(t, nil)
	rig2.e.Restore(snap)

	if ok, _ := rig2.e.CanAccessNode("relay"); !ok {
		t.Error("surface stayed sealed after legacy restore")
	}
	if ok, _ := rig2.e.CanAccessNode("archive"); ok {
		t.Error("deeps opened with no touched member")
	}
}

func TestRestoreReArmsTimers(t *testing.T) {
	rig := newRig(t, nil)
	snap := rig.e.Snapshot()
	snap.Siphon.Installed = true
	snap.Siphon.Enabled = true
	snap.Breach = &state.BreachSnapshot{Location: "wyrm", LockIndex: 0}
	snap.Discovered = append(snap.Discovered, "wyrm")
	snap.Region.Unlocked = append(snap.Region.Unlocked, "deeps")

	rig2 := newRig(t, nil)
	rig2.e.Restore(snap)
	if got := rig2.sched.liveEvery(); got != 2 {
		t.Errorf("live periodic tasks after restore = %d, want siphon + pressure", got)
	}
}

func TestCloseCancelsEverything(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(func(p *state.Progress) {
		p.Siphon.Installed = true
	})
	if err := rig.e.SiphonOn(); err != nil {
		t.Fatalf("SiphonOn: %v", err)
	}
	if err := rig.e.Pull("lens.bin"); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	rig.e.Close()
	if got := rig.sched.liveEvery(); got != 0 {
		t.Errorf("periodic tasks alive after Close: %d", got)
	}
	if got := rig.sched.liveAfter(); got != 0 {
		t.Errorf("one-shot tasks alive after Close: %d", got)
	}
}

func TestComputeAnswerMatchesHandle(t *testing.T) {
	rig := newRig(t, nil)
	got := rig.e.ComputeAnswer("GHOST WIRE")
	if len(got) != 3 || got != strings.ToUpper(got) {
		t.Errorf("answer = %q, want 3 uppercase hex digits", got)
	}
}

// breachWith opens a breach and walks the whole lock stack.
func breachWith(t *testing.T, rig *testRig, id world.LocationID, answers ...string) {
	t.Helper()
	if _, err := rig.e.StartBreach(id); err != nil {
		t.Fatalf("StartBreach(%s): %v", id, err)
	}
	for _, a := range answers {
		res, err := rig.e.SubmitAnswer(a)
		if err != nil {
			t.Fatalf("SubmitAnswer(%q): %v", a, err)
		}
		if res.Outcome != SubmitAdvanced && res.Outcome != SubmitUnlocked {
			t.Fatalf("SubmitAnswer(%q) = %s", a, res.Outcome)
		}
	}
}
