package engine

import (
	"slices"
	"testing"

	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

func TestDiscoverReturnsOnlyNew(t *testing.T) {
	rig := newRig(t, nil)

	newly := rig.e.Discover([]world.LocationID{"vault", "relay", "ghost-host"})
	if len(newly) != 1 || newly[0] != "vault" {
		t.Fatalf("newly = %v, want [vault]", newly)
	}
	if !rig.rec.has("host mapped :: Cipher Vault") {
		t.Error("missing mapped notice")
	}

	if again := rig.e.Discover([]world.LocationID{"vault"}); len(again) != 0 {
		t.Errorf("rediscover = %v, want none", again)
	}
}

func TestDiscoverParksBehindSealedRegion(t *testing.T) {
	rig := newRig(t, nil)

	newly := rig.e.Discover([]world.LocationID{"archive"})
	if len(newly) != 0 {
		t.Fatalf("newly = %v, want none while deeps is sealed", newly)
	}
	if !rig.rec.has("1 signal(s) answer from behind a sealed route.") {
		t.Error("missing parked notice")
	}

	snap := rig.e.Snapshot()
	if len(snap.Region.Pending) != 1 || snap.Region.Pending[0] != "archive" {
		t.Errorf("pending = %v, want [archive]", snap.Region.Pending)
	}
	if slices.Contains(snap.Discovered, "archive") {
		t.Error("archive landed in discovered while its region is sealed")
	}

	// Parking the same host again is silent.
	rig.e.Discover([]world.LocationID{"archive"})
	if n := rig.rec.count("signal(s) answer"); n != 1 {
		t.Errorf("parked notices = %d, want 1", n)
	}
}

func TestCanAccessNodeNamesTheGaps(t *testing.T) {
	rig := newRig(t, nil)

	if ok, hint := rig.e.CanAccessNode("relay"); !ok || hint != "" {
		t.Errorf("relay = %t %q, want open with no hint", ok, hint)
	}

	ok, hint := rig.e.CanAccessNode("archive")
	if ok {
		t.Fatal("archive open while deeps is sealed")
	}
	if want := "deeps is sealed: marks you don't carry: signal:traced"; hint != want {
		t.Errorf("hint = %q, want %q", hint, want)
	}

	ok, hint = rig.e.CanAccessNode("core")
	if ok {
		t.Fatal("core open while abyss is sealed")
	}
	if want := "abyss is sealed: the drift hasn't pulled you that deep yet"; hint != want {
		t.Errorf("hint = %q, want %q", hint, want)
	}
}

func TestPendingRevealsInOneBatchWhenRouteOpens(t *testing.T) {
	rig := newRig(t, nil)
	rig.seed(func(p *state.Progress) {
		p.Unlocked.Add("relay")
		p.Location = "relay"
	})

	res := rig.e.Scan()
	if len(res.Revealed) != 1 || res.Revealed[0] != "vault" {
		t.Fatalf("revealed = %v, want [vault]", res.Revealed)
	}

	rig.grant(world.FlagSignalTraced)

	if !rig.rec.has("ROUTE OPENS :: deeps. 2 new host(s) answer.") {
		t.Error("missing batched route notice")
	}
	snap := rig.e.Snapshot()
	if len(snap.Region.Pending) != 0 {
		t.Errorf("pending = %v, want drained", snap.Region.Pending)
	}
	for _, id := range []string{"archive", "deep-1"} {
		if !slices.Contains(snap.Discovered, id) {
			t.Errorf("%s not revealed with its region", id)
		}
	}
	if ok, hint := rig.e.CanAccessNode("archive"); !ok {
		t.Errorf("archive still sealed: %s", hint)
	}
}

func TestRegionUnlocksChainToAFixpoint(t *testing.T) {
	rig := newRig(t, func(s *rigSetup) {
		s.World.Locations["trench-1"] = &world.Location{ID: "trench-1", Title: "Trench Mouth"}
		s.World.Regions = append(s.World.Regions, &world.Region{
			ID:      "trench",
			Name:    "trench reach",
			Members: []world.LocationID{"trench-1"},
			Unlock:  world.Predicate{Requires: []world.RegionID{"deeps"}},
		})
		s.World.Index()
	})

	ok, hint := rig.e.CanAccessNode("trench-1")
	if ok {
		t.Fatal("trench open before its prerequisite region")
	}
	if want := "trench reach is sealed: the deeps must open first"; hint != want {
		t.Errorf("hint = %q, want %q", hint, want)
	}

	// One flag satisfies deeps, and deeps opening satisfies trench; the
	// sync pass rides the chain in a single call.
	rig.grant(world.FlagSignalTraced)

	if !rig.rec.has("ROUTE OPENS :: deeps.") {
		t.Error("deeps never announced")
	}
	if !rig.rec.has("ROUTE OPENS :: trench reach.") {
		t.Error("trench never announced")
	}
	if ok, _ := rig.e.CanAccessNode("trench-1"); !ok {
		t.Error("trench still sealed after the chain")
	}
}

func TestAtlasTracksWhatThePlayerHasTouched(t *testing.T) {
	rig := newRig(t, nil)

	atlas := rig.e.Atlas()
	if len(atlas) != 1 {
		t.Fatalf("fresh atlas = %d regions, want just the surface", len(atlas))
	}
	surface := atlas[0]
	if surface.ID != "surface" || !surface.Open {
		t.Fatalf("surface = %+v, want open", surface)
	}
	states := map[world.LocationID]LinkState{}
	for _, h := range surface.Hosts {
		states[h.ID] = h.State
	}
	if states["gate"] != LinkOpen || states["beacon"] != LinkOpen || states["relay"] != LinkLocked {
		t.Errorf("surface hosts = %v", states)
	}
	if _, ok := states["vault"]; ok {
		t.Error("vault on the map before anything found it")
	}

	// A parked signal puts the sealed region on the map with no hosts.
	rig.e.Discover([]world.LocationID{"archive"})
	atlas = rig.e.Atlas()
	if len(atlas) != 2 {
		t.Fatalf("atlas after parking = %d regions, want 2", len(atlas))
	}
	deeps := atlas[1]
	if deeps.ID != "deeps" || deeps.Open || len(deeps.Hosts) != 0 {
		t.Errorf("deeps = %+v, want sealed and hostless", deeps)
	}

	// Opening the route flushes the parked host onto the map.
	rig.grant(world.FlagSignalTraced)
	atlas = rig.e.Atlas()
	deeps = atlas[1]
	if !deeps.Open {
		t.Error("deeps still sealed on the map")
	}
	if len(deeps.Hosts) != 1 || deeps.Hosts[0].ID != "archive" || deeps.Hosts[0].State != LinkLocked {
		t.Errorf("deeps hosts = %+v, want locked archive", deeps.Hosts)
	}
}
