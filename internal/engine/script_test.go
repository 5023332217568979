package engine

import (
	"strings"
	"testing"

	"github.com/ErebusAres/DriftShell-sub000/internal/answer"
	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

func TestRunScriptChecksumHelper(t *testing.T) {
	rig := newRig(t, nil)

	res, err := rig.e.RunScript("hashrat.lua")
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	want := answer.Expected("GHOST WIRE", state.DefaultHandle)
	if len(res.Output) != 1 || res.Output[0] != want {
		t.Errorf("output = %v, want [%s]", res.Output, want)
	}
}

func TestRunScriptDrivesDiscovery(t *testing.T) {
	rig := newRig(t, nil)

	res, err := rig.e.RunScript("seeker.lua")
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "1" {
		t.Fatalf("output = %v, want [1]", res.Output)
	}
	if !rig.rec.has("host mapped :: Cipher Vault") {
		t.Error("script discovery never mapped the vault")
	}

	// Rerunning finds nothing new.
	res, err = rig.e.RunScript("seeker.lua")
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "0" {
		t.Errorf("rerun output = %v, want [0]", res.Output)
	}
}

func TestScriptFlagsFeedTheResolver(t *testing.T) {
	rig := newRig(t, func(s *rigSetup) {
		s.World.Locations["gate"].Files["trace.lua"] = world.File{
			Type: world.FileScript, Content: `net.flag("signal:traced")`,
		}
	})

	if _, err := rig.e.RunScript("trace.lua"); err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if !rig.rec.has("ROUTE OPENS :: deeps.") {
		t.Error("script-minted flag never reached the region resolver")
	}
}

func TestCipheredScriptRunsAfterDecode(t *testing.T) {
	rig := newRig(t, func(s *rigSetup) {
		s.World.Locations["gate"].Files["rite.lua"] = world.File{
			Type: world.FileScript, Cipher: true, Content: `print(net.flagged("tutorial:heat"))`,
		}
	})
	rig.seed(func(p *state.Progress) {
		p.Inventory.Add(world.ItemCipherLens)
	})

	_, err := rig.e.RunScript("rite.lua")
	assertCode(t, err, apperrors.CodeFileNotReadable)

	if _, err := rig.e.DecodeFile("rite.lua"); err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	res, err := rig.e.RunScript("rite.lua")
	if err != nil {
		t.Fatalf("RunScript after decode: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "false" {
		t.Errorf("output = %v, want [false]", res.Output)
	}
}

func TestRunScriptDenials(t *testing.T) {
	rig := newRig(t, func(s *rigSetup) {
		s.World.Locations["gate"].Files["crash.lua"] = world.File{
			Type: world.FileScript, Content: `error("boom")`,
		}
	})

	_, err := rig.e.RunScript("readme.txt")
	assertCode(t, err, apperrors.CodeScriptNotFound)

	_, err = rig.e.RunScript("ghost.lua")
	assertCode(t, err, apperrors.CodeScriptNotFound)

	_, err = rig.e.RunScript("crash.lua")
	assertCode(t, err, apperrors.CodeScriptRuntime)
	if !strings.Contains(err.Error(), "crash.lua") {
		t.Errorf("error %q does not name the script", err)
	}
}
