package engine

import (
	"fmt"

	"github.com/ErebusAres/DriftShell-sub000/internal/answer"
	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/script"
	"github.com/ErebusAres/DriftShell-sub000/internal/world"
)

// RunScript executes a script file found on the current host. The
// script sees the world only through the net table; whatever it prints
// comes back in the result.
func (e *Engine) RunScript(name string) (script.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc := e.mustLoc(e.progress.Location)
	f, ok := loc.Files[name]
	if !ok {
		return script.Result{}, apperrors.New(apperrors.CodeScriptNotFound,
			fmt.Sprintf("no script %q on %s", name, loc.ID))
	}
	if f.Type != world.FileScript {
		return script.Result{}, apperrors.New(apperrors.CodeScriptNotFound,
			fmt.Sprintf("%s is not runnable", name))
	}
	if f.Cipher && !e.progress.Flags.Has(decodedFlag(loc.ID, name)) {
		return script.Result{}, apperrors.New(apperrors.CodeFileNotReadable,
			fmt.Sprintf("%s is still ciphered. decode it first", name))
	}

	start := e.clock()
	res, err := script.Run(f.Content, name, &scriptHost{e: e})
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordScriptRun(e.ctx(), name, status, e.clock().Sub(start).Seconds())
	e.log.Info("script run", "location", loc.ID, "script", name, "status", status)
	return res, err
}

// scriptHost adapts the engine to the script capability surface. The
// engine lock is already held for the whole run, so every method goes
// through the lockless internals.
type scriptHost struct {
	e *Engine
}

func (h *scriptHost) ReadFile(name string) (string, error) {
	e := h.e
	loc := e.mustLoc(e.progress.Location)
	f, ok := loc.Files[name]
	if !ok {
		return "", apperrors.New(apperrors.CodeFileNotFound,
			fmt.Sprintf("no file %q on %s", name, loc.ID))
	}
	switch f.Type {
	case world.FileText, world.FileScript:
	default:
		return "", apperrors.New(apperrors.CodeFileNotReadable,
			fmt.Sprintf("%s is a payload, not text", name))
	}
	if f.Cipher && !e.progress.Flags.Has(decodedFlag(loc.ID, name)) {
		return rot13(f.Content), nil
	}
	return f.Content, nil
}

func (h *scriptHost) SetFlag(name string) bool {
	return h.e.grantFlag(world.FlagID(name))
}

func (h *scriptHost) HasFlag(name string) bool {
	return h.e.progress.Flags.Has(world.FlagID(name))
}

func (h *scriptHost) Discover(ids []string) []string {
	locs := make([]world.LocationID, 0, len(ids))
	for _, id := range ids {
		locs = append(locs, world.LocationID(id))
	}
	newly, _ := h.e.discoverLocked(locs)
	h.e.syncRegionUnlocks(false)
	out := make([]string, 0, len(newly))
	for _, id := range newly {
		out = append(out, string(id))
	}
	return out
}

func (h *scriptHost) AddItem(id string) bool {
	return h.e.grantItem(world.ItemID(id))
}

func (h *scriptHost) HasItem(id string) bool {
	return h.e.progress.Inventory.Has(world.ItemID(id))
}

func (h *scriptHost) Call(fn, arg string) (string, error) {
	switch fn {
	case "checksum":
		return answer.Expected(arg, h.e.progress.Handle), nil
	default:
		return "", apperrors.New(apperrors.CodeScriptRuntime,
			fmt.Sprintf("no helper named %q", fn))
	}
}
