// Package store persists session snapshots into named save slots. Two
// backends speak the same interface: one YAML file per slot, or a single
// SQLite database holding every slot. The command layer picks whichever
// the config asked for and never looks past the interface.
package store

import (
	"fmt"
	"regexp"
	"time"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
)

// SlotInfo describes one saved session without loading all of it.
type SlotInfo struct {
	Slot    string
	Handle  string
	SavedAt time.Time
}

// Store is a named-slot snapshot archive.
type Store interface {
	// Save writes the snapshot under slot, overwriting any previous
	// save there. The snapshot's SavedAt is stamped on the way down.
	Save(slot string, snap *state.Snapshot) error

	// Load reads the snapshot saved under slot.
	Load(slot string) (*state.Snapshot, error)

	// List returns every saved slot, newest first.
	List() ([]SlotInfo, error)

	// Delete removes a slot. A missing slot is not an error.
	Delete(slot string) error

	// Close releases the backend.
	Close() error
}

var slotPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// checkSlot guards slot names before they reach a path or a query.
func checkSlot(slot string) error {
	if !slotPattern.MatchString(slot) {
		return apperrors.New(apperrors.CodeSaveInvalid,
			fmt.Sprintf("bad slot name %q", slot))
	}
	return nil
}

// stamped returns a copy of snap with SavedAt set, leaving the caller's
// value untouched.
func stamped(snap *state.Snapshot, at time.Time) *state.Snapshot {
	cp := *snap
	cp.SavedAt = at
	return &cp
}
