package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
)

const saveExt = ".yaml"

// FileStore keeps one YAML file per slot under a directory.
type FileStore struct {
	dir string
}

// NewFileStore opens (creating if needed) a save directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(slot string) string {
	return filepath.Join(s.dir, slot+saveExt)
}

// Save writes the snapshot as YAML under slot.
func (s *FileStore) Save(slot string, snap *state.Snapshot) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	data, err := yaml.Marshal(stamped(snap, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.path(slot), data, 0o644); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// Load reads the snapshot saved under slot.
func (s *FileStore) Load(slot string) (*state.Snapshot, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(slot))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.New(apperrors.CodeSaveNotFound,
			fmt.Sprintf("no save in slot %q", slot))
	}
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	var snap state.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSnapshotInvalid,
			fmt.Sprintf("decode save %q", slot), err)
	}
	return &snap, nil
}

// List returns every readable slot, newest first. Files that fail to
// decode are skipped rather than breaking the listing.
func (s *FileStore) List() ([]SlotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read save dir: %w", err)
	}

	var out []SlotInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, saveExt) {
			continue
		}
		slot := strings.TrimSuffix(name, saveExt)
		snap, err := s.Load(slot)
		if err != nil {
			continue
		}
		out = append(out, SlotInfo{Slot: slot, Handle: snap.Handle, SavedAt: snap.SavedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}

// Delete removes a slot's file.
func (s *FileStore) Delete(slot string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if err := os.Remove(s.path(slot)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete save: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
