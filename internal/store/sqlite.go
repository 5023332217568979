package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	apperrors "github.com/ErebusAres/DriftShell-sub000/internal/errors"
	"github.com/ErebusAres/DriftShell-sub000/internal/state"
)

// SQLiteStore keeps every slot as a row in one database file.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS saves (
	slot     TEXT PRIMARY KEY,
	handle   TEXT NOT NULL,
	data     TEXT NOT NULL,
	saved_at TEXT NOT NULL
)`

// NewSQLiteStore opens (creating if needed) the save database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open save db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure save db: %w", err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate save db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts the snapshot as JSON under slot.
func (s *SQLiteStore) Save(slot string, snap *state.Snapshot) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	st := stamped(snap, time.Now().UTC())
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO saves (slot, handle, data, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			handle = excluded.handle,
			data = excluded.data,
			saved_at = excluded.saved_at`,
		slot, st.Handle, string(data), st.SavedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// Load reads the snapshot saved under slot.
func (s *SQLiteStore) Load(slot string) (*state.Snapshot, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	var data string
	err := s.db.QueryRow(`SELECT data FROM saves WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.CodeSaveNotFound,
			fmt.Sprintf("no save in slot %q", slot))
	}
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	var snap state.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeSnapshotInvalid,
			fmt.Sprintf("decode save %q", slot), err)
	}
	return &snap, nil
}

// List returns every slot, newest first.
func (s *SQLiteStore) List() ([]SlotInfo, error) {
	rows, err := s.db.Query(`SELECT slot, handle, saved_at FROM saves ORDER BY saved_at DESC, slot ASC`)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var info SlotInfo
		var at string
		if err := rows.Scan(&info.Slot, &info.Handle, &at); err != nil {
			return nil, fmt.Errorf("scan save row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			info.SavedAt = t
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	return out, nil
}

// Delete removes a slot's row.
func (s *SQLiteStore) Delete(slot string) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM saves WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("delete save: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
