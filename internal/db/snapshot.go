package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Snapshot is a temporary, transactionally consistent copy of the database.
// Close removes the file.
type Snapshot struct {
	*os.File
}

// Close closes and deletes the snapshot file.
func (s *Snapshot) Close() error {
	err := s.File.Close()
	if rmErr := os.Remove(s.Name()); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Snapshot copies the database into a temporary file with VACUUM INTO, so
// the copy includes pages still held in the write-ahead log.
func (db *DB) Snapshot(ctx context.Context) (*Snapshot, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("grade-snapshot-%s.db", uuid.NewString()))

	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to snapshot database: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}

	return &Snapshot{File: f}, nil
}
