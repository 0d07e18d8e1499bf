package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// FileStore keeps the snapshot as a JSON document on disk. The previous
// document is kept at <path>.backup.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file path.
func (f *FileStore) Path() string { return f.path }

// BackupPath returns the path of the previous snapshot.
func (f *FileStore) BackupPath() string { return f.path + ".backup" }

// Save writes s atomically, moving the current file to the backup path first.
func (f *FileStore) Save(ctx context.Context, s Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(f.path, f.BackupPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("rotate backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot, falling back to the backup if the main file is
// unreadable.
func (f *FileStore) Load(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s, err := readSnapshot(f.path)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		if _, statErr := os.Stat(f.BackupPath()); statErr != nil {
			return Snapshot{}, ErrNotFound
		}
	}

	log.Warn().Err(err).Str("path", f.path).Msg("snapshot unreadable, trying backup")
	backup, berr := readSnapshot(f.BackupPath())
	if berr != nil {
		return Snapshot{}, fmt.Errorf("load snapshot: %w (backup: %v)", err, berr)
	}
	return backup, nil
}

func readSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if s.Version > CurrentVersion {
		return Snapshot{}, fmt.Errorf("decode %s: unsupported version %d", path, s.Version)
	}
	return s, nil
}
