// Package store persists the last successfully downloaded build per image,
// so a later wait-for-new-image run knows what "new" means.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is the on-disk record of one downloaded image.
type State struct {
	ImageName    string    `json:"image_name"`
	Version      string    `json:"version"`
	Release      string    `json:"release"`
	Checksum     string    `json:"checksum"`
	Path         string    `json:"path"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

type FS struct {
	dir string
}

func NewFS(dataDir string) (*FS, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dataDir, err)
	}
	return &FS{dir: dataDir}, nil
}

func (s *FS) statePath(imageName string) string {
	return filepath.Join(s.dir, imageName+".state.json")
}

// Read returns the recorded state for imageName. A missing record is not an
// error; it returns a zero State.
func (s *FS) Read(imageName string) (st State, err error) {
	f, err := os.Open(s.statePath(imageName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, err
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close failed: %w", cerr)
		}
	}()

	var state State
	if err := json.NewDecoder(f).Decode(&state); err != nil {
		return State{}, err
	}
	return state, err
}

// Write records state atomically via a tmp file rename, so a crash mid-write
// never leaves a truncated record behind.
func (s *FS) Write(state State) error {
	path := s.statePath(state.ImageName)
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(state); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return fsyncDir(filepath.Dir(path))
}

func fsyncDir(dir string) error {
	df, err := os.Open(dir)
	if err != nil {
		return err
	}
	syncErr := df.Sync()
	closeErr := df.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}
