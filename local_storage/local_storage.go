// Package local_storage is a small file-backed key-value store used for state
// that must survive restarts: the client identity and the warm-start snapshot.
// Each key maps to one file in the state directory. Writes are atomic
// (temporary file + rename) and serialized across processes with filelock.
package local_storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/isseis/go-ytdl-client/filelock"
)

const (
	dirPerm  = 0o755
	filePerm = 0o600

	lockPoll    = 20 * time.Millisecond
	lockTimeout = 5 * time.Second
)

// InvalidKeyError is returned for keys that cannot be used as file names.
type InvalidKeyError string

func (e InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid storage key %q", string(e))
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Store persists values under string keys in a directory.
// All methods are safe for concurrent use by multiple goroutines and processes.
type Store struct {
	dir string
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage directory cannot be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	return &Store{dir: abs}, nil
}

// DefaultDir returns $XDG_STATE_HOME/<app>, falling back to ~/.local/state/<app>.
func DefaultDir(app string) (string, error) {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, app), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", app), nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(key string) (string, error) {
	if key == "." || key == ".." || !validKey.MatchString(key) {
		return "", InvalidKeyError(key)
	}
	return filepath.Join(s.dir, key), nil
}

// Get returns the value stored under key. The boolean is false when the key is absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("file read error: %w", err)
	}
	return data, true, nil
}

// Set replaces the value stored under key.
func (s *Store) Set(key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("file write error: %w", err)
	}

	unlock, err := s.lock(p)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("file write error: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("file write error: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file write error: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file write error: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("file write error: %w", err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	unlock, err := s.lock(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("file remove error: %w", err)
	}
	return nil
}

func (s *Store) lock(p string) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	unlock, err := filelock.Lock(ctx, p, lockPoll, filelock.DefaultStaleAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", filepath.Base(p), err)
	}
	return unlock, nil
}
