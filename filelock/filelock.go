// Package filelock provides a simple file-based mutual exclusion lock.
// It ensures that only one process can hold a lock for a given file at a time,
// even across multiple processes. The local storage layer uses it to serialize
// writes to the client state directory when several ytdl processes share it.
package filelock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockHeld is returned when attempting to acquire a lock that is already held.
var ErrLockHeld = fmt.Errorf("lock already held")

// DefaultStaleAfter is the age after which a lock left behind by a crashed process is broken by Lock.
const DefaultStaleAfter = 30 * time.Second

// LockInfo is the content written into a lock file.
type LockInfo struct {
	PID       int    `json:"pid"`
	Hostname  string `json:"hostname,omitempty"`
	Timestamp string `json:"timestamp"`
}

func lockFileName(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return absPath + ".lock", nil
}

// TryLock attempts to acquire a lock for the given file.
// Returns a function to release the lock, or ErrLockHeld if another holder exists.
func TryLock(path string) (func(), error) {
	lockFile, err := lockFileName(path)
	if err != nil {
		return nil, err
	}

	// O_EXCL ensures that this call creates the file - if it already exists, it will fail
	f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLockHeld
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	hostname, _ := os.Hostname()
	info := LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	encErr := json.NewEncoder(f).Encode(info)
	closeErr := f.Close()
	if encErr != nil || closeErr != nil {
		os.Remove(lockFile)
		if encErr != nil {
			return nil, fmt.Errorf("failed to write lock file: %w", encErr)
		}
		return nil, fmt.Errorf("failed to write lock file: %w", closeErr)
	}

	unlock := func() {
		os.Remove(lockFile)
	}
	return unlock, nil
}

// ReadLockInfo returns the holder information stored in the lock file for path.
func ReadLockInfo(path string) (*LockInfo, error) {
	lockFile, err := lockFileName(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(lockFile)
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("invalid lock file %s: %w", lockFile, err)
	}
	return &info, nil
}

// Lock blocks until the lock for path is acquired, ctx is done, or an unexpected error occurs.
// A lock whose timestamp is older than staleAfter is considered abandoned and removed.
// A non-positive staleAfter disables stale lock detection.
func Lock(ctx context.Context, path string, poll time.Duration, staleAfter time.Duration) (func(), error) {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	for {
		unlock, err := TryLock(path)
		if err == nil {
			return unlock, nil
		}
		if err != ErrLockHeld {
			return nil, err
		}
		if staleAfter > 0 && breakStaleLock(path, staleAfter) {
			continue
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// breakStaleLock removes the lock file if its holder stamped it longer than staleAfter ago.
func breakStaleLock(path string, staleAfter time.Duration) bool {
	info, err := ReadLockInfo(path)
	if err != nil {
		// Holder may be between create and write; retry on the next poll.
		return false
	}
	ts, err := time.Parse(time.RFC3339, info.Timestamp)
	if err != nil || time.Since(ts) < staleAfter {
		return false
	}
	lockFile, err := lockFileName(path)
	if err != nil {
		return false
	}
	return os.Remove(lockFile) == nil
}
