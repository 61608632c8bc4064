// Package singleinstance enforces a single-instance rule: only one
// spyrun process may run against a given configuration at once, keyed
// by the SHA-256 hex digest of the config file's contents.
//
// Locking uses github.com/gofrs/flock, a cross-process advisory file
// lock, following its documented TryLock usage for a non-blocking
// acquire.
package singleinstance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	spyrunerrors "github.com/yukimemi/spyrun/internal/errors"
)

// Guard holds the advisory lock for one running instance.
type Guard struct {
	lock *flock.Flock
	path string
}

// Key returns the SHA-256 hex digest of configPath's contents, used as
// the single-instance key.
func Key(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", spyrunerrors.InstanceLock("singleinstance.Key", "read config for keying", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Acquire tries to obtain the exclusive lock file for configPath,
// named after configPath's content hash under dir. It fails fast
// (non-blocking): another live instance holding the lock is itself a
// fatal condition for the caller.
func Acquire(dir, configPath string) (*Guard, error) {
	key, err := Key(configPath)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Join(dir, fmt.Sprintf("spyrun_%s.lock", key))
	lock := flock.New(lockPath)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, spyrunerrors.InstanceLock("singleinstance.Acquire", "acquire lock", err)
	}
	if !locked {
		return nil, spyrunerrors.InstanceLock("singleinstance.Acquire", "another instance already holds "+lockPath, nil)
	}

	return &Guard{lock: lock, path: lockPath}, nil
}

// Release unlocks and removes the lock file.
func (g *Guard) Release() error {
	if g == nil || g.lock == nil {
		return nil
	}
	if err := g.lock.Unlock(); err != nil {
		return err
	}
	return os.Remove(g.path)
}
