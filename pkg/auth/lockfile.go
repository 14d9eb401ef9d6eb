package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Errors
var (
	ErrLockTimeout = errors.New("timed out waiting for credential store lock")
)

const lockPollInterval = 50 * time.Millisecond

// Lock serializes cross-process access to the credential file via an
// exclusive lock file. A lock older than staleAfter is presumed abandoned by
// a crashed holder and force-released; this trades strict mutual exclusion
// under holder-crash for liveness.
type Lock struct {
	path       string
	owner      string
	staleAfter time.Duration
	maxWait    time.Duration
}

type lockPayload struct {
	Owner      string    `json:"owner"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// NewLock creates a lock guarding the file at path. The lock file itself
// lives at path + ".lock".
func NewLock(path string, staleAfter, maxWait time.Duration) *Lock {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	if maxWait <= 0 {
		maxWait = 10 * time.Second
	}
	return &Lock{
		path:       path + ".lock",
		owner:      uuid.NewString(),
		staleAfter: staleAfter,
		maxWait:    maxWait,
	}
}

// Acquire takes the lock, polling up to the configured wait bound. Stale
// locks are force-cleared before retrying.
func (l *Lock) Acquire() error {
	deadline := time.Now().Add(l.maxWait)

	for {
		if err := l.tryAcquire(); err == nil {
			return nil
		}

		l.clearIfStale()

		if time.Now().After(deadline) {
			return ErrLockTimeout
		}
		time.Sleep(lockPollInterval)
	}
}

func (l *Lock) tryAcquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	payload := lockPayload{
		Owner:      l.owner,
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
	}
	if err := json.NewEncoder(f).Encode(&payload); err != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock payload: %w", err)
	}
	return nil
}

// clearIfStale removes the lock file when its holder is presumed dead.
func (l *Lock) clearIfStale() {
	info, err := os.Stat(l.path)
	if err != nil {
		return
	}
	if time.Since(info.ModTime()) > l.staleAfter {
		os.Remove(l.path)
	}
}

// Release drops the lock if this instance still holds it. Releasing a lock
// that was force-cleared and re-taken by someone else is a no-op.
func (l *Lock) Release() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err == nil && payload.Owner != l.owner {
		return nil
	}
	return os.Remove(l.path)
}
