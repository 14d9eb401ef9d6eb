package twofactor

import (
	"errors"
	"sync"
)

// ErrNoBackupCodes is returned once every code has been consumed.
// Exhaustion is terminal for this method; the caller must pick another.
var ErrNoBackupCodes = errors.New("no backup codes left")

// BackupCodes is a consumable ordered sequence of one-time codes. Each use
// permanently removes the first remaining entry; codes never replay.
type BackupCodes struct {
	mu    sync.Mutex
	codes []string
}

// NewBackupCodes creates a consumable list from the given codes, in order.
func NewBackupCodes(codes []string) *BackupCodes {
	return &BackupCodes{codes: append([]string(nil), codes...)}
}

// Next pops and returns the oldest remaining code.
func (b *BackupCodes) Next() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.codes) == 0 {
		return "", ErrNoBackupCodes
	}
	code := b.codes[0]
	b.codes = b.codes[1:]
	return code, nil
}

// Remaining reports how many codes are left.
func (b *BackupCodes) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.codes)
}
