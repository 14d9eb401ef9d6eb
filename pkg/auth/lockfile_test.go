package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLockAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	lock := NewLock(path, time.Minute, time.Second)

	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Fatalf("Lock file missing: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); !os.IsNotExist(err) {
		t.Error("Lock file still present after release")
	}
}

func TestLockContentionTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	holder := NewLock(path, time.Minute, time.Second)
	if err := holder.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer holder.Release()

	contender := NewLock(path, time.Minute, 200*time.Millisecond)
	if err := contender.Acquire(); !errors.Is(err, ErrLockTimeout) {
		t.Errorf("Expected ErrLockTimeout, got %v", err)
	}
}

func TestLockStaleForceClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	holder := NewLock(path, 50*time.Millisecond, time.Second)
	if err := holder.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// Age the lock file past the staleness bound.
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(path+".lock", old, old); err != nil {
		t.Fatalf("Failed to age lock file: %v", err)
	}

	contender := NewLock(path, 50*time.Millisecond, time.Second)
	if err := contender.Acquire(); err != nil {
		t.Fatalf("Stale lock not force-cleared: %v", err)
	}
	contender.Release()
}

func TestLockReleaseOnlyOwn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	a := NewLock(path, time.Minute, time.Second)
	if err := a.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// A different instance releasing must not drop A's lock.
	b := NewLock(path, time.Minute, time.Second)
	if err := b.Release(); err != nil {
		t.Fatalf("Foreign release errored: %v", err)
	}
	if _, err := os.Stat(path + ".lock"); err != nil {
		t.Error("Foreign release removed a lock it did not hold")
	}
	a.Release()
}
