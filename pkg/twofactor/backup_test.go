package twofactor

import (
	"errors"
	"testing"
)

func TestBackupCodesFIFO(t *testing.T) {
	codes := []string{"11111111", "22222222", "33333333"}
	b := NewBackupCodes(codes)

	// Consuming all N codes succeeds N times, in original order.
	for i, want := range codes {
		got, err := b.Next()
		if err != nil {
			t.Fatalf("Next() #%d failed: %v", i+1, err)
		}
		if got != want {
			t.Errorf("Next() #%d = %q, want %q", i+1, got, want)
		}
		if remaining := b.Remaining(); remaining != len(codes)-i-1 {
			t.Errorf("Remaining after #%d = %d, want %d", i+1, remaining, len(codes)-i-1)
		}
	}

	// The (N+1)th call is a terminal failure for this method.
	if _, err := b.Next(); !errors.Is(err, ErrNoBackupCodes) {
		t.Errorf("Expected ErrNoBackupCodes, got %v", err)
	}
}

func TestBackupCodesIsolatedFromCaller(t *testing.T) {
	source := []string{"aaaa", "bbbb"}
	b := NewBackupCodes(source)
	source[0] = "mutated"

	got, err := b.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != "aaaa" {
		t.Errorf("Caller mutation leaked into stored codes: %q", got)
	}
}

func TestBackupCodesEmpty(t *testing.T) {
	b := NewBackupCodes(nil)
	if b.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", b.Remaining())
	}
	if _, err := b.Next(); !errors.Is(err, ErrNoBackupCodes) {
		t.Errorf("Expected ErrNoBackupCodes, got %v", err)
	}
}
