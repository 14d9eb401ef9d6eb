package expiry

import (
	"testing"
	"time"
)

func TestCheckAt(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	threshold := 24 * time.Hour

	t.Run("valid with time to spare", func(t *testing.T) {
		s := CheckAt(now, now.Add(72*time.Hour), threshold)
		if !s.IsValid || s.NeedsRefresh || s.Unlimited {
			t.Errorf("Unexpected status: %+v", s)
		}
		if s.Remaining != 72*time.Hour {
			t.Errorf("Remaining = %v, want 72h", s.Remaining)
		}
	})

	t.Run("inside refresh threshold", func(t *testing.T) {
		s := CheckAt(now, now.Add(6*time.Hour), threshold)
		if !s.IsValid || !s.NeedsRefresh {
			t.Errorf("Expected valid+needsRefresh, got %+v", s)
		}
	})

	t.Run("expired", func(t *testing.T) {
		s := CheckAt(now, now.Add(-time.Minute), threshold)
		if s.IsValid {
			t.Error("Expired timestamp reported valid")
		}
		if s.Remaining != 0 {
			t.Errorf("Remaining = %v, want 0", s.Remaining)
		}
	})

	t.Run("exactly now is expired", func(t *testing.T) {
		if s := CheckAt(now, now, threshold); s.IsValid {
			t.Error("Expiry at now reported valid")
		}
	})

	t.Run("no expiry means valid forever", func(t *testing.T) {
		s := CheckAt(now, time.Time{}, threshold)
		if !s.IsValid || !s.Unlimited {
			t.Errorf("Expected unlimited valid status, got %+v", s)
		}
	})
}

func TestEarliestExpiry(t *testing.T) {
	now := time.Now()

	t.Run("minimum of critical cookies", func(t *testing.T) {
		cookies := []Cookie{
			{Name: "sessionid", Expires: now.Add(72 * time.Hour)},
			{Name: "csrftoken", Expires: now.Add(24 * time.Hour)},
			{Name: "mid", Expires: now.Add(time.Hour)}, // not critical
		}
		earliest, ok := EarliestExpiry(cookies)
		if !ok {
			t.Fatal("Expected an expiry")
		}
		if !earliest.Equal(now.Add(24 * time.Hour)) {
			t.Errorf("Earliest = %v, want csrftoken expiry", earliest)
		}
	})

	t.Run("session cookies without expiry", func(t *testing.T) {
		cookies := []Cookie{
			{Name: "sessionid"},
			{Name: "csrftoken"},
		}
		if _, ok := EarliestExpiry(cookies); ok {
			t.Error("Expected ok=false when no critical cookie carries expiry")
		}
	})

	t.Run("no critical cookies", func(t *testing.T) {
		cookies := []Cookie{{Name: "mid", Expires: now}}
		if _, ok := EarliestExpiry(cookies); ok {
			t.Error("Expected ok=false for non-critical cookies only")
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Hour, "expired"},
		{0, "expired"},
		{30 * time.Minute, "30m"},
		{90 * time.Minute, "1h 30m"},
		{26 * time.Hour, "1d 2h"},
		{49*time.Hour + 10*time.Minute, "2d 1h"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
		// Deterministic: same input, same output.
		if again := FormatDuration(tt.d); again != FormatDuration(tt.d) {
			t.Errorf("FormatDuration(%v) not deterministic", tt.d)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	if got := FormatRemaining(Status{Unlimited: true, IsValid: true}); got != "unlimited" {
		t.Errorf("FormatRemaining(unlimited) = %q", got)
	}
	if got := FormatRemaining(Status{Remaining: 0}); got != "expired" {
		t.Errorf("FormatRemaining(expired) = %q", got)
	}
}
