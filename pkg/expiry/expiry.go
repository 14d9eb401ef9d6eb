package expiry

import (
	"fmt"
	"time"
)

// DefaultRefreshThreshold is the remaining-time boundary below which a valid
// session is flagged as needing refresh.
const DefaultRefreshThreshold = 24 * time.Hour

// Status is the computed validity of a session record. It is derived on
// demand and never stored.
type Status struct {
	IsValid      bool
	NeedsRefresh bool
	// Remaining is the time left before expiry. Meaningless when Unlimited.
	Remaining time.Duration
	// Unlimited is set when the record carries no expiry information.
	// A record without expiry is treated as valid forever; this is a
	// deliberate policy, not a default-to-invalid choice.
	Unlimited bool
	ExpiresAt time.Time
}

// Check computes validity for an expiry timestamp against the threshold.
// A zero expiresAt means "no expiry information" and yields an unlimited,
// valid status.
func Check(expiresAt time.Time, threshold time.Duration) Status {
	return CheckAt(time.Now(), expiresAt, threshold)
}

// CheckAt is Check with an explicit clock, for deterministic tests.
func CheckAt(now, expiresAt time.Time, threshold time.Duration) Status {
	if threshold <= 0 {
		threshold = DefaultRefreshThreshold
	}

	if expiresAt.IsZero() {
		return Status{IsValid: true, Unlimited: true}
	}

	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return Status{IsValid: false, Remaining: 0, ExpiresAt: expiresAt}
	}

	return Status{
		IsValid:      true,
		NeedsRefresh: remaining <= threshold,
		Remaining:    remaining,
		ExpiresAt:    expiresAt,
	}
}

// Cookie mirrors what a browser would hold for one cookie entry.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// criticalCookies is the fixed allow-list of cookie names whose expiry
// bounds the session's lifetime. Other cookies are routine and ignored.
var criticalCookies = map[string]bool{
	"sessionid":  true,
	"csrftoken":  true,
	"ds_user_id": true,
	"rur":        true,
}

// EarliestExpiry scans the critical cookies and returns the minimum of their
// expiries. ok is false when none of them are present or none carry expiry
// information.
func EarliestExpiry(cookies []Cookie) (time.Time, bool) {
	var earliest time.Time
	found := false

	for _, c := range cookies {
		if !criticalCookies[c.Name] || c.Expires.IsZero() {
			continue
		}
		if !found || c.Expires.Before(earliest) {
			earliest = c.Expires
			found = true
		}
	}
	return earliest, found
}

// FormatRemaining renders a status's remaining time for humans. The output
// is a deterministic function of the duration alone: distinct strings for
// expired, unlimited, minutes-only, hours+minutes, and days+hours.
func FormatRemaining(s Status) string {
	if s.Unlimited {
		return "unlimited"
	}
	return FormatDuration(s.Remaining)
}

// FormatDuration renders a remaining duration; d <= 0 always yields "expired".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
