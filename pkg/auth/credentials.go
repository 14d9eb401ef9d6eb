package auth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// DefaultMachineID is the documented default for the routing token; the
// upstream service accepts any datacenter code for fresh sessions.
const DefaultMachineID = "FTW"

// DefaultExpiryHorizon is how long a freshly extracted credential set is
// assumed to stay valid.
const DefaultExpiryHorizon = 90 * 24 * time.Hour

// Credentials is the four-field authentication bundle required to act as a
// logged-in identity. All four tokens must be non-empty for the set to be
// usable; absence of any one renders it invalid regardless of expiry.
type Credentials struct {
	SessionID   string    `json:"session_id"`
	CSRFToken   string    `json:"csrf_token"`
	UserID      string    `json:"user_id"`
	MachineID   string    `json:"machine_id"`
	ExtractedAt time.Time `json:"extracted_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Errors
var (
	ErrMissingSessionID = errors.New("session token is required")
	ErrMissingCSRFToken = errors.New("CSRF token is required")
	ErrMissingUserID    = errors.New("owner id is required")
	ErrMissingMachineID = errors.New("routing token is required")
)

// New creates a credential set stamped now with the default expiry horizon.
func New(sessionID, csrfToken, userID, machineID string) *Credentials {
	now := time.Now()
	return &Credentials{
		SessionID:   sessionID,
		CSRFToken:   csrfToken,
		UserID:      userID,
		MachineID:   machineID,
		ExtractedAt: now,
		ExpiresAt:   now.Add(DefaultExpiryHorizon),
	}
}

// Validate checks that all four required fields are present.
func (c *Credentials) Validate() error {
	if c.SessionID == "" {
		return ErrMissingSessionID
	}
	if c.CSRFToken == "" {
		return ErrMissingCSRFToken
	}
	if c.UserID == "" {
		return ErrMissingUserID
	}
	if c.MachineID == "" {
		return ErrMissingMachineID
	}
	return nil
}

// Expired reports whether the set has passed its expiry timestamp. A zero
// ExpiresAt means no expiry information and is treated as non-expiring.
func (c *Credentials) Expired() bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(time.Now())
}

// Clone returns a copy so callers can hold a snapshot safely.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Sanitize returns a copy with token values masked for logging.
func (c *Credentials) Sanitize() *Credentials {
	if c == nil {
		return nil
	}
	return &Credentials{
		SessionID:   maskString(c.SessionID),
		CSRFToken:   maskString(c.CSRFToken),
		UserID:      c.UserID,
		MachineID:   c.MachineID,
		ExtractedAt: c.ExtractedAt,
		ExpiresAt:   c.ExpiresAt,
	}
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// UserIDFromSessionID extracts the numeric owner id from a session token.
// Session tokens encode the owner as a "<userid>%3A..." (url-escaped
// "<userid>:...") prefix; a token without that shape yields ok=false.
func UserIDFromSessionID(sessionID string) (string, bool) {
	decoded, err := url.QueryUnescape(sessionID)
	if err != nil {
		decoded = sessionID
	}
	idx := strings.IndexByte(decoded, ':')
	if idx <= 0 {
		return "", false
	}
	id := decoded[:idx]
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}
