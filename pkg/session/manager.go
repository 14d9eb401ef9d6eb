package session

import (
	"errors"
	"sync"
	"time"

	"reelscraper/pkg/auth"
	"reelscraper/pkg/expiry"
	"reelscraper/pkg/logger"
)

// Record is the in-memory representation of the active session: a credential
// set plus derived state and, optionally, the raw cookie entries a browser
// would hold. Records are replaced whole, never mutated in place.
type Record struct {
	Credentials *auth.Credentials
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Cookies     []expiry.Cookie
}

// ErrNoSessionCookie is returned when a cookie set lacks the primary token.
var ErrNoSessionCookie = errors.New("cookie set has no session token")

// Manager holds the single active session record and notifies observers of
// validity transitions. State machine: no-session -> set -> {valid,
// expiring-soon, expired} -> clear -> no-session.
type Manager struct {
	mu        sync.Mutex
	record    *Record
	threshold time.Duration

	onExpiringSoon   func(expiry.Status)
	onSessionInvalid func()
	// Transition latches: callbacks fire once per transition, not once per
	// check while the state persists. Reset when a new record is set.
	expiringFired bool
	invalidFired  bool

	stop chan struct{}
	log  logger.Logger
}

// NewManager creates a session manager with the given refresh threshold.
func NewManager(threshold time.Duration, log logger.Logger) *Manager {
	if threshold <= 0 {
		threshold = expiry.DefaultRefreshThreshold
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		threshold: threshold,
		log:       log.WithField("component", "session_manager"),
	}
}

// OnExpiringSoon registers the expiring-soon transition callback.
func (m *Manager) OnExpiringSoon(fn func(expiry.Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpiringSoon = fn
}

// OnSessionInvalid registers the invalid transition callback.
func (m *Manager) OnSessionInvalid(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSessionInvalid = fn
}

// Set replaces the active record with one built from a credential set.
func (m *Manager) Set(creds *auth.Credentials) {
	m.setRecord(&Record{
		Credentials: creds.Clone(),
		CreatedAt:   time.Now(),
		ExpiresAt:   creds.ExpiresAt,
	})
}

// SetCookies derives a session directly from a raw cookie set, without a
// separate login call. This is how credentials obtained out-of-band (e.g.
// from a browser-automation login) are plugged in. The record's expiry is
// the earliest expiry among the critical cookies.
func (m *Manager) SetCookies(cookies []expiry.Cookie) (*Record, error) {
	var creds auth.Credentials
	for _, c := range cookies {
		switch c.Name {
		case "sessionid":
			creds.SessionID = c.Value
		case "csrftoken":
			creds.CSRFToken = c.Value
		case "ds_user_id":
			creds.UserID = c.Value
		case "rur":
			creds.MachineID = c.Value
		}
	}
	if creds.SessionID == "" {
		return nil, ErrNoSessionCookie
	}
	if creds.UserID == "" {
		if id, ok := auth.UserIDFromSessionID(creds.SessionID); ok {
			creds.UserID = id
		}
	}
	if creds.MachineID == "" {
		creds.MachineID = auth.DefaultMachineID
	}

	now := time.Now()
	creds.ExtractedAt = now
	if earliest, ok := expiry.EarliestExpiry(cookies); ok {
		creds.ExpiresAt = earliest
	} else {
		creds.ExpiresAt = now.Add(auth.DefaultExpiryHorizon)
	}

	record := &Record{
		Credentials: &creds,
		CreatedAt:   now,
		ExpiresAt:   creds.ExpiresAt,
		Cookies:     append([]expiry.Cookie(nil), cookies...),
	}
	m.setRecord(record)
	return record, nil
}

func (m *Manager) setRecord(r *Record) {
	m.mu.Lock()
	m.record = r
	m.expiringFired = false
	m.invalidFired = false
	m.mu.Unlock()

	m.log.InfoWithFields("session record set", map[string]interface{}{
		"expires_at": r.ExpiresAt,
	})
}

// Clear drops the active session.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.record = nil
	m.expiringFired = false
	m.invalidFired = false
	m.mu.Unlock()
	m.log.Info("session cleared")
}

// Current returns a snapshot of the active record, or nil.
func (m *Manager) Current() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.record == nil {
		return nil
	}
	snapshot := *m.record
	snapshot.Credentials = m.record.Credentials.Clone()
	return &snapshot
}

// HasSession reports whether a record is held.
func (m *Manager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record != nil
}

// CheckValidity recomputes the session's validity status. Registered
// callbacks fire on state transitions only; repeated checks in the same
// state do not re-fire. Callbacks are notifications, not gates: the status
// is always returned regardless of what the callbacks do.
func (m *Manager) CheckValidity() expiry.Status {
	m.mu.Lock()

	if m.record == nil {
		m.mu.Unlock()
		return expiry.Status{}
	}

	status := expiry.Check(m.record.ExpiresAt, m.threshold)

	var notifyExpiring func(expiry.Status)
	var notifyInvalid func()

	if !status.IsValid && !m.invalidFired {
		m.invalidFired = true
		notifyInvalid = m.onSessionInvalid
	}
	if status.IsValid && status.NeedsRefresh && !m.expiringFired {
		m.expiringFired = true
		notifyExpiring = m.onExpiringSoon
	}
	m.mu.Unlock()

	if notifyExpiring != nil {
		m.log.WarnWithFields("session expiring soon", map[string]interface{}{
			"remaining": expiry.FormatRemaining(status),
		})
		notifyExpiring(status)
	}
	if notifyInvalid != nil {
		m.log.Warn("session invalid")
		notifyInvalid()
	}
	return status
}

// Invalidate clears the record in response to a terminal authentication
// failure and fires the invalid callback if it has not fired yet.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	fired := m.invalidFired
	m.invalidFired = true
	m.record = nil
	notify := m.onSessionInvalid
	m.mu.Unlock()

	m.log.Warn("session invalidated")
	if !fired && notify != nil {
		notify()
	}
}

// StartPeriodicChecks runs CheckValidity on the given interval until Stop.
func (m *Manager) StartPeriodicChecks(interval time.Duration) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CheckValidity()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts periodic checks.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.mu.Unlock()
}
