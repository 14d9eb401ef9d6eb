package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"reelscraper/pkg/auth"
	"reelscraper/pkg/logger"
)

// Authenticator acquires a fresh credential set by re-authenticating against
// the target service (browser automation, including any second-factor
// resolution, lives behind this interface).
type Authenticator interface {
	Login(ctx context.Context) (*auth.Credentials, error)
}

// State of the refresher's renewal cycle.
type State string

const (
	StateIdle       State = "idle"
	StateRefreshing State = "refreshing"
)

// Errors
var (
	ErrRefreshInProgress = errors.New("a refresh cycle is already running")
	ErrRefreshTooSoon    = errors.New("refresh attempted within the minimum interval")
)

// RefreshResult reports one renewal cycle.
type RefreshResult struct {
	Success     bool
	RetriesUsed int
	Err         error
}

// RefresherOptions tunes the renewal cycle.
type RefresherOptions struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is the randomization factor applied to each backoff delay.
	Jitter float64
	// MinInterval is the cool-down between refresh cycles; refresh is a
	// singleton operation per process even under overlapping callers.
	MinInterval time.Duration
}

func (o *RefresherOptions) defaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 2 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = time.Minute
	}
	if o.Multiplier < 1 {
		o.Multiplier = 2.0
	}
	if o.Jitter < 0 {
		o.Jitter = 0
	}
	if o.MinInterval <= 0 {
		o.MinInterval = 5 * time.Minute
	}
}

// Refresher drives full credential-renewal cycles: re-authenticate, persist
// the renewed credentials, and update the session manager.
// State machine: idle -> refreshing -> {succeeded, failed} -> idle.
type Refresher struct {
	mu          sync.Mutex
	state       State
	lastAttempt time.Time
	timer       *time.Timer

	store   *auth.FileStore
	manager *Manager
	authn   Authenticator
	opts    RefresherOptions
	log     logger.Logger
}

// NewRefresher creates a refresher wiring the store, manager and
// authenticator together.
func NewRefresher(store *auth.FileStore, manager *Manager, authn Authenticator, opts RefresherOptions, log logger.Logger) *Refresher {
	opts.defaults()
	if log == nil {
		log = logger.GetLogger()
	}
	return &Refresher{
		state:   StateIdle,
		store:   store,
		manager: manager,
		authn:   authn,
		opts:    opts,
		log:     log.WithField("component", "session_refresher"),
	}
}

// State returns the current cycle state.
func (r *Refresher) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Initialize loads the last-persisted session, seeds the manager with it,
// and reports whether a prior session existed. Expired credentials still
// seed the manager; the next check flags them for refresh.
func (r *Refresher) Initialize() (bool, error) {
	loaded, err := r.store.Load()
	if err != nil {
		return false, err
	}
	if loaded == nil {
		r.log.Info("no persisted session found")
		return false, nil
	}

	r.manager.Set(loaded.Credentials)
	r.log.InfoWithFields("persisted session restored", map[string]interface{}{
		"expired": loaded.Expired,
	})
	return true, nil
}

// ScheduleRefresh refreshes immediately when the session is already expired,
// or arms a deferred timer to fire at the needs-refresh boundary. A newer
// schedule supersedes a pending one. The outcome of the eventual cycle is
// reported through onResult (which may be nil) so callers tracking refresh
// statistics see deferred cycles too.
func (r *Refresher) ScheduleRefresh(ctx context.Context, threshold time.Duration, onResult func(*RefreshResult)) time.Time {
	report := func(result *RefreshResult) {
		if onResult != nil {
			onResult(result)
		}
	}

	status := r.manager.CheckValidity()

	if !status.IsValid {
		go report(r.RefreshNow(ctx))
		return time.Now()
	}
	if status.Unlimited {
		return time.Time{}
	}

	delay := status.Remaining - threshold
	if delay < 0 {
		delay = 0
	}
	fireAt := time.Now().Add(delay)

	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(delay, func() {
		report(r.RefreshNow(ctx))
	})
	r.mu.Unlock()

	r.log.InfoWithFields("refresh scheduled", map[string]interface{}{
		"fire_at": fireAt,
	})
	return fireAt
}

// CancelScheduled clears any pending scheduled refresh.
func (r *Refresher) CancelScheduled() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
}

// RefreshNow executes one renewal cycle with bounded retries and exponential
// backoff. Overlapping callers are rejected: one via the in-progress state,
// and one via the minimum-interval cool-down guard.
func (r *Refresher) RefreshNow(ctx context.Context) *RefreshResult {
	r.mu.Lock()
	if r.state == StateRefreshing {
		r.mu.Unlock()
		return &RefreshResult{Success: false, Err: ErrRefreshInProgress}
	}
	if !r.lastAttempt.IsZero() && time.Since(r.lastAttempt) < r.opts.MinInterval {
		r.mu.Unlock()
		return &RefreshResult{Success: false, Err: ErrRefreshTooSoon}
	}
	r.state = StateRefreshing
	r.lastAttempt = time.Now()
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.state = StateIdle
		r.mu.Unlock()
	}()

	r.log.Info("refresh cycle started")

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.opts.InitialDelay
	bo.MaxInterval = r.opts.MaxDelay
	bo.Multiplier = r.opts.Multiplier
	bo.RandomizationFactor = r.opts.Jitter
	bo.MaxElapsedTime = 0

	retries := -1
	var creds *auth.Credentials

	operation := func() error {
		retries++
		fresh, err := r.authn.Login(ctx)
		if err != nil {
			r.log.WarnWithFields("re-authentication attempt failed", map[string]interface{}{
				"attempt": retries + 1,
				"error":   err.Error(),
			})
			return err
		}
		if err := fresh.Validate(); err != nil {
			return backoff.Permanent(err)
		}
		creds = fresh
		return nil
	}

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(r.opts.MaxRetries)), ctx))
	if err != nil {
		r.log.ErrorWithFields("refresh cycle failed", map[string]interface{}{
			"retries": retries,
			"error":   err.Error(),
		})
		return &RefreshResult{Success: false, RetriesUsed: retries, Err: err}
	}

	if _, err := r.store.Save(creds); err != nil {
		r.log.ErrorWithFields("failed to persist renewed credentials", map[string]interface{}{
			"error": err.Error(),
		})
		return &RefreshResult{Success: false, RetriesUsed: retries, Err: err}
	}
	r.manager.Set(creds)

	r.log.InfoWithFields("refresh cycle succeeded", map[string]interface{}{
		"retries": retries,
	})
	return &RefreshResult{Success: true, RetriesUsed: retries}
}
