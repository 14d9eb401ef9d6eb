package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"reelscraper/pkg/logger"
)

// Notifier delivers operator-facing notifications. Delivery is best-effort:
// a notification failure must never fail the refresh cycle that emitted it.
type Notifier interface {
	Notify(message string, extra map[string]interface{})
}

// WebhookNotifier POSTs a JSON body {message, timestamp, ...extra} to a
// configured URL. Failures are logged and swallowed.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    logger.Logger
}

// NewWebhookNotifier creates a webhook notifier for the given URL.
func NewWebhookNotifier(url string, log logger.Logger) *WebhookNotifier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.WithField("component", "webhook_notifier"),
	}
}

// Notify delivers one notification, best-effort.
func (n *WebhookNotifier) Notify(message string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	}
	for k, v := range extra {
		payload[k] = v
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.log.WithError(err).Warn("failed to marshal webhook payload")
		return
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		n.log.WithError(err).Warn("webhook delivery failed")
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		n.log.WarnWithFields("webhook rejected", map[string]interface{}{
			"status": resp.StatusCode,
		})
	}
}

// Stats is a snapshot of the scheduler's counters.
type Stats struct {
	IsRunning             bool
	NextCheckAt           time.Time
	NextRefreshAt         time.Time
	LastSuccessfulRefresh time.Time
	ConsecutiveFailures   int
	TotalAttempts         int
	TotalSuccesses        int
}

// SchedulerOptions tunes the scheduler.
type SchedulerOptions struct {
	// CheckInterval is the wall-clock period between validity checks.
	CheckInterval time.Duration
	// RefreshThreshold is the needs-refresh boundary passed to the refresher.
	RefreshThreshold time.Duration
	// MaxConsecutiveFailures is the alerting threshold.
	MaxConsecutiveFailures int
}

func (o *SchedulerOptions) defaults() {
	if o.CheckInterval <= 0 {
		o.CheckInterval = time.Hour
	}
	if o.RefreshThreshold <= 0 {
		o.RefreshThreshold = 24 * time.Hour
	}
	if o.MaxConsecutiveFailures <= 0 {
		o.MaxConsecutiveFailures = 5
	}
}

// Scheduler wraps the refresher with periodic wall-clock checking and
// consecutive-failure alerting. Crossing the failure threshold raises a
// distinct event without stopping the scheduler: operator intervention, not
// process death, is the expected response.
type Scheduler struct {
	mu    sync.Mutex
	stats Stats
	stop  chan struct{}

	refresher *Refresher
	manager   *Manager
	opts      SchedulerOptions
	notifier  Notifier
	onMaxFail func(failures int)
	log       logger.Logger
}

// NewScheduler creates a scheduler. notifier may be nil.
func NewScheduler(refresher *Refresher, manager *Manager, opts SchedulerOptions, notifier Notifier, log logger.Logger) *Scheduler {
	opts.defaults()
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scheduler{
		refresher: refresher,
		manager:   manager,
		opts:      opts,
		notifier:  notifier,
		log:       log.WithField("component", "refresh_scheduler"),
	}
}

// OnMaxFailures registers a callback fired when the consecutive-failure
// threshold is crossed.
func (s *Scheduler) OnMaxFailures(fn func(failures int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMaxFail = fn
}

// Start begins periodic checking until Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.stop = stop
	s.stats.IsRunning = true
	s.stats.NextCheckAt = time.Now().Add(s.opts.CheckInterval)
	s.mu.Unlock()

	s.log.InfoWithFields("scheduler started", map[string]interface{}{
		"check_interval": s.opts.CheckInterval,
	})

	go func() {
		ticker := time.NewTicker(s.opts.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunCheck(ctx)
				s.mu.Lock()
				s.stats.NextCheckAt = time.Now().Add(s.opts.CheckInterval)
				s.mu.Unlock()
			case <-stop:
				return
			case <-ctx.Done():
				s.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic checking and cancels any scheduled refresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.stats.IsRunning = false
	s.mu.Unlock()
	s.refresher.CancelScheduled()
	s.log.Info("scheduler stopped")
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RunCheck performs one periodic check: an expired session refreshes
// immediately, a soon-to-expire one gets a scheduled refresh.
func (s *Scheduler) RunCheck(ctx context.Context) {
	status := s.manager.CheckValidity()

	switch {
	case !s.manager.HasSession():
		s.log.Debug("no session to check")
	case !status.IsValid:
		s.log.Warn("session expired, refreshing now")
		s.recordResult(s.refresher.RefreshNow(ctx))
	case status.NeedsRefresh:
		// Deferred cycles report back through recordResult so the counters
		// and notifications cover them like immediate ones.
		fireAt := s.refresher.ScheduleRefresh(ctx, s.opts.RefreshThreshold, s.recordResult)
		s.mu.Lock()
		s.stats.NextRefreshAt = fireAt
		s.mu.Unlock()
	default:
		s.log.DebugWithFields("session healthy", map[string]interface{}{
			"remaining": status.Remaining.String(),
		})
	}
}

// RefreshNow runs an immediate cycle through the scheduler so its counters
// and notifications stay consistent.
func (s *Scheduler) RefreshNow(ctx context.Context) *RefreshResult {
	result := s.refresher.RefreshNow(ctx)
	s.recordResult(result)
	return result
}

func (s *Scheduler) recordResult(result *RefreshResult) {
	if result.Err == ErrRefreshInProgress || result.Err == ErrRefreshTooSoon {
		// Not a cycle of its own; the running cycle will report.
		return
	}

	s.mu.Lock()
	s.stats.TotalAttempts++
	var crossed bool
	var failures int
	if result.Success {
		s.stats.TotalSuccesses++
		s.stats.ConsecutiveFailures = 0
		s.stats.LastSuccessfulRefresh = time.Now()
	} else {
		s.stats.ConsecutiveFailures++
		failures = s.stats.ConsecutiveFailures
		crossed = failures == s.opts.MaxConsecutiveFailures
	}
	onMaxFail := s.onMaxFail
	s.mu.Unlock()

	if result.Success {
		s.notify("session refresh succeeded", map[string]interface{}{
			"retries": result.RetriesUsed,
		})
		return
	}

	s.notify("session refresh failed", map[string]interface{}{
		"consecutive_failures": failures,
		"error":                result.Err.Error(),
	})

	if crossed {
		s.log.ErrorWithFields("max consecutive refresh failures reached", map[string]interface{}{
			"failures": failures,
		})
		s.notify("session refresh max failures reached", map[string]interface{}{
			"consecutive_failures": failures,
		})
		if onMaxFail != nil {
			onMaxFail(failures)
		}
	}
}

func (s *Scheduler) notify(message string, extra map[string]interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(message, extra)
}
