package scrape

import (
	"context"
	"errors"
	"time"

	"reelscraper/pkg/config"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
	"reelscraper/pkg/retry"
)

// Strategy is one scraping backend. Every backend implements the same four
// operations and reports a normalized result; the shared Base supplies the
// retry, timeout and block-detection machinery so concrete strategies only
// implement the fetches.
type Strategy interface {
	// Name identifies the backend without executing anything.
	Name() string
	// Enabled reports whether the backend may be used.
	Enabled() bool
	// Priority orders the backend among its peers (higher runs first).
	Priority() int

	SearchByHashtag(ctx context.Context, tag string, limit int) *models.StrategyResult
	GetUserReels(ctx context.Context, username string, limit int) *models.StrategyResult
	GetReelByURL(ctx context.Context, url string) *models.StrategyResult
	GetTrendingReels(ctx context.Context, limit int) *models.StrategyResult
}

// fetchFunc is one attempt of a concrete strategy's fetch operation.
type fetchFunc func(ctx context.Context) ([]models.ContentItem, error)

// Base carries the machinery shared by every strategy.
type Base struct {
	name     string
	enabled  bool
	priority int
	retryCfg config.RetryConfig
	log      logger.Logger
}

// NewBase wires the shared machinery from configuration.
func NewBase(name string, sc config.StrategyConfig, rc config.RetryConfig, log logger.Logger) Base {
	if log == nil {
		log = logger.GetLogger()
	}
	return Base{
		name:     name,
		enabled:  sc.Enabled,
		priority: sc.Priority,
		retryCfg: rc,
		log:      log.WithField("strategy", name),
	}
}

func (b *Base) Name() string  { return b.name }
func (b *Base) Enabled() bool { return b.enabled }
func (b *Base) Priority() int { return b.priority }

// Execute runs one operation through the shared retry and timeout machinery
// and maps the outcome to a normalized result. Each attempt races against
// the per-operation timeout; a timeout is retried like any other transient
// failure. Exhausted retries surface as one terminal result carrying the
// last cause.
func (b *Base) Execute(ctx context.Context, op string, fetch fetchFunc) *models.StrategyResult {
	start := time.Now()
	result := &models.StrategyResult{Strategy: b.name}

	backoff := &retry.ExponentialBackoff{
		BaseDelay:    b.retryCfg.InitialDelay,
		MaxDelay:     b.retryCfg.MaxDelay,
		Multiplier:   b.retryCfg.Multiplier,
		JitterFactor: b.retryCfg.Jitter,
	}
	cfg := &retry.Config{
		MaxAttempts: b.retryCfg.MaxRetries + 1,
		Backoff:     backoff,
		RetryIf:     b.shouldRetry,
		Context:     ctx,
		Logger:      b.log,
	}

	items, err := retry.DoWithResult(func() ([]models.ContentItem, error) {
		attemptCtx := ctx
		if b.retryCfg.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, b.retryCfg.Timeout)
			defer cancel()
		}
		return fetch(attemptCtx)
	}, cfg)

	result.Duration = time.Since(start)
	result.Items = items

	if err != nil {
		b.classifyFailure(result, op, err)
		return result
	}

	if len(items) > 0 {
		result.Status = models.StatusSuccess
	} else {
		// Zero items without a hard error is a valid outcome, not a failure.
		result.Status = models.StatusPartial
	}

	b.log.DebugWithFields("operation completed", map[string]interface{}{
		"operation": op,
		"status":    string(result.Status),
		"items":     len(items),
		"duration":  result.Duration.String(),
	})
	return result
}

// shouldRetry keeps auth and block failures out of the retry loop; they need
// a different strategy, not another attempt on the same blocked path.
func (b *Base) shouldRetry(err error) bool {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case errs.ErrorTypeAuth, errs.ErrorTypeBlocked, errs.ErrorTypeNotFound:
			return false
		}
	}
	return retry.DefaultRetryIf(err)
}

// classifyFailure maps a terminal error to the result status and flags.
func (b *Base) classifyFailure(result *models.StrategyResult, op string, err error) {
	result.Err = err
	result.Status = models.StatusFailed

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case errs.ErrorTypeRateLimit:
			result.Status = models.StatusRateLimited
			result.RateLimited = true
		case errs.ErrorTypeAuth:
			result.Status = models.StatusBlocked
			result.LoginRequired = true
		case errs.ErrorTypeBlocked:
			result.Status = models.StatusBlocked
			result.CaptchaRequired = true
		}
	}

	b.log.WarnWithFields("operation failed", map[string]interface{}{
		"operation": op,
		"status":    string(result.Status),
		"error":     err.Error(),
	})
}

// blockToError converts a detected block into the error taxonomy so the
// retry predicate and failure classification see one consistent shape.
func blockToError(block Block, status int) *errs.Error {
	switch block.Kind {
	case BlockRateLimit:
		return errs.New(errs.ErrorTypeRateLimit, "rate limited by upstream").WithCode(status)
	case BlockLoginRequired:
		return errs.New(errs.ErrorTypeAuth, "authentication required").WithCode(status)
	case BlockCaptcha:
		return errs.New(errs.ErrorTypeBlocked, "captcha challenge presented").WithCode(status)
	case BlockIPBan:
		return errs.New(errs.ErrorTypeBlocked, "source address appears blocked").WithCode(status)
	default:
		return nil
	}
}
