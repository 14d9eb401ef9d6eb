package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelscraper/pkg/config"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/models"
	"reelscraper/pkg/retry"
)

func testBase(maxRetries int) Base {
	return NewBase("test",
		config.StrategyConfig{Enabled: true, Priority: 50},
		config.RetryConfig{
			MaxRetries:   maxRetries,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
		nil)
}

func oneItem() []models.ContentItem {
	return []models.ContentItem{{ID: "1", Shortcode: "ABC"}}
}

func TestExecuteFlakyFetchEventuallySucceeds(t *testing.T) {
	// Fails n times then succeeds; with maxRetries >= n the overall call
	// must succeed.
	const n = 2
	base := testBase(3)

	calls := 0
	result := base.Execute(context.Background(), "search", func(ctx context.Context) ([]models.ContentItem, error) {
		calls++
		if calls <= n {
			return nil, errs.New(errs.ErrorTypeNetwork, "connection reset")
		}
		return oneItem(), nil
	})

	if result.Status != models.StatusSuccess {
		t.Fatalf("Status = %s, want success (err: %v)", result.Status, result.Err)
	}
	if calls != n+1 {
		t.Errorf("Fetch called %d times, want %d", calls, n+1)
	}
	if len(result.Items) != 1 {
		t.Errorf("Items = %d, want 1", len(result.Items))
	}
}

func TestExecuteBackoffDelaysNonDecreasing(t *testing.T) {
	// The same backoff shape Execute builds from the retry config. No jitter,
	// so the sequence must be non-decreasing up to the cap.
	cfg := testBase(4).retryCfg
	backoff := &retry.ExponentialBackoff{
		BaseDelay:  cfg.InitialDelay,
		MaxDelay:   cfg.MaxDelay,
		Multiplier: cfg.Multiplier,
	}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 8; attempt++ {
		delay := backoff.NextDelay(attempt)
		if delay < prev {
			t.Errorf("Delay for attempt %d (%v) below previous (%v)", attempt, delay, prev)
		}
		if delay > cfg.MaxDelay {
			t.Errorf("Delay for attempt %d (%v) exceeds cap %v", attempt, delay, cfg.MaxDelay)
		}
		prev = delay
	}
}

func TestExecuteExhaustedRetriesFail(t *testing.T) {
	base := testBase(2)

	calls := 0
	result := base.Execute(context.Background(), "search", func(ctx context.Context) ([]models.ContentItem, error) {
		calls++
		return nil, errs.New(errs.ErrorTypeServerError, "upstream 500")
	})

	if result.Status != models.StatusFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
	if calls != 3 { // initial attempt plus 2 retries
		t.Errorf("Fetch called %d times, want 3", calls)
	}
	if result.Err == nil {
		t.Error("Expected terminal error to be carried on the result")
	}
}

func TestExecuteZeroItemsIsPartial(t *testing.T) {
	base := testBase(0)

	result := base.Execute(context.Background(), "hashtag", func(ctx context.Context) ([]models.ContentItem, error) {
		return nil, nil
	})

	if result.Status != models.StatusPartial {
		t.Errorf("Status = %s, want partial", result.Status)
	}
	if result.Err != nil {
		t.Errorf("Partial result should carry no error, got %v", result.Err)
	}
	if !result.OK() {
		t.Error("Partial result should report OK")
	}
}

func TestExecuteAuthFailureNotRetried(t *testing.T) {
	base := testBase(5)

	calls := 0
	result := base.Execute(context.Background(), "user", func(ctx context.Context) ([]models.ContentItem, error) {
		calls++
		return nil, errs.New(errs.ErrorTypeAuth, "session invalid").WithCode(401)
	})

	if calls != 1 {
		t.Errorf("Auth failure retried %d times, want single attempt", calls)
	}
	if result.Status != models.StatusBlocked {
		t.Errorf("Status = %s, want blocked", result.Status)
	}
	if !result.LoginRequired {
		t.Error("Expected LoginRequired flag")
	}
}

func TestExecuteRateLimitClassification(t *testing.T) {
	base := testBase(0)

	result := base.Execute(context.Background(), "trending", func(ctx context.Context) ([]models.ContentItem, error) {
		return nil, errs.New(errs.ErrorTypeRateLimit, "rate limited").WithCode(429)
	})

	if result.Status != models.StatusRateLimited {
		t.Errorf("Status = %s, want rate_limited", result.Status)
	}
	if !result.RateLimited {
		t.Error("Expected RateLimited flag")
	}
}

func TestExecuteCaptchaClassification(t *testing.T) {
	base := testBase(0)

	result := base.Execute(context.Background(), "reel", func(ctx context.Context) ([]models.ContentItem, error) {
		return nil, blockToError(Block{Kind: BlockCaptcha}, 200)
	})

	if result.Status != models.StatusBlocked {
		t.Errorf("Status = %s, want blocked", result.Status)
	}
	if !result.CaptchaRequired {
		t.Error("Expected CaptchaRequired flag")
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	base := testBase(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := base.Execute(ctx, "search", func(ctx context.Context) ([]models.ContentItem, error) {
		return nil, ctx.Err()
	})

	if result.Status != models.StatusFailed {
		t.Errorf("Status = %s, want failed", result.Status)
	}
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", result.Err)
	}
}
