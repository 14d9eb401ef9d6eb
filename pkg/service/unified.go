package service

import (
	"context"
	"sort"

	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
	"reelscraper/pkg/scrape"
)

// CacheSource tags results served from the request-coalescing cache.
const CacheSource = "cache"

// Unified orchestrates the scraping backends: strategies run in descending
// priority order, the first non-empty successful result wins and is tagged
// with the strategy that produced it, and identical requests are coalesced
// through an in-memory cache. An all-strategies-empty outcome is a valid
// result, not an error.
type Unified struct {
	strategies []scrape.Strategy
	cache      *resultCache
	log        logger.Logger
}

// NewUnified builds the orchestrator from the configured backends. Disabled
// strategies are dropped here; the rest are ordered once by priority.
func NewUnified(strategies []scrape.Strategy, log logger.Logger) *Unified {
	if log == nil {
		log = logger.GetLogger()
	}

	active := make([]scrape.Strategy, 0, len(strategies))
	for _, s := range strategies {
		if s.Enabled() {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority() > active[j].Priority()
	})

	return &Unified{
		strategies: active,
		cache:      newResultCache(),
		log:        log.WithField("component", "unified"),
	}
}

// Strategies reports the active backends in execution order.
func (u *Unified) Strategies() []scrape.Strategy {
	return u.strategies
}

// SearchByHashtag finds reels for a hashtag.
func (u *Unified) SearchByHashtag(ctx context.Context, tag string, limit int) *models.StrategyResult {
	return u.run(ctx, "search_by_hashtag", tag, limit, func(s scrape.Strategy) *models.StrategyResult {
		return s.SearchByHashtag(ctx, tag, limit)
	})
}

// GetUserReels lists a user's reels.
func (u *Unified) GetUserReels(ctx context.Context, username string, limit int) *models.StrategyResult {
	return u.run(ctx, "get_user_reels", username, limit, func(s scrape.Strategy) *models.StrategyResult {
		return s.GetUserReels(ctx, username, limit)
	})
}

// GetReelByURL fetches a single reel by its page URL.
func (u *Unified) GetReelByURL(ctx context.Context, url string) *models.StrategyResult {
	return u.run(ctx, "get_reel_by_url", url, 1, func(s scrape.Strategy) *models.StrategyResult {
		return s.GetReelByURL(ctx, url)
	})
}

// GetTrendingReels lists trending reels.
func (u *Unified) GetTrendingReels(ctx context.Context, limit int) *models.StrategyResult {
	return u.run(ctx, "get_trending_reels", "", limit, func(s scrape.Strategy) *models.StrategyResult {
		return s.GetTrendingReels(ctx, limit)
	})
}

// ClearCache drops every coalesced result.
func (u *Unified) ClearCache() {
	u.cache.clear()
}

// CacheSize reports the number of coalesced entries.
func (u *Unified) CacheSize() int {
	return u.cache.size()
}

func (u *Unified) run(ctx context.Context, op, subject string, count int, invoke func(scrape.Strategy) *models.StrategyResult) *models.StrategyResult {
	key := Signature(op, subject, count)

	if items, ok := u.cache.get(key); ok {
		u.log.DebugWithFields("cache hit", map[string]interface{}{
			"operation": op,
			"subject":   subject,
		})
		return &models.StrategyResult{
			Source: CacheSource,
			Status: models.StatusSuccess,
			Items:  items,
		}
	}

	var last *models.StrategyResult
	for _, strategy := range u.strategies {
		if ctx.Err() != nil {
			break
		}

		result := invoke(strategy)
		last = result

		if result.OK() && !result.Empty() {
			result.Source = strategy.Name()
			u.cache.put(key, result.Items)
			u.log.InfoWithFields("request satisfied", map[string]interface{}{
				"operation": op,
				"source":    result.Source,
				"items":     len(result.Items),
			})
			return result
		}

		u.log.DebugWithFields("strategy did not satisfy request", map[string]interface{}{
			"operation": op,
			"strategy":  strategy.Name(),
			"status":    string(result.Status),
			"empty":     result.Empty(),
		})
	}

	// Every backend came back empty or failed. The absence of content is a
	// representable outcome and never raises; the result is partial when the
	// chain merely found nothing, failed when the last backend hit a hard
	// error. The last result's flags are carried either way for diagnosis.
	empty := &models.StrategyResult{
		Source: "none",
		Status: models.StatusPartial,
		Items:  nil,
	}
	if last != nil {
		empty.RateLimited = last.RateLimited
		empty.LoginRequired = last.LoginRequired
		empty.CaptchaRequired = last.CaptchaRequired
		if !last.OK() {
			empty.Status = models.StatusFailed
			empty.Err = last.Err
		}
	}
	return empty
}
