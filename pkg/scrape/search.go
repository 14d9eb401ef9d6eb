package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"reelscraper/pkg/config"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
)

const searchEndpoint = "https://html.duckduckgo.com/html/"

// SearchStrategy discovers reel links through a search engine's HTML
// results. It never touches the upstream platform directly, so it survives
// every block condition the other backends hit, at the cost of returning
// links only (no counts, no video URLs). Single-reel and trending lookups
// are not expressible as site-scoped queries and are unsupported.
type SearchStrategy struct {
	Base
	httpClient *http.Client
}

// NewSearchStrategy wires the search-engine discovery backend.
func NewSearchStrategy(cfg *config.Config, log logger.Logger) *SearchStrategy {
	timeout := cfg.Strategies.Retry.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &SearchStrategy{
		Base:       NewBase("search", cfg.Strategies.Search, cfg.Strategies.Retry, log),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *SearchStrategy) SearchByHashtag(ctx context.Context, tag string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "search_by_hashtag", func(ctx context.Context) ([]models.ContentItem, error) {
		query := fmt.Sprintf("site:instagram.com/reel #%s", tag)
		return s.search(ctx, query, limit)
	})
}

func (s *SearchStrategy) GetUserReels(ctx context.Context, username string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "get_user_reels", func(ctx context.Context) ([]models.ContentItem, error) {
		query := fmt.Sprintf("site:instagram.com/reel %s", username)
		items, err := s.search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Author.Username = username
		}
		return items, nil
	})
}

func (s *SearchStrategy) GetReelByURL(ctx context.Context, url string) *models.StrategyResult {
	return s.unsupported("get_reel_by_url")
}

func (s *SearchStrategy) GetTrendingReels(ctx context.Context, limit int) *models.StrategyResult {
	return s.unsupported("get_trending_reels")
}

// search runs one query against the HTML results endpoint and collects
// distinct reel links from the result anchors.
func (s *SearchStrategy) search(ctx context.Context, query string, limit int) ([]models.ContentItem, error) {
	params := url.Values{}
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchEndpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.ErrorTypeTimeout, "search request timed out", err)
		}
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "search request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errs.New(errs.ErrorTypeRateLimit, "search engine rate limit").WithCode(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.Newf(errs.ErrorTypeServerError, "search engine returned status %d", resp.StatusCode).WithCode(resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to parse search results", err)
	}

	limit = instagram.ClampLimit(limit)
	seen := make(map[string]bool)
	var items []models.ContentItem

	doc.Find("a.result__a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		shortcode, err := ShortcodeFromURL(resolveRedirect(href))
		if err != nil || seen[shortcode] {
			return true
		}
		seen[shortcode] = true

		items = append(items, models.ContentItem{
			Shortcode: shortcode,
			URL:       instagram.ReelURL(shortcode),
			Caption:   strings.TrimSpace(sel.Text()),
		})
		return len(items) < limit
	})
	return items, nil
}

// resolveRedirect unwraps the engine's /l/?uddg= redirect wrapper when
// present.
func resolveRedirect(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func (s *SearchStrategy) unsupported(op string) *models.StrategyResult {
	return &models.StrategyResult{
		Strategy: s.Name(),
		Status:   models.StatusFailed,
		Err:      errs.Newf(errs.ErrorTypeUnknown, "operation %s is not supported by the search backend", op),
	}
}
