package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"reelscraper/pkg/config"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
)

// RapidAPIStrategy scrapes through a paid third-party API tier. The provider
// proxies the same upstream payload shapes, so normalization is shared with
// the direct API backend.
type RapidAPIStrategy struct {
	Base
	host       string
	key        string
	httpClient *http.Client
}

// NewRapidAPIStrategy wires the third-party API tier.
func NewRapidAPIStrategy(cfg *config.Config, log logger.Logger) *RapidAPIStrategy {
	timeout := cfg.Strategies.Retry.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &RapidAPIStrategy{
		Base:       NewBase("rapidapi", cfg.Strategies.RapidAPI, cfg.Strategies.Retry, log),
		host:       cfg.Strategies.Rapid.Host,
		key:        cfg.Strategies.Rapid.Key,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// rapidItems is the provider's list envelope. Items arrive either bare or
// wrapped in a media object.
type rapidItems struct {
	Items []json.RawMessage `json:"items"`
	Data  struct {
		Items []json.RawMessage `json:"items"`
	} `json:"data"`
}

func (s *RapidAPIStrategy) SearchByHashtag(ctx context.Context, tag string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "search_by_hashtag", func(ctx context.Context) ([]models.ContentItem, error) {
		return s.fetchList(ctx, "/v1/hashtag", url.Values{"hashtag": {tag}}, limit)
	})
}

func (s *RapidAPIStrategy) GetUserReels(ctx context.Context, username string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "get_user_reels", func(ctx context.Context) ([]models.ContentItem, error) {
		return s.fetchList(ctx, "/v1/user/reels", url.Values{"username_or_id": {username}}, limit)
	})
}

func (s *RapidAPIStrategy) GetReelByURL(ctx context.Context, target string) *models.StrategyResult {
	return s.Execute(ctx, "get_reel_by_url", func(ctx context.Context) ([]models.ContentItem, error) {
		var envelope struct {
			Data instagram.Media `json:"data"`
		}
		if err := s.getJSON(ctx, "/v1/post_info", url.Values{"code_or_id_or_url": {target}}, &envelope); err != nil {
			return nil, err
		}

		item := FromMedia(&envelope.Data)
		if item.ID == "" && item.Shortcode == "" {
			return nil, nil
		}
		return []models.ContentItem{item}, nil
	})
}

func (s *RapidAPIStrategy) GetTrendingReels(ctx context.Context, limit int) *models.StrategyResult {
	return s.Execute(ctx, "get_trending_reels", func(ctx context.Context) ([]models.ContentItem, error) {
		return s.fetchList(ctx, "/v1/popular", nil, limit)
	})
}

func (s *RapidAPIStrategy) fetchList(ctx context.Context, path string, params url.Values, limit int) ([]models.ContentItem, error) {
	var envelope rapidItems
	if err := s.getJSON(ctx, path, params, &envelope); err != nil {
		return nil, err
	}

	raw := envelope.Items
	if len(raw) == 0 {
		raw = envelope.Data.Items
	}

	medias := make([]instagram.Media, 0, len(raw))
	for _, entry := range raw {
		var wrapper instagram.MediaWrapper
		if err := json.Unmarshal(entry, &wrapper); err == nil && identified(&wrapper.Media) {
			medias = append(medias, wrapper.Media)
			continue
		}
		var media instagram.Media
		if err := json.Unmarshal(entry, &media); err == nil {
			medias = append(medias, media)
		}
	}
	return FromMediaList(medias, limit), nil
}

// identified reports whether a decoded media carries any identifying field,
// distinguishing a real wrapped media from a bare item misread as a wrapper.
func identified(m *instagram.Media) bool {
	return m.ID != "" || m.PK.String() != "" || m.Code != "" || m.Shortcode != ""
}

func (s *RapidAPIStrategy) getJSON(ctx context.Context, path string, params url.Values, target interface{}) error {
	endpoint := fmt.Sprintf("https://%s%s", s.host, path)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, "failed to create request", err)
	}
	req.Header.Set("x-rapidapi-host", s.host)
	req.Header.Set("x-rapidapi-key", s.key)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.Wrap(errs.ErrorTypeTimeout, "request timed out", err)
		}
		return errs.Wrap(errs.ErrorTypeNetwork, "network error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.New(errs.ErrorTypeRateLimit, "provider rate limit exceeded").WithCode(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errs.New(errs.ErrorTypeAuth, "provider rejected API key").WithCode(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.Newf(errs.ErrorTypeServerError, "provider returned status %d", resp.StatusCode).WithCode(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, "failed to decode provider response", err)
	}
	return nil
}
