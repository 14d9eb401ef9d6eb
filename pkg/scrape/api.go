package scrape

import (
	"context"
	"fmt"
	"regexp"

	"reelscraper/pkg/config"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
	"reelscraper/pkg/ratelimit"
	"reelscraper/pkg/session"
)

// APIStrategy scrapes through the authenticated private API. It is the
// richest backend (full counts, video URLs) but burns session credentials,
// so requests are paced through a rate limiter.
type APIStrategy struct {
	Base
	client   *instagram.Client
	sessions *session.Manager
	limiter  ratelimit.Limiter
}

// NewAPIStrategy wires the authenticated backend.
func NewAPIStrategy(cfg *config.Config, client *instagram.Client, sessions *session.Manager, limiter ratelimit.Limiter, log logger.Logger) *APIStrategy {
	return &APIStrategy{
		Base:     NewBase("api", cfg.Strategies.API, cfg.Strategies.Retry, log),
		client:   client,
		sessions: sessions,
		limiter:  limiter,
	}
}

func (s *APIStrategy) SearchByHashtag(ctx context.Context, tag string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "search_by_hashtag", func(ctx context.Context) ([]models.ContentItem, error) {
		if err := s.prepare(); err != nil {
			return nil, err
		}

		var resp instagram.HashtagResponse
		if _, err := s.client.GetJSON(ctx, instagram.HashtagURL(tag), &resp); err != nil {
			return nil, err
		}

		sections := append(resp.Data.Top.Sections, resp.Data.Recent.Sections...)
		return FromSections(sections, limit), nil
	})
}

func (s *APIStrategy) GetUserReels(ctx context.Context, username string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "get_user_reels", func(ctx context.Context) ([]models.ContentItem, error) {
		if err := s.prepare(); err != nil {
			return nil, err
		}

		userID, err := s.resolveUserID(ctx, username)
		if err != nil {
			return nil, err
		}

		var resp instagram.ClipsResponse
		if _, err := s.client.GetJSON(ctx, instagram.UserReelsURL(userID, limit), &resp); err != nil {
			return nil, err
		}

		medias := make([]instagram.Media, 0, len(resp.Items))
		for _, item := range resp.Items {
			medias = append(medias, item.Media)
		}
		return FromMediaList(medias, limit), nil
	})
}

func (s *APIStrategy) GetReelByURL(ctx context.Context, url string) *models.StrategyResult {
	return s.Execute(ctx, "get_reel_by_url", func(ctx context.Context) ([]models.ContentItem, error) {
		if err := s.prepare(); err != nil {
			return nil, err
		}

		var oembed instagram.OEmbed
		if _, err := s.client.GetJSON(ctx, instagram.OEmbedURL(url), &oembed); err != nil {
			return nil, err
		}

		shortcode, _ := ShortcodeFromURL(url)
		item := models.ContentItem{
			ID:           oembed.MediaID,
			Shortcode:    shortcode,
			URL:          url,
			Caption:      oembed.Title,
			ThumbnailURL: oembed.ThumbnailURL,
			Author:       models.Author{Username: oembed.AuthorName},
		}
		if item.ID == "" && item.Shortcode == "" {
			return nil, nil
		}
		return []models.ContentItem{item}, nil
	})
}

func (s *APIStrategy) GetTrendingReels(ctx context.Context, limit int) *models.StrategyResult {
	return s.Execute(ctx, "get_trending_reels", func(ctx context.Context) ([]models.ContentItem, error) {
		if err := s.prepare(); err != nil {
			return nil, err
		}

		var resp instagram.ExploreResponse
		if _, err := s.client.GetJSON(ctx, instagram.ExploreURL(), &resp); err != nil {
			return nil, err
		}
		return FromSections(resp.SectionalItems, limit), nil
	})
}

// prepare attaches the current session's credentials and paces the request.
func (s *APIStrategy) prepare() error {
	record := s.sessions.Current()
	if record == nil {
		return errs.New(errs.ErrorTypeAuth, "no active session")
	}
	s.client.SetCredentials(record.Credentials)
	s.limiter.Wait()
	return nil
}

// resolveUserID maps a username to the numeric owner id the reels feed
// endpoint requires. Already-numeric input passes through untouched.
func (s *APIStrategy) resolveUserID(ctx context.Context, username string) (string, error) {
	if numericRe.MatchString(username) {
		return username, nil
	}

	var resp instagram.ProfileResponse
	if _, err := s.client.GetJSON(ctx, instagram.ProfileURL(username), &resp); err != nil {
		return "", err
	}
	if resp.RequiresToLogin {
		return "", errs.New(errs.ErrorTypeAuth, "profile lookup requires authentication")
	}
	if resp.Data.User.ID == "" {
		return "", errs.Newf(errs.ErrorTypeNotFound, "no profile found for %q", username)
	}
	return resp.Data.User.ID, nil
}

var (
	numericRe   = regexp.MustCompile(`^\d+$`)
	shortcodeRe = regexp.MustCompile(`/(?:reel|reels|p)/([A-Za-z0-9_-]+)`)
)

// ShortcodeFromURL extracts the media shortcode from a post or reel URL.
func ShortcodeFromURL(url string) (string, error) {
	m := shortcodeRe.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("no shortcode in URL %q", url)
	}
	return m[1], nil
}
