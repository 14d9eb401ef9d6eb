package scrape

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"reelscraper/pkg/config"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
)

// EmbedStrategy scrapes the public captioned-embed page and the oEmbed
// resolver. Neither needs credentials, which makes this the cheapest
// fallback for single-reel lookups; it cannot enumerate feeds, so the
// search and listing operations are unsupported.
type EmbedStrategy struct {
	Base
	client *instagram.Client
}

// NewEmbedStrategy wires the public embed backend. The client must not
// carry credentials: the embed surface serves logged-out traffic and an
// authenticated cookie set only raises the block risk.
func NewEmbedStrategy(cfg *config.Config, client *instagram.Client, log logger.Logger) *EmbedStrategy {
	return &EmbedStrategy{
		Base:   NewBase("embed", cfg.Strategies.Embed, cfg.Strategies.Retry, log),
		client: client,
	}
}

func (s *EmbedStrategy) SearchByHashtag(ctx context.Context, tag string, limit int) *models.StrategyResult {
	return s.unsupported("search_by_hashtag")
}

func (s *EmbedStrategy) GetUserReels(ctx context.Context, username string, limit int) *models.StrategyResult {
	return s.unsupported("get_user_reels")
}

func (s *EmbedStrategy) GetTrendingReels(ctx context.Context, limit int) *models.StrategyResult {
	return s.unsupported("get_trending_reels")
}

func (s *EmbedStrategy) GetReelByURL(ctx context.Context, url string) *models.StrategyResult {
	return s.Execute(ctx, "get_reel_by_url", func(ctx context.Context) ([]models.ContentItem, error) {
		shortcode, err := ShortcodeFromURL(url)
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, "unrecognized reel URL", err)
		}

		item := models.ContentItem{
			Shortcode: shortcode,
			URL:       instagram.ReelURL(shortcode),
		}

		var oembed instagram.OEmbed
		if _, err := s.client.GetJSON(ctx, instagram.OEmbedURL(url), &oembed); err == nil {
			item.ID = oembed.MediaID
			item.Caption = oembed.Title
			item.ThumbnailURL = oembed.ThumbnailURL
			item.Author.Username = oembed.AuthorName
		}

		// The embed page often carries fields oEmbed omits.
		if err := s.enrichFromEmbedPage(ctx, shortcode, &item); err != nil {
			// Only fail the operation when both sources produced nothing.
			if item.ID == "" && item.Caption == "" {
				return nil, err
			}
		}
		return []models.ContentItem{item}, nil
	})
}

// enrichFromEmbedPage fills missing fields by parsing the public captioned
// embed page.
func (s *EmbedStrategy) enrichFromEmbedPage(ctx context.Context, shortcode string, item *models.ContentItem) error {
	status, body, err := s.client.GetBody(ctx, instagram.EmbedPageURL(shortcode))
	if err != nil {
		return err
	}

	if block := DetectBlock(status, string(body), nil); block.Blocked() {
		return blockToError(block, status)
	}
	if status < 200 || status > 299 {
		return errs.Newf(errs.ErrorTypeServerError, "embed page returned status %d", status).WithCode(status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, "failed to parse embed page", err)
	}

	if item.Caption == "" {
		item.Caption = strings.TrimSpace(doc.Find(".Caption").First().Text())
	}
	if item.Author.Username == "" {
		item.Author.Username = strings.TrimSpace(doc.Find(".UsernameText").First().Text())
	}
	if item.ThumbnailURL == "" {
		if src, ok := doc.Find("img.EmbeddedMediaImage").First().Attr("src"); ok {
			item.ThumbnailURL = src
		}
	}
	if src, ok := doc.Find("video").First().Attr("src"); ok && item.VideoURL == "" {
		item.VideoURL = src
	}
	return nil
}

// unsupported reports an operation this backend cannot perform; the unified
// service falls through to the next strategy.
func (s *EmbedStrategy) unsupported(op string) *models.StrategyResult {
	return &models.StrategyResult{
		Strategy: s.Name(),
		Status:   models.StatusFailed,
		Err:      errs.Newf(errs.ErrorTypeUnknown, "operation %s is not supported by the embed backend", op),
	}
}
