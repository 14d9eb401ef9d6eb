package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"reelscraper/pkg/config"
	errs "reelscraper/pkg/errors"
	"reelscraper/pkg/instagram"
	"reelscraper/pkg/logger"
	"reelscraper/pkg/models"
)

// BrowserStrategy drives a real browser to render public pages and harvests
// reel links and metadata from the rendered DOM. Slow and heavy, but it sees
// exactly what a human visitor sees, which makes it the backend of last
// resort when the API surfaces are blocked.
type BrowserStrategy struct {
	Base
	headless bool
	pageWait time.Duration
}

// NewBrowserStrategy wires the browser-automation backend.
func NewBrowserStrategy(cfg *config.Config, log logger.Logger) *BrowserStrategy {
	return &BrowserStrategy{
		Base:     NewBase("browser", cfg.Strategies.Browser, cfg.Strategies.Retry, log),
		headless: cfg.Strategies.Headless,
		pageWait: 5 * time.Second,
	}
}

func (s *BrowserStrategy) SearchByHashtag(ctx context.Context, tag string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "search_by_hashtag", func(ctx context.Context) ([]models.ContentItem, error) {
		pageURL := fmt.Sprintf("%s/explore/tags/%s/", instagram.BaseURL, tag)
		return s.harvestLinks(ctx, pageURL, limit)
	})
}

func (s *BrowserStrategy) GetUserReels(ctx context.Context, username string, limit int) *models.StrategyResult {
	return s.Execute(ctx, "get_user_reels", func(ctx context.Context) ([]models.ContentItem, error) {
		pageURL := fmt.Sprintf("%s/%s/reels/", instagram.BaseURL, username)
		items, err := s.harvestLinks(ctx, pageURL, limit)
		if err != nil {
			return nil, err
		}
		for i := range items {
			items[i].Author.Username = username
		}
		return items, nil
	})
}

func (s *BrowserStrategy) GetReelByURL(ctx context.Context, url string) *models.StrategyResult {
	return s.Execute(ctx, "get_reel_by_url", func(ctx context.Context) ([]models.ContentItem, error) {
		html, err := s.renderPage(ctx, url)
		if err != nil {
			return nil, err
		}
		if block := DetectBlock(200, html, nil); block.Blocked() {
			return nil, blockToError(block, 200)
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to parse rendered page", err)
		}

		shortcode, _ := ShortcodeFromURL(url)
		item := models.ContentItem{
			Shortcode:    shortcode,
			URL:          url,
			Caption:      metaContent(doc, "og:description"),
			ThumbnailURL: metaContent(doc, "og:image"),
			VideoURL:     metaContent(doc, "og:video"),
		}
		if item.Shortcode == "" && item.Caption == "" {
			return nil, nil
		}
		return []models.ContentItem{item}, nil
	})
}

func (s *BrowserStrategy) GetTrendingReels(ctx context.Context, limit int) *models.StrategyResult {
	return s.Execute(ctx, "get_trending_reels", func(ctx context.Context) ([]models.ContentItem, error) {
		pageURL := instagram.BaseURL + "/explore/"
		return s.harvestLinks(ctx, pageURL, limit)
	})
}

// harvestLinks renders a listing page and collects distinct reel links.
func (s *BrowserStrategy) harvestLinks(ctx context.Context, pageURL string, limit int) ([]models.ContentItem, error) {
	html, err := s.renderPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if block := DetectBlock(200, html, nil); block.Blocked() {
		return nil, blockToError(block, 200)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to parse rendered page", err)
	}

	limit = instagram.ClampLimit(limit)
	seen := make(map[string]bool)
	var items []models.ContentItem

	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		shortcode, err := ShortcodeFromURL(href)
		if err != nil || seen[shortcode] {
			return true
		}
		seen[shortcode] = true

		item := models.ContentItem{
			Shortcode: shortcode,
			URL:       instagram.ReelURL(shortcode),
		}
		if img := sel.Find("img").First(); img.Length() > 0 {
			item.ThumbnailURL, _ = img.Attr("src")
			item.Caption, _ = img.Attr("alt")
		}
		items = append(items, item)
		return len(items) < limit
	})
	return items, nil
}

// renderPage loads a URL in a browser tab and returns the rendered HTML.
func (s *BrowserStrategy) renderPage(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(s.pageWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", errs.Wrap(errs.ErrorTypeTimeout, "page render timed out", err)
		}
		return "", errs.Wrap(errs.ErrorTypeNetwork, "failed to render page", err)
	}
	return html, nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return content
}
