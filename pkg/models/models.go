package models

import (
	"time"
	"unicode/utf8"
)

// Author identifies the account that posted a piece of content.
type Author struct {
	Username      string `json:"username"`
	FollowerCount int64  `json:"follower_count"`
}

// ContentItem is the normalized representation of one scraped reel or post,
// regardless of which strategy produced it.
type ContentItem struct {
	ID           string    `json:"id"`
	Shortcode    string    `json:"shortcode"`
	URL          string    `json:"url"`
	VideoURL     string    `json:"video_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
	PostedAt     time.Time `json:"posted_at,omitempty"`
	Author       Author    `json:"author"`
}

// TitleMaxLen is the caption truncation boundary applied when deriving titles.
const TitleMaxLen = 100

// Title derives a display title from the caption, truncated to TitleMaxLen runes.
func (c *ContentItem) Title() string {
	if utf8.RuneCountInString(c.Caption) <= TitleMaxLen {
		return c.Caption
	}
	runes := []rune(c.Caption)
	return string(runes[:TitleMaxLen])
}

// StrategyStatus is the normalized outcome of one strategy operation.
type StrategyStatus string

const (
	StatusSuccess     StrategyStatus = "success"
	StatusPartial     StrategyStatus = "partial"
	StatusFailed      StrategyStatus = "failed"
	StatusBlocked     StrategyStatus = "blocked"
	StatusRateLimited StrategyStatus = "rate_limited"
)

// StrategyResult is the normalized output of any scraping backend.
type StrategyResult struct {
	// Strategy is the identifier of the backend that executed the operation.
	Strategy string
	// Source is set by the unified service: the strategy that satisfied the
	// request, or "cache" when served from the result cache.
	Source   string
	Status   StrategyStatus
	Items    []ContentItem
	Duration time.Duration
	Err      error

	RateLimited     bool
	LoginRequired   bool
	CaptchaRequired bool
}

// OK reports whether the result carries usable data. Partial results are not
// failures: zero-or-more items without a hard error is a valid outcome.
func (r *StrategyResult) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}

// Empty reports whether the result carries no content items.
func (r *StrategyResult) Empty() bool {
	return len(r.Items) == 0
}
