package instagram

import (
	"fmt"
	"net/url"
)

const (
	// BaseURL is the base URL for the target platform.
	BaseURL = "https://www.instagram.com"

	// WebAppID identifies the web client to the private API.
	WebAppID = "936619743392459"

	// CurrentUserEndpoint is a lightweight authenticated endpoint used for
	// live session probes.
	CurrentUserEndpoint = "/api/v1/accounts/edit/web_form_data/"

	// UserReelsEndpoint is the endpoint pattern for a user's reels feed.
	UserReelsEndpoint = "/api/v1/clips/user/"

	// HashtagEndpoint is the endpoint pattern for hashtag sections.
	HashtagEndpoint = "/api/v1/tags/web_info/"

	// ExploreEndpoint serves the trending/explore grid.
	ExploreEndpoint = "/api/v1/discover/web/explore_grid/"

	// ProfileEndpoint resolves a username to its profile (and owner id).
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// OEmbedEndpoint is the public oEmbed resolver.
	OEmbedEndpoint = "/api/v1/oembed/"

	// LoginURL is the browser login page.
	LoginURL = BaseURL + "/accounts/login/"

	// DefaultFetchLimit is the default number of items per request.
	DefaultFetchLimit = 12

	// MaxFetchLimit bounds a single request.
	MaxFetchLimit = 50
)

// ClampLimit bounds a requested item count to the allowed range.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultFetchLimit
	}
	if limit > MaxFetchLimit {
		return MaxFetchLimit
	}
	return limit
}

// CurrentUserURL returns the live-probe URL.
func CurrentUserURL() string {
	return BaseURL + CurrentUserEndpoint
}

// ProfileURL constructs the URL resolving a username to a profile.
func ProfileURL(username string) string {
	params := url.Values{}
	params.Set("username", username)
	return fmt.Sprintf("%s%s?%s", BaseURL, ProfileEndpoint, params.Encode())
}

// UserReelsURL constructs the URL for a user's reels feed.
func UserReelsURL(userID string, limit int) string {
	params := url.Values{}
	params.Set("target_user_id", userID)
	params.Set("page_size", fmt.Sprintf("%d", ClampLimit(limit)))
	return fmt.Sprintf("%s%s?%s", BaseURL, UserReelsEndpoint, params.Encode())
}

// HashtagURL constructs the URL for hashtag sections.
func HashtagURL(tag string) string {
	params := url.Values{}
	params.Set("tag_name", tag)
	return fmt.Sprintf("%s%s?%s", BaseURL, HashtagEndpoint, params.Encode())
}

// ExploreURL constructs the trending grid URL. The grid endpoint pages at a
// fixed size; callers trim to their requested count.
func ExploreURL() string {
	params := url.Values{}
	params.Set("is_prefetch", "false")
	params.Set("max_id", "0")
	params.Set("module", "explore_popular")
	return fmt.Sprintf("%s%s?%s", BaseURL, ExploreEndpoint, params.Encode())
}

// OEmbedURL constructs the public oEmbed URL for a post or reel link.
func OEmbedURL(target string) string {
	params := url.Values{}
	params.Set("url", target)
	return fmt.Sprintf("%s%s?%s", BaseURL, OEmbedEndpoint, params.Encode())
}

// ReelURL returns the canonical page URL for a reel shortcode.
func ReelURL(shortcode string) string {
	return fmt.Sprintf("%s/reel/%s/", BaseURL, shortcode)
}

// EmbedPageURL returns the public captioned-embed page for a shortcode.
func EmbedPageURL(shortcode string) string {
	return fmt.Sprintf("%s/reel/%s/embed/captioned/", BaseURL, shortcode)
}
