package instagram

import "encoding/json"

// Media is the union of the media shapes the upstream providers return.
// Different endpoints (and the third-party API tier, which proxies the same
// payloads) populate different subsets of these fields; normalization picks
// per-field values in a fixed priority order.
type Media struct {
	PK      json.Number `json:"pk"`
	ID      string      `json:"id"`
	MediaID json.Number `json:"media_id"`

	Code      string `json:"code"`
	Shortcode string `json:"shortcode"`

	PlayCount      int64 `json:"play_count"`
	ViewCount      int64 `json:"view_count"`
	VideoViewCount int64 `json:"video_view_count"`

	LikeCount    int64 `json:"like_count"`
	CommentCount int64 `json:"comment_count"`
	EdgeLikedBy  struct {
		Count int64 `json:"count"`
	} `json:"edge_liked_by"`

	TakenAt int64 `json:"taken_at"`

	Caption *Caption `json:"caption"`

	VideoVersions  []VideoVersion `json:"video_versions"`
	ImageVersions2 ImageVersions  `json:"image_versions2"`

	User MediaUser `json:"user"`
}

// Caption is the caption object attached to a media item.
type Caption struct {
	Text string `json:"text"`
}

// VideoVersion is one rendition of a video.
type VideoVersion struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ImageVersions holds thumbnail candidates, best first.
type ImageVersions struct {
	Candidates []ImageCandidate `json:"candidates"`
}

// ImageCandidate is one thumbnail rendition.
type ImageCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// MediaUser is the author object embedded in a media item.
type MediaUser struct {
	Username      string `json:"username"`
	FullName      string `json:"full_name"`
	FollowerCount int64  `json:"follower_count"`
}

// MediaWrapper is the {"media": {...}} envelope several feeds use.
type MediaWrapper struct {
	Media Media `json:"media"`
}

// ClipsResponse is the shape of the reels feed endpoints.
type ClipsResponse struct {
	Items []ClipsItem `json:"items"`
	Paging struct {
		MaxID   string `json:"max_id"`
		HasMore bool   `json:"more_available"`
	} `json:"paging_info"`
	Status string `json:"status"`
}

// ClipsItem wraps one media entry in a clips feed.
type ClipsItem struct {
	Media Media `json:"media"`
}

// HashtagResponse is the shape of the hashtag sections endpoint.
type HashtagResponse struct {
	Data struct {
		Top struct {
			Sections []Section `json:"sections"`
		} `json:"top"`
		Recent struct {
			Sections []Section `json:"sections"`
		} `json:"recent"`
	} `json:"data"`
	Status string `json:"status"`
}

// Section groups medias inside a hashtag or explore response.
type Section struct {
	LayoutContent struct {
		Medias []MediaWrapper `json:"medias"`
	} `json:"layout_content"`
}

// ExploreResponse is the shape of the trending grid endpoint.
type ExploreResponse struct {
	SectionalItems []Section `json:"sectional_items"`
	Status         string    `json:"status"`
}

// ProfileResponse is the shape of the username-to-profile endpoint.
type ProfileResponse struct {
	RequiresToLogin bool `json:"requires_to_login"`
	Data            struct {
		User struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			FollowerCount int64  `json:"edge_followed_by_count"`
			EdgeFollowedBy struct {
				Count int64 `json:"count"`
			} `json:"edge_followed_by"`
		} `json:"user"`
	} `json:"data"`
	Status string `json:"status"`
}

// CurrentUserResponse is the shape of the live-probe endpoint.
type CurrentUserResponse struct {
	FormData struct {
		Username string `json:"username"`
	} `json:"form_data"`
	Status string `json:"status"`
}

// OEmbed is the public oEmbed response for a post or reel URL.
type OEmbed struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	MediaID      string `json:"media_id"`
	ThumbnailURL string `json:"thumbnail_url"`
	HTML         string `json:"html"`
}
