package scrape

import (
	"time"

	"reelscraper/pkg/instagram"
	"reelscraper/pkg/models"
)

// Field priority when normalizing upstream media shapes. The providers
// populate different subsets of equivalent fields; each target attribute has
// a fixed, explicit priority order:
//
//	id:        pk > id > media_id
//	shortcode: code > shortcode
//	views:     play_count > view_count > video_view_count
//	likes:     like_count > edge_liked_by.count
//
// The order is part of the contract and exercised directly in tests.

// FromMedia normalizes one upstream media object into a content item.
func FromMedia(m *instagram.Media) models.ContentItem {
	item := models.ContentItem{
		ID:           mediaID(m),
		Shortcode:    mediaCode(m),
		ViewCount:    mediaViews(m),
		LikeCount:    mediaLikes(m),
		CommentCount: m.CommentCount,
		Author: models.Author{
			Username:      m.User.Username,
			FollowerCount: m.User.FollowerCount,
		},
	}

	if item.Shortcode != "" {
		item.URL = instagram.ReelURL(item.Shortcode)
	}
	if m.Caption != nil {
		item.Caption = m.Caption.Text
	}
	if m.TakenAt > 0 {
		item.PostedAt = time.Unix(m.TakenAt, 0)
	}
	if len(m.VideoVersions) > 0 {
		item.VideoURL = m.VideoVersions[0].URL
	}
	if len(m.ImageVersions2.Candidates) > 0 {
		item.ThumbnailURL = m.ImageVersions2.Candidates[0].URL
	}
	return item
}

// FromMediaList normalizes a list of media objects, dropping entries that
// carry neither an id nor a shortcode, capped at limit when limit > 0.
func FromMediaList(medias []instagram.Media, limit int) []models.ContentItem {
	items := make([]models.ContentItem, 0, len(medias))
	for i := range medias {
		item := FromMedia(&medias[i])
		if item.ID == "" && item.Shortcode == "" {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items
}

// FromSections flattens section-grouped media (hashtag and explore feeds).
func FromSections(sections []instagram.Section, limit int) []models.ContentItem {
	var medias []instagram.Media
	for _, section := range sections {
		for _, wrapper := range section.LayoutContent.Medias {
			medias = append(medias, wrapper.Media)
		}
	}
	return FromMediaList(medias, limit)
}

func mediaID(m *instagram.Media) string {
	if s := m.PK.String(); s != "" {
		return s
	}
	if m.ID != "" {
		return m.ID
	}
	return m.MediaID.String()
}

func mediaCode(m *instagram.Media) string {
	if m.Code != "" {
		return m.Code
	}
	return m.Shortcode
}

func mediaLikes(m *instagram.Media) int64 {
	if m.LikeCount > 0 {
		return m.LikeCount
	}
	return m.EdgeLikedBy.Count
}

func mediaViews(m *instagram.Media) int64 {
	if m.PlayCount > 0 {
		return m.PlayCount
	}
	if m.ViewCount > 0 {
		return m.ViewCount
	}
	return m.VideoViewCount
}
