package scrape

import (
	"encoding/json"
	"testing"
	"time"

	"reelscraper/pkg/instagram"
)

func TestFromMediaIDPriority(t *testing.T) {
	tests := []struct {
		name  string
		media instagram.Media
		want  string
	}{
		{"pk wins", instagram.Media{PK: json.Number("111"), ID: "222", MediaID: json.Number("333")}, "111"},
		{"id when no pk", instagram.Media{ID: "222", MediaID: json.Number("333")}, "222"},
		{"media_id last", instagram.Media{MediaID: json.Number("333")}, "333"},
		{"none", instagram.Media{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromMedia(&tt.media).ID; got != tt.want {
				t.Errorf("ID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromMediaShortcodePriority(t *testing.T) {
	m := instagram.Media{Code: "AAA", Shortcode: "BBB"}
	if got := FromMedia(&m).Shortcode; got != "AAA" {
		t.Errorf("Shortcode = %q, want code to win", got)
	}

	m = instagram.Media{Shortcode: "BBB"}
	if got := FromMedia(&m).Shortcode; got != "BBB" {
		t.Errorf("Shortcode = %q, want BBB", got)
	}
}

func TestFromMediaViewsPriority(t *testing.T) {
	tests := []struct {
		name  string
		media instagram.Media
		want  int64
	}{
		{"play_count wins", instagram.Media{PlayCount: 100, ViewCount: 200, VideoViewCount: 300}, 100},
		{"view_count second", instagram.Media{ViewCount: 200, VideoViewCount: 300}, 200},
		{"video_view_count last", instagram.Media{VideoViewCount: 300}, 300},
		{"zero when absent", instagram.Media{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromMedia(&tt.media).ViewCount; got != tt.want {
				t.Errorf("ViewCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFromMediaLikesPriority(t *testing.T) {
	m := instagram.Media{LikeCount: 50}
	m.EdgeLikedBy.Count = 75
	if got := FromMedia(&m).LikeCount; got != 50 {
		t.Errorf("LikeCount = %d, want like_count to win", got)
	}

	m = instagram.Media{}
	m.EdgeLikedBy.Count = 75
	if got := FromMedia(&m).LikeCount; got != 75 {
		t.Errorf("LikeCount = %d, want edge_liked_by fallback", got)
	}
}

func TestFromMediaFullShape(t *testing.T) {
	taken := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	m := instagram.Media{
		PK:           json.Number("98765"),
		Code:         "Cxyz_-1",
		PlayCount:    5000,
		LikeCount:    321,
		CommentCount: 45,
		TakenAt:      taken.Unix(),
		Caption:      &instagram.Caption{Text: "spring timelapse"},
		VideoVersions: []instagram.VideoVersion{
			{URL: "https://cdn.example.com/v/high.mp4", Width: 1080},
			{URL: "https://cdn.example.com/v/low.mp4", Width: 480},
		},
		ImageVersions2: instagram.ImageVersions{Candidates: []instagram.ImageCandidate{
			{URL: "https://cdn.example.com/t/big.jpg"},
		}},
		User: instagram.MediaUser{Username: "naturecam", FollowerCount: 1200},
	}

	item := FromMedia(&m)
	if item.URL != instagram.ReelURL("Cxyz_-1") {
		t.Errorf("URL = %q", item.URL)
	}
	if item.Caption != "spring timelapse" {
		t.Errorf("Caption = %q", item.Caption)
	}
	if !item.PostedAt.Equal(taken) {
		t.Errorf("PostedAt = %v, want %v", item.PostedAt, taken)
	}
	if item.VideoURL != "https://cdn.example.com/v/high.mp4" {
		t.Errorf("VideoURL = %q, want first rendition", item.VideoURL)
	}
	if item.ThumbnailURL != "https://cdn.example.com/t/big.jpg" {
		t.Errorf("ThumbnailURL = %q", item.ThumbnailURL)
	}
	if item.Author.Username != "naturecam" || item.Author.FollowerCount != 1200 {
		t.Errorf("Author = %+v", item.Author)
	}
}

func TestFromMediaListDropsUnidentifiable(t *testing.T) {
	medias := []instagram.Media{
		{ID: "1"},
		{}, // neither id nor shortcode
		{Shortcode: "CCC"},
	}

	items := FromMediaList(medias, 0)
	if len(items) != 2 {
		t.Fatalf("Items = %d, want 2", len(items))
	}
	if items[0].ID != "1" || items[1].Shortcode != "CCC" {
		t.Errorf("Unexpected items %+v", items)
	}
}

func TestFromMediaListLimit(t *testing.T) {
	medias := make([]instagram.Media, 10)
	for i := range medias {
		medias[i].ID = string(rune('a' + i))
	}

	if got := len(FromMediaList(medias, 3)); got != 3 {
		t.Errorf("Limited list = %d items, want 3", got)
	}
	if got := len(FromMediaList(medias, 0)); got != 10 {
		t.Errorf("Unlimited list = %d items, want 10", got)
	}
}

func TestFromSections(t *testing.T) {
	var sections []instagram.Section
	for _, ids := range [][]string{{"1", "2"}, {"3"}} {
		var s instagram.Section
		for _, id := range ids {
			s.LayoutContent.Medias = append(s.LayoutContent.Medias,
				instagram.MediaWrapper{Media: instagram.Media{ID: id}})
		}
		sections = append(sections, s)
	}

	items := FromSections(sections, 0)
	if len(items) != 3 {
		t.Fatalf("Items = %d, want 3", len(items))
	}
	for i, want := range []string{"1", "2", "3"} {
		if items[i].ID != want {
			t.Errorf("Item %d id = %q, want %q", i, items[i].ID, want)
		}
	}
}

func TestShortcodeFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.instagram.com/reel/Cxyz_-1/", "Cxyz_-1", false},
		{"https://www.instagram.com/reels/ABC123/", "ABC123", false},
		{"https://www.instagram.com/p/DEF456", "DEF456", false},
		{"https://www.instagram.com/reel/GHI789/?igsh=tracking", "GHI789", false},
		{"https://www.instagram.com/naturecam/", "", true},
		{"not a url", "", true},
	}

	for _, tt := range tests {
		got, err := ShortcodeFromURL(tt.url)
		if (err != nil) != tt.wantErr {
			t.Errorf("ShortcodeFromURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ShortcodeFromURL(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
