package engine

import (
	"testing"

	"github.com/lvcoi/ytsource/internal/media"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"runs", map[string]any{"runs": []any{map[string]any{"text": "a"}, map[string]any{"text": "b"}}}, "ab"},
		{"simpleText", map[string]any{"simpleText": "plain"}, "plain"},
		{"content", map[string]any{"content": "view model"}, "view model"},
		{"bare string", "raw", "raw"},
		{"nil", nil, ""},
		{"wrong shape", []any{"x"}, ""},
		{"runs with junk entries", map[string]any{"runs": []any{"junk", map[string]any{"text": "ok"}}}, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := text(tt.in); got != tt.want {
				t.Errorf("text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetPath(t *testing.T) {
	node := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": "deep"}},
	}
	if got := getString(getPath(node, "a", "b", "c")); got != "deep" {
		t.Errorf("getPath deep = %q", got)
	}
	if got := getPath(node, "a", "missing", "c"); got != nil {
		t.Errorf("getPath through missing key = %v, want nil", got)
	}
	if got := getPath(node, "a", "b", "c", "d"); got != nil {
		t.Errorf("getPath past a leaf = %v, want nil", got)
	}
}

func TestLastThumbnailURLPicksHighestResolution(t *testing.T) {
	thumbs := []any{
		map[string]any{"url": "small.jpg", "width": float64(120)},
		map[string]any{"url": "large.jpg", "width": float64(640)},
	}
	if got := lastThumbnailURL(thumbs); got != "large.jpg" {
		t.Errorf("lastThumbnailURL = %q, want large.jpg", got)
	}
}

func TestThumbnailURLShapes(t *testing.T) {
	tests := []struct {
		name string
		node map[string]any
		want string
	}{
		{
			"explicit array",
			map[string]any{"thumbnail": map[string]any{"thumbnails": []any{map[string]any{"url": "direct.jpg"}}}},
			"direct.jpg",
		},
		{
			"music renderer shape",
			map[string]any{"thumbnailRenderer": map[string]any{"musicThumbnailRenderer": map[string]any{
				"thumbnail": map[string]any{"thumbnails": []any{map[string]any{"url": "music.jpg"}}},
			}}},
			"music.jpg",
		},
		{
			"shallow scan fallback",
			map[string]any{"someWrapper": map[string]any{"thumbnails": []any{map[string]any{"url": "scanned.jpg"}}}},
			"scanned.jpg",
		},
		{
			"nothing",
			map[string]any{"title": map[string]any{"simpleText": "x"}},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := thumbnailURL(tt.node); got != tt.want {
				t.Errorf("thumbnailURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyFeedItem(t *testing.T) {
	tests := []struct {
		name     string
		videoID  string
		browseID string
		subtitle string
		want     media.FeedItemKind
	}{
		{"video id wins", "dQw4w9WgXcQ", "MPREsomething", "Album", media.FeedSong},
		{"playlist-prefixed id is not a video", "PLaaaaaaaaa", "PLaaaaaaaaa", "", media.FeedPlaylist},
		{"album keyword", "", "MPREb_abc123", "Album • 2021", media.FeedAlbum},
		{"artist keyword", "", "UCabcdefghij", "Artist", media.FeedArtist},
		{"song keyword", "", "MPREb_abc123", "Song • 3:21", media.FeedSong},
		{"single keyword", "", "MPREb_abc123", "Single • 2024", media.FeedSong},
		{"browse id without keyword", "", "PLxyz", "Mix for you", media.FeedPlaylist},
		{"album beats artist", "", "MPREb_abc123", "Album by Artist", media.FeedAlbum},
		{"nothing classifiable", "", "", "whatever", media.FeedUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFeedItem(tt.videoID, tt.browseID, tt.subtitle); got != tt.want {
				t.Errorf("classifyFeedItem = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlbumArtist(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]any
		want   string
	}{
		{
			"strapline wins",
			map[string]any{
				"straplineTextOne": map[string]any{"simpleText": "Strapline Artist"},
				"subtitle":         map[string]any{"simpleText": "Album • Subtitle Artist • 2020"},
			},
			"Strapline Artist",
		},
		{
			"browse run wins over bullet split",
			map[string]any{
				"subtitle": map[string]any{"runs": []any{
					map[string]any{"text": "Album"},
					map[string]any{"text": " • "},
					map[string]any{
						"text": "Linked Artist",
						"navigationEndpoint": map[string]any{
							"browseEndpoint": map[string]any{"browseId": "UCartistchan"},
						},
					},
				}},
			},
			"Linked Artist",
		},
		{
			"album-linked run does not count",
			map[string]any{
				"subtitle": map[string]any{"runs": []any{
					map[string]any{
						"text": "Other Album",
						"navigationEndpoint": map[string]any{
							"browseEndpoint": map[string]any{"browseId": "MPREb_xyz"},
						},
					},
					map[string]any{"text": " • Fallback Artist • 2019 • 12 songs"},
				}},
			},
			"Other Album",
		},
		{
			"bullet split skips year track count and album",
			map[string]any{
				"subtitle": map[string]any{"simpleText": "Album • 2019 • 12 songs • Bullet Artist"},
			},
			"Bullet Artist",
		},
		{
			"nothing",
			map[string]any{"subtitle": map[string]any{"simpleText": "2019 • 12 songs"}},
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := albumArtist(tt.header); got != tt.want {
				t.Errorf("albumArtist = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDurationText(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"3:21", 201},
		{"1:02:03", 3723},
		{"0:59", 59},
		{"", 0},
		{"live", 0},
		{"1:2:3:4", 0},
		{"-1:00", 0},
	}
	for _, tt := range tests {
		if got := parseDurationText(tt.in); got != tt.want {
			t.Errorf("parseDurationText(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIsVideoID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"dQw4w9WgXcQ", true},
		{"a_b-c123456", true},
		{"short", false},
		{"waytoolongtobeanid", false},
		{"PLaaaaaaaaa", false},
		{"UCaaaaaaaaa", false},
		{"FEwhat_to_w", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isVideoID(tt.id); got != tt.want {
			t.Errorf("isVideoID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
