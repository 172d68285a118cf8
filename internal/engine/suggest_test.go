package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/kkdai/youtube/v2"

	"github.com/lvcoi/ytsource/internal/host"
)

func lockupItem(videoID, title, artist string) map[string]any {
	return map[string]any{
		"lockupViewModel": map[string]any{
			"contentId": videoID,
			"metadata": map[string]any{
				"lockupMetadataViewModel": map[string]any{
					"title": map[string]any{"content": title},
					"metadata": map[string]any{
						"contentMetadataViewModel": map[string]any{
							"metadataRows": []any{
								map[string]any{"metadataParts": []any{
									map[string]any{"text": map[string]any{"content": artist}},
								}},
							},
						},
					},
				},
			},
			"contentImage": map[string]any{
				"thumbnailViewModel": map[string]any{
					"image": map[string]any{"sources": []any{
						map[string]any{"url": "https://img.test/" + videoID + ".jpg"},
					}},
				},
			},
		},
	}
}

func compactItem(videoID, title string) map[string]any {
	return map[string]any{
		"compactVideoRenderer": map[string]any{
			"videoId":         videoID,
			"title":           map[string]any{"simpleText": title},
			"longBylineText":  map[string]any{"simpleText": "Legacy Channel"},
			"lengthText":      map[string]any{"simpleText": "2:30"},
		},
	}
}

func watchNextResponse(rows ...any) map[string]any {
	return map[string]any{
		"contents": map[string]any{
			"twoColumnWatchNextResults": map[string]any{
				"secondaryResults": map[string]any{
					"secondaryResults": map[string]any{"results": rows},
				},
			},
		},
	}
}

func TestNormalizeSuggestionsBothShapes(t *testing.T) {
	root := watchNextResponse(
		lockupItem("aaaaaaaaaaa", "Lockup Item", "Artist A"),
		compactItem("bbbbbbbbbbb", "Compact Item"),
	)

	items := normalizeSuggestions(root, "seedseedsee")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].Title != "Lockup Item" || items[0].Artist != "Artist A" {
		t.Errorf("lockup item = %+v", items[0])
	}
	if items[0].ThumbnailURL != "https://img.test/aaaaaaaaaaa.jpg" {
		t.Errorf("lockup thumbnail = %q", items[0].ThumbnailURL)
	}
	if items[1].Title != "Compact Item" || items[1].Artist != "Legacy Channel" {
		t.Errorf("compact item = %+v", items[1])
	}
}

func TestNormalizeSuggestionsExcludesSeed(t *testing.T) {
	root := watchNextResponse(
		lockupItem("seedseedsee", "The Seed Itself", "X"),
		lockupItem("aaaaaaaaaaa", "Other", "Y"),
	)
	items := normalizeSuggestions(root, "seedseedsee")
	if len(items) != 1 {
		t.Fatalf("expected the seed excluded, got %+v", items)
	}
	if items[0].ContentID != "aaaaaaaaaaa" {
		t.Errorf("surviving item = %+v", items[0])
	}
}

func TestNormalizeSuggestionsCapped(t *testing.T) {
	rows := make([]any, 0, suggestionLimit+15)
	for i := 0; i < suggestionLimit+15; i++ {
		id := fmt.Sprintf("id%09d", i)
		rows = append(rows, lockupItem(id, "Title", "Artist"))
	}
	items := normalizeSuggestions(watchNextResponse(rows...), "seedseedsee")
	if len(items) != suggestionLimit {
		t.Fatalf("expected cap at %d, got %d", suggestionLimit, len(items))
	}
}

func TestNormalizeSuggestionsDropsNonVideoLockups(t *testing.T) {
	root := watchNextResponse(
		// Playlist lockup: content id is not a video id.
		lockupItem("PLabcdefghijklm", "A Playlist", "X"),
		lockupItem("aaaaaaaaaaa", "A Video", "Y"),
	)
	items := normalizeSuggestions(root, "seedseedsee")
	if len(items) != 1 || items[0].ContentID != "aaaaaaaaaaa" {
		t.Fatalf("expected only the video lockup, got %+v", items)
	}
}

func TestNormalizeSuggestionsEmptyResponse(t *testing.T) {
	if items := normalizeSuggestions(map[string]any{}, "seedseedsee"); len(items) != 0 {
		t.Fatalf("expected no items, got %+v", items)
	}
}

func TestSuggestionQueryUsesSeedMetadata(t *testing.T) {
	e := New(host.Capabilities{})
	e.info.put(&videoInfoEntry{
		contentID: "aaaaaaaaaaa",
		video:     &youtube.Video{Title: "Some Song", Author: "Some Artist"},
	})

	query := e.suggestionQuery(context.Background(), "aaaaaaaaaaa")
	if query != "Some Song Some Artist" {
		t.Errorf("query = %q", query)
	}
}

func TestSuggestionQueryFallsBackToRawID(t *testing.T) {
	e := New(host.Capabilities{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Seed metadata is unreachable; the raw id still makes a search query.
	query := e.suggestionQuery(ctx, "aaaaaaaaaaa")
	if query != "aaaaaaaaaaa" {
		t.Errorf("query = %q, want the raw content id", query)
	}
}
