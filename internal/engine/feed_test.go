package engine

import (
	"testing"

	"github.com/lvcoi/ytsource/internal/media"
)

func carouselSection(title string, items ...any) map[string]any {
	return map[string]any{
		"musicCarouselShelfRenderer": map[string]any{
			"header": map[string]any{
				"musicCarouselShelfBasicHeaderRenderer": map[string]any{
					"title": map[string]any{"runs": []any{map[string]any{"text": title}}},
				},
			},
			"contents": items,
		},
	}
}

func twoRowItem(title, subtitle, browseID, videoID string) map[string]any {
	renderer := map[string]any{
		"title":    map[string]any{"runs": []any{map[string]any{"text": title}}},
		"subtitle": map[string]any{"runs": []any{map[string]any{"text": subtitle}}},
	}
	if browseID != "" {
		renderer["navigationEndpoint"] = map[string]any{
			"browseEndpoint": map[string]any{"browseId": browseID},
		}
	}
	if videoID != "" {
		renderer["navigationEndpoint"] = map[string]any{
			"watchEndpoint": map[string]any{"videoId": videoID},
		}
	}
	return map[string]any{"musicTwoRowItemRenderer": renderer}
}

func browseResponse(sections ...any) map[string]any {
	return map[string]any{
		"contents": map[string]any{
			"singleColumnBrowseResultsRenderer": map[string]any{
				"tabs": []any{
					map[string]any{"tabRenderer": map[string]any{
						"content": map[string]any{
							"sectionListRenderer": map[string]any{"contents": sections},
						},
					}},
				},
			},
		},
	}
}

func TestNormalizeFeedSections(t *testing.T) {
	root := browseResponse(
		carouselSection("Listen again",
			twoRowItem("A Song", "Song • Artist", "", "dQw4w9WgXcQ"),
			twoRowItem("An Album", "Album • Artist", "MPREb_abc1234", ""),
			twoRowItem("An Artist", "Artist", "UCartistchanne", ""),
			twoRowItem("A Mix", "Made for you", "PLmixmixmixmixm", ""),
		),
		carouselSection("Empty shelf"),
	)

	sections := normalizeFeedSections(root)
	if len(sections) != 1 {
		t.Fatalf("expected 1 non-empty section, got %d", len(sections))
	}
	section := sections[0]
	if section.Title != "Listen again" {
		t.Errorf("title = %q", section.Title)
	}
	if len(section.Items) != 4 {
		t.Fatalf("expected 4 items, got %d: %+v", len(section.Items), section.Items)
	}

	wantKinds := []media.FeedItemKind{media.FeedSong, media.FeedAlbum, media.FeedArtist, media.FeedPlaylist}
	for i, want := range wantKinds {
		if section.Items[i].Kind != want {
			t.Errorf("item %d kind = %v, want %v", i, section.Items[i].Kind, want)
		}
	}
	if section.Items[0].ID != "dQw4w9WgXcQ" {
		t.Errorf("song item id = %q", section.Items[0].ID)
	}
	if section.Items[1].ID != "MPREb_abc1234" {
		t.Errorf("album item id = %q", section.Items[1].ID)
	}
}

func TestNormalizeFeedSectionsDropsMalformedEntries(t *testing.T) {
	root := browseResponse(
		carouselSection("Shelf",
			twoRowItem("Valid", "Song • Artist", "", "dQw4w9WgXcQ"),
			// No navigation target at all.
			twoRowItem("No target", "subtitle", "", ""),
			// Unrecognized renderer key.
			map[string]any{"someFutureRenderer": map[string]any{}},
			// Not even a map.
			"garbage",
		),
	)

	sections := normalizeFeedSections(root)
	if len(sections) != 1 || len(sections[0].Items) != 1 {
		t.Fatalf("expected the single valid item to survive, got %+v", sections)
	}
	if sections[0].Items[0].Title != "Valid" {
		t.Errorf("surviving item = %+v", sections[0].Items[0])
	}
}

func TestNormalizeFeedSectionsKeepsUntitledEntries(t *testing.T) {
	root := browseResponse(
		carouselSection("Shelf",
			// A missing title degrades to empty; only a missing id drops.
			twoRowItem("", "Song • Artist", "", "dQw4w9WgXcQ"),
		),
	)

	sections := normalizeFeedSections(root)
	if len(sections) != 1 || len(sections[0].Items) != 1 {
		t.Fatalf("expected the untitled item to survive, got %+v", sections)
	}
	item := sections[0].Items[0]
	if item.ID != "dQw4w9WgXcQ" || item.Title != "" {
		t.Errorf("untitled item = %+v", item)
	}
}

func TestNormalizeFeedSectionsEmptyResponse(t *testing.T) {
	if sections := normalizeFeedSections(map[string]any{}); len(sections) != 0 {
		t.Fatalf("expected no sections, got %+v", sections)
	}
	if sections := normalizeFeedSections(nil); len(sections) != 0 {
		t.Fatalf("expected no sections for nil root, got %+v", sections)
	}
}

func albumResponse() map[string]any {
	track := func(videoID, title, artist, duration string) map[string]any {
		return map[string]any{
			"musicResponsiveListItemRenderer": map[string]any{
				"playlistItemData": map[string]any{"videoId": videoID},
				"flexColumns": []any{
					map[string]any{"musicResponsiveListItemFlexColumnRenderer": map[string]any{
						"text": map[string]any{"runs": []any{map[string]any{"text": title}}},
					}},
					map[string]any{"musicResponsiveListItemFlexColumnRenderer": map[string]any{
						"text": map[string]any{"runs": []any{map[string]any{"text": artist}}},
					}},
				},
				"fixedColumns": []any{
					map[string]any{"musicResponsiveListItemFixedColumnRenderer": map[string]any{
						"text": map[string]any{"simpleText": duration},
					}},
				},
			},
		}
	}
	return map[string]any{
		"header": map[string]any{
			"musicDetailHeaderRenderer": map[string]any{
				"title":    map[string]any{"simpleText": "The Album"},
				"subtitle": map[string]any{"simpleText": "Album • The Artist • 2021 • 10 songs"},
			},
		},
		"contents": map[string]any{
			"singleColumnBrowseResultsRenderer": map[string]any{
				"tabs": []any{map[string]any{"tabRenderer": map[string]any{
					"content": map[string]any{"sectionListRenderer": map[string]any{
						"contents": []any{map[string]any{
							"musicShelfRenderer": map[string]any{
								"contents": []any{
									track("aaaaaaaaaaa", "Track One", "", "3:21"),
									track("bbbbbbbbbbb", "Track Two", "Feat Artist", "4:05"),
									// Unavailable row without a video id.
									map[string]any{"musicResponsiveListItemRenderer": map[string]any{
										"flexColumns": []any{},
									}},
								},
							},
						}},
					}},
				}}},
			},
		},
	}
}

func TestNormalizeCollectionAlbum(t *testing.T) {
	collection := normalizeCollection(albumResponse(), media.CollectionAlbum)

	if collection.Title != "The Album" {
		t.Errorf("title = %q", collection.Title)
	}
	if len(collection.Items) != 2 {
		t.Fatalf("expected 2 playable tracks, got %d", len(collection.Items))
	}

	first := collection.Items[0]
	if first.ContentID != "aaaaaaaaaaa" || first.Title != "Track One" {
		t.Errorf("first track = %+v", first)
	}
	if first.Album != "The Album" {
		t.Errorf("album tracks inherit the collection title, got %q", first.Album)
	}
	if first.Artist != "The Artist" {
		t.Errorf("tracks without their own artist inherit the album artist, got %q", first.Artist)
	}
	if first.DurationSec != 201 {
		t.Errorf("duration = %d, want 201", first.DurationSec)
	}

	second := collection.Items[1]
	if second.Artist != "Feat Artist" {
		t.Errorf("a track's own artist must win, got %q", second.Artist)
	}
}

func TestNormalizeCollectionPlaylist(t *testing.T) {
	root := map[string]any{
		"contents": map[string]any{"sectionListRenderer": map[string]any{"contents": []any{
			map[string]any{"playlistVideoListRenderer": map[string]any{
				"contents": []any{
					map[string]any{"playlistVideoRenderer": map[string]any{
						"videoId":         "ccccccccccc",
						"title":           map[string]any{"runs": []any{map[string]any{"text": "Entry"}}},
						"shortBylineText": map[string]any{"runs": []any{map[string]any{"text": "Uploader"}}},
						"lengthSeconds":   "184",
					}},
				},
			}},
		}}},
	}

	collection := normalizeCollection(root, media.CollectionPlaylist)
	if len(collection.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(collection.Items))
	}
	item := collection.Items[0]
	if item.ContentID != "ccccccccccc" || item.Title != "Entry" || item.Artist != "Uploader" {
		t.Errorf("item = %+v", item)
	}
	if item.DurationSec != 184 {
		t.Errorf("duration = %d, want 184", item.DurationSec)
	}
	if item.Album != "" {
		t.Errorf("playlist items carry no album, got %q", item.Album)
	}
}
