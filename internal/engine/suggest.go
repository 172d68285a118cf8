package engine

import (
	"context"
	"strings"

	"github.com/lvcoi/ytsource/internal/media"
)

// suggestionLimit caps one batch of related items.
const suggestionLimit = 20

// Suggestions resolves related content for a seed item. Two strategies
// run in order: the watch-next feed of the seed, then a title+author
// search when that feed yields nothing usable. The seed itself is never
// part of the result. Failures are swallowed into an empty batch;
// related content is decoration, not a playback dependency.
func (e *Engine) Suggestions(ctx context.Context, contentID string) []media.Item {
	sess, err := e.session(ctx, ClientWeb)
	if err != nil {
		e.log.Warn().Err(err).Msg("suggestions session unavailable")
		return nil
	}

	var items []media.Item
	if root, err := sess.Next(ctx, contentID); err == nil {
		items = normalizeSuggestions(root, contentID)
	} else {
		e.log.Debug().Str("id", contentID).Err(err).Msg("watch-next fetch failed")
	}
	if len(items) > 0 {
		return items
	}

	items = e.Search(ctx, e.suggestionQuery(ctx, contentID))

	filtered := items[:0]
	for _, item := range items {
		if item.ContentID == contentID {
			continue
		}
		filtered = append(filtered, item)
		if len(filtered) >= suggestionLimit {
			break
		}
	}
	return filtered
}

// suggestionQuery builds the fallback search query from the seed's title
// and author. When the seed's metadata cannot be fetched, the raw content
// id is the query: a degraded search still beats returning nothing.
func (e *Engine) suggestionQuery(ctx context.Context, contentID string) string {
	entry, err := e.videoInfo(ctx, contentID, ClientWeb)
	if err != nil {
		e.log.Debug().Str("id", contentID).Err(err).Msg("suggestion seed lookup failed, searching by id")
		return contentID
	}
	return strings.TrimSpace(entry.video.Title + " " + entry.video.Author)
}

// suggestionRowKeys are the related-item renderers of a watch-next
// response across surface generations.
var suggestionRowKeys = []string{
	"lockupViewModel",
	"compactVideoRenderer",
}

func normalizeSuggestions(root map[string]any, seedID string) []media.Item {
	var items []media.Item
	seen := map[string]bool{seedID: true}
	for _, renderer := range collectRenderers(root, suggestionRowKeys...) {
		var item media.Item
		var ok bool
		if getString(renderer["contentId"]) != "" || asMap(renderer["metadata"]) != nil {
			item, ok = normalizeLockup(renderer)
		} else {
			item, ok = normalizeSearchRow(renderer)
		}
		if !ok || seen[item.ContentID] {
			continue
		}
		seen[item.ContentID] = true
		items = append(items, item)
		if len(items) >= suggestionLimit {
			break
		}
	}
	return items
}

// normalizeLockup reduces a lockup view model to an Item. Lockups also
// represent playlists and channels; only video lockups qualify.
func normalizeLockup(renderer map[string]any) (media.Item, bool) {
	videoID := getString(renderer["contentId"])
	if !isVideoID(videoID) {
		return media.Item{}, false
	}
	meta := asMap(getPath(renderer, "metadata", "lockupMetadataViewModel"))
	title := text(getPath(meta, "title"))
	if title == "" {
		return media.Item{}, false
	}
	artist := ""
	rows := asSlice(getPath(meta, "metadata", "contentMetadataViewModel", "metadataRows"))
	for _, row := range rows {
		for _, part := range asSlice(getPath(asMap(row), "metadataParts")) {
			if t := text(getPath(asMap(part), "text")); t != "" {
				artist = t
				break
			}
		}
		if artist != "" {
			break
		}
	}
	thumb := lastThumbnailURL(asSlice(getPath(renderer, "contentImage", "thumbnailViewModel", "image", "sources")))
	if thumb == "" {
		thumb = defaultThumbnailURL(videoID)
	}
	return media.Item{
		ID:           videoID,
		ContentID:    videoID,
		Title:        title,
		Artist:       artist,
		ThumbnailURL: thumb,
		Kind:         media.KindTrack,
	}, true
}
