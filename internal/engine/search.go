package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lvcoi/ytsource/internal/media"
)

// suggestEndpoint serves typeahead completions. The firefox client
// variant answers plain JSON instead of JSONP.
const suggestEndpoint = "https://suggestqueries-clients6.youtube.com/complete/search"

// searchResultLimit caps one page of normalized results.
const searchResultLimit = 40

// Search runs a query against the music surface and normalizes the
// result rows to items. Discovery surface: failures are logged and an
// empty result returned.
func (e *Engine) Search(ctx context.Context, query string) []media.Item {
	sess, err := e.session(ctx, ClientAndroidMusic)
	if err != nil {
		e.log.Warn().Err(err).Msg("search session unavailable")
		return nil
	}
	root, err := sess.SearchRaw(ctx, query, "")
	if err != nil {
		e.log.Warn().Str("query", query).Err(err).Msg("search failed")
		return nil
	}
	return normalizeSearchResults(root)
}

// searchRowKeys are the result-row renderers a search response mixes,
// across the app and desktop surfaces.
var searchRowKeys = []string{
	"musicResponsiveListItemRenderer",
	"videoRenderer",
	"compactVideoRenderer",
}

func normalizeSearchResults(root map[string]any) []media.Item {
	var items []media.Item
	seen := map[string]bool{}
	for _, renderer := range collectRenderers(root, searchRowKeys...) {
		item, ok := normalizeSearchRow(renderer)
		if !ok || seen[item.ContentID] {
			continue
		}
		seen[item.ContentID] = true
		items = append(items, item)
		if len(items) >= searchResultLimit {
			break
		}
	}
	return items
}

// normalizeSearchRow reduces one result renderer to an Item. Rows
// without a playable video id are shelf links, not content; they are
// dropped.
func normalizeSearchRow(renderer map[string]any) (media.Item, bool) {
	videoID, _ := rendererTargets(renderer)
	if !isVideoID(videoID) {
		return media.Item{}, false
	}
	title := text(renderer["title"])
	artist := ""
	if title == "" {
		title = flexColumnText(renderer, 0)
		artist = flexColumnText(renderer, 1)
	}
	if artist == "" {
		for _, field := range []string{"longBylineText", "shortBylineText", "ownerText"} {
			if artist = text(renderer[field]); artist != "" {
				break
			}
		}
	}
	if title == "" {
		return media.Item{}, false
	}
	item := media.Item{
		ID:           videoID,
		ContentID:    videoID,
		Title:        title,
		Artist:       artist,
		DurationSec:  parseDurationText(text(renderer["lengthText"])),
		ThumbnailURL: thumbnailURL(renderer),
		Kind:         media.KindTrack,
	}
	if item.DurationSec == 0 {
		cols := asSlice(renderer["fixedColumns"])
		if len(cols) > 0 {
			item.DurationSec = parseDurationText(text(getPath(asMap(cols[0]),
				"musicResponsiveListItemFixedColumnRenderer", "text")))
		}
	}
	if item.ThumbnailURL == "" {
		item.ThumbnailURL = defaultThumbnailURL(videoID)
	}
	return item, true
}

// SearchSuggestions fetches typeahead completions for a partial query.
// Failures are logged and an empty slice returned.
func (e *Engine) SearchSuggestions(ctx context.Context, query string) []string {
	params := url.Values{}
	params.Set("client", "firefox")
	params.Set("ds", "yt")
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, suggestEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	resp, err := e.caps.HTTPClient.Do(req)
	if err != nil {
		e.log.Debug().Err(err).Msg("suggestions fetch failed")
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		e.log.Debug().Int("status", resp.StatusCode).Msg("suggestions fetch rejected")
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	suggestions, err := parseSuggestions(body)
	if err != nil {
		e.log.Debug().Err(err).Msg("suggestions parse failed")
		return nil
	}
	return suggestions
}

// parseSuggestions decodes the completion payload, a two-element array
// of the echoed query and the candidate list.
func parseSuggestions(body []byte) ([]string, error) {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if len(payload) < 2 {
		return nil, fmt.Errorf("unexpected completion payload shape")
	}
	var suggestions []string
	for _, entry := range asSlice(payload[1]) {
		switch v := entry.(type) {
		case string:
			suggestions = append(suggestions, v)
		case []any:
			// Some variants wrap each candidate as [text, ...].
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					suggestions = append(suggestions, s)
				}
			}
		}
	}
	return suggestions, nil
}
