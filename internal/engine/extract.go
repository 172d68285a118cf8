package engine

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lvcoi/ytsource/internal/media"
)

// The upstream API has no stable schema: the same logical field surfaces
// under many near-equivalent shapes depending on endpoint, client type and
// experiment bucket. Every helper in this file degrades to a zero value on
// an unrecognized shape; nothing here ever panics or returns an error.

func asMap(value any) map[string]any {
	if value == nil {
		return nil
	}
	m, _ := value.(map[string]any)
	return m
}

func asSlice(value any) []any {
	if value == nil {
		return nil
	}
	s, _ := value.([]any)
	return s
}

func getPath(value map[string]any, keys ...string) any {
	var current any = value
	for _, key := range keys {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

func getString(value any) string {
	if value == nil {
		return ""
	}
	s, _ := value.(string)
	return s
}

func getInt(value any) int {
	switch v := value.(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// text extracts display text from either a {runs: [...]} or a
// {simpleText: ...} node, or a bare string.
func text(value any) string {
	textMap := asMap(value)
	if textMap == nil {
		if s, ok := value.(string); ok {
			return s
		}
		return ""
	}
	if runs := asSlice(textMap["runs"]); len(runs) > 0 {
		return runsText(runs)
	}
	if s, ok := textMap["simpleText"].(string); ok {
		return s
	}
	// Newer view models carry {content: "..."}.
	if s, ok := textMap["content"].(string); ok {
		return s
	}
	return ""
}

func runsText(runs []any) string {
	var b strings.Builder
	for _, run := range runs {
		runMap := asMap(run)
		if runMap == nil {
			continue
		}
		if t, ok := runMap["text"].(string); ok {
			b.WriteString(t)
		}
	}
	return b.String()
}

// lastThumbnailURL returns the URL of the last entry of a thumbnails
// array, which the upstream orders ascending by resolution.
func lastThumbnailURL(thumbs []any) string {
	for i := len(thumbs) - 1; i >= 0; i-- {
		if u := getString(asMap(thumbs[i])["url"]); u != "" {
			return u
		}
	}
	return ""
}

// thumbnailRendererKeys are the nested shapes a thumbnail hides under,
// tried in order after the explicit array form.
var thumbnailRendererKeys = []struct{ outer, inner string }{
	{"thumbnailRenderer", "musicThumbnailRenderer"},
	{"thumbnailRenderer", "croppedSquareThumbnailRenderer"},
	{"thumbnail", "musicThumbnailRenderer"},
}

// thumbnailURL walks a response fragment for the best-available image URL.
// Preference order: explicit thumbnail arrays, known nested renderer
// shapes, then an exhaustive shallow scan of the node's own keys.
func thumbnailURL(node map[string]any) string {
	if node == nil {
		return ""
	}
	if thumbs := asSlice(getPath(node, "thumbnail", "thumbnails")); len(thumbs) > 0 {
		if u := lastThumbnailURL(thumbs); u != "" {
			return u
		}
	}
	for _, shape := range thumbnailRendererKeys {
		inner := asMap(getPath(node, shape.outer, shape.inner))
		if inner == nil {
			continue
		}
		if thumbs := asSlice(getPath(inner, "thumbnail", "thumbnails")); len(thumbs) > 0 {
			if u := lastThumbnailURL(thumbs); u != "" {
				return u
			}
		}
	}
	return scanForThumbnail(node)
}

// scanForThumbnail is the last-resort shallow scan: any nested object of
// the node exposing url, thumbnails, or contents[].url/thumbnails wins.
// First match in enumeration order.
func scanForThumbnail(node map[string]any) string {
	for _, value := range node {
		child := asMap(value)
		if child == nil {
			continue
		}
		if u := getString(child["url"]); u != "" {
			return u
		}
		if thumbs := asSlice(child["thumbnails"]); len(thumbs) > 0 {
			if u := lastThumbnailURL(thumbs); u != "" {
				return u
			}
		}
		for _, item := range asSlice(child["contents"]) {
			itemMap := asMap(item)
			if itemMap == nil {
				continue
			}
			if u := getString(itemMap["url"]); u != "" {
				return u
			}
			if thumbs := asSlice(itemMap["thumbnails"]); len(thumbs) > 0 {
				if u := lastThumbnailURL(thumbs); u != "" {
					return u
				}
			}
		}
	}
	return ""
}

// classifyFeedItem implements the item-kind policy: an 11-character video
// id wins outright; otherwise a browse id classifies by subtitle keyword;
// an item with no id, no browse id and no title is unclassifiable.
func classifyFeedItem(videoID, browseID, subtitle string) media.FeedItemKind {
	if isVideoID(videoID) {
		return media.FeedSong
	}
	if browseID != "" {
		lower := strings.ToLower(subtitle)
		switch {
		case strings.Contains(lower, "album"):
			return media.FeedAlbum
		case strings.Contains(lower, "artist"):
			return media.FeedArtist
		case strings.Contains(lower, "song"), strings.Contains(lower, "single"):
			return media.FeedSong
		default:
			return media.FeedPlaylist
		}
	}
	return media.FeedUnknown
}

var (
	yearRegex       = regexp.MustCompile(`^\d{4}$`)
	trackCountRegex = regexp.MustCompile(`(?i)^\d+\s+(song|track)s?$`)
)

// albumArtist resolves an album's artist: explicit strapline first, then a
// subtitle run whose navigation target is a non-album browse id, then the
// first bullet-separated subtitle segment that is neither a year, a track
// count, nor the literal word "album".
func albumArtist(header map[string]any) string {
	if artist := text(header["straplineTextOne"]); artist != "" {
		return artist
	}
	for _, run := range asSlice(getPath(header, "subtitle", "runs")) {
		runMap := asMap(run)
		if runMap == nil {
			continue
		}
		browseID := getString(getPath(runMap, "navigationEndpoint", "browseEndpoint", "browseId"))
		if browseID != "" && !strings.HasPrefix(browseID, "MPRE") {
			if t := getString(runMap["text"]); t != "" {
				return t
			}
		}
	}
	subtitle := text(header["subtitle"])
	for _, segment := range strings.Split(subtitle, "•") {
		segment = strings.TrimSpace(segment)
		if segment == "" || yearRegex.MatchString(segment) || trackCountRegex.MatchString(segment) {
			continue
		}
		if strings.EqualFold(segment, "album") {
			continue
		}
		return segment
	}
	return ""
}

// parseDurationText converts "H:MM:SS" or "MM:SS" display text to seconds.
// Unparseable text yields zero.
func parseDurationText(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}
	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
