package engine

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDRegex   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	listIDRegex    = regexp.MustCompile(`^[A-Za-z0-9_-]{13,42}$`)
	listParamRegex = regexp.MustCompile(`[?&]list=([A-Za-z0-9_-]{13,42})`)
)

// nonVideoPrefixes are id prefixes that can collide with the 11-character
// video id length but identify playlists, channels, albums or feeds.
var nonVideoPrefixes = []string{"PL", "VL", "UC", "UU", "OLAK", "RDAM", "RDCLAK", "MPRE", "FE"}

func isVideoID(id string) bool {
	if !videoIDRegex.MatchString(id) {
		return false
	}
	for _, prefix := range nonVideoPrefixes {
		if strings.HasPrefix(id, prefix) {
			return false
		}
	}
	return true
}

func isCollectionID(id string) bool {
	if isVideoID(id) {
		return false
	}
	return listIDRegex.MatchString(id)
}

// extractContentID accepts a bare video id or any of the usual URL forms
// (watch, youtu.be, shorts, live, music) and returns the 11-character id.
func extractContentID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if isVideoID(raw) {
		return raw, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", wrapCategory(CategoryInvalidID, fmt.Errorf("invalid content reference: %w", err))
	}
	host := normalizeHostname(parsed)
	switch host {
	case "youtube.com", "music.youtube.com", "m.youtube.com":
		if id := parsed.Query().Get("v"); isVideoID(id) {
			return id, nil
		}
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(parts) >= 2 && (parts[0] == "shorts" || parts[0] == "live" || parts[0] == "embed") && isVideoID(parts[1]) {
			return parts[1], nil
		}
	case "youtu.be":
		if id := strings.TrimPrefix(parsed.Path, "/"); isVideoID(id) {
			return id, nil
		}
	}
	return "", wrapCategory(CategoryInvalidID, fmt.Errorf("no video id in %q", raw))
}

// extractCollectionID accepts a bare playlist/album id or a URL carrying a
// list parameter or a browse path.
func extractCollectionID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if isCollectionID(raw) {
		return raw, nil
	}
	if match := listParamRegex.FindStringSubmatch(raw); match != nil {
		return match[1], nil
	}
	parsed, err := url.Parse(raw)
	if err == nil {
		parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
		if len(parts) >= 2 && (parts[0] == "playlist" || parts[0] == "browse") && isCollectionID(parts[1]) {
			return parts[1], nil
		}
	}
	return "", wrapCategory(CategoryInvalidID, fmt.Errorf("no collection id in %q", raw))
}

// ExtractContentID accepts a bare video id or URL and returns the
// content id, for callers outside the engine.
func ExtractContentID(raw string) (string, error) {
	return extractContentID(raw)
}

// ExtractCollectionID is ExtractContentID for playlist and album ids.
func ExtractCollectionID(raw string) (string, error) {
	return extractCollectionID(raw)
}

// normalizeHostname returns the lowercase hostname with "www." stripped.
func normalizeHostname(parsed *url.URL) string {
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func watchURLForID(id string) string {
	if id == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + id
}

// defaultThumbnailURL is the constructed artwork fallback when a result
// carries no image source of its own.
func defaultThumbnailURL(id string) string {
	if id == "" {
		return ""
	}
	return "https://i.ytimg.com/vi/" + id + "/mqdefault.jpg"
}
