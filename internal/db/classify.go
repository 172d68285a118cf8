package db

import (
	"strings"
)

// ClassifyMediaType labels a history row as music, podcast, movie or
// video from the metadata signals available after resolution:
//   - music:   music-surface URL, explicit artist+album tags, an
//     auto-generated " - Topic" channel, or an audio-only download
//   - podcast: category "Podcasts"
//   - movie:   category "Movies"
//   - video:   everything else
func ClassifyMediaType(sourceURL, channelName, category, artist, album string, audioOnly bool) string {
	if strings.Contains(sourceURL, "music.") {
		return "music"
	}
	if strings.TrimSpace(artist) != "" && strings.TrimSpace(album) != "" {
		return "music"
	}
	if strings.HasSuffix(channelName, " - Topic") {
		return "music"
	}
	if audioOnly {
		return "music"
	}

	switch strings.ToLower(strings.TrimSpace(category)) {
	case "podcasts":
		return "podcast"
	case "movies":
		return "movie"
	}
	return "video"
}
