// Package media defines the stable content model emitted by the resolution
// engine. Upstream response shapes vary per endpoint and client type; these
// types are the normalized form the rest of the application consumes.
package media

// ContentKind classifies a resolved item.
type ContentKind int

const (
	KindTrack ContentKind = iota
	KindMovie
	KindSeries
	KindEpisode
)

func (k ContentKind) String() string {
	switch k {
	case KindTrack:
		return "track"
	case KindMovie:
		return "movie"
	case KindSeries:
		return "series"
	case KindEpisode:
		return "episode"
	default:
		return "track"
	}
}

// Item is the source-agnostic content unit. ID and ContentID are always
// non-empty on emitted items; candidates missing either are dropped during
// normalization instead of being emitted with placeholder ids.
type Item struct {
	ID           string
	ContentID    string
	Title        string
	DurationSec  int
	ThumbnailURL string
	Kind         ContentKind
	Artist       string
	Album        string
	Year         int
	Season       int
	Episode      int
}

// FeedItemKind is the closed classification for feed entries. Never left
// unset: classification falls through to FeedUnknown.
type FeedItemKind int

const (
	FeedUnknown FeedItemKind = iota
	FeedPlaylist
	FeedAlbum
	FeedSong
	FeedArtist
	FeedMovie
	FeedSeries
	FeedEpisode
	FeedCategory
)

func (k FeedItemKind) String() string {
	switch k {
	case FeedPlaylist:
		return "playlist"
	case FeedAlbum:
		return "album"
	case FeedSong:
		return "song"
	case FeedArtist:
		return "artist"
	case FeedMovie:
		return "movie"
	case FeedSeries:
		return "series"
	case FeedEpisode:
		return "episode"
	case FeedCategory:
		return "category"
	default:
		return "unknown"
	}
}

// FeedItem is one entry of a feed shelf.
type FeedItem struct {
	ID           string
	Title        string
	Subtitle     string
	ThumbnailURL string
	Kind         FeedItemKind
}

// FeedSection is a titled shelf of feed items.
type FeedSection struct {
	Title string
	Items []FeedItem
}

// CollectionKind classifies a resolved collection.
type CollectionKind int

const (
	CollectionPlaylist CollectionKind = iota
	CollectionAlbum
)

func (k CollectionKind) String() string {
	if k == CollectionAlbum {
		return "album"
	}
	return "playlist"
}

// Collection is a resolved playlist or album with its ordered items.
type Collection struct {
	ID           string
	Title        string
	Subtitle     string
	ThumbnailURL string
	Kind         CollectionKind
	Items        []Item
}

// QualityEntry is one rung of a quality ladder, keyed by height. At most
// one entry exists per height; muxed formats win over audio-less adaptive
// formats at the same height.
type QualityEntry struct {
	Label    string
	Height   int
	HasAudio bool
	Bitrate  int
}

// VideoPlaybackInfo is the result of resolving video playback for one
// content id, under one of three delivery modes.
type VideoPlaybackInfo struct {
	URL            string
	IsHLS          bool
	IsDash         bool
	HasAudio       bool
	Qualities      []QualityEntry
	DefaultQuality QualityEntry
}

// AudioInfo carries a playable audio URL and the headers the upstream
// service requires to accept it.
type AudioInfo struct {
	URL     string
	Headers map[string]string
}

// DownloadInfo extends AudioInfo with the metadata a host needs to name
// and tag a completed download.
type DownloadInfo struct {
	URL           string
	Headers       map[string]string
	MimeType      string
	ContentLength int64
	Title         string
	Artist        string
	Album         string
	ThumbnailURL  string
	DurationSec   int
}
