// Package ytsource resolves playable media, normalized metadata, feeds
// and related content from the upstream streaming service. The host
// application supplies its platform capabilities once; everything else
// is plain method calls returning stable content-model types.
package ytsource

import (
	"context"

	"github.com/lvcoi/ytsource/internal/engine"
	"github.com/lvcoi/ytsource/internal/host"
	"github.com/lvcoi/ytsource/internal/media"
)

// Capabilities is what the host provides to the source: HTTP transport,
// a cache directory for generated manifests, a logger and the platform
// hint steering delivery-strategy order.
type Capabilities = host.Capabilities

// Platform hints which streaming delivery the host's players prefer.
type (
	Platform    = host.Platform
	CacheWriter = host.CacheWriter
)

const (
	PlatformAndroid = host.PlatformAndroid
	PlatformIOS     = host.PlatformIOS
)

// Re-exported content-model types, so hosts depend on one import path.
type (
	Item              = media.Item
	FeedItem          = media.FeedItem
	FeedSection       = media.FeedSection
	Collection        = media.Collection
	QualityEntry      = media.QualityEntry
	VideoPlaybackInfo = media.VideoPlaybackInfo
	AudioInfo         = media.AudioInfo
	DownloadInfo      = media.DownloadInfo
)

// Supports statically advertises which operations of this surface are
// meaningfully implemented, so a host can feature-gate without probing.
var Supports = struct {
	AudioURL           bool
	DirectAudioURL     bool
	DownloadInfo       bool
	VideoInfo          bool
	VideoURLForQuality bool
	FilteredHLSURL     bool
	Search             bool
	SearchSuggestions  bool
	HomeFeed           bool
	Collections        bool
	Suggestions        bool
}{
	AudioURL:           true,
	DirectAudioURL:     true,
	DownloadInfo:       true,
	VideoInfo:          true,
	VideoURLForQuality: true,
	FilteredHLSURL:     true,
	Search:             true,
	SearchSuggestions:  true,
	HomeFeed:           true,
	Collections:        true,
	Suggestions:        true,
}

// Source is the public handle. Safe for concurrent use.
type Source struct {
	engine *engine.Engine
}

func New(caps Capabilities) *Source {
	return &Source{engine: engine.New(caps)}
}

// Initialize warms the common upstream sessions. Optional: every
// operation creates what it needs lazily, warming just front-loads the
// handshakes.
func (s *Source) Initialize(ctx context.Context) error {
	return s.engine.Initialize(ctx)
}

// Dispose drops all sessions and cached state.
func (s *Source) Dispose() {
	s.engine.Dispose()
}

// GetAudioURL resolves a playable audio URL plus required request
// headers for a content id. ok is false, with nil error, when the item
// has no audio representation.
func (s *Source) GetAudioURL(ctx context.Context, contentID string) (AudioInfo, bool, error) {
	return s.engine.ResolveAudio(ctx, contentID)
}

// GetDirectAudioURL is GetAudioURL without the manifest shortcut: the
// result is always a direct progressive URL, suitable for downloading.
func (s *Source) GetDirectAudioURL(ctx context.Context, contentID string) (AudioInfo, bool, error) {
	return s.engine.ResolveDirectAudio(ctx, contentID)
}

// GetDownloadInfo resolves a stream URL plus the metadata needed to
// name and tag a downloaded file.
func (s *Source) GetDownloadInfo(ctx context.Context, contentID string, audioOnly bool) (DownloadInfo, error) {
	return s.engine.DownloadInfo(ctx, contentID, audioOnly)
}

// GetVideoInfo resolves video playback for a content id: a URL under
// the best available delivery mode plus the quality ladder.
func (s *Source) GetVideoInfo(ctx context.Context, contentID string) (VideoPlaybackInfo, bool, error) {
	return s.engine.ResolveVideo(ctx, contentID)
}

// GetVideoURLForQuality resolves a direct URL for an exact ladder
// height. ok is false, with nil error, when no rung has that height.
func (s *Source) GetVideoURLForQuality(ctx context.Context, contentID string, height int) (url string, hasAudio bool, ok bool, err error) {
	return s.engine.ResolveVideoAtHeight(ctx, contentID, height)
}

// GetFilteredHLSURL re-emits the most recently fetched HLS manifest
// restricted to one height and returns a URI for the copy. ok is false
// when no manifest is cached for the content id or the height keeps no
// variant.
func (s *Source) GetFilteredHLSURL(contentID string, height int) (string, bool, error) {
	return s.engine.FilteredHLSURL(contentID, height)
}

// Search runs a query and returns normalized items. Never fails:
// errors degrade to an empty result.
func (s *Source) Search(ctx context.Context, query string) []Item {
	return s.engine.Search(ctx, query)
}

// GetSearchSuggestions returns typeahead completions for a partial
// query, or nothing on any failure.
func (s *Source) GetSearchSuggestions(ctx context.Context, query string) []string {
	return s.engine.SearchSuggestions(ctx, query)
}

// GetHomeFeed returns the personalized home shelves, or nothing on any
// failure.
func (s *Source) GetHomeFeed(ctx context.Context) []FeedSection {
	return s.engine.HomeFeed(ctx)
}

// GetCollection resolves a playlist or album with its ordered items.
func (s *Source) GetCollection(ctx context.Context, collectionID string) (Collection, error) {
	return s.engine.Collection(ctx, collectionID)
}

// GetSuggestions returns related items for a seed content id, never
// including the seed, capped at a small batch. Empty on failure.
func (s *Source) GetSuggestions(ctx context.Context, contentID string) []Item {
	return s.engine.Suggestions(ctx, contentID)
}

// RecreateSession drops and re-creates the session behind a client
// surface after the upstream starts rejecting its URLs.
func (s *Source) RecreateSession(ctx context.Context, clientType string) error {
	return s.engine.RecreateSession(ctx, engine.ClientType(clientType))
}

// ExtractContentID accepts a bare content id or any of the usual URL
// forms and returns the canonical id.
func ExtractContentID(raw string) (string, error) {
	return engine.ExtractContentID(raw)
}

// ExtractCollectionID is ExtractContentID for playlist and album
// references.
func ExtractCollectionID(raw string) (string, error) {
	return engine.ExtractCollectionID(raw)
}

// ExitCode maps an error to a process exit code by failure category.
func ExitCode(err error) int {
	return engine.ExitCode(err)
}

// NewDirCache returns a CacheWriter persisting generated manifests
// under dir.
func NewDirCache(dir string) CacheWriter {
	return host.DirCache{Dir: dir}
}
