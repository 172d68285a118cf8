package engine

import (
	"context"
	"sync"

	"github.com/kkdai/youtube/v2"
)

// videoInfoEntry pairs resolved metadata with the session that produced
// it, so later stream-URL resolution deciphers with the same client
// identity the formats were issued for.
type videoInfoEntry struct {
	contentID string
	video     *youtube.Video
	session   *Session
}

// videoInfoCache holds the most recent metadata lookup. A single slot is
// enough: playback flows resolve one item at a time, and a fetch for a
// different content id supersedes the previous entry.
type videoInfoCache struct {
	mu    sync.Mutex
	entry *videoInfoEntry
}

func (c *videoInfoCache) get(contentID string) (*videoInfoEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || c.entry.contentID != contentID {
		return nil, false
	}
	return c.entry, true
}

func (c *videoInfoCache) put(entry *videoInfoEntry) {
	c.mu.Lock()
	c.entry = entry
	c.mu.Unlock()
}

// currentID reports which content id the slot holds, if any.
func (c *videoInfoCache) currentID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return ""
	}
	return c.entry.contentID
}

func (c *videoInfoCache) clear() {
	c.mu.Lock()
	c.entry = nil
	c.mu.Unlock()
}

// videoInfo resolves metadata for a content id through the given client
// type, serving repeat lookups for the same id from the cache. The cached
// entry is reused regardless of which client type originally fetched it.
func (e *Engine) videoInfo(ctx context.Context, contentID string, t ClientType) (*videoInfoEntry, error) {
	if entry, ok := e.info.get(contentID); ok {
		return entry, nil
	}
	sess, err := e.session(ctx, t)
	if err != nil {
		return nil, err
	}
	video, err := sess.Metadata(ctx, contentID)
	if err != nil {
		return nil, err
	}
	entry := &videoInfoEntry{contentID: contentID, video: video, session: sess}
	e.info.put(entry)
	return entry, nil
}
