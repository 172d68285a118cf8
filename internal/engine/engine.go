// Package engine implements the content resolution and normalization core:
// pooled per-client-type sessions, playback-format selection and quality
// ladders, HLS manifest processing, defensive normalization of feed and
// collection trees, and the two-strategy related-content protocol.
package engine

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lvcoi/ytsource/internal/host"
)

// warmClients are the client types Initialize creates eagerly: the
// desktop surface for discovery, the app surfaces for playback.
var warmClients = []ClientType{ClientWeb, ClientAndroid, ClientAndroidMusic}

// Engine is the resolution engine. All shared mutable state lives in the
// pool and the two single-slot caches; everything else is read-only after
// construction.
type Engine struct {
	caps host.Capabilities
	log  zerolog.Logger
	pool *Pool

	info videoInfoCache
	hls  hlsManifestCache
}

func New(caps host.Capabilities) *Engine {
	caps = caps.Defaults()
	return &Engine{
		caps: caps,
		log:  caps.Logger,
		pool: NewPool(caps.Logger),
	}
}

// Initialize warms the common client types concurrently. Individual
// handshake failures are tolerated: a missing session is re-attempted
// lazily on first use, so initialization only fails on context
// cancellation.
func (e *Engine) Initialize(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range warmClients {
		g.Go(func() error {
			if _, err := e.pool.Get(ctx, t, false); err != nil {
				e.log.Warn().Str("client", string(t)).Err(err).Msg("warmup failed")
			}
			return ctx.Err()
		})
	}
	return g.Wait()
}

// Dispose drops all sessions and cached state. In-flight network work is
// not cancelled; subsequent calls re-create what they need.
func (e *Engine) Dispose() {
	e.pool.Dispose()
	e.info.clear()
	e.hls.clear()
}

// session returns the pooled session for a client type, creating it on
// demand.
func (e *Engine) session(ctx context.Context, t ClientType) (*Session, error) {
	return e.pool.Get(ctx, t, false)
}

// RecreateSession restores one client type's session after the upstream
// starts rejecting its resolved URLs. A live session first refreshes its
// visitor data and proof-of-origin token in place through the headless
// solver; when no live session or content id is at hand, or the refresh
// fails, the session is dropped and re-created. Cached metadata and
// manifests were resolved under the old requirements and are cleared
// either way.
func (e *Engine) RecreateSession(ctx context.Context, t ClientType) error {
	contentID := e.info.currentID()
	e.info.clear()
	e.hls.clear()

	if live := e.pool.Peek(t); live != nil && contentID != "" {
		if err := live.RefreshRequirements(ctx, contentID); err == nil {
			return nil
		}
		e.log.Debug().Str("client", string(t)).Msg("in-place session refresh failed, recreating")
	}
	_, err := e.pool.Get(ctx, t, true)
	return err
}

// Platform reports the host platform hint steering delivery-strategy
// order.
func (e *Engine) Platform() host.Platform {
	return e.caps.Platform
}
