package engine

import (
	"context"
	"sync"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ClientType selects which upstream front-end a session impersonates. The
// platform serves materially different payload shapes, endpoints and
// cipher behavior per client type, so sessions are pooled per type.
type ClientType string

const (
	ClientWeb          ClientType = "web"
	ClientMWeb         ClientType = "mweb"
	ClientAndroid      ClientType = "android"
	ClientAndroidMusic ClientType = "android_music"
	ClientIOS          ClientType = "ios"
	ClientTV           ClientType = "tv"
)

// clientProfile is the static per-type identity used for raw API calls.
type clientProfile struct {
	name       string
	version    string
	userAgent  string
	apiHost    string
	sdkVersion int
}

var clientProfiles = map[ClientType]clientProfile{
	ClientWeb: {
		name:      "WEB",
		version:   "2.20240726.00.00",
		userAgent: desktopUserAgent,
		apiHost:   "www.youtube.com",
	},
	ClientMWeb: {
		name:      "MWEB",
		version:   "2.20240726.01.00",
		userAgent: mobileUserAgent,
		apiHost:   "m.youtube.com",
	},
	ClientAndroid: {
		name:       "ANDROID",
		version:    "19.29.37",
		userAgent:  "com.google.android.youtube/19.29.37 (Linux; U; Android 14) gzip",
		apiHost:    "www.youtube.com",
		sdkVersion: 30,
	},
	ClientAndroidMusic: {
		name:       "ANDROID_MUSIC",
		version:    "7.11.50",
		userAgent:  "com.google.android.apps.youtube.music/7.11.50 (Linux; U; Android 14) gzip",
		apiHost:    "music.youtube.com",
		sdkVersion: 30,
	},
	ClientIOS: {
		name:      "IOS",
		version:   "19.29.1",
		userAgent: iosUserAgent,
		apiHost:   "www.youtube.com",
	},
	ClientTV: {
		name:      "TVHTML5_SIMPLY_EMBEDDED_PLAYER",
		version:   "2.0",
		userAgent: desktopUserAgent,
		apiHost:   "www.youtube.com",
	},
}

// The protocol library selects its client identity through a package-level
// variable, so identity switches are serialized and scoped to one call.
var ytClientMu sync.Mutex

// withDefaultClient runs fn with the protocol library's client identity
// set for the given pool client type, restoring the previous identity
// afterwards.
func withDefaultClient(t ClientType, fn func() error) error {
	ytClientMu.Lock()
	defer ytClientMu.Unlock()
	saved := youtube.DefaultClient
	switch t {
	case ClientAndroid, ClientAndroidMusic:
		youtube.DefaultClient = youtube.AndroidClient
	case ClientTV:
		youtube.DefaultClient = youtube.EmbeddedClient
	default:
		youtube.DefaultClient = youtube.WebClient
	}
	defer func() { youtube.DefaultClient = saved }()
	return fn()
}

// Pool owns lazily-created sessions keyed by client type. Concurrent
// creation for the same key is deduplicated: every caller awaits the one
// in-flight handshake and shares its result or error.
type Pool struct {
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[ClientType]*Session
	inflight singleflight.Group
}

func NewPool(log zerolog.Logger) *Pool {
	return &Pool{
		log:      log,
		sessions: make(map[ClientType]*Session),
	}
}

// Get returns the pooled session for the client type, creating it on first
// use. With force set, any existing session is dropped and a fresh
// handshake performed; callers already holding the old session keep a
// valid but orphaned handle.
func (p *Pool) Get(ctx context.Context, t ClientType, force bool) (*Session, error) {
	if !force {
		p.mu.RLock()
		session := p.sessions[t]
		p.mu.RUnlock()
		if session != nil {
			return session, nil
		}
	} else {
		p.mu.Lock()
		delete(p.sessions, t)
		p.mu.Unlock()
		p.inflight.Forget(string(t))
	}

	value, err, _ := p.inflight.Do(string(t), func() (any, error) {
		session, err := newSession(ctx, t, p.log)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.sessions[t] = session
		p.mu.Unlock()
		return session, nil
	})
	if err != nil {
		p.log.Warn().Str("client", string(t)).Err(err).Msg("session creation failed")
		return nil, err
	}
	return value.(*Session), nil
}

// Peek returns the session for the client type without creating one.
func (p *Pool) Peek(t ClientType) *Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[t]
}

// Dispose drops all sessions and in-flight markers. It does not cancel
// in-flight network work; subsequent Get calls simply re-create.
func (p *Pool) Dispose() {
	p.mu.Lock()
	for t := range p.sessions {
		delete(p.sessions, t)
	}
	p.mu.Unlock()
	for _, t := range []ClientType{ClientWeb, ClientMWeb, ClientAndroid, ClientAndroidMusic, ClientIOS, ClientTV} {
		p.inflight.Forget(string(t))
	}
	CloseIdleConnections()
}
