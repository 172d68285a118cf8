package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
)

const (
	poTokenQueryKey = "pot"
	visitorQueryKey = "visitorData"
	visitorHeader   = "X-Goog-Visitor-Id"
	poTokenHeader   = "X-YouTube-PO-Token"

	sessionTimeout = 45 * time.Second
)

var (
	ytcfgRegex     = regexp.MustCompile(`(?s)ytcfg\.set\((\{.*?\})\);`)
	playerJSRegex  = regexp.MustCompile(`"(?:PLAYER_JS_URL|jsUrl)"\s*:\s*"(/s/player/[^"]+)"`)
	nCallsiteRegex = regexp.MustCompile(`\.get\("n"\)\)&&\(b=([a-zA-Z0-9$_]+)(?:\[(\d+)\])?\(`)
)

// Session is one authenticated-or-anonymous handle to a single upstream
// client type. It bundles the protocol library client for metadata and
// decipher calls, an HTTP client with the identity transport for raw API
// calls, and the dynamic requirements (visitor data, proof-of-origin
// token, n transform) needed to satisfy the server on resolved URLs.
type Session struct {
	Type ClientType

	profile clientProfile
	yt      *youtube.Client
	http    *http.Client
	log     zerolog.Logger

	mu          sync.RWMutex
	apiKey      string
	visitorData string
	poToken     string
	playerPath  string
	nTransform  func(string) (string, error)
}

// newSession performs the handshake for one client type. For web-facing
// types this scrapes the page's inline config for the API key and visitor
// data; app-like types start from the static profile alone.
func newSession(ctx context.Context, t ClientType, log zerolog.Logger) (*Session, error) {
	profile, ok := clientProfiles[t]
	if !ok {
		return nil, wrapCategory(CategoryUnsupported, fmt.Errorf("unknown client type %q", t))
	}

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{
		Timeout: sessionTimeout,
		Jar:     jar,
		Transport: newRetryTransport(&identityTransport{
			base:      sharedTransport,
			userAgent: profile.userAgent,
		}, defaultRetryConfig),
	}

	s := &Session{
		Type:    t,
		profile: profile,
		yt:      &youtube.Client{HTTPClient: httpClient},
		http:    httpClient,
		log:     log.With().Str("client", string(t)).Logger(),
	}

	switch t {
	case ClientWeb, ClientMWeb:
		if err := s.scrapeConfig(ctx); err != nil {
			return nil, err
		}
		s.installTransforms(ctx)
	}
	return s, nil
}

// scrapeConfig pulls INNERTUBE_API_KEY and visitor data out of the inline
// ytcfg.set payload on the front page.
func (s *Session) scrapeConfig(ctx context.Context) error {
	pageURL := "https://" + s.profile.apiHost + "/"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return wrapCategory(CategoryNetwork, fmt.Errorf("fetching client config: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return wrapCategory(CategoryNetwork, fmt.Errorf("unexpected response %d fetching client config", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapCategory(CategoryNetwork, err)
	}

	if path := playerScriptPath(body); path != "" {
		s.mu.Lock()
		s.playerPath = path
		s.mu.Unlock()
	}

	match := ytcfgRegex.FindSubmatch(body)
	if match == nil {
		// Static profile still works for API calls without a key.
		s.log.Debug().Msg("no inline config found, using static profile")
		return nil
	}
	var cfg struct {
		APIKey  string `json:"INNERTUBE_API_KEY"`
		Context struct {
			Client struct {
				VisitorData string `json:"visitorData"`
			} `json:"client"`
		} `json:"INNERTUBE_CONTEXT"`
	}
	if err := json.Unmarshal(match[1], &cfg); err != nil {
		s.log.Debug().Err(err).Msg("inline config did not parse")
		return nil
	}
	s.mu.Lock()
	s.apiKey = cfg.APIKey
	s.visitorData = cfg.Context.Client.VisitorData
	s.mu.Unlock()
	return nil
}

// SetTransforms installs the signing transforms extracted by the
// evaluator. A nil transform leaves URLs untouched.
func (s *Session) SetTransforms(eval *TransformEvaluator) {
	s.mu.Lock()
	s.nTransform = eval.NTransform()
	s.mu.Unlock()
}

// playerScriptPath pulls the versioned player script path out of a page
// body.
func playerScriptPath(body []byte) string {
	match := playerJSRegex.FindSubmatch(body)
	if match == nil {
		return ""
	}
	return string(match[1])
}

// installTransforms fetches the player script the page references and
// installs the throttling transform extracted from it. Failures are
// tolerated: resolved URLs then pass through untransformed, which the
// upstream serves at reduced throughput.
func (s *Session) installTransforms(ctx context.Context) {
	s.mu.RLock()
	path := s.playerPath
	s.mu.RUnlock()
	if path == "" {
		s.log.Debug().Msg("no player script referenced, skipping transforms")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+s.profile.apiHost+path, nil)
	if err != nil {
		return
	}
	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Debug().Err(err).Msg("player script fetch failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.log.Debug().Int("status", resp.StatusCode).Msg("player script fetch rejected")
		return
	}
	script, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return
	}

	snippet, ok := extractNFunction(string(script))
	if !ok {
		s.log.Debug().Str("path", path).Msg("no throttling transform in player script")
		return
	}
	eval, err := NewTransformEvaluator(snippet)
	if err != nil {
		s.log.Debug().Err(err).Msg("throttling transform did not compile")
		return
	}
	s.SetTransforms(eval)
	s.log.Debug().Msg("throttling transform installed")
}

// extractNFunction locates the throttling-parameter function in a player
// script and returns a snippet binding it to the evaluator's expected
// global name.
func extractNFunction(playerJS string) (string, bool) {
	match := nCallsiteRegex.FindStringSubmatch(playerJS)
	if match == nil {
		return "", false
	}
	name := match[1]
	if match[2] != "" {
		// The callsite dispatches through a single-element array alias.
		aliasRegex := regexp.MustCompile(`var ` + regexp.QuoteMeta(name) + `\s*=\s*\[([a-zA-Z0-9$_]+)\]`)
		alias := aliasRegex.FindStringSubmatch(playerJS)
		if alias == nil {
			return "", false
		}
		name = alias[1]
	}

	defRegex := regexp.MustCompile(`(?:var\s+)?` + regexp.QuoteMeta(name) + `\s*=\s*function\s*\(`)
	loc := defRegex.FindStringIndex(playerJS)
	if loc == nil {
		return "", false
	}
	offset := strings.Index(playerJS[loc[0]:loc[1]], "function")
	if offset < 0 {
		return "", false
	}
	fn, ok := balancedFunction(playerJS[loc[0]+offset:])
	if !ok {
		return "", false
	}
	return "var " + TransformN + " = " + fn + ";", true
}

// balancedFunction returns the prefix of src spanning one function
// expression, matching braces outside string literals.
func balancedFunction(src string) (string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[:i+1], true
			}
		}
	}
	return "", false
}

// PlaybackHeaders are the headers the upstream requires on resolved media
// URLs; the user agent must match the one the session handshook with.
func (s *Session) PlaybackHeaders() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	headers := map[string]string{
		"User-Agent": s.profile.userAgent,
	}
	if s.visitorData != "" {
		headers[visitorHeader] = s.visitorData
	}
	if s.poToken != "" {
		headers[poTokenHeader] = s.poToken
	}
	return headers
}

// PrepareURL appends the session's proof-of-origin and visitor query
// parameters and applies the n transform when one is installed.
func (s *Session) PrepareURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()

	s.mu.RLock()
	poToken := s.poToken
	visitor := s.visitorData
	transform := s.nTransform
	s.mu.RUnlock()

	if poToken != "" && query.Get(poTokenQueryKey) == "" {
		query.Set(poTokenQueryKey, poToken)
	}
	if visitor != "" && query.Get(visitorQueryKey) == "" {
		query.Set(visitorQueryKey, visitor)
	}
	if transform != nil {
		if nVal := query.Get("n"); nVal != "" {
			newVal, err := transform(nVal)
			if err != nil {
				return "", fmt.Errorf("transforming n param: %w", err)
			}
			query.Set("n", newVal)
		}
	}

	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// Metadata fetches per-content metadata through the protocol library with
// this session's client identity.
func (s *Session) Metadata(ctx context.Context, contentID string) (*youtube.Video, error) {
	var video *youtube.Video
	err := withDefaultClient(s.Type, func() error {
		v, err := s.yt.GetVideoContext(ctx, watchURLForID(contentID))
		if err != nil {
			return err
		}
		video = v
		return nil
	})
	if err != nil {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("fetching metadata: %w", err))
	}
	return video, nil
}

// StreamURL deciphers a format descriptor into a time-limited signed URL
// and runs it through the session's URL preparation.
func (s *Session) StreamURL(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error) {
	var streamURL string
	err := withDefaultClient(s.Type, func() error {
		u, err := s.yt.GetStreamURLContext(ctx, video, format)
		if err != nil {
			return err
		}
		streamURL = u
		return nil
	})
	if err != nil {
		return "", wrapCategory(CategoryNetwork, fmt.Errorf("resolving stream url: %w", err))
	}
	return s.PrepareURL(streamURL)
}

// RefreshRequirements repopulates visitor data and the proof-of-origin
// token through a headless page visit. Used when the upstream starts
// rejecting resolved URLs for this session.
func (s *Session) RefreshRequirements(ctx context.Context, contentID string) error {
	if contentID == "" {
		return errors.New("missing content id for session refresh")
	}
	s.log.Info().Str("content", contentID).Msg("refreshing session requirements")

	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	browserCtx, cancel = context.WithTimeout(browserCtx, sessionTimeout)
	defer cancel()

	var rawPayload string
	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(watchURLForID(contentID)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`(function () {
			function getCfg(key) {
				try {
					if (window.ytcfg && window.ytcfg.get) {
						return window.ytcfg.get(key);
					}
				} catch (e) {}
				if (window.yt && window.yt.config_) {
					return window.yt.config_[key];
				}
				return null;
			}
			return JSON.stringify({
				visitorData: getCfg("VISITOR_DATA"),
				poToken: getCfg("PO_TOKEN") || getCfg("PO_TOKEN_2")
			});
		})();`, &rawPayload),
	); err != nil {
		return wrapCategory(CategoryNetwork, fmt.Errorf("headless navigation failed: %w", err))
	}

	var payload struct {
		VisitorData string `json:"visitorData"`
		PoToken     string `json:"poToken"`
	}
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		return fmt.Errorf("parsing session payload: %w", err)
	}
	if payload.VisitorData == "" {
		return errors.New("no visitor data in session payload")
	}

	cdpCookies, err := storage.GetCookies().Do(browserCtx)
	if err == nil && s.http.Jar != nil {
		converted := make([]*http.Cookie, 0, len(cdpCookies))
		for _, cookie := range cdpCookies {
			converted = append(converted, &http.Cookie{
				Name:     cookie.Name,
				Value:    cookie.Value,
				Domain:   cookie.Domain,
				Path:     cookie.Path,
				Secure:   cookie.Secure,
				HttpOnly: cookie.HTTPOnly,
				Expires:  time.Unix(int64(cookie.Expires), 0),
			})
		}
		if parsed, err := url.Parse("https://" + s.profile.apiHost); err == nil {
			s.http.Jar.SetCookies(parsed, converted)
		}
	}

	s.mu.Lock()
	s.visitorData = payload.VisitorData
	s.poToken = payload.PoToken
	s.mu.Unlock()
	return nil
}
