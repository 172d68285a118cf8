package engine

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
)

const (
	// desktopUserAgent is the fixed identifying user agent the upstream
	// service requires on resolved media URLs.
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	mobileUserAgent  = "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36"
	iosUserAgent     = "com.google.ios.youtube/19.29.1 (iPhone16,2; U; CPU iOS 17_5_1 like Mac OS X;)"
)

var sharedTransport = newUTLSTransport(utls.HelloChrome_120)

// identityTransport pins the session's user agent and accept headers on
// every request that does not set its own.
type identityTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	return t.base.RoundTrip(req)
}

// newUTLSTransport builds the shared transport. The TLS handshake
// presents a browser fingerprint; the upstream throttles or rejects Go's
// default handshake.
func newUTLSTransport(hello utls.ClientHelloID) *http.Transport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialFingerprinted(ctx, dialer, hello, addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

func dialFingerprinted(ctx context.Context, dialer *net.Dialer, hello utls.ClientHelloID, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	config := &utls.Config{ServerName: host, NextProtos: []string{"h2", "http/1.1"}}
	conn := utls.UClient(raw, config, hello)
	if err := conn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return conn, nil
}

// CloseIdleConnections releases pooled connections on the shared transport.
func CloseIdleConnections() {
	sharedTransport.CloseIdleConnections()
}

// retryConfig controls transport-level retry behavior. The engine itself
// never retries; transient-failure handling lives below the collaborator
// boundary, in the transport.
type retryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

var defaultRetryConfig = retryConfig{
	MaxRetries:   3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     8 * time.Second,
}

// retryTransport re-issues requests that failed transiently, with
// exponential backoff between attempts.
type retryTransport struct {
	base   http.RoundTripper
	config retryConfig
}

func newRetryTransport(base http.RoundTripper, config retryConfig) *retryTransport {
	return &retryTransport{base: base, config: config}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; attempt <= t.config.MaxRetries; attempt++ {
		if !t.shouldRetry(resp, err) {
			break
		}
		retry, rerr := rewindRequest(req)
		if rerr != nil {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		if werr := waitBackoff(req.Context(), t.backoffDelay(attempt)); werr != nil {
			return nil, werr
		}
		resp, err = t.base.RoundTrip(retry)
	}
	return resp, err
}

func (t *retryTransport) shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return transientError(err)
	}
	return isRetryableStatus(resp.StatusCode)
}

// backoffDelay doubles the initial delay per attempt up to the cap, with
// a quarter of random jitter to spread synchronized retries.
func (t *retryTransport) backoffDelay(attempt int) time.Duration {
	delay := t.config.InitialDelay << (attempt - 1)
	if delay <= 0 || delay > t.config.MaxDelay {
		delay = t.config.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1)) //nolint:gosec
	return delay - delay/4 + jitter
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transientError folds transport errors into the engine's failure
// categories: timeouts and connection-level failures are worth a retry,
// anything else fails the same way every time.
func transientError(err error) bool {
	if errorCategory(err) == CategoryNetwork {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// rewindRequest clones req with a replayed body. Streaming bodies
// without GetBody cannot be replayed.
func rewindRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody == nil {
		return clone, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
