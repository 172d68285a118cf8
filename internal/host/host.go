// Package host declares the capabilities the embedding application provides
// to the resolution engine: network transport, cache-file persistence, a
// diagnostic log sink, and the platform hint that steers delivery-strategy
// order. The engine never reaches around this contract.
package host

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Platform selects the delivery-strategy order for video resolution.
type Platform int

const (
	PlatformAndroid Platform = iota
	PlatformIOS
)

func (p Platform) String() string {
	if p == PlatformIOS {
		return "ios"
	}
	return "android"
}

// ParsePlatform maps a config string to a Platform, defaulting to android.
func ParsePlatform(s string) Platform {
	if strings.EqualFold(strings.TrimSpace(s), "ios") {
		return PlatformIOS
	}
	return PlatformAndroid
}

// CacheWriter persists ephemeral generated content (filtered HLS manifests,
// synthesized DASH manifests) and returns a player-addressable URI.
type CacheWriter interface {
	WriteCacheFile(name string, content []byte) (string, error)
}

// DirCache is the default CacheWriter, backed by a directory on disk.
type DirCache struct {
	Dir string
}

func (c DirCache) WriteCacheFile(name string, content []byte) (string, error) {
	dir := c.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "ytsource")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("writing cache file: %w", err)
	}
	return "file://" + path, nil
}

// Capabilities bundles everything the engine consumes from its host.
type Capabilities struct {
	HTTPClient *http.Client
	Cache      CacheWriter
	Logger     zerolog.Logger
	Platform   Platform
}

// Defaults fills any zero-valued capability with a usable default. A
// zero-valued Logger has no writer and is already a silent sink, so
// diagnostics never affect control flow.
func (c Capabilities) Defaults() Capabilities {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Cache == nil {
		c.Cache = DirCache{}
	}
	return c
}
