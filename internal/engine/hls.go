package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/lvcoi/ytsource/internal/media"
)

// requiredCodecFamily filters HLS variants to the codec family every
// target player decodes in hardware.
const requiredCodecFamily = "avc1"

// hlsManifestCache keeps the raw text of the most recently parsed
// master manifest so a filtered copy can be re-emitted without another
// fetch. Single slot, keyed by content id like the video-info cache.
type hlsManifestCache struct {
	mu        sync.Mutex
	contentID string
	raw       []byte
}

func (c *hlsManifestCache) get(contentID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contentID != contentID || c.raw == nil {
		return nil, false
	}
	return c.raw, true
}

func (c *hlsManifestCache) put(contentID string, raw []byte) {
	c.mu.Lock()
	c.contentID = contentID
	c.raw = raw
	c.mu.Unlock()
}

func (c *hlsManifestCache) clear() {
	c.mu.Lock()
	c.contentID = ""
	c.raw = nil
	c.mu.Unlock()
}

type hlsVariant struct {
	bandwidth int
	height    int
	codecs    string
	uri       string
}

// parseHLSQualities fetches a master manifest and reduces its variants
// to a quality ladder: one rung per height, highest bandwidth winning,
// variants outside the required codec family dropped. The raw manifest
// is cached for later filtered re-emission.
func (e *Engine) parseHLSQualities(ctx context.Context, contentID, manifestURL string) ([]media.QualityEntry, error) {
	data, err := e.fetchManifest(ctx, manifestURL)
	if err != nil {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("fetching HLS manifest: %w", err))
	}
	variants, err := parseHLSVariants(data)
	if err != nil {
		return nil, wrapCategory(CategoryUnsupported, err)
	}
	e.hls.put(contentID, data)

	byHeight := map[int]hlsVariant{}
	for _, v := range variants {
		if !variantPlayable(v) {
			continue
		}
		if existing, ok := byHeight[v.height]; !ok || v.bandwidth > existing.bandwidth {
			byHeight[v.height] = v
		}
	}
	ladder := make([]media.QualityEntry, 0, len(byHeight))
	for _, v := range byHeight {
		ladder = append(ladder, media.QualityEntry{
			Label:    fmt.Sprintf("%dp", v.height),
			Height:   v.height,
			HasAudio: true,
			Bitrate:  v.bandwidth,
		})
	}
	sort.Slice(ladder, func(i, j int) bool { return ladder[i].Height < ladder[j].Height })
	return ladder, nil
}

// FilteredHLSURL re-emits the cached master manifest with only the
// variants of the requested height, persists it through the host cache,
// and returns a URI for it. Requires a manifest previously cached for
// this content id; ok=false otherwise.
func (e *Engine) FilteredHLSURL(contentID string, height int) (string, bool, error) {
	raw, ok := e.hls.get(contentID)
	if !ok {
		return "", false, nil
	}
	filtered, kept := filterHLSManifest(raw, height)
	if kept == 0 {
		return "", false, nil
	}
	name := fmt.Sprintf("manifest-%s-%dp.m3u8", contentID, height)
	uri, err := e.caps.Cache.WriteCacheFile(name, filtered)
	if err != nil {
		return "", false, wrapCategory(CategoryFilesystem, err)
	}
	return uri, true, nil
}

func (e *Engine) fetchManifest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.caps.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func parseHLSVariants(data []byte) ([]hlsVariant, error) {
	if !bytes.Contains(data, []byte("#EXTM3U")) {
		return nil, errors.New("not an HLS manifest")
	}
	var variants []hlsVariant
	var pending *hlsVariant

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			attrs := parseHLSAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			pending = &hlsVariant{
				bandwidth: parseInt(attrs["BANDWIDTH"]),
				height:    resolutionHeight(attrs["RESOLUTION"]),
				codecs:    attrs["CODECS"],
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if pending != nil {
			pending.uri = line
			variants = append(variants, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return variants, nil
}

// filterHLSManifest walks the raw manifest line by line, keeping header
// and non-variant tags verbatim and dropping every variant pair whose
// height or codec family does not match. Returns the rewritten text and
// the number of variants kept.
func filterHLSManifest(raw []byte, height int) ([]byte, int) {
	var out bytes.Buffer
	kept := 0
	skipURI := false

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#EXT-X-STREAM-INF:") {
			attrs := parseHLSAttributes(strings.TrimPrefix(trimmed, "#EXT-X-STREAM-INF:"))
			v := hlsVariant{
				bandwidth: parseInt(attrs["BANDWIDTH"]),
				height:    resolutionHeight(attrs["RESOLUTION"]),
				codecs:    attrs["CODECS"],
			}
			if v.height == height && variantPlayable(v) {
				out.WriteString(line)
				out.WriteByte('\n')
				kept++
				skipURI = false
			} else {
				skipURI = true
			}
			continue
		}
		if !strings.HasPrefix(trimmed, "#") && trimmed != "" {
			if skipURI {
				skipURI = false
				continue
			}
			out.WriteString(line)
			out.WriteByte('\n')
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes(), kept
}

func variantPlayable(v hlsVariant) bool {
	if v.height == 0 {
		return false
	}
	if v.codecs != "" && !strings.Contains(strings.ToLower(v.codecs), requiredCodecFamily) {
		return false
	}
	return true
}

func resolutionHeight(resolution string) int {
	_, h, found := strings.Cut(resolution, "x")
	if !found {
		return 0
	}
	return parseInt(h)
}

func parseHLSAttributes(raw string) map[string]string {
	attrs := map[string]string{}
	for _, part := range splitHLSAttributes(raw) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(strings.ToUpper(kv[0]))
		value := strings.Trim(strings.TrimSpace(kv[1]), "\"")
		if key != "" {
			attrs[key] = value
		}
	}
	return attrs
}

func splitHLSAttributes(raw string) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false
	for _, r := range raw {
		switch r {
		case '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case ',':
			if inQuotes {
				b.WriteRune(r)
				continue
			}
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() > 0 {
		parts = append(parts, b.String())
	}
	return parts
}

func parseInt(value string) int {
	if value == "" {
		return 0
	}
	num, _ := strconv.Atoi(value)
	return num
}
