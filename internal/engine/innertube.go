package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Raw API access for the endpoints the protocol library does not cover:
// browse (feeds, collections), next (related content), search, and the
// player call used only to probe for an HLS manifest URL. Responses are
// decoded into untyped trees and handed to the extraction helpers; no
// schema is assumed beyond what the extractors can recognize.

func (s *Session) apiContext() map[string]any {
	s.mu.RLock()
	visitor := s.visitorData
	s.mu.RUnlock()

	client := map[string]any{
		"clientName":    s.profile.name,
		"clientVersion": s.profile.version,
		"hl":            "en",
		"gl":            "US",
		"userAgent":     s.profile.userAgent,
	}
	if s.profile.sdkVersion > 0 {
		client["androidSdkVersion"] = s.profile.sdkVersion
	}
	if visitor != "" {
		client["visitorData"] = visitor
	}
	return map[string]any{"client": client}
}

// call POSTs one API request and decodes the response tree.
func (s *Session) call(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	body := map[string]any{"context": s.apiContext()}
	for k, v := range payload {
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	apiKey := s.apiKey
	s.mu.RUnlock()

	endpointURL := "https://" + s.profile.apiHost + "/youtubei/v1/" + endpoint + "?prettyPrint=false"
	if apiKey != "" {
		endpointURL += "&key=" + url.QueryEscape(apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Youtube-Client-Name", s.profile.name)
	req.Header.Set("X-Youtube-Client-Version", s.profile.version)
	req.Header.Set("Origin", "https://"+s.profile.apiHost)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("%s request: %w", endpoint, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("unexpected response %d from %s", resp.StatusCode, endpoint))
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, wrapCategory(CategoryNetwork, fmt.Errorf("decoding %s response: %w", endpoint, err))
	}
	return decoded, nil
}

// Browse resolves a browse id (feed surface, playlist, album).
func (s *Session) Browse(ctx context.Context, browseID string, extra map[string]any) (map[string]any, error) {
	payload := map[string]any{"browseId": browseID}
	for k, v := range extra {
		payload[k] = v
	}
	return s.call(ctx, "browse", payload)
}

// Next issues a watch-next request for related content.
func (s *Session) Next(ctx context.Context, contentID string) (map[string]any, error) {
	return s.call(ctx, "next", map[string]any{"videoId": contentID})
}

// SearchRaw runs a search query, optionally with a result-type filter
// parameter blob.
func (s *Session) SearchRaw(ctx context.Context, query, params string) (map[string]any, error) {
	payload := map[string]any{"query": query}
	if params != "" {
		payload["params"] = params
	}
	return s.call(ctx, "search", payload)
}

// HLSManifestURL probes the player endpoint for an HLS manifest URL. Most
// client types never receive one; callers treat an empty result as "this
// delivery mode is unavailable", not as a failure.
func (s *Session) HLSManifestURL(ctx context.Context, contentID string) (string, error) {
	resp, err := s.call(ctx, "player", map[string]any{
		"videoId":        contentID,
		"contentCheckOk": true,
		"racyCheckOk":    true,
	})
	if err != nil {
		return "", err
	}
	return getString(getPath(resp, "streamingData", "hlsManifestUrl")), nil
}
