package engine

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/lvcoi/ytsource/internal/media"
)

// Static manifest shape emitted for adaptive playback. Only the
// attributes players actually read are carried.
type mpd struct {
	XMLName                   xml.Name `xml:"MPD"`
	Xmlns                     string   `xml:"xmlns,attr"`
	Profiles                  string   `xml:"profiles,attr"`
	Type                      string   `xml:"type,attr"`
	MinBufferTime             string   `xml:"minBufferTime,attr"`
	MediaPresentationDuration string   `xml:"mediaPresentationDuration,attr"`
	Period                    []period `xml:"Period"`
}

type period struct {
	AdaptationSet []adaptationSet `xml:"AdaptationSet"`
}

type adaptationSet struct {
	ID             int              `xml:"id,attr"`
	MimeType       string           `xml:"mimeType,attr"`
	ContentType    string           `xml:"contentType,attr"`
	Representation []representation `xml:"Representation"`
}

type representation struct {
	ID        string `xml:"id,attr"`
	Bandwidth int    `xml:"bandwidth,attr"`
	Codecs    string `xml:"codecs,attr,omitempty"`
	Width     int    `xml:"width,attr,omitempty"`
	Height    int    `xml:"height,attr,omitempty"`
	BaseURL   string `xml:"BaseURL"`
}

// mimeCodecs splits a format's mime type into its container part and
// the codecs parameter, e.g. `video/mp4; codecs="avc1.64001F"`.
func mimeCodecs(mime string) (string, string) {
	base, params, found := strings.Cut(mime, ";")
	base = strings.TrimSpace(base)
	if !found {
		return base, ""
	}
	params = strings.TrimSpace(params)
	params = strings.TrimPrefix(params, "codecs=")
	return base, strings.Trim(params, `"`)
}

// synthesizeDASH builds a static DASH manifest over the item's adaptive
// formats and persists it through the host cache, returning a URI a
// player can open. Only formats carrying a direct URL participate;
// ciphered formats would need per-format network round trips and the
// progressive ladder covers that case. Fails when no video
// representation is usable, letting the caller fall through.
func (e *Engine) synthesizeDASH(video *youtube.Video, contentID string) (string, []media.QualityEntry, error) {
	var videoReps, audioReps []representation
	videoMime, audioMime := "", ""

	for i := range video.Formats {
		f := &video.Formats[i]
		if f.URL == "" {
			continue
		}
		base, codecs := mimeCodecs(f.MimeType)
		rep := representation{
			ID:        fmt.Sprintf("%d", f.ItagNo),
			Bandwidth: bitrateForFormat(f),
			Codecs:    codecs,
			BaseURL:   f.URL,
		}
		switch {
		case formatHasVideo(f) && !formatHasAudio(f):
			rep.Width, rep.Height = f.Width, f.Height
			videoReps = append(videoReps, rep)
			videoMime = base
		case formatHasAudio(f) && !formatHasVideo(f):
			audioReps = append(audioReps, rep)
			audioMime = base
		}
	}
	if len(videoReps) == 0 {
		return "", nil, fmt.Errorf("no adaptive video formats with direct urls")
	}
	sort.Slice(videoReps, func(i, j int) bool { return videoReps[i].Height < videoReps[j].Height })

	sets := []adaptationSet{{
		ID:             0,
		MimeType:       videoMime,
		ContentType:    "video",
		Representation: videoReps,
	}}
	if len(audioReps) > 0 {
		sets = append(sets, adaptationSet{
			ID:             1,
			MimeType:       audioMime,
			ContentType:    "audio",
			Representation: audioReps,
		})
	}

	manifest := mpd{
		Xmlns:                     "urn:mpeg:dash:schema:mpd:2011",
		Profiles:                  "urn:mpeg:dash:profile:isoff-on-demand:2011",
		Type:                      "static",
		MinBufferTime:             "PT1.5S",
		MediaPresentationDuration: fmt.Sprintf("PT%dS", int(video.Duration.Seconds())),
		Period:                    []period{{AdaptationSet: sets}},
	}
	data, err := xml.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", nil, err
	}
	data = append([]byte(xml.Header), data...)

	uri, err := e.caps.Cache.WriteCacheFile("manifest-"+contentID+".mpd", data)
	if err != nil {
		return "", nil, wrapCategory(CategoryFilesystem, err)
	}

	hasAudio := len(audioReps) > 0
	qualities := make([]media.QualityEntry, 0, len(videoReps))
	for _, rep := range videoReps {
		qualities = append(qualities, media.QualityEntry{
			Label:    fmt.Sprintf("%dp", rep.Height),
			Height:   rep.Height,
			HasAudio: hasAudio,
			Bitrate:  rep.Bandwidth,
		})
	}
	return uri, qualities, nil
}
