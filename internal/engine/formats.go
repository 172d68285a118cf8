package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/kkdai/youtube/v2"

	"github.com/lvcoi/ytsource/internal/host"
	"github.com/lvcoi/ytsource/internal/media"
)

// defaultTargetHeight is the rung preselected for playback when the
// caller expresses no preference.
const defaultTargetHeight = 720

func bitrateForFormat(f *youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}

func formatHasAudio(f *youtube.Format) bool {
	return f.AudioChannels > 0
}

func formatHasVideo(f *youtube.Format) bool {
	return f.Width > 0 || f.Height > 0
}

func qualityLabel(f *youtube.Format) string {
	if f.QualityLabel != "" {
		return f.QualityLabel
	}
	return fmt.Sprintf("%dp", f.Height)
}

// buildQualityLadder merges muxed and video-only formats into one rung
// per height. A muxed rung always wins over a video-only rung at the
// same height; within a class the higher bitrate wins. Rungs come back
// sorted by ascending height.
func buildQualityLadder(formats []youtube.Format) []media.QualityEntry {
	byHeight := map[int]media.QualityEntry{}
	for i := range formats {
		f := &formats[i]
		if !formatHasVideo(f) || f.Height == 0 {
			continue
		}
		entry := media.QualityEntry{
			Label:    qualityLabel(f),
			Height:   f.Height,
			HasAudio: formatHasAudio(f),
			Bitrate:  bitrateForFormat(f),
		}
		existing, ok := byHeight[f.Height]
		if !ok {
			byHeight[f.Height] = entry
			continue
		}
		if existing.HasAudio != entry.HasAudio {
			if entry.HasAudio {
				byHeight[f.Height] = entry
			}
			continue
		}
		if entry.Bitrate > existing.Bitrate {
			byHeight[f.Height] = entry
		}
	}

	ladder := make([]media.QualityEntry, 0, len(byHeight))
	for _, entry := range byHeight {
		ladder = append(ladder, entry)
	}
	sort.Slice(ladder, func(i, j int) bool { return ladder[i].Height < ladder[j].Height })
	return ladder
}

// defaultQualityIndex picks the rung closest to the target height. With
// equal distance the lower rung wins, ladder order being ascending.
func defaultQualityIndex(ladder []media.QualityEntry, target int) int {
	best := 0
	for i, entry := range ladder {
		if abs(entry.Height-target) < abs(ladder[best].Height-target) {
			best = i
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// formatForRung maps a ladder rung back to the concrete format it was
// built from: the best matching format of the rung's class at the
// rung's height.
func formatForRung(video *youtube.Video, rung media.QualityEntry) *youtube.Format {
	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !formatHasVideo(f) || f.Height != rung.Height || formatHasAudio(f) != rung.HasAudio {
			continue
		}
		if best == nil || bitrateForFormat(f) > bitrateForFormat(best) {
			best = f
		}
	}
	return best
}

func bestAudioFormat(video *youtube.Video) *youtube.Format {
	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !formatHasAudio(f) || formatHasVideo(f) {
			continue
		}
		if best == nil || bitrateForFormat(f) > bitrateForFormat(best) {
			best = f
		}
	}
	return best
}

func bestMuxedFormat(video *youtube.Video) *youtube.Format {
	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !formatHasAudio(f) || !formatHasVideo(f) {
			continue
		}
		if best == nil || betterVideoFormat(f, best) {
			best = f
		}
	}
	return best
}

func betterVideoFormat(candidate, current *youtube.Format) bool {
	if candidate.Height != current.Height {
		return candidate.Height > current.Height
	}
	return bitrateForFormat(candidate) > bitrateForFormat(current)
}

// ResolveAudio resolves a playable audio URL for a content id. The
// music client surface exposes the highest audio bitrates, so metadata
// comes from there. On hosts that favor HLS delivery the manifest URL is
// preferred when the upstream offers one; otherwise the best audio-only
// format is deciphered into a direct URL. Returns ok=false without error
// when the item has no audio-only format.
func (e *Engine) ResolveAudio(ctx context.Context, contentID string) (media.AudioInfo, bool, error) {
	if e.caps.Platform == host.PlatformIOS {
		if sess, err := e.session(ctx, ClientIOS); err == nil {
			manifest, err := sess.HLSManifestURL(ctx, contentID)
			if err == nil && manifest != "" {
				return media.AudioInfo{URL: manifest, Headers: sess.PlaybackHeaders()}, true, nil
			}
		}
	}
	return e.ResolveDirectAudio(ctx, contentID)
}

// ResolveDirectAudio always resolves a direct progressive audio URL,
// bypassing any manifest shortcut. Download flows use this form.
func (e *Engine) ResolveDirectAudio(ctx context.Context, contentID string) (media.AudioInfo, bool, error) {
	entry, err := e.videoInfo(ctx, contentID, ClientAndroidMusic)
	if err != nil {
		return media.AudioInfo{}, false, err
	}
	format := bestAudioFormat(entry.video)
	if format == nil {
		return media.AudioInfo{}, false, nil
	}
	url, err := entry.session.StreamURL(ctx, entry.video, format)
	if err != nil {
		return media.AudioInfo{}, false, err
	}
	return media.AudioInfo{URL: url, Headers: entry.session.PlaybackHeaders()}, true, nil
}

// ResolveVideo resolves playback info for a content id, trying delivery
// strategies in order of preference for the host platform: an HLS
// manifest where the platform favors it, then a synthesized DASH
// manifest over the adaptive formats, then the progressive quality
// ladder. Returns ok=false without error when no strategy yields a
// playable result.
func (e *Engine) ResolveVideo(ctx context.Context, contentID string) (media.VideoPlaybackInfo, bool, error) {
	if e.caps.Platform == host.PlatformIOS {
		if info, ok := e.resolveHLS(ctx, contentID); ok {
			return info, true, nil
		}
	}

	entry, err := e.videoInfo(ctx, contentID, ClientAndroid)
	if err != nil {
		return media.VideoPlaybackInfo{}, false, err
	}

	if e.caps.Platform == host.PlatformAndroid {
		if info, ok := e.resolveDASH(entry); ok {
			return info, true, nil
		}
	}

	ladder := buildQualityLadder(entry.video.Formats)
	if len(ladder) == 0 {
		return media.VideoPlaybackInfo{}, false, nil
	}
	idx := defaultQualityIndex(ladder, defaultTargetHeight)
	rung := ladder[idx]
	format := formatForRung(entry.video, rung)
	if format == nil {
		return media.VideoPlaybackInfo{}, false, nil
	}
	url, err := entry.session.StreamURL(ctx, entry.video, format)
	if err != nil {
		return media.VideoPlaybackInfo{}, false, err
	}
	return media.VideoPlaybackInfo{
		URL:            url,
		HasAudio:       rung.HasAudio,
		Qualities:      ladder,
		DefaultQuality: rung,
	}, true, nil
}

func (e *Engine) resolveHLS(ctx context.Context, contentID string) (media.VideoPlaybackInfo, bool) {
	sess, err := e.session(ctx, ClientIOS)
	if err != nil {
		e.log.Debug().Err(err).Msg("hls session unavailable")
		return media.VideoPlaybackInfo{}, false
	}
	manifest, err := sess.HLSManifestURL(ctx, contentID)
	if err != nil || manifest == "" {
		return media.VideoPlaybackInfo{}, false
	}
	qualities, err := e.parseHLSQualities(ctx, contentID, manifest)
	if err != nil {
		e.log.Debug().Str("id", contentID).Err(err).Msg("hls manifest rejected")
		return media.VideoPlaybackInfo{}, false
	}
	info := media.VideoPlaybackInfo{
		URL:       manifest,
		IsHLS:     true,
		HasAudio:  true,
		Qualities: qualities,
	}
	if len(qualities) > 0 {
		info.DefaultQuality = qualities[defaultQualityIndex(qualities, defaultTargetHeight)]
	}
	return info, true
}

func (e *Engine) resolveDASH(entry *videoInfoEntry) (media.VideoPlaybackInfo, bool) {
	uri, qualities, err := e.synthesizeDASH(entry.video, entry.contentID)
	if err != nil {
		e.log.Debug().Str("id", entry.contentID).Err(err).Msg("dash synthesis skipped")
		return media.VideoPlaybackInfo{}, false
	}
	info := media.VideoPlaybackInfo{
		URL:       uri,
		IsDash:    true,
		HasAudio:  true,
		Qualities: qualities,
	}
	if len(qualities) > 0 {
		info.DefaultQuality = qualities[defaultQualityIndex(qualities, defaultTargetHeight)]
	}
	return info, true
}

// ResolveVideoAtHeight resolves a direct URL for an exact rung of the
// quality ladder. A height not on the ladder is absence, not an error.
func (e *Engine) ResolveVideoAtHeight(ctx context.Context, contentID string, height int) (string, bool, bool, error) {
	entry, err := e.videoInfo(ctx, contentID, ClientAndroid)
	if err != nil {
		return "", false, false, err
	}
	ladder := buildQualityLadder(entry.video.Formats)
	for _, rung := range ladder {
		if rung.Height != height {
			continue
		}
		format := formatForRung(entry.video, rung)
		if format == nil {
			return "", false, false, nil
		}
		url, err := entry.session.StreamURL(ctx, entry.video, format)
		if err != nil {
			return "", false, false, err
		}
		return url, rung.HasAudio, true, nil
	}
	return "", false, false, nil
}

// DownloadInfo resolves everything a download flow needs in one call:
// the stream URL plus the metadata used for naming and tagging.
func (e *Engine) DownloadInfo(ctx context.Context, contentID string, audioOnly bool) (media.DownloadInfo, error) {
	t := ClientAndroid
	if audioOnly {
		t = ClientAndroidMusic
	}
	entry, err := e.videoInfo(ctx, contentID, t)
	if err != nil {
		return media.DownloadInfo{}, err
	}

	var format *youtube.Format
	if audioOnly {
		format = bestAudioFormat(entry.video)
	} else {
		format = bestMuxedFormat(entry.video)
	}
	if format == nil {
		return media.DownloadInfo{}, wrapCategory(CategoryUnsupported, fmt.Errorf("no suitable format for %s", contentID))
	}
	url, err := entry.session.StreamURL(ctx, entry.video, format)
	if err != nil {
		return media.DownloadInfo{}, err
	}

	thumb := defaultThumbnailURL(contentID)
	if n := len(entry.video.Thumbnails); n > 0 {
		thumb = entry.video.Thumbnails[n-1].URL
	}
	return media.DownloadInfo{
		URL:           url,
		Headers:       entry.session.PlaybackHeaders(),
		MimeType:      format.MimeType,
		ContentLength: format.ContentLength,
		Title:         entry.video.Title,
		Artist:        entry.video.Author,
		ThumbnailURL:  thumb,
		DurationSec:   int(entry.video.Duration.Seconds()),
	}, nil
}
