package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lvcoi/ytsource"
	"github.com/lvcoi/ytsource/internal/config"
	"github.com/lvcoi/ytsource/internal/db"
	"github.com/lvcoi/ytsource/internal/host"
	"github.com/lvcoi/ytsource/internal/picker"
	"github.com/lvcoi/ytsource/internal/tags"
)

func main() {
	var (
		searchQuery  = flag.String("search", "", "search query")
		suggestRef   = flag.String("suggest", "", "content url or id to fetch related items for")
		homeFeed     = flag.Bool("home", false, "print the home feed")
		collectionID = flag.String("collection", "", "playlist or album url/id to resolve")
		audioRef     = flag.String("audio-url", "", "content url or id to resolve an audio URL for")
		videoRef     = flag.String("video-info", "", "content url or id to resolve video playback for")
		height       = flag.Int("height", 0, "exact ladder height for -video-info (0 = interactive)")
		downloadRef  = flag.String("download", "", "content url or id to download")
		audioOnly    = flag.Bool("audio", false, "download audio instead of video")
		jsonOut      = flag.Bool("json", false, "emit JSON output")
		quiet        = flag.Bool("quiet", false, "suppress log output (errors still shown)")
		timeout      = flag.Duration("timeout", 0, "per-run timeout (overrides config)")
		configPath   = flag.String("config", "", "path to config file")
		platformName = flag.String("platform", "", "host platform: android or ios (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail(*jsonOut, err)
	}
	if *platformName != "" {
		cfg.Platform = *platformName
	}
	if *timeout > 0 {
		cfg.Timeout.Duration = *timeout
	}

	logger := newLogger(cfg.LogLevel, *quiet || *jsonOut)
	platform := host.ParsePlatform(cfg.Platform)

	src := ytsource.New(ytsource.Capabilities{
		Logger:   logger,
		Platform: platform,
		Cache:    ytsource.NewDirCache(cfg.CacheDir),
	})
	defer src.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Duration)
	defer cancel()

	switch {
	case *searchQuery != "":
		err = runSearch(ctx, src, *searchQuery, *jsonOut)
	case *suggestRef != "":
		err = runSuggest(ctx, src, *suggestRef, *jsonOut)
	case *homeFeed:
		err = runHome(ctx, src, *jsonOut)
	case *collectionID != "":
		err = runCollection(ctx, src, *collectionID, *jsonOut)
	case *audioRef != "":
		err = runAudio(ctx, src, *audioRef, *jsonOut)
	case *videoRef != "":
		err = runVideo(ctx, src, *videoRef, *height, *jsonOut, *quiet)
	case *downloadRef != "":
		err = runDownload(ctx, src, cfg, *downloadRef, *audioOnly, *jsonOut, logger)
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err != nil {
		fail(*jsonOut, err)
	}
}

func newLogger(level string, quiet bool) zerolog.Logger {
	if quiet {
		return zerolog.Nop()
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(parsed).
		With().Timestamp().Logger()
}

func fail(jsonOut bool, err error) {
	if jsonOut {
		payload := struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}{Type: "error", Error: err.Error()}
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(payload)
	} else {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(ytsource.ExitCode(err))
}

func writeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func runSearch(ctx context.Context, src *ytsource.Source, query string, jsonOut bool) error {
	items := src.Search(ctx, query)
	if jsonOut {
		return writeJSON(items)
	}
	for _, item := range items {
		fmt.Printf("%s  %-40s  %s\n", item.ContentID, truncate(item.Title, 40), item.Artist)
	}
	return nil
}

func runSuggest(ctx context.Context, src *ytsource.Source, ref string, jsonOut bool) error {
	id, err := ytsource.ExtractContentID(ref)
	if err != nil {
		return err
	}
	items := src.GetSuggestions(ctx, id)
	if jsonOut {
		return writeJSON(items)
	}
	for _, item := range items {
		fmt.Printf("%s  %-40s  %s\n", item.ContentID, truncate(item.Title, 40), item.Artist)
	}
	return nil
}

func runHome(ctx context.Context, src *ytsource.Source, jsonOut bool) error {
	sections := src.GetHomeFeed(ctx)
	if jsonOut {
		return writeJSON(sections)
	}
	for _, section := range sections {
		if section.Title != "" {
			fmt.Printf("== %s ==\n", section.Title)
		}
		for _, item := range section.Items {
			fmt.Printf("  [%s] %s  %s\n", item.Kind, item.ID, truncate(item.Title, 50))
		}
	}
	return nil
}

func runCollection(ctx context.Context, src *ytsource.Source, ref string, jsonOut bool) error {
	id, err := ytsource.ExtractCollectionID(ref)
	if err != nil {
		return err
	}
	collection, err := src.GetCollection(ctx, id)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(collection)
	}
	fmt.Printf("%s: %s (%d items)\n", collection.Kind, collection.Title, len(collection.Items))
	for i, item := range collection.Items {
		fmt.Printf("%3d. %s  %-40s  %s\n", i+1, item.ContentID, truncate(item.Title, 40), item.Artist)
	}
	return nil
}

func runAudio(ctx context.Context, src *ytsource.Source, ref string, jsonOut bool) error {
	id, err := ytsource.ExtractContentID(ref)
	if err != nil {
		return err
	}
	info, ok, err := src.GetAudioURL(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no audio representation available")
	}
	if jsonOut {
		return writeJSON(info)
	}
	fmt.Println(info.URL)
	return nil
}

func runVideo(ctx context.Context, src *ytsource.Source, ref string, height int, jsonOut, quiet bool) error {
	id, err := ytsource.ExtractContentID(ref)
	if err != nil {
		return err
	}
	info, ok, err := src.GetVideoInfo(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no playable video representation available")
	}

	if height == 0 && !jsonOut && !quiet && len(info.Qualities) > 1 && !info.IsHLS && !info.IsDash {
		preselect := 0
		for i, rung := range info.Qualities {
			if rung.Height == info.DefaultQuality.Height {
				preselect = i
			}
		}
		rung, picked, err := picker.Pick("Select quality", info.Qualities, preselect)
		if err != nil {
			return err
		}
		if picked {
			height = rung.Height
		}
	}

	if height > 0 {
		url, hasAudio, ok, err := src.GetVideoURLForQuality(ctx, id, height)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no rung at %dp", height)
		}
		if jsonOut {
			return writeJSON(struct {
				URL      string `json:"url"`
				Height   int    `json:"height"`
				HasAudio bool   `json:"has_audio"`
			}{url, height, hasAudio})
		}
		fmt.Println(url)
		return nil
	}

	if jsonOut {
		return writeJSON(info)
	}
	fmt.Println(info.URL)
	for _, rung := range info.Qualities {
		marker := " "
		if rung.Height == info.DefaultQuality.Height {
			marker = "*"
		}
		audio := ""
		if !rung.HasAudio {
			audio = " (video only)"
		}
		fmt.Printf("%s %s%s\n", marker, rung.Label, audio)
	}
	return nil
}

func runDownload(ctx context.Context, src *ytsource.Source, cfg config.Config, ref string, audioOnly, jsonOut bool, logger zerolog.Logger) error {
	id, err := ytsource.ExtractContentID(ref)
	if err != nil {
		return err
	}
	info, err := src.GetDownloadInfo(ctx, id, audioOnly)
	if err != nil {
		return err
	}

	ext := mimeToExt(info.MimeType, audioOnly)
	outputPath := filepath.Join(cfg.OutputDir, sanitizeFilename(info.Title)+"."+ext)
	err = streamToFile(ctx, info, outputPath)
	if errors.Is(err, errURLRejected) {
		// The signed URL went stale or its session requirements expired.
		// Refresh the session and re-resolve once.
		clientType := "android"
		if audioOnly {
			clientType = "android_music"
		}
		logger.Warn().Str("client", clientType).Msg("stream url rejected, refreshing session")
		if rerr := src.RecreateSession(ctx, clientType); rerr != nil {
			return err
		}
		if info, err = src.GetDownloadInfo(ctx, id, audioOnly); err != nil {
			return err
		}
		err = streamToFile(ctx, info, outputPath)
	}
	if err != nil {
		return err
	}
	logger.Info().Str("path", outputPath).Msg("download complete")

	if audioOnly {
		meta := tags.FromDownloadInfo(info)
		if err := tags.Embed(ctx, http.DefaultClient, meta, outputPath); err != nil {
			logger.Warn().Err(err).Msg("tag embedding failed")
		}
	}

	recordHistory(cfg, info, id, outputPath, audioOnly, logger)

	if jsonOut {
		return writeJSON(struct {
			Type string `json:"type"`
			ID   string `json:"id"`
			Path string `json:"path"`
		}{"download", id, outputPath})
	}
	fmt.Println(outputPath)
	return nil
}

// errURLRejected marks an upstream refusal of a resolved stream URL, the
// signal to refresh the session and re-resolve.
var errURLRejected = errors.New("stream url rejected")

func streamToFile(ctx context.Context, info ytsource.DownloadInfo, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return err
	}
	for key, value := range info.Headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("%w: status %d", errURLRejected, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("download rejected with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".part"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func recordHistory(cfg config.Config, info ytsource.DownloadInfo, id, path string, audioOnly bool, logger zerolog.Logger) {
	if cfg.HistoryDB == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0o755); err != nil {
		logger.Warn().Err(err).Msg("history dir unavailable")
		return
	}
	store, err := db.Open(cfg.HistoryDB)
	if err != nil {
		logger.Warn().Err(err).Msg("history db unavailable")
		return
	}
	defer store.Close()

	size := int64(0)
	if stat, err := os.Stat(path); err == nil {
		size = stat.Size()
	}
	sourceURL := "https://www.youtube.com/watch?v=" + id
	_, err = store.Record(db.HistoryRecord{
		ContentID:    id,
		Title:        info.Title,
		Artist:       info.Artist,
		Album:        info.Album,
		DurationSec:  info.DurationSec,
		MediaType:    db.ClassifyMediaType(sourceURL, info.Artist, "", info.Artist, info.Album, audioOnly),
		FilePath:     path,
		SourceURL:    sourceURL,
		ThumbnailURL: info.ThumbnailURL,
		FileSize:     size,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("history record failed")
	}
}

func mimeToExt(mime string, audioOnly bool) string {
	base, _, _ := strings.Cut(mime, ";")
	switch strings.TrimSpace(base) {
	case "audio/mp4":
		return "m4a"
	case "audio/webm":
		return "webm"
	case "video/mp4":
		return "mp4"
	case "video/webm":
		return "webm"
	case "audio/mpeg":
		return "mp3"
	}
	if audioOnly {
		return "m4a"
	}
	return "mp4"
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "untitled"
	}
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "", "\"", "", "<", "", ">", "", "|", "-",
	)
	return replacer.Replace(name)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
