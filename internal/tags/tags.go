// Package tags embeds metadata into downloaded audio files.
package tags

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	id3v2 "github.com/bogem/id3v2/v2"

	"github.com/lvcoi/ytsource/internal/media"
)

// Metadata is what gets written into a file's tags.
type Metadata struct {
	Title  string
	Artist string
	Album  string
	Year   int
	Track  int
	// CoverURL, when set, is fetched and embedded as front-cover art.
	CoverURL string
}

// FromDownloadInfo builds tag metadata from a resolved download.
func FromDownloadInfo(info media.DownloadInfo) Metadata {
	return Metadata{
		Title:    info.Title,
		Artist:   info.Artist,
		Album:    info.Album,
		CoverURL: info.ThumbnailURL,
	}
}

// Embed writes metadata into the file at path. Only ID3-capable
// containers are supported; anything else is skipped without error.
func Embed(ctx context.Context, httpClient *http.Client, meta Metadata, path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" {
		return nil
	}
	return embedID3(ctx, httpClient, meta, path)
}

func embedID3(ctx context.Context, httpClient *http.Client, meta Metadata, path string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening tags: %w", err)
	}
	defer tag.Close()

	if meta.Title != "" {
		tag.SetTitle(meta.Title)
	}
	if meta.Artist != "" {
		tag.SetArtist(meta.Artist)
	}
	if meta.Album != "" {
		tag.SetAlbum(meta.Album)
	}
	if meta.Year != 0 {
		tag.AddTextFrame(tag.CommonID("Year"), tag.DefaultEncoding(), strconv.Itoa(meta.Year))
	}
	if meta.Track != 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), strconv.Itoa(meta.Track))
	}
	if meta.CoverURL != "" && httpClient != nil {
		if art, mime, err := fetchCover(ctx, httpClient, meta.CoverURL); err == nil {
			tag.AddAttachedPicture(id3v2.PictureFrame{
				Encoding:    id3v2.EncodingUTF8,
				MimeType:    mime,
				PictureType: id3v2.PTFrontCover,
				Picture:     art,
			})
		}
	}
	return tag.Save()
}

func fetchCover(ctx context.Context, httpClient *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}
