package library

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

// ErrNoAddress is returned when a song has no resolvable audio address.
var ErrNoAddress = errors.New("song has no audio address")

// DefaultDownloadTimeout bounds a single download.
const DefaultDownloadTimeout = 5 * time.Minute

// Downloader streams song audio into a local directory.
type Downloader struct {
	dir        string
	baseURL    string
	httpClient *http.Client
}

// DownloaderOption is a functional option for configuring the Downloader.
type DownloaderOption func(*Downloader)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		d.httpClient = client
	}
}

// NewDownloader creates a downloader writing into dir and resolving relative
// sources against baseURL.
func NewDownloader(dir, baseURL string, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		dir:     dir,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultDownloadTimeout,
		},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Download fetches the song into <dir>/<title>.mp3 and returns that path.
// The body is written to a temporary file first so a partial download never
// replaces an existing file.
func (d *Downloader) Download(ctx context.Context, song catalog.Song) (string, error) {
	address, ok := player.ResolveAddress(song, d.baseURL)
	if !ok {
		return "", ErrNoAddress
	}

	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch audio: unexpected status %d", resp.StatusCode)
	}

	tmpPath := filepath.Join(d.dir, "."+uuid.NewString()+".part")
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("write audio: %w", err)
	}

	dest := filepath.Join(d.dir, FileName(song))
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalize download: %w", err)
	}

	log.Info().
		Str("id", song.ID).
		Str("path", dest).
		Int64("bytes", n).
		Msg("Song downloaded")
	return dest, nil
}

// FileName returns the local file name for song: its title, or "song" when
// untitled, with an .mp3 extension.
func FileName(song catalog.Song) string {
	name := strings.TrimSpace(song.Title)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "song"
	}
	return name + ".mp3"
}
