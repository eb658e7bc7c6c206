package library_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/library"
)

func TestDownloader_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads/Spring Day.mp3" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	d := library.NewDownloader(dir, server.URL)

	path, err := d.Download(context.Background(), catalog.Song{ID: "1", Title: "Spring Day", Filename: "Spring Day.mp3"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != filepath.Join(dir, "Spring Day.mp3") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "ID3-audio-bytes" {
		t.Errorf("content = %q", data)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected only the final file, found %d entries", len(entries))
	}
}

func TestDownloader_NoAddress(t *testing.T) {
	d := library.NewDownloader(t.TempDir(), "http://unused")

	_, err := d.Download(context.Background(), catalog.Song{ID: "1", Title: "Silent"})
	if !errors.Is(err, library.ErrNoAddress) {
		t.Errorf("expected ErrNoAddress, got %v", err)
	}
}

func TestDownloader_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := library.NewDownloader(dir, server.URL)

	if _, err := d.Download(context.Background(), catalog.Song{ID: "1", Filename: "missing.mp3"}); err == nil {
		t.Fatal("expected error for 404")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("no file should remain after a failed download, found %d", len(entries))
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Dynamite", "Dynamite.mp3"},
		{"", "song.mp3"},
		{"   ", "song.mp3"},
		{"AC/DC", "AC_DC.mp3"},
		{"../secret", "_secret.mp3"},
		{"..", "song.mp3"},
	}

	for _, tt := range tests {
		if got := library.FileName(catalog.Song{Title: tt.title}); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
