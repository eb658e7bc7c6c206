// Package library keeps the user's favorites and downloads.
package library

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
)

// Storage keys
const (
	KeyFavorites = "favorites"
	KeyDownloads = "downloads"
)

// Store persists JSON-encodable values by key.
type Store interface {
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
	Delete(keys ...string) error
}

// Fetcher saves a song's audio locally and returns the written path.
type Fetcher interface {
	Download(ctx context.Context, song catalog.Song) (string, error)
}

// Service holds the favorites and downloads sets. Both keep insertion order
// and contain each song id at most once.
type Service struct {
	mu        sync.RWMutex
	store     Store
	fetcher   Fetcher
	favorites []catalog.Song
	downloads []catalog.Song
}

// NewService creates a library service. fetcher may be nil, in which case
// Download only records the song.
func NewService(store Store, fetcher Fetcher) *Service {
	return &Service{
		store:   store,
		fetcher: fetcher,
	}
}

// Load restores both sets from the store.
func (s *Service) Load() error {
	var favorites, downloads []catalog.Song

	if _, err := s.store.Get(KeyFavorites, &favorites); err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	if _, err := s.store.Get(KeyDownloads, &downloads); err != nil {
		return fmt.Errorf("load downloads: %w", err)
	}

	s.mu.Lock()
	s.favorites = dedupe(favorites)
	s.downloads = dedupe(downloads)
	s.mu.Unlock()

	log.Info().
		Int("favorites", len(favorites)).
		Int("downloads", len(downloads)).
		Msg("Library loaded")
	return nil
}

// Favorites returns a copy of the favorites set.
func (s *Service) Favorites() []catalog.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.Song(nil), s.favorites...)
}

// Downloads returns a copy of the downloads set.
func (s *Service) Downloads() []catalog.Song {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]catalog.Song(nil), s.downloads...)
}

// IsFavorite reports whether id is in the favorites set.
func (s *Service) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catalog.IndexOf(s.favorites, id) >= 0
}

// IsDownloaded reports whether id is in the downloads set.
func (s *Service) IsDownloaded(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return catalog.IndexOf(s.downloads, id) >= 0
}

// ToggleFavorite adds song to favorites or removes it when present.
// It returns whether the song is a favorite afterwards.
func (s *Service) ToggleFavorite(song catalog.Song) (bool, error) {
	if song.ID == "" {
		return false, catalog.ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]catalog.Song, 0, len(s.favorites)+1)
	removed := false
	for _, f := range s.favorites {
		if f.ID == song.ID {
			removed = true
			continue
		}
		next = append(next, f)
	}
	if !removed {
		next = append(next, song)
	}

	if err := s.store.Set(KeyFavorites, next); err != nil {
		return removed, fmt.Errorf("save favorites: %w", err)
	}
	s.favorites = next

	log.Info().Str("id", song.ID).Bool("favorite", !removed).Msg("ToggleFavorite")
	return !removed, nil
}

// AddDownload records song in the downloads set. Adding a song that is
// already present is a no-op and reports false.
func (s *Service) AddDownload(song catalog.Song) (bool, error) {
	if song.ID == "" {
		return false, catalog.ErrMissingID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if catalog.IndexOf(s.downloads, song.ID) >= 0 {
		return false, nil
	}

	next := append(append(make([]catalog.Song, 0, len(s.downloads)+1), s.downloads...), song)
	if err := s.store.Set(KeyDownloads, next); err != nil {
		return false, fmt.Errorf("save downloads: %w", err)
	}
	s.downloads = next

	log.Info().Str("id", song.ID).Msg("AddDownload")
	return true, nil
}

// Download saves the song's audio through the fetcher and records it in the
// downloads set. Nothing is recorded when the fetch fails.
func (s *Service) Download(ctx context.Context, song catalog.Song) (string, error) {
	if song.ID == "" {
		return "", catalog.ErrMissingID
	}

	var path string
	if s.fetcher != nil {
		p, err := s.fetcher.Download(ctx, song)
		if err != nil {
			return "", err
		}
		path = p
	}

	if _, err := s.AddDownload(song); err != nil {
		return path, err
	}
	return path, nil
}

// Clear empties both sets and removes them from the store.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(KeyFavorites, KeyDownloads); err != nil {
		return fmt.Errorf("clear library: %w", err)
	}
	s.favorites = nil
	s.downloads = nil

	log.Info().Msg("Library cleared")
	return nil
}

// dedupe drops songs without an id and repeated ids, keeping the first.
func dedupe(songs []catalog.Song) []catalog.Song {
	seen := make(map[string]bool, len(songs))
	out := make([]catalog.Song, 0, len(songs))
	for _, song := range songs {
		if song.ID == "" || seen[song.ID] {
			continue
		}
		seen[song.ID] = true
		out = append(out, song)
	}
	return out
}
