package catalog

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Fetcher loads the full song catalog.
type Fetcher interface {
	FetchSongs(ctx context.Context) ([]Song, error)
}

// Status is a snapshot of the view for rendering.
type Status struct {
	Filter     FilterContext `json:"filter"`
	Loading    bool          `json:"loading"`
	FetchError string        `json:"fetchError,omitempty"`
	SongCount  int           `json:"songCount"`
}

// View holds the fetched catalog and the current filter context.
// It is safe for concurrent access.
type View struct {
	mu         sync.RWMutex
	fetcher    Fetcher
	songs      []Song
	filter     FilterContext
	loading    bool
	fetchError string
}

// NewView creates a view on the home tab with an empty catalog.
func NewView(fetcher Fetcher) *View {
	return &View{
		fetcher: fetcher,
		songs:   []Song{},
		filter:  FilterContext{Tab: TabHome},
	}
}

// Load fetches the catalog and replaces the current one.
// A failure keeps the previous catalog and is exposed through Status.FetchError.
func (v *View) Load(ctx context.Context) error {
	v.mu.Lock()
	v.loading = true
	v.fetchError = ""
	v.mu.Unlock()

	songs, err := v.fetcher.FetchSongs(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.loading = false

	if err != nil {
		v.fetchError = err.Error()
		if v.fetchError == "" {
			v.fetchError = "Fetch failed"
		}
		log.Error().Err(err).Msg("Error fetching songs")
		return err
	}

	if songs == nil {
		songs = []Song{}
	}
	v.songs = songs
	log.Info().Int("count", len(songs)).Msg("Songs loaded")
	return nil
}

// Songs returns a copy of the full catalog.
func (v *View) Songs() []Song {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return cloneSongs(v.songs)
}

// Filter returns the current filter context.
func (v *View) Filter() FilterContext {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.filter
}

// Displayed derives the displayed list from the current catalog and filter.
func (v *View) Displayed(favorites, downloads []Song) []Song {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return DeriveDisplayedList(v.songs, favorites, downloads, v.filter)
}

// Status returns a snapshot for rendering.
func (v *View) Status() Status {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Status{
		Filter:     v.filter,
		Loading:    v.loading,
		FetchError: v.fetchError,
		SongCount:  len(v.songs),
	}
}

// SetTab switches the active tab.
func (v *View) SetTab(tab Tab) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Tab = tab
	log.Debug().Str("tab", string(tab)).Msg("SetTab")
}

// SetQuery updates the search text.
func (v *View) SetQuery(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Query = query
}

// OpenAlbum shows the songs of one album.
func (v *View) OpenAlbum(album string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Tab = TabAlbumSongs
	v.filter.SelectedAlbum = album
}

// OpenArtist shows the songs of one singer.
func (v *View) OpenArtist(artist string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Tab = TabArtistSongs
	v.filter.SelectedArtist = artist
}

// OpenPlaylist opens a playlist. Playlists are not backed by the API
// yet, so every playlist lands on the trending tab.
func (v *View) OpenPlaylist(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.filter.Tab = TabTrending
	log.Debug().Str("playlist", name).Msg("OpenPlaylist")
}

// Back returns from an album or artist song list to its index.
func (v *View) Back() {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.filter.Tab {
	case TabAlbumSongs:
		v.filter.Tab = TabAlbums
	case TabArtistSongs:
		v.filter.Tab = TabArtists
	default:
		v.filter.Tab = TabHome
	}
}
