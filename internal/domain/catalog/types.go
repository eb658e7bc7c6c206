// Package catalog provides the song catalog and the browse/filter view over it.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMissingID is returned when an operation needs a song id and has none.
var ErrMissingID = errors.New("song has no id")

// Tab identifies a browse section.
type Tab string

// Browse tabs
const (
	TabHome        Tab = "home"
	TabTrending    Tab = "trending"
	TabMyMusic     Tab = "myMusic"
	TabSettings    Tab = "settings"
	TabFavorites   Tab = "favorites"
	TabDownloads   Tab = "downloads"
	TabAlbums      Tab = "albums"
	TabAlbumSongs  Tab = "albumSongs"
	TabArtists     Tab = "artists"
	TabArtistSongs Tab = "artistSongs"
	TabPlaylists   Tab = "playlists"
)

// Tabs lists every browse tab in sidebar order.
var Tabs = []Tab{
	TabHome, TabTrending, TabMyMusic, TabAlbums, TabArtists, TabPlaylists,
	TabFavorites, TabDownloads, TabSettings, TabAlbumSongs, TabArtistSongs,
}

// ParseTab returns the tab with the given name.
func ParseTab(name string) (Tab, bool) {
	for _, t := range Tabs {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// Song is a catalog entry as returned by the API server.
// The stored source may be any of Filename, FileName, Path or URL.
type Song struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Singer   string `json:"singer,omitempty"`
	Album    string `json:"album,omitempty"`
	Year     string `json:"year,omitempty"`
	Language string `json:"language,omitempty"`
	Filename string `json:"filename,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Source returns the stored playable address source, in field priority order.
func (s Song) Source() string {
	for _, v := range []string{s.Filename, s.FileName, s.Path, s.URL} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Matches reports whether the lowercase query is contained in the song's
// title, singer, album or language.
func (s Song) Matches(query string) bool {
	for _, field := range []string{s.Title, s.Singer, s.Album, s.Language} {
		if field != "" && strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// songJSON is the wire form. The server may send either "_id" or "id",
// and "id"/"year" may be strings or numbers.
type songJSON struct {
	MongoID  string          `json:"_id"`
	ID       json.RawMessage `json:"id"`
	Title    string          `json:"title"`
	Singer   string          `json:"singer"`
	Album    string          `json:"album"`
	Year     json.RawMessage `json:"year"`
	Language string          `json:"language"`
	Filename string          `json:"filename"`
	FileName string          `json:"fileName"`
	Path     string          `json:"path"`
	URL      string          `json:"url"`
}

// UnmarshalJSON normalises the identifier so Song.ID is the only accessor.
func (s *Song) UnmarshalJSON(data []byte) error {
	var raw songJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Song{
		ID:       raw.MongoID,
		Title:    raw.Title,
		Singer:   raw.Singer,
		Album:    raw.Album,
		Year:     scalarString(raw.Year),
		Language: raw.Language,
		Filename: raw.Filename,
		FileName: raw.FileName,
		Path:     raw.Path,
		URL:      raw.URL,
	}
	if s.ID == "" {
		s.ID = scalarString(raw.ID)
	}
	return nil
}

// scalarString renders a JSON string or number as plain text.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	return string(raw)
}

// FilterContext is the user-chosen browse context.
type FilterContext struct {
	Tab            Tab    `json:"tab"`
	Query          string `json:"query"`
	SelectedAlbum  string `json:"selectedAlbum,omitempty"`
	SelectedArtist string `json:"selectedArtist,omitempty"`
}

// IndexOf returns the position of the song with the given id, or -1.
func IndexOf(songs []Song, id string) int {
	if id == "" {
		return -1
	}
	for i, s := range songs {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the song with the given id.
func Find(songs []Song, id string) (Song, bool) {
	if i := IndexOf(songs, id); i >= 0 {
		return songs[i], true
	}
	return Song{}, false
}
