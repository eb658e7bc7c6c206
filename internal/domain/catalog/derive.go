package catalog

import "strings"

// Playlist names shown on the playlists tab. Opening any of them
// switches the view to the trending tab.
var playlistNames = []string{"My Favorites", "Top 10", "Chill Hits"}

// DeriveDisplayedList returns the songs visible under the given filter.
// It never mutates its inputs and keeps catalog order among matches.
func DeriveDisplayedList(songs, favorites, downloads []Song, filter FilterContext) []Song {
	switch filter.Tab {
	case TabFavorites:
		return cloneSongs(favorites)
	case TabDownloads:
		return cloneSongs(downloads)
	case TabAlbumSongs:
		return filterSongs(songs, func(s Song) bool { return s.Album == filter.SelectedAlbum })
	case TabArtistSongs:
		return filterSongs(songs, func(s Song) bool { return s.Singer == filter.SelectedArtist })
	}

	if strings.TrimSpace(filter.Query) == "" {
		return cloneSongs(songs)
	}
	query := strings.ToLower(filter.Query)
	return filterSongs(songs, func(s Song) bool { return s.Matches(query) })
}

// Albums returns the distinct non-empty album names in first-seen order.
func Albums(songs []Song) []string {
	return distinct(songs, func(s Song) string { return s.Album })
}

// Artists returns the distinct non-empty singer names in first-seen order.
func Artists(songs []Song) []string {
	return distinct(songs, func(s Song) string { return s.Singer })
}

// Playlists returns the playlist names.
func Playlists() []string {
	out := make([]string, len(playlistNames))
	copy(out, playlistNames)
	return out
}

func filterSongs(songs []Song, keep func(Song) bool) []Song {
	out := make([]Song, 0, len(songs))
	for _, s := range songs {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func distinct(songs []Song, key func(Song) string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, s := range songs {
		k := key(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func cloneSongs(songs []Song) []Song {
	out := make([]Song, len(songs))
	copy(out, songs)
	return out
}
