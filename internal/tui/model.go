// Package tui is the terminal dashboard: sidebar tabs, search box, song list
// and a player bar.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
)

const (
	volumeStep  = 0.05
	seekStep    = 5.0 // percent
	taskTimeout = 5 * time.Minute
)

// Backend is the application the dashboard drives.
type Backend interface {
	Snapshot() app.Snapshot
	Subscribe(fn func(app.Change)) (unsubscribe func())
	Refresh(ctx context.Context) error

	PlayIndex(i int) error
	Toggle()
	Next()
	Prev()
	Seek(percent float64)
	SetVolume(v float64)
	ToggleMute()

	SetTab(name string) error
	Search(query string)
	OpenAlbum(album string)
	OpenArtist(artist string)
	OpenPlaylist(name string)
	Back()

	ToggleFavorite(id string) (bool, error)
	Download(ctx context.Context, id string) (string, error)
}

// sidebarTabs are the tabs reachable with Tab / Shift+Tab.
var sidebarTabs = []catalog.Tab{
	catalog.TabHome,
	catalog.TabTrending,
	catalog.TabMyMusic,
	catalog.TabAlbums,
	catalog.TabArtists,
	catalog.TabPlaylists,
	catalog.TabFavorites,
	catalog.TabDownloads,
}

var tabTitles = map[catalog.Tab]string{
	catalog.TabHome:        "Home",
	catalog.TabTrending:    "Trending",
	catalog.TabMyMusic:     "My Music",
	catalog.TabAlbums:      "Albums",
	catalog.TabArtists:     "Artists",
	catalog.TabPlaylists:   "Playlists",
	catalog.TabFavorites:   "Favorites",
	catalog.TabDownloads:   "Downloads",
	catalog.TabSettings:    "Settings",
	catalog.TabAlbumSongs:  "Album",
	catalog.TabArtistSongs: "Artist",
}

// changeMsg reports that the application state changed.
type changeMsg struct{}

// statusMsg is a one-line result shown above the help line.
type statusMsg string

// Model is the bubbletea model of the dashboard.
type Model struct {
	backend     Backend
	snap        app.Snapshot
	changes     chan struct{}
	unsubscribe func()

	width, height int
	cursor        int
	offset        int

	searching bool
	search    textinput.Model
	status    string
}

// New creates the dashboard model and subscribes it to backend changes.
// Call Close when the program exits.
func New(backend Backend) Model {
	ti := textinput.New()
	ti.Placeholder = "Search songs, singers, albums..."
	ti.CharLimit = 156
	ti.Width = 40

	changes := make(chan struct{}, 1)
	unsubscribe := backend.Subscribe(func(app.Change) {
		// Coalesce: one pending wake-up is enough.
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	return Model{
		backend:     backend,
		snap:        backend.Snapshot(),
		changes:     changes,
		unsubscribe: unsubscribe,
		search:      ti,
	}
}

// Close detaches the model from the backend.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.changes), tea.SetWindowTitle("Stellar Cloud Player"))
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.clampCursor()
		return m, nil
	case changeMsg:
		m.snap = m.backend.Snapshot()
		m.clampCursor()
		return m, waitForChange(m.changes)
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.search.Blur()
		m.backend.Search(m.search.Value())
		m.cursor, m.offset = 0, 0
		return m, nil
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.backend.Search("")
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	// Filter as the user types.
	m.backend.Search(m.search.Value())
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.switchTab(1)
	case "shift+tab":
		m.switchTab(-1)
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "home", "g":
		m.cursor, m.offset = 0, 0
	case "end", "G":
		m.cursor = len(m.rows()) - 1
		m.clampCursor()
	case "enter":
		return m, m.activate()
	case "backspace", "esc":
		m.backend.Back()
		m.cursor, m.offset = 0, 0
	case "/":
		m.searching = true
		return m, m.search.Focus()
	case " ":
		m.backend.Toggle()
	case "n":
		m.backend.Next()
	case "p":
		m.backend.Prev()
	case "left":
		m.backend.Seek(float64(m.snap.Playback.ProgressPercent()) - seekStep)
	case "right":
		m.backend.Seek(float64(m.snap.Playback.ProgressPercent()) + seekStep)
	case "+", "=":
		m.backend.SetVolume(m.snap.Playback.Volume + volumeStep)
	case "-":
		m.backend.SetVolume(m.snap.Playback.Volume - volumeStep)
	case "m":
		m.backend.ToggleMute()
	case "f":
		return m, m.toggleFavorite()
	case "d":
		return m, m.download()
	case "r":
		return m, m.refresh()
	}
	return m, nil
}

// switchTab moves along the sidebar. Album and artist song lists count as
// their index tab.
func (m *Model) switchTab(step int) {
	current := m.snap.Browse.Filter.Tab
	switch current {
	case catalog.TabAlbumSongs:
		current = catalog.TabAlbums
	case catalog.TabArtistSongs:
		current = catalog.TabArtists
	}

	i := 0
	for j, t := range sidebarTabs {
		if t == current {
			i = j
			break
		}
	}
	i = (i + step + len(sidebarTabs)) % len(sidebarTabs)

	if err := m.backend.SetTab(string(sidebarTabs[i])); err != nil {
		m.status = err.Error()
	}
	m.cursor, m.offset = 0, 0
}

func (m *Model) moveCursor(step int) {
	m.cursor += step
	m.clampCursor()
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	visible := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if visible > 0 && m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
}

// indexTab reports whether the current tab lists names rather than songs.
func (m Model) indexTab() bool {
	switch m.snap.Browse.Filter.Tab {
	case catalog.TabAlbums, catalog.TabArtists, catalog.TabPlaylists:
		return true
	}
	return false
}

// rows returns the labels of the current list.
func (m Model) rows() []string {
	switch m.snap.Browse.Filter.Tab {
	case catalog.TabAlbums:
		return m.snap.Browse.Albums
	case catalog.TabArtists:
		return m.snap.Browse.Artists
	case catalog.TabPlaylists:
		return m.snap.Browse.Playlists
	}
	rows := make([]string, len(m.snap.Browse.Songs))
	for i, s := range m.snap.Browse.Songs {
		rows[i] = s.Title
	}
	return rows
}

func (m Model) selectedSong() (catalog.Song, bool) {
	if m.indexTab() || m.cursor < 0 || m.cursor >= len(m.snap.Browse.Songs) {
		return catalog.Song{}, false
	}
	return m.snap.Browse.Songs[m.cursor], true
}

// activate opens the selected album, artist or playlist, or plays the
// selected song.
func (m *Model) activate() tea.Cmd {
	rows := m.rows()
	if m.cursor >= len(rows) {
		return nil
	}
	name := rows[m.cursor]

	switch m.snap.Browse.Filter.Tab {
	case catalog.TabAlbums:
		m.backend.OpenAlbum(name)
	case catalog.TabArtists:
		m.backend.OpenArtist(name)
	case catalog.TabPlaylists:
		m.backend.OpenPlaylist(name)
	default:
		if err := m.backend.PlayIndex(m.cursor); err != nil {
			m.status = err.Error()
		}
		return nil
	}
	m.cursor, m.offset = 0, 0
	return nil
}

func (m Model) toggleFavorite() tea.Cmd {
	song, ok := m.selectedSong()
	if !ok {
		return nil
	}
	backend := m.backend
	return func() tea.Msg {
		fav, err := backend.ToggleFavorite(song.ID)
		switch {
		case err != nil:
			return statusMsg("Favorite failed: " + err.Error())
		case fav:
			return statusMsg("Added " + song.Title + " to favorites")
		default:
			return statusMsg("Removed " + song.Title + " from favorites")
		}
	}
}

func (m Model) download() tea.Cmd {
	song, ok := m.selectedSong()
	if !ok {
		return nil
	}
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		path, err := backend.Download(ctx, song.ID)
		if err != nil {
			return statusMsg("Download failed: " + err.Error())
		}
		return statusMsg("Saved " + path)
	}
}

func (m Model) refresh() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()
		if err := backend.Refresh(ctx); err != nil {
			return statusMsg("Refresh failed: " + err.Error())
		}
		return statusMsg("Catalog refreshed")
	}
}

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, backend Backend) error {
	m := New(backend)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
