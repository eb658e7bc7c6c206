package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

// fakeBackend records calls and serves a fixed snapshot.
type fakeBackend struct {
	mu       sync.Mutex
	snap     app.Snapshot
	calls    []string
	listener func(app.Change)
	dlErr    error
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Snapshot() app.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeBackend) Subscribe(fn func(app.Change)) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func (f *fakeBackend) Refresh(ctx context.Context) error { f.record("refresh"); return nil }

func (f *fakeBackend) PlayIndex(i int) error {
	f.record("playIndex:" + string(rune('0'+i)))
	return nil
}

func (f *fakeBackend) Toggle()              { f.record("toggle") }
func (f *fakeBackend) Next()                { f.record("next") }
func (f *fakeBackend) Prev()                { f.record("prev") }
func (f *fakeBackend) Seek(percent float64) { f.record("seek") }
func (f *fakeBackend) SetVolume(v float64)  { f.record("volume") }
func (f *fakeBackend) ToggleMute()          { f.record("mute") }
func (f *fakeBackend) Search(query string)  { f.record("search:" + query) }
func (f *fakeBackend) OpenAlbum(a string)   { f.record("album:" + a) }
func (f *fakeBackend) OpenArtist(a string)  { f.record("artist:" + a) }
func (f *fakeBackend) OpenPlaylist(n string) {
	f.record("playlist:" + n)
}
func (f *fakeBackend) Back() { f.record("back") }

func (f *fakeBackend) SetTab(name string) error {
	if _, ok := catalog.ParseTab(name); !ok {
		return errors.New("unknown tab")
	}
	f.record("tab:" + name)
	return nil
}

func (f *fakeBackend) ToggleFavorite(id string) (bool, error) {
	f.record("fav:" + id)
	return true, nil
}

func (f *fakeBackend) Download(ctx context.Context, id string) (string, error) {
	f.record("download:" + id)
	if f.dlErr != nil {
		return "", f.dlErr
	}
	return "/tmp/" + id + ".mp3", nil
}

func songsSnapshot() app.Snapshot {
	return app.Snapshot{
		Browse: app.Browse{
			Status: catalog.Status{Filter: catalog.FilterContext{Tab: catalog.TabHome}, SongCount: 2},
			Songs: []catalog.Song{
				{ID: "1", Title: "Blue Train", Singer: "Coltrane", Album: "Blue Train"},
				{ID: "2", Title: "So What", Singer: "Miles Davis", Album: "Kind of Blue"},
			},
			Albums:  []string{"Blue Train", "Kind of Blue"},
			Artists: []string{"Coltrane", "Miles Davis"},
		},
		Playback: player.NewState(),
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func TestTransportKeys(t *testing.T) {
	tests := []struct {
		msg  tea.KeyMsg
		want string
	}{
		{keyRunes(" "), "toggle"},
		{keyRunes("n"), "next"},
		{keyRunes("p"), "prev"},
		{keyRunes("m"), "mute"},
		{keyRunes("+"), "volume"},
		{keyRunes("-"), "volume"},
		{tea.KeyMsg{Type: tea.KeyRight}, "seek"},
		{tea.KeyMsg{Type: tea.KeyLeft}, "seek"},
	}

	for _, tc := range tests {
		t.Run(tc.want+"/"+tc.msg.String(), func(t *testing.T) {
			backend := &fakeBackend{snap: songsSnapshot()}
			m := New(backend)
			update(t, m, tc.msg)

			calls := backend.Calls()
			if len(calls) != 1 || calls[0] != tc.want {
				t.Errorf("calls = %v, want [%s]", calls, tc.want)
			}
		})
	}
}

func TestEnterPlaysSelectedSong(t *testing.T) {
	backend := &fakeBackend{snap: songsSnapshot()}
	m := New(backend)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	calls := backend.Calls()
	if len(calls) != 1 || calls[0] != "playIndex:1" {
		t.Errorf("calls = %v", calls)
	}
}

func TestCursorIsClamped(t *testing.T) {
	backend := &fakeBackend{snap: songsSnapshot()}
	m := New(backend)

	for range 5 {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
	for range 5 {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyUp})
	}
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestEnterOpensAlbum(t *testing.T) {
	snap := songsSnapshot()
	snap.Browse.Filter.Tab = catalog.TabAlbums
	backend := &fakeBackend{snap: snap}
	m := New(backend)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	calls := backend.Calls()
	if len(calls) != 1 || calls[0] != "album:Kind of Blue" {
		t.Errorf("calls = %v", calls)
	}
}

func TestTabCyclesSidebar(t *testing.T) {
	backend := &fakeBackend{snap: songsSnapshot()}
	m := New(backend)

	update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})

	calls := backend.Calls()
	want := []string{"tab:trending", "tab:downloads"}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestTabFromAlbumSongsMovesPastAlbums(t *testing.T) {
	snap := songsSnapshot()
	snap.Browse.Filter = catalog.FilterContext{Tab: catalog.TabAlbumSongs, SelectedAlbum: "Blue Train"}
	backend := &fakeBackend{snap: snap}
	m := New(backend)

	update(t, m, tea.KeyMsg{Type: tea.KeyTab})

	if calls := backend.Calls(); len(calls) != 1 || calls[0] != "tab:artists" {
		t.Errorf("calls = %v", calls)
	}
}

func TestSearchTyping(t *testing.T) {
	backend := &fakeBackend{snap: songsSnapshot()}
	m := New(backend)

	m, _ = update(t, m, keyRunes("/"))
	if !m.searching {
		t.Fatal("slash should focus the search box")
	}
	m, _ = update(t, m, keyRunes("b"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.searching {
		t.Error("enter should leave search mode")
	}
	calls := backend.Calls()
	if len(calls) != 2 || calls[0] != "search:b" || calls[1] != "search:b" {
		t.Errorf("calls = %v", calls)
	}

	// Keys typed in the search box are not commands.
	m, _ = update(t, m, keyRunes("/"))
	update(t, m, keyRunes("n"))
	for _, c := range backend.Calls() {
		if c == "next" {
			t.Error("n in the search box should not skip tracks")
		}
	}
}

func TestSearchEscapeClears(t *testing.T) {
	backend := &fakeBackend{snap: songsSnapshot()}
	m := New(backend)

	m, _ = update(t, m, keyRunes("/"))
	m, _ = update(t, m, keyRunes("x"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	if m.search.Value() != "" {
		t.Errorf("search value = %q", m.search.Value())
	}
	calls := backend.Calls()
	if calls[len(calls)-1] != "search:" {
		t.Errorf("calls = %v", calls)
	}
}

func TestDownloadCommandReportsStatus(t *testing.T) {
	backend := &fakeBackend{snap: songsSnapshot()}
	m := New(backend)

	_, cmd := update(t, m, keyRunes("d"))
	if cmd == nil {
		t.Fatal("download should return a command")
	}
	msg := cmd()
	status, ok := msg.(statusMsg)
	if !ok || !strings.Contains(string(status), "/tmp/1.mp3") {
		t.Errorf("msg = %v", msg)
	}

	backend.dlErr = errors.New("disk full")
	_, cmd = update(t, m, keyRunes("d"))
	if msg := cmd(); !strings.Contains(string(msg.(statusMsg)), "disk full") {
		t.Errorf("msg = %v", msg)
	}
}

func TestFavoriteIgnoredOnIndexTabs(t *testing.T) {
	snap := songsSnapshot()
	snap.Browse.Filter.Tab = catalog.TabArtists
	m := New(&fakeBackend{snap: snap})

	if _, cmd := update(t, m, keyRunes("f")); cmd != nil {
		t.Error("favorite should do nothing on the artists tab")
	}
}

func TestChangeRefreshesSnapshot(t *testing.T) {
	backend := &fakeBackend{snap: songsSnapshot()}
	m := New(backend)

	backend.mu.Lock()
	backend.snap.Playback.Title = "So What"
	backend.snap.Playback.NowPlayingID = "2"
	backend.mu.Unlock()
	backend.listener(app.ChangeState)

	cmd := waitForChange(m.changes)
	msg := cmd()
	if _, ok := msg.(changeMsg); !ok {
		t.Fatalf("msg = %T", msg)
	}
	m, _ = update(t, m, msg)
	if m.snap.Playback.NowPlayingID != "2" {
		t.Error("snapshot was not refreshed")
	}

	m.Close()
	if backend.listener != nil {
		t.Error("Close should unsubscribe")
	}
}

func TestViewRendersState(t *testing.T) {
	snap := songsSnapshot()
	snap.Playback.Title = "So What"
	snap.Playback.Singer = "Miles Davis"
	snap.Playback.NowPlayingID = "2"
	snap.Playback.Status = player.StatusPlaying
	snap.Playback.Progress = 65
	snap.Playback.Duration = 130
	snap.Auth = app.Auth{LoggedIn: true, DisplayName: "ava"}

	m := New(&fakeBackend{snap: snap})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	view := m.View()

	for _, want := range []string{"Home", "Blue Train", "So What - Miles Davis", "1:05", "2:10", "ava", "vol  70%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewEmptyAndErrorStates(t *testing.T) {
	snap := app.Snapshot{Playback: player.NewState()}
	snap.Browse.Filter.Tab = catalog.TabFavorites
	view := New(&fakeBackend{snap: snap}).View()
	if !strings.Contains(view, "No favorites yet") {
		t.Error("favorites tab should explain how to add favorites")
	}

	snap.Browse.Filter.Tab = catalog.TabHome
	snap.Browse.FetchError = "connection refused"
	view = New(&fakeBackend{snap: snap}).View()
	if !strings.Contains(view, "connection refused") {
		t.Error("fetch errors should be shown")
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{-3, "0:00"},
		{9.9, "0:09"},
		{61, "1:01"},
		{3600, "60:00"},
	}
	for _, tc := range tests {
		if got := formatTime(tc.in); got != tc.want {
			t.Errorf("formatTime(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a much longer line", 8, "a muc..."},
		{"日本語の歌", 7, "日本..."},
		{"anything", 0, ""},
	}
	for _, tc := range tests {
		if got := truncate(tc.in, tc.width); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
		}
	}
}
