package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

// MockBackend records calls and serves a fixed snapshot.
type MockBackend struct {
	Snap     app.Snapshot
	Calls    []string
	LoginErr error
}

func (m *MockBackend) record(format string, a ...any) {
	m.Calls = append(m.Calls, fmt.Sprintf(format, a...))
}

func (m *MockBackend) Snapshot() app.Snapshot            { return m.Snap }
func (m *MockBackend) Refresh(ctx context.Context) error { m.record("refresh"); return nil }
func (m *MockBackend) PlayIndex(i int) error             { m.record("playIndex %d", i); return nil }
func (m *MockBackend) Play()                             { m.record("play") }
func (m *MockBackend) Pause()                            { m.record("pause") }
func (m *MockBackend) Toggle()                           { m.record("toggle") }
func (m *MockBackend) Next()                             { m.record("next") }
func (m *MockBackend) Prev()                             { m.record("prev") }
func (m *MockBackend) Seek(percent float64)              { m.record("seek %g", percent) }
func (m *MockBackend) SetVolume(v float64)               { m.record("volume %g", v) }
func (m *MockBackend) ToggleMute()                       { m.record("mute") }
func (m *MockBackend) Search(query string)               { m.record("search %s", query) }
func (m *MockBackend) OpenAlbum(album string)            { m.record("album %s", album) }
func (m *MockBackend) OpenArtist(artist string)          { m.record("artist %s", artist) }
func (m *MockBackend) OpenPlaylist(name string)          { m.record("playlist %s", name) }
func (m *MockBackend) Back()                             { m.record("back") }
func (m *MockBackend) Logout() error                     { m.record("logout"); return nil }

func (m *MockBackend) SetTab(name string) error {
	if _, ok := catalog.ParseTab(name); !ok {
		return fmt.Errorf("unknown tab %q", name)
	}
	m.record("tab %s", name)
	return nil
}

func (m *MockBackend) ToggleFavorite(id string) (bool, error) {
	m.record("fav %s", id)
	return true, nil
}

func (m *MockBackend) Download(ctx context.Context, id string) (string, error) {
	m.record("download %s", id)
	return "/music/" + id + ".mp3", nil
}

func (m *MockBackend) Login(ctx context.Context, email, password string) error {
	m.record("login %s %s", email, password)
	if m.LoginErr != nil {
		return m.LoginErr
	}
	m.Snap.Auth = app.Auth{LoggedIn: true, DisplayName: "ava"}
	return nil
}

func newMock() *MockBackend {
	return &MockBackend{Snap: app.Snapshot{
		Browse: app.Browse{
			Status: catalog.Status{Filter: catalog.FilterContext{Tab: catalog.TabHome}, SongCount: 2},
			Songs: []catalog.Song{
				{ID: "a", Title: "Blue Train", Singer: "Coltrane", Album: "Blue Train"},
				{ID: "b", Title: "So What", Singer: "Miles Davis"},
			},
			Albums:    []string{"Blue Train", "Kind of Blue"},
			Playlists: []string{"Chill"},
		},
		Playback: player.NewState(),
	}}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArgs []string
		wantRest string
	}{
		{"", "", nil, ""},
		{"   ", "", nil, ""},
		{"next", "next", []string{}, ""},
		{"PLAY 3", "play", []string{"3"}, "3"},
		{"  album   Kind of Blue ", "album", []string{"Kind", "of", "Blue"}, "Kind of Blue"},
	}

	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			name, args, rest := parseLine(tc.line)
			if name != tc.wantName || rest != tc.wantRest {
				t.Errorf("parseLine(%q) = %q, %q", tc.line, name, rest)
			}
			if strings.Join(args, "|") != strings.Join(tc.wantArgs, "|") {
				t.Errorf("args = %v, want %v", args, tc.wantArgs)
			}
		})
	}
}

func TestSongNumber(t *testing.T) {
	tests := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{[]string{"1"}, 0, false},
		{[]string{"2"}, 1, false},
		{[]string{"0"}, 0, true},
		{[]string{"3"}, 0, true},
		{[]string{"x"}, 0, true},
		{nil, 0, true},
	}

	for _, tc := range tests {
		got, err := songNumber(tc.args, 2)
		if (err != nil) != tc.wantErr {
			t.Errorf("songNumber(%v) error = %v, wantErr %v", tc.args, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("songNumber(%v) = %d, want %d", tc.args, got, tc.want)
		}
	}
}

func TestExecuteDispatch(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"play 2", "playIndex 1"},
		{"play", "play"},
		{"pause", "pause"},
		{"toggle", "toggle"},
		{"next", "next"},
		{"prev", "prev"},
		{"seek 50%", "seek 50"},
		{"vol 40", "volume 0.4"},
		{"mute", "mute"},
		{"tab albums", "tab albums"},
		{"search blue train", "search blue train"},
		{"album Kind of Blue", "album Kind of Blue"},
		{"artist Miles Davis", "artist Miles Davis"},
		{"playlist Chill", "playlist Chill"},
		{"back", "back"},
		{"fav 1", "fav a"},
		{"dl 2", "download b"},
		{"refresh", "refresh"},
		{"login ava@example.com secret", "login ava@example.com secret"},
		{"logout", "logout"},
	}

	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			mock := newMock()
			var out bytes.Buffer
			c := New(mock, &out, nil)

			quit, err := c.Execute(context.Background(), tc.line)
			if err != nil {
				t.Fatalf("Execute(%q) error: %v", tc.line, err)
			}
			if quit {
				t.Error("only quit should end the loop")
			}
			if len(mock.Calls) == 0 || mock.Calls[0] != tc.want {
				t.Errorf("calls = %v, want %q first", mock.Calls, tc.want)
			}
		})
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []string{
		"bogus",
		"play 9",
		"seek",
		"seek far",
		"vol loud",
		"tab nowhere",
		"album",
		"fav",
		"login",
	}

	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			c := New(newMock(), &bytes.Buffer{}, nil)
			if _, err := c.Execute(context.Background(), line); err == nil {
				t.Errorf("Execute(%q) should fail", line)
			}
		})
	}
}

func TestExecuteQuit(t *testing.T) {
	for _, line := range []string{"quit", "exit", "QUIT"} {
		c := New(newMock(), &bytes.Buffer{}, nil)
		quit, err := c.Execute(context.Background(), line)
		if err != nil || !quit {
			t.Errorf("Execute(%q) = %v, %v", line, quit, err)
		}
	}
}

func TestLoginPromptsForPassword(t *testing.T) {
	mock := newMock()
	var out bytes.Buffer
	var prompted string
	c := New(mock, &out, func(prompt string) (string, error) {
		prompted = prompt
		return "hunter2", nil
	})

	if _, err := c.Execute(context.Background(), "login ava@example.com"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if prompted == "" {
		t.Error("password should be prompted")
	}
	if mock.Calls[0] != "login ava@example.com hunter2" {
		t.Errorf("calls = %v", mock.Calls)
	}
	if !strings.Contains(out.String(), "welcome ava") {
		t.Errorf("output = %q", out.String())
	}
}

func TestLoginFailure(t *testing.T) {
	mock := newMock()
	mock.LoginErr = errors.New("Invalid credentials")
	c := New(mock, &bytes.Buffer{}, nil)

	_, err := c.Execute(context.Background(), "login a@b.c wrong")
	if err == nil || err.Error() != "Invalid credentials" {
		t.Errorf("err = %v", err)
	}
}

func TestListing(t *testing.T) {
	mock := newMock()
	mock.Snap.Playback.NowPlayingID = "b"
	var out bytes.Buffer
	c := New(mock, &out, nil)

	if _, err := c.Execute(context.Background(), "ls"); err != nil {
		t.Fatalf("ls: %v", err)
	}
	got := out.String()
	for _, want := range []string{"home (2)", "  1. Blue Train - Coltrane [Blue Train]", "*  2. So What - Miles Davis"} {
		if !strings.Contains(got, want) {
			t.Errorf("listing missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	mock.Snap.Browse.Filter.Tab = catalog.TabAlbums
	c.Execute(context.Background(), "ls")
	if !strings.Contains(out.String(), "Albums (2)") || !strings.Contains(out.String(), "  Kind of Blue") {
		t.Errorf("album listing:\n%s", out.String())
	}
}

func TestListingFetchError(t *testing.T) {
	mock := newMock()
	mock.Snap.Browse.Songs = nil
	mock.Snap.Browse.FetchError = "connection refused"
	var out bytes.Buffer
	c := New(mock, &out, nil)

	c.Execute(context.Background(), "ls")
	if !strings.Contains(out.String(), "could not load songs: connection refused") {
		t.Errorf("output = %q", out.String())
	}
}

func TestDescribe(t *testing.T) {
	st := player.NewState()
	if got := describe(st); got != "nothing playing" {
		t.Errorf("describe idle = %q", got)
	}

	st.NowPlayingID = "a"
	st.Title = "Blue Train"
	st.Singer = "Coltrane"
	st.Status = player.StatusPlaying
	st.Progress = 75
	st.Duration = 643
	if got := describe(st); got != "[playing] Blue Train - Coltrane 1:15/10:43 vol 70%" {
		t.Errorf("describe = %q", got)
	}

	st.Muted = true
	if got := describe(st); !strings.HasSuffix(got, "muted") {
		t.Errorf("describe muted = %q", got)
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	var out bytes.Buffer
	c := New(newMock(), &out, nil)
	c.Execute(context.Background(), "help")

	for _, cmd := range c.commands {
		if !strings.Contains(out.String(), cmd.usage) {
			t.Errorf("help missing %q", cmd.usage)
		}
	}
}

func TestCompleterCoversCommands(t *testing.T) {
	c := New(newMock(), &bytes.Buffer{}, nil)
	pc := c.completer()
	if got := len(pc.GetChildren()); got != len(c.commands) {
		t.Errorf("completer has %d items, want %d", got, len(c.commands))
	}
}
