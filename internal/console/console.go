// Package console is a line-oriented shell for driving the player from a
// terminal without a full-screen UI.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

const taskTimeout = 5 * time.Minute

// errQuit ends the read loop.
var errQuit = errors.New("quit")

// Backend is the application the console drives.
type Backend interface {
	Snapshot() app.Snapshot
	Refresh(ctx context.Context) error

	PlayIndex(i int) error
	Play()
	Pause()
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
	Login(ctx context.Context, email, password string) error
	Logout() error
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(c *Console, ctx context.Context, args []string, rest string) error
}

// Console executes text commands against a Backend.
type Console struct {
	backend  Backend
	out      io.Writer
	password func(prompt string) (string, error)
	commands []command
}

// New creates a console writing to out. password reads a secret without
// echo; it may be nil, in which case login takes the password inline.
func New(backend Backend, out io.Writer, password func(prompt string) (string, error)) *Console {
	c := &Console{backend: backend, out: out, password: password}
	c.commands = commands()
	return c
}

func commands() []command {
	return []command{
		{"help", "help", "show this list", (*Console).help},
		{"ls", "ls", "list the current tab", (*Console).list},
		{"play", "play [N]", "play song N, or resume", (*Console).play},
		{"pause", "pause", "pause playback", func(c *Console, _ context.Context, _ []string, _ string) error {
			c.backend.Pause()
			return nil
		}},
		{"toggle", "toggle", "play or pause", func(c *Console, _ context.Context, _ []string, _ string) error {
			c.backend.Toggle()
			return nil
		}},
		{"next", "next", "next song", func(c *Console, _ context.Context, _ []string, _ string) error {
			c.backend.Next()
			return nil
		}},
		{"prev", "prev", "previous song", func(c *Console, _ context.Context, _ []string, _ string) error {
			c.backend.Prev()
			return nil
		}},
		{"seek", "seek PERCENT", "jump to a position", (*Console).seek},
		{"vol", "vol 0-100", "set the volume", (*Console).volume},
		{"mute", "mute", "toggle mute", func(c *Console, _ context.Context, _ []string, _ string) error {
			c.backend.ToggleMute()
			return nil
		}},
		{"status", "status", "show what is playing", (*Console).status},
		{"tab", "tab NAME", "switch tab", (*Console).tab},
		{"search", "search [QUERY]", "filter the current tab", func(c *Console, _ context.Context, _ []string, rest string) error {
			c.backend.Search(rest)
			c.show()
			return nil
		}},
		{"album", "album NAME", "open an album", opener(Backend.OpenAlbum)},
		{"artist", "artist NAME", "open an artist", opener(Backend.OpenArtist)},
		{"playlist", "playlist NAME", "open a playlist", opener(Backend.OpenPlaylist)},
		{"back", "back", "leave an album or artist", func(c *Console, _ context.Context, _ []string, _ string) error {
			c.backend.Back()
			c.show()
			return nil
		}},
		{"fav", "fav N", "toggle favorite on song N", (*Console).favorite},
		{"dl", "dl N", "download song N", (*Console).download},
		{"refresh", "refresh", "reload the catalog", (*Console).refresh},
		{"login", "login EMAIL [PASSWORD]", "sign in", (*Console).login},
		{"logout", "logout", "sign out", (*Console).logout},
		{"quit", "quit", "exit", func(*Console, context.Context, []string, string) error {
			return errQuit
		}},
	}
}

// opener builds a command that opens a named collection and lists it.
func opener(open func(Backend, string)) func(*Console, context.Context, []string, string) error {
	return func(c *Console, _ context.Context, _ []string, rest string) error {
		if rest == "" {
			return errors.New("missing name")
		}
		open(c.backend, rest)
		c.show()
		return nil
	}
}

// Execute runs one command line. It reports quit when the user asked to
// leave.
func (c *Console) Execute(ctx context.Context, line string) (quit bool, err error) {
	name, args, rest := parseLine(line)
	if name == "" {
		return false, nil
	}
	if name == "exit" {
		name = "quit"
	}

	for _, cmd := range c.commands {
		if cmd.name != name {
			continue
		}
		err := cmd.run(c, ctx, args, rest)
		if errors.Is(err, errQuit) {
			return true, nil
		}
		return false, err
	}
	return false, fmt.Errorf("unknown command %q, try help", name)
}

// parseLine splits a line into the command name, its arguments, and the
// raw text after the name.
func parseLine(line string) (name string, args []string, rest string) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, ""
	}
	name = strings.ToLower(fields[0])
	rest = strings.TrimSpace(line[len(fields[0]):])
	return name, fields[1:], rest
}

// songNumber parses a 1-based song number from the listing.
func songNumber(args []string, count int) (int, error) {
	if len(args) == 0 {
		return 0, errors.New("missing song number")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid song number %q", args[0])
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("song number %d out of range 1-%d", n, count)
	}
	return n - 1, nil
}

func (c *Console) songAt(args []string) (catalog.Song, error) {
	songs := c.backend.Snapshot().Browse.Songs
	i, err := songNumber(args, len(songs))
	if err != nil {
		return catalog.Song{}, err
	}
	return songs[i], nil
}

func (c *Console) printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

func (c *Console) help(context.Context, []string, string) error {
	for _, cmd := range c.commands {
		c.printf("  %-24s %s\n", cmd.usage, cmd.summary)
	}
	return nil
}

func (c *Console) list(context.Context, []string, string) error {
	c.show()
	return nil
}

// show prints the current tab: names on index tabs, numbered songs elsewhere.
func (c *Console) show() {
	snap := c.backend.Snapshot()
	browse := snap.Browse
	f := browse.Filter

	switch f.Tab {
	case catalog.TabAlbums:
		c.names("Albums", browse.Albums)
		return
	case catalog.TabArtists:
		c.names("Artists", browse.Artists)
		return
	case catalog.TabPlaylists:
		c.names("Playlists", browse.Playlists)
		return
	}

	heading := string(f.Tab)
	switch f.Tab {
	case catalog.TabAlbumSongs:
		heading = "album " + f.SelectedAlbum
	case catalog.TabArtistSongs:
		heading = "artist " + f.SelectedArtist
	}
	if f.Query != "" {
		heading += fmt.Sprintf(" matching %q", f.Query)
	}
	c.printf("%s (%d)\n", heading, len(browse.Songs))

	if browse.FetchError != "" && len(browse.Songs) == 0 {
		c.printf("  could not load songs: %s\n", browse.FetchError)
		return
	}

	playing := snap.Playback.NowPlayingID
	for i, s := range browse.Songs {
		marker := " "
		if s.ID != "" && s.ID == playing {
			marker = "*"
		}
		line := s.Title
		if s.Singer != "" {
			line += " - " + s.Singer
		}
		if s.Album != "" {
			line += " [" + s.Album + "]"
		}
		c.printf("%s%3d. %s\n", marker, i+1, line)
	}
}

func (c *Console) names(heading string, names []string) {
	c.printf("%s (%d)\n", heading, len(names))
	for _, n := range names {
		c.printf("  %s\n", n)
	}
}

func (c *Console) play(_ context.Context, args []string, _ string) error {
	if len(args) == 0 {
		c.backend.Play()
		return nil
	}
	songs := c.backend.Snapshot().Browse.Songs
	i, err := songNumber(args, len(songs))
	if err != nil {
		return err
	}
	return c.backend.PlayIndex(i)
}

func (c *Console) seek(_ context.Context, args []string, _ string) error {
	if len(args) == 0 {
		return errors.New("usage: seek PERCENT")
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
	if err != nil {
		return fmt.Errorf("invalid position %q", args[0])
	}
	c.backend.Seek(pct)
	return nil
}

func (c *Console) volume(_ context.Context, args []string, _ string) error {
	if len(args) == 0 {
		c.printf("volume %d%%\n", percent(c.backend.Snapshot().Playback.Volume))
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
	if err != nil {
		return fmt.Errorf("invalid volume %q", args[0])
	}
	c.backend.SetVolume(v / 100)
	return nil
}

func (c *Console) status(context.Context, []string, string) error {
	snap := c.backend.Snapshot()
	st := snap.Playback
	c.printf("%s\n", describe(st))
	if snap.Auth.LoggedIn {
		c.printf("signed in as %s\n", snap.Auth.DisplayName)
	}
	return nil
}

func (c *Console) tab(_ context.Context, args []string, _ string) error {
	if len(args) == 0 {
		names := make([]string, len(catalog.Tabs))
		for i, t := range catalog.Tabs {
			names[i] = string(t)
		}
		c.printf("tabs: %s\n", strings.Join(names, ", "))
		return nil
	}
	if err := c.backend.SetTab(args[0]); err != nil {
		return err
	}
	c.show()
	return nil
}

func (c *Console) favorite(_ context.Context, args []string, _ string) error {
	song, err := c.songAt(args)
	if err != nil {
		return err
	}
	fav, err := c.backend.ToggleFavorite(song.ID)
	if err != nil {
		return err
	}
	if fav {
		c.printf("added %s to favorites\n", song.Title)
	} else {
		c.printf("removed %s from favorites\n", song.Title)
	}
	return nil
}

func (c *Console) download(ctx context.Context, args []string, _ string) error {
	song, err := c.songAt(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	c.printf("downloading %s...\n", song.Title)
	path, err := c.backend.Download(ctx, song.ID)
	if err != nil {
		return err
	}
	c.printf("saved %s\n", path)
	return nil
}

func (c *Console) refresh(ctx context.Context, _ []string, _ string) error {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()
	if err := c.backend.Refresh(ctx); err != nil {
		return err
	}
	c.printf("%d songs\n", c.backend.Snapshot().Browse.SongCount)
	return nil
}

func (c *Console) login(ctx context.Context, args []string, _ string) error {
	if len(args) == 0 {
		return errors.New("usage: login EMAIL [PASSWORD]")
	}
	email := args[0]

	var password string
	switch {
	case len(args) > 1:
		password = args[1]
	case c.password != nil:
		p, err := c.password("password: ")
		if err != nil {
			return err
		}
		password = p
	default:
		return errors.New("usage: login EMAIL PASSWORD")
	}

	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()
	if err := c.backend.Login(ctx, email, password); err != nil {
		return err
	}
	c.printf("welcome %s\n", c.backend.Snapshot().Auth.DisplayName)
	return nil
}

func (c *Console) logout(context.Context, []string, string) error {
	if err := c.backend.Logout(); err != nil {
		return err
	}
	c.printf("signed out\n")
	return nil
}

// describe renders the playback state on one line.
func describe(st player.State) string {
	if st.NowPlayingID == "" {
		return "nothing playing"
	}
	title := st.Title
	if st.Singer != "" {
		title += " - " + st.Singer
	}
	vol := fmt.Sprintf("vol %d%%", percent(st.Volume))
	if st.Muted {
		vol = "muted"
	}
	return fmt.Sprintf("[%s] %s %s/%s %s", st.Status, title, clock(st.Progress), clock(st.Duration), vol)
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

func clock(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "0:00"
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// prompt shows the current tab and what is playing.
func (c *Console) prompt() string {
	snap := c.backend.Snapshot()
	p := string(snap.Browse.Filter.Tab)
	if snap.Playback.IsPlaying && snap.Playback.Title != "" {
		p += " ♪ " + snap.Playback.Title
	}
	return p + " > "
}

func (c *Console) completer() *readline.PrefixCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(c.commands))
	for _, cmd := range c.commands {
		switch cmd.name {
		case "tab":
			tabs := make([]readline.PrefixCompleterInterface, len(catalog.Tabs))
			for i, t := range catalog.Tabs {
				tabs[i] = readline.PcItem(string(t))
			}
			items = append(items, readline.PcItem(cmd.name, tabs...))
		case "album":
			items = append(items, readline.PcItem(cmd.name, readline.PcItemDynamic(func(string) []string {
				return c.backend.Snapshot().Browse.Albums
			})))
		case "artist":
			items = append(items, readline.PcItem(cmd.name, readline.PcItemDynamic(func(string) []string {
				return c.backend.Snapshot().Browse.Artists
			})))
		case "playlist":
			items = append(items, readline.PcItem(cmd.name, readline.PcItemDynamic(func(string) []string {
				return c.backend.Snapshot().Browse.Playlists
			})))
		default:
			items = append(items, readline.PcItem(cmd.name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

// Run reads commands until quit, EOF, or ctx is cancelled.
func Run(ctx context.Context, backend Backend) error {
	var rl *readline.Instance
	c := New(backend, nil, func(prompt string) (string, error) {
		b, err := rl.ReadPassword(prompt)
		return string(b), err
	})

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		AutoComplete:    c.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()
	c.out = rl.Stdout()

	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	c.printf("Type help for commands.\n")
	for {
		rl.SetPrompt(c.prompt())
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		quit, err := c.Execute(ctx, line)
		if err != nil {
			log.Debug().Err(err).Str("line", line).Msg("Command failed")
			c.printf("error: %s\n", err)
		}
		if quit {
			return nil
		}
	}
}
