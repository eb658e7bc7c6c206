// Package app holds the single application-state container the user
// interfaces drive: catalog view, library, account and playback controller.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/account"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/library"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

// ErrUnknownSong is returned when an id is in neither the catalog nor the
// library.
var ErrUnknownSong = errors.New("unknown song")

// Change identifies which part of the snapshot changed.
type Change int

// Change kinds
const (
	ChangeState Change = iota
	ChangeBrowse
	ChangeLibrary
	ChangeAuth
)

func (c Change) String() string {
	switch c {
	case ChangeState:
		return "state"
	case ChangeBrowse:
		return "browse"
	case ChangeLibrary:
		return "library"
	case ChangeAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Browse is the catalog view as rendered.
type Browse struct {
	catalog.Status
	Songs     []catalog.Song `json:"songs"`
	Albums    []string       `json:"albums"`
	Artists   []string       `json:"artists"`
	Playlists []string       `json:"playlists"`
}

// Library is the favorites and downloads sets.
type Library struct {
	Favorites []catalog.Song `json:"favorites"`
	Downloads []catalog.Song `json:"downloads"`
}

// Auth is the signed-in user.
type Auth struct {
	LoggedIn    bool            `json:"loggedIn"`
	DisplayName string          `json:"displayName,omitempty"`
	User        json.RawMessage `json:"user,omitempty"`
}

// Snapshot is the full application state.
type Snapshot struct {
	Browse   Browse       `json:"browse"`
	Playback player.State `json:"playback"`
	Library  Library      `json:"library"`
	Auth     Auth         `json:"auth"`
}

// App wires the domain services together. It is safe for concurrent use.
type App struct {
	view    *catalog.View
	library *library.Service
	account *account.Service
	player  *player.Controller

	unsubscribePlayer func()

	listenersMu  sync.Mutex
	listeners    map[int]func(Change)
	nextListener int
}

// New creates the container. The controller walks the displayed list of
// the view created here.
func New(fetcher catalog.Fetcher, lib *library.Service, acct *account.Service, sink player.Sink, prober player.Prober, opts ...player.Option) *App {
	a := &App{
		view:      catalog.NewView(fetcher),
		library:   lib,
		account:   acct,
		listeners: make(map[int]func(Change)),
	}
	a.player = player.NewController(sink, prober, a, opts...)
	a.unsubscribePlayer = a.player.Subscribe(func(player.State) {
		a.notify(ChangeState)
	})
	return a
}

// Close stops playback event handling.
func (a *App) Close() {
	a.unsubscribePlayer()
	a.player.Close()
}

// Player exposes the playback controller.
func (a *App) Player() *player.Controller {
	return a.player
}

// Init restores local state: the signed-in user and the library.
func (a *App) Init() error {
	if err := a.account.Load(); err != nil {
		return err
	}
	return a.library.Load()
}

// Refresh fetches the catalog. A failure is kept as the browse FetchError.
func (a *App) Refresh(ctx context.Context) error {
	a.notify(ChangeBrowse)
	err := a.view.Load(ctx)
	a.notify(ChangeBrowse)
	return err
}

// Subscribe registers fn for change notifications.
func (a *App) Subscribe(fn func(Change)) (unsubscribe func()) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()

	id := a.nextListener
	a.nextListener++
	a.listeners[id] = fn

	return func() {
		a.listenersMu.Lock()
		defer a.listenersMu.Unlock()
		delete(a.listeners, id)
	}
}

func (a *App) notify(c Change) {
	a.listenersMu.Lock()
	fns := make([]func(Change), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.listenersMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// DisplayedList implements player.QueueSource.
func (a *App) DisplayedList() []catalog.Song {
	return a.view.Displayed(a.library.Favorites(), a.library.Downloads())
}

// Catalog implements player.QueueSource.
func (a *App) Catalog() []catalog.Song {
	return a.view.Songs()
}

// Snapshot returns the current state of every part.
func (a *App) Snapshot() Snapshot {
	return Snapshot{
		Browse:   a.Browse(),
		Playback: a.player.State(),
		Library:  a.Library(),
		Auth:     a.Auth(),
	}
}

// Browse returns the rendered catalog view.
func (a *App) Browse() Browse {
	songs := a.view.Songs()
	return Browse{
		Status:    a.view.Status(),
		Songs:     a.DisplayedList(),
		Albums:    catalog.Albums(songs),
		Artists:   catalog.Artists(songs),
		Playlists: catalog.Playlists(),
	}
}

// Library returns the favorites and downloads sets.
func (a *App) Library() Library {
	return Library{
		Favorites: a.library.Favorites(),
		Downloads: a.library.Downloads(),
	}
}

// Auth returns the signed-in user.
func (a *App) Auth() Auth {
	return Auth{
		LoggedIn:    a.account.LoggedIn(),
		DisplayName: a.account.DisplayName(),
		User:        a.account.CurrentUser(),
	}
}

// PlayIndex selects the i-th song of the displayed list. An index out of
// range is ignored.
func (a *App) PlayIndex(i int) error {
	list := a.DisplayedList()
	if i < 0 || i >= len(list) {
		log.Debug().Int("index", i).Int("len", len(list)).Msg("PlayIndex out of range")
		return nil
	}
	return a.player.SelectSong(list[i])
}

// PlaySong selects the song with the given id.
func (a *App) PlaySong(id string) error {
	song, err := a.lookup(id)
	if err != nil {
		return err
	}
	return a.player.SelectSong(song)
}

// lookup finds id in the displayed list, the catalog or the library.
func (a *App) lookup(id string) (catalog.Song, error) {
	if id == "" {
		return catalog.Song{}, catalog.ErrMissingID
	}
	for _, list := range [][]catalog.Song{
		a.DisplayedList(),
		a.view.Songs(),
		a.library.Favorites(),
		a.library.Downloads(),
	} {
		if song, ok := catalog.Find(list, id); ok {
			return song, nil
		}
	}
	return catalog.Song{}, fmt.Errorf("%w: %s", ErrUnknownSong, id)
}

// Play resumes playback.
func (a *App) Play() { a.player.Play() }

// Pause pauses playback.
func (a *App) Pause() { a.player.Pause() }

// Toggle switches between playing and paused.
func (a *App) Toggle() { a.player.Toggle() }

// Next advances to the following song.
func (a *App) Next() { a.player.Next() }

// Prev moves to the preceding song.
func (a *App) Prev() { a.player.Prev() }

// Seek jumps to percent of the current track.
func (a *App) Seek(percent float64) { a.player.Seek(percent) }

// SetVolume sets the volume in [0,1].
func (a *App) SetVolume(v float64) { a.player.SetVolume(v) }

// SetMuted mutes or unmutes the output.
func (a *App) SetMuted(muted bool) { a.player.SetMuted(muted) }

// ToggleMute flips the mute flag.
func (a *App) ToggleMute() { a.player.ToggleMute() }

// SetTab switches the browse tab by name.
func (a *App) SetTab(name string) error {
	tab, ok := catalog.ParseTab(name)
	if !ok {
		return fmt.Errorf("unknown tab %q", name)
	}
	a.view.SetTab(tab)
	a.notify(ChangeBrowse)
	return nil
}

// Search sets the search text.
func (a *App) Search(query string) {
	a.view.SetQuery(query)
	a.notify(ChangeBrowse)
}

// OpenAlbum shows one album's songs.
func (a *App) OpenAlbum(album string) {
	a.view.OpenAlbum(album)
	a.notify(ChangeBrowse)
}

// OpenArtist shows one singer's songs.
func (a *App) OpenArtist(artist string) {
	a.view.OpenArtist(artist)
	a.notify(ChangeBrowse)
}

// OpenPlaylist opens a playlist.
func (a *App) OpenPlaylist(name string) {
	a.view.OpenPlaylist(name)
	a.notify(ChangeBrowse)
}

// Back leaves an album or artist song list.
func (a *App) Back() {
	a.view.Back()
	a.notify(ChangeBrowse)
}

// ToggleFavorite flips the favorite flag of a song and reports the result.
func (a *App) ToggleFavorite(id string) (bool, error) {
	song, err := a.lookup(id)
	if err != nil {
		return false, err
	}
	fav, err := a.library.ToggleFavorite(song)
	if err != nil {
		return fav, err
	}
	a.notify(ChangeLibrary)
	a.notify(ChangeBrowse)
	return fav, nil
}

// Download saves a song locally and records it in downloads.
func (a *App) Download(ctx context.Context, id string) (string, error) {
	song, err := a.lookup(id)
	if err != nil {
		return "", err
	}
	path, err := a.library.Download(ctx, song)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("Download failed")
		return "", err
	}
	a.notify(ChangeLibrary)
	a.notify(ChangeBrowse)
	return path, nil
}

// Login signs in.
func (a *App) Login(ctx context.Context, email, password string) error {
	if err := a.account.Login(ctx, email, password); err != nil {
		return err
	}
	a.notify(ChangeAuth)
	return nil
}

// Register creates an account.
func (a *App) Register(ctx context.Context, req account.Registration) (string, error) {
	return a.account.Register(ctx, req)
}

// ForgotPassword requests a reset code.
func (a *App) ForgotPassword(ctx context.Context, email string) (string, error) {
	return a.account.ForgotPassword(ctx, email)
}

// ResetPassword sets a new password.
func (a *App) ResetPassword(ctx context.Context, email, otp, newPassword string) (string, error) {
	return a.account.ResetPassword(ctx, email, otp, newPassword)
}

// Logout signs out and clears favorites and downloads. Playback continues.
func (a *App) Logout() error {
	if err := a.account.Logout(); err != nil {
		return err
	}
	a.notify(ChangeAuth)
	a.notify(ChangeLibrary)
	a.notify(ChangeBrowse)
	return nil
}

// SaveSettings persists the user and returns to the home tab.
func (a *App) SaveSettings(username string) error {
	if err := a.account.SaveSettings(username); err != nil {
		return err
	}
	a.view.SetTab(catalog.TabHome)
	a.notify(ChangeAuth)
	a.notify(ChangeBrowse)
	return nil
}
