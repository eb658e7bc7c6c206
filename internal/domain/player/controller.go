package player

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
)

// ErrMissingID is returned when selecting a song without a stable id.
var ErrMissingID = catalog.ErrMissingID

// DefaultProbeTimeout bounds a single address validation.
const DefaultProbeTimeout = 10 * time.Second

// QueueSource supplies the lists Next and Prev walk over.
type QueueSource interface {
	DisplayedList() []catalog.Song
	Catalog() []catalog.Song
}

// Option configures a Controller.
type Option func(*Controller)

// WithBaseURL sets the asset base used to resolve relative song sources.
func WithBaseURL(base string) Option {
	return func(c *Controller) {
		c.baseURL = base
	}
}

// WithContentTypePolicy replaces the probe content-type check.
func WithContentTypePolicy(policy ContentTypePolicy) Option {
	return func(c *Controller) {
		c.accept = policy
	}
}

// WithProbeTimeout sets the timeout of a single address validation.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.probeTimeout = d
	}
}

// WithVolume sets the initial volume.
func WithVolume(v float64) Option {
	return func(c *Controller) {
		c.state.Volume = clampVolume(v)
	}
}

// Controller owns the now-playing slot and is the only component allowed to
// drive the sink. It is safe for concurrent access.
type Controller struct {
	mu    sync.Mutex
	state State
	song  catalog.Song

	// generation increments on every selection or stop; a validation result
	// only applies while its generation is still current.
	generation uint64
	validating bool

	sink         Sink
	prober       Prober
	queue        QueueSource
	baseURL      string
	accept       ContentTypePolicy
	probeTimeout time.Duration

	ctx         context.Context
	cancel      context.CancelFunc
	inflight    sync.WaitGroup
	unsubscribe func()

	listenersMu  sync.Mutex
	listeners    map[int]func(State)
	nextListener int
}

// NewController creates a controller bound to sink and subscribes to its
// events until Close is called.
func NewController(sink Sink, prober Prober, queue QueueSource, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		state:        NewState(),
		sink:         sink,
		prober:       prober,
		queue:        queue,
		accept:       StrictAudioContentType,
		probeTimeout: DefaultProbeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		listeners:    make(map[int]func(State)),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.unsubscribe = sink.Subscribe(c.handleEvent)
	return c
}

// Close detaches from the sink and waits for outstanding validations.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.cancel()
	c.inflight.Wait()
}

// Wait blocks until every outstanding address validation has finished.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// State returns a snapshot of the playback state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to receive a snapshot after every state change.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn

	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) notify(s State) {
	c.listenersMu.Lock()
	fns := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// commit releases the lock and publishes the resulting state.
func (c *Controller) commit() {
	s := c.state
	c.mu.Unlock()
	c.notify(s)
}

// SelectSong makes song the now-playing song and requests playback.
// Resolution and validation continue in the background.
func (c *Controller) SelectSong(song catalog.Song) error {
	if song.ID == "" {
		return ErrMissingID
	}

	log.Info().Str("id", song.ID).Str("title", song.Title).Msg("SelectSong")

	c.mu.Lock()
	c.selectLocked(song)
	c.commit()
	return nil
}

func (c *Controller) selectLocked(song catalog.Song) {
	c.song = song
	c.state.NowPlayingID = song.ID
	c.state.Title = song.Title
	c.state.Singer = song.Singer
	c.state.Address = ""
	c.state.Status = StatusResolving
	c.state.IsPlaying = true
	c.state.Progress = 0
	c.state.Duration = 0
	c.validateLocked()
}

// validateLocked resolves the current song and starts an asynchronous probe.
func (c *Controller) validateLocked() {
	c.generation++
	c.validating = false

	address, ok := ResolveAddress(c.song, c.baseURL)
	if !ok {
		log.Warn().Str("id", c.song.ID).Msg("No playable address for song")
		c.state.IsPlaying = false
		c.releaseSinkLocked()
		return
	}
	c.state.Address = address

	c.validating = true
	gen := c.generation
	id := c.song.ID

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.finishValidation(gen, id, address, c.probe(address))
	}()
}

// probe checks that address serves audio. Failures are logged, not returned.
func (c *Controller) probe(address string) bool {
	ctx, cancel := context.WithTimeout(c.ctx, c.probeTimeout)
	defer cancel()

	log.Debug().Str("address", address).Msg("Validating audio address")

	res, err := c.prober.Probe(ctx, address)
	if err != nil {
		log.Warn().Err(err).Str("address", address).Msg("Audio probe request failed")
		return false
	}
	if !res.OK() || !c.accept(res.ContentType) {
		log.Warn().
			Int("status", res.StatusCode).
			Str("contentType", res.ContentType).
			Str("address", address).
			Msg("Audio validation failed")
		return false
	}
	return true
}

func (c *Controller) finishValidation(gen uint64, id, address string, ok bool) {
	c.mu.Lock()

	if gen != c.generation || id != c.state.NowPlayingID {
		log.Debug().Str("id", id).Msg("Discarding stale validation result")
		c.mu.Unlock()
		return
	}
	c.validating = false

	if !ok {
		c.state.IsPlaying = false
		c.releaseSinkLocked()
		c.commit()
		return
	}

	if c.sink.Source() != address {
		if err := c.sink.Load(c.ctx, address); err != nil {
			log.Warn().Err(err).Str("address", address).Msg("Sink failed to load source")
			c.state.IsPlaying = false
			c.releaseSinkLocked()
			c.commit()
			return
		}
	}
	c.state.Status = StatusReady
	c.applyVolumeLocked()

	if c.state.IsPlaying {
		c.startLocked()
	}
	c.commit()
}

// releaseSinkLocked stops the sink if it holds a source. A song that fails to
// resolve, validate or load must not leave the previous one audible.
func (c *Controller) releaseSinkLocked() {
	if c.sink.Source() == "" {
		return
	}
	if err := c.sink.Stop(c.ctx); err != nil {
		log.Warn().Err(err).Msg("Sink stop failed")
	}
}

// startLocked asks the sink to play; a refusal is recovered here.
func (c *Controller) startLocked() {
	if err := c.sink.Play(c.ctx); err != nil {
		log.Warn().Err(err).Str("id", c.state.NowPlayingID).Msg("Play prevented")
		c.state.IsPlaying = false
		if c.state.Status == StatusPlaying {
			c.state.Status = StatusPaused
		}
		return
	}
	c.state.Status = StatusPlaying
}

// Play resumes or starts playback of the now-playing song.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.state.NowPlayingID == "" {
		c.mu.Unlock()
		return
	}

	log.Info().Str("id", c.state.NowPlayingID).Msg("Play")
	c.state.IsPlaying = true

	switch {
	case c.state.Status.Loaded():
		c.startLocked()
	case !c.validating:
		// A previous attempt failed; try again.
		c.validateLocked()
	}
	c.commit()
}

// Pause pauses playback. It is a no-op when already paused.
func (c *Controller) Pause() {
	c.mu.Lock()
	if !c.state.IsPlaying {
		c.mu.Unlock()
		return
	}

	log.Info().Str("id", c.state.NowPlayingID).Msg("Pause")
	c.state.IsPlaying = false

	if c.state.Status == StatusPlaying {
		if err := c.sink.Pause(c.ctx); err != nil {
			log.Warn().Err(err).Msg("Sink pause failed")
		}
		c.state.Status = StatusPaused
	}
	c.commit()
}

// Toggle switches between playing and paused.
func (c *Controller) Toggle() {
	if c.State().IsPlaying {
		c.Pause()
		return
	}
	c.Play()
}

// Seek jumps to percent (0-100) of the track. It is a no-op while the
// duration is unknown.
func (c *Controller) Seek(percent float64) {
	c.mu.Lock()
	if c.state.Duration <= 0 || !c.state.Status.Loaded() {
		c.mu.Unlock()
		return
	}

	if math.IsNaN(percent) {
		c.mu.Unlock()
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	target := percent / 100 * c.state.Duration

	log.Info().Float64("percent", percent).Float64("seconds", target).Msg("Seek")
	if err := c.sink.Seek(c.ctx, target); err != nil {
		log.Warn().Err(err).Msg("Sink seek failed")
	}
	c.state.Progress = target
	c.commit()
}

// Next advances to the following song of the current list, wrapping around.
func (c *Controller) Next() {
	log.Info().Msg("Next")
	c.advance(1)
}

// Prev moves to the preceding song of the current list, wrapping around.
func (c *Controller) Prev() {
	log.Info().Msg("Previous")
	c.advance(-1)
}

// advance walks the displayed list, or the catalog when nothing is displayed.
func (c *Controller) advance(step int) {
	list := c.queue.DisplayedList()
	if len(list) == 0 {
		list = c.queue.Catalog()
	}

	c.mu.Lock()
	if len(list) == 0 {
		c.stopLocked()
		c.commit()
		return
	}

	target := 0
	if idx := catalog.IndexOf(list, c.state.NowPlayingID); idx >= 0 {
		target = (idx + step + len(list)) % len(list)
	}
	c.selectLocked(list[target])
	c.commit()
}

// Stop clears the now-playing song and returns to idle.
func (c *Controller) Stop() {
	log.Info().Msg("Stop")
	c.mu.Lock()
	c.stopLocked()
	c.commit()
}

func (c *Controller) stopLocked() {
	c.generation++
	c.validating = false
	c.song = catalog.Song{}
	c.releaseSinkLocked()

	volume, muted := c.state.Volume, c.state.Muted
	c.state = NewState()
	c.state.Volume = volume
	c.state.Muted = muted
}

// SetVolume sets the volume in [0,1].
func (c *Controller) SetVolume(v float64) {
	c.mu.Lock()
	c.state.Volume = clampVolume(v)
	log.Info().Float64("volume", c.state.Volume).Msg("SetVolume")
	c.applyVolumeLocked()
	c.commit()
}

// SetMuted mutes or unmutes the output.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.state.Muted = muted
	log.Info().Bool("muted", muted).Msg("SetMuted")
	c.applyVolumeLocked()
	c.commit()
}

// ToggleMute flips the mute flag.
func (c *Controller) ToggleMute() {
	c.SetMuted(!c.State().Muted)
}

func (c *Controller) applyVolumeLocked() {
	if err := c.sink.SetVolume(c.ctx, c.state.EffectiveVolume()); err != nil {
		log.Warn().Err(err).Msg("Sink volume change failed")
	}
}

// handleEvent applies sink events for the currently loaded source.
func (c *Controller) handleEvent(ev Event) {
	c.mu.Lock()
	if !c.state.Status.Loaded() || ev.Source != c.state.Address {
		c.mu.Unlock()
		return
	}

	switch ev.Kind {
	case EventTimeUpdate:
		if ev.Position >= 0 {
			c.state.Progress = ev.Position
		}
		if ev.Duration > 0 {
			c.state.Duration = ev.Duration
		}
		c.commit()
	case EventDurationChange:
		if ev.Duration >= 0 {
			c.state.Duration = ev.Duration
		}
		c.commit()
	case EventEnded:
		c.mu.Unlock()
		log.Debug().Str("address", ev.Source).Msg("Track ended, advancing")
		c.Next()
	default:
		c.mu.Unlock()
	}
}
