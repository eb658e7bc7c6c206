package mpd

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

// DefaultPollInterval is how often playback position is sampled.
const DefaultPollInterval = 500 * time.Millisecond

// Daemon is the subset of Client the sink drives.
type Daemon interface {
	Replace(uri string) error
	Play(pos int) error
	Pause(pause bool) error
	Stop() error
	Seek(pos int) error
	SetVolume(vol int) error
	Status() (Status, error)
	Watch(ctx context.Context, subsystems ...string) (<-chan string, error)
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithPollInterval sets the position sampling interval.
func WithPollInterval(d time.Duration) SinkOption {
	return func(s *Sink) {
		s.pollInterval = d
	}
}

// Sink plays a single stream URL through MPD. The MPD queue holds at most the
// current song.
type Sink struct {
	daemon       Daemon
	pollInterval time.Duration

	mu       sync.Mutex
	source   string
	started  bool // Play(0) was issued for the current source
	playing  bool // playback was requested and not paused or finished
	duration float64

	handlersMu  sync.Mutex
	handlers    map[int]func(player.Event)
	nextHandler int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSink creates a sink driving daemon. Call Start to begin event delivery.
func NewSink(daemon Daemon, opts ...SinkOption) *Sink {
	s := &Sink{
		daemon:       daemon,
		pollInterval: DefaultPollInterval,
		handlers:     make(map[int]func(player.Event)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start subscribes to MPD player changes and starts position polling.
func (s *Sink) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	changes, err := s.daemon.Watch(ctx, "player")
	if err != nil {
		cancel()
		return err
	}
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for range changes {
			s.checkEnded()
		}
	}()
	go func() {
		defer s.wg.Done()
		s.poll(ctx)
	}()

	log.Info().Dur("pollInterval", s.pollInterval).Msg("MPD sink started")
	return nil
}

// Close stops event delivery.
func (s *Sink) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Source implements player.Sink.
func (s *Sink) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Load implements player.Sink.
func (s *Sink) Load(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playing = false
	s.started = false
	s.duration = 0
	if err := s.daemon.Replace(address); err != nil {
		s.source = ""
		return err
	}
	s.source = address

	log.Debug().Str("address", address).Msg("MPD source loaded")
	return nil
}

// Play implements player.Sink.
func (s *Sink) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.started {
		err = s.daemon.Pause(false)
	} else {
		err = s.daemon.Play(0)
	}
	if err != nil {
		return err
	}
	s.started = true
	s.playing = true
	return nil
}

// Pause implements player.Sink.
func (s *Sink) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.playing = false
	return s.daemon.Pause(true)
}

// Seek implements player.Sink.
func (s *Sink) Seek(ctx context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	return s.daemon.Seek(int(math.Round(seconds)))
}

// SetVolume implements player.Sink.
func (s *Sink) SetVolume(ctx context.Context, volume float64) error {
	return s.daemon.SetVolume(int(math.Round(volume * 100)))
}

// Stop implements player.Sink.
func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source = ""
	s.started = false
	s.playing = false
	s.duration = 0
	return s.daemon.Stop()
}

// Subscribe implements player.Sink.
func (s *Sink) Subscribe(handler func(player.Event)) func() {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	id := s.nextHandler
	s.nextHandler++
	s.handlers[id] = handler

	return func() {
		s.handlersMu.Lock()
		defer s.handlersMu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *Sink) emit(ev player.Event) {
	s.handlersMu.Lock()
	fns := make([]func(player.Event), 0, len(s.handlers))
	for _, fn := range s.handlers {
		fns = append(fns, fn)
	}
	s.handlersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// checkEnded reports the end of the track when MPD stopped on its own while
// playback was requested.
func (s *Sink) checkEnded() {
	status, err := s.daemon.Status()
	if err != nil {
		log.Warn().Err(err).Msg("MPD status failed")
		return
	}

	s.mu.Lock()
	if status.State != "stop" || !s.playing || s.source == "" {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.started = false
	source := s.source
	s.mu.Unlock()

	log.Debug().Str("address", source).Msg("MPD playback finished")
	s.emit(player.Event{Kind: player.EventEnded, Source: source})
}

func (s *Sink) poll(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

// sample emits duration and position updates for the loaded source.
func (s *Sink) sample() {
	s.mu.Lock()
	source, started := s.source, s.started
	s.mu.Unlock()
	if source == "" || !started {
		return
	}

	status, err := s.daemon.Status()
	if err != nil || status.State == "stop" {
		return
	}

	s.mu.Lock()
	if s.source != source {
		s.mu.Unlock()
		return
	}
	durationChanged := status.Duration > 0 && status.Duration != s.duration
	if durationChanged {
		s.duration = status.Duration
	}
	s.mu.Unlock()

	if durationChanged {
		s.emit(player.Event{Kind: player.EventDurationChange, Source: source, Duration: status.Duration})
	}
	s.emit(player.Event{
		Kind:     player.EventTimeUpdate,
		Source:   source,
		Position: status.Elapsed,
		Duration: status.Duration,
	})
}
