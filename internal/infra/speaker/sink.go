// Package speaker plays songs on the local sound card.
package speaker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

const (
	// DefaultSampleRate is the output device rate.
	DefaultSampleRate = beep.SampleRate(44100)

	// DefaultFetchTimeout bounds fetching one song.
	DefaultFetchTimeout = 2 * time.Minute

	// DefaultPollInterval is how often playback position is reported.
	DefaultPollInterval = 250 * time.Millisecond

	resampleQuality = 4
)

// Option configures a Sink.
type Option func(*Sink)

// WithOutput replaces the sound card output.
func WithOutput(out Output) Option {
	return func(s *Sink) {
		s.out = out
	}
}

// WithHTTPClient sets the client used to fetch audio.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Sink) {
		s.httpClient = client
	}
}

// WithPollInterval sets the position reporting interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Sink) {
		s.pollInterval = d
	}
}

// track is one decoded source bound to the output.
type track struct {
	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	volume *effects.Volume
}

// Sink fetches a song, decodes it and plays it on the output. It holds at
// most one track.
type Sink struct {
	out          Output
	httpClient   *http.Client
	pollInterval time.Duration

	mu       sync.Mutex
	source   string
	gen      uint64 // bumps on every Load and Stop
	cur      *track
	wantPlay bool
	started  bool
	level    float64

	handlersMu  sync.Mutex
	handlers    map[int]func(player.Event)
	nextHandler int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSink creates a speaker sink. Call Start to begin position reporting.
func NewSink(opts ...Option) *Sink {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		out: NewSpeakerOutput(DefaultSampleRate),
		httpClient: &http.Client{
			Timeout: DefaultFetchTimeout,
		},
		pollInterval: DefaultPollInterval,
		level:        player.DefaultVolume,
		handlers:     make(map[int]func(player.Event)),
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins position reporting.
func (s *Sink) Start(ctx context.Context) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.sample()
			}
		}
	}()

	log.Info().Int("sampleRate", int(s.out.SampleRate())).Msg("Speaker sink started")
	return nil
}

// Close stops playback and background work.
func (s *Sink) Close() {
	s.Stop(context.Background())
	s.cancel()
	s.wg.Wait()
}

// Source implements player.Sink.
func (s *Sink) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Load implements player.Sink. Fetching and decoding continue in the
// background; Play before they finish starts the track once it is ready.
func (s *Sink) Load(ctx context.Context, address string) error {
	s.mu.Lock()
	s.releaseLocked()
	s.gen++
	gen := s.gen
	s.source = address
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fetch(gen, address)
	}()
	return nil
}

func (s *Sink) fetch(gen uint64, address string) {
	log.Debug().Str("address", address).Msg("Fetching audio")

	stream, format, err := s.open(address)
	if err != nil {
		log.Error().Err(err).Str("address", address).Msg("Failed to open audio")
		return
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		stream.Close()
		return
	}

	vol := &effects.Volume{Base: 2}
	var streamer beep.Streamer = stream
	if rate := s.out.SampleRate(); format.SampleRate != rate {
		streamer = beep.Resample(resampleQuality, format.SampleRate, rate, stream)
	}
	vol.Streamer = streamer
	s.cur = &track{
		stream: stream,
		format: format,
		ctrl:   &beep.Ctrl{Streamer: vol, Paused: !s.wantPlay},
		volume: vol,
	}
	setLevel(vol, s.level)

	var startErr error
	if s.wantPlay {
		startErr = s.startLocked(gen)
	}
	duration := format.SampleRate.D(stream.Len()).Seconds()
	s.mu.Unlock()

	if startErr != nil {
		log.Error().Err(startErr).Msg("Speaker output unavailable")
	}
	s.emit(player.Event{Kind: player.EventDurationChange, Source: address, Duration: duration})
}

// open fetches address and decodes it by content type or extension.
func (s *Sink) open(address string) (beep.StreamSeekCloser, beep.Format, error) {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, address, nil)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, beep.Format{}, fmt.Errorf("fetch audio: unexpected status %d", resp.StatusCode)
	}

	// The decoders need a seekable reader.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("read audio: %w", err)
	}
	body := &memFile{Reader: bytes.NewReader(data)}

	if isWAV(resp.Header.Get("Content-Type"), address) {
		return wav.Decode(body)
	}
	return mp3.Decode(body)
}

func isWAV(contentType, address string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "wav") || strings.Contains(ct, "wave") {
		return true
	}
	return strings.EqualFold(path.Ext(strings.SplitN(address, "?", 2)[0]), ".wav")
}

// startLocked hands the current track to the output.
func (s *Sink) startLocked(gen uint64) error {
	if err := s.out.Init(); err != nil {
		return err
	}

	s.out.Lock()
	s.cur.ctrl.Paused = false
	s.out.Unlock()

	s.out.Play(beep.Seq(s.cur.ctrl, beep.Callback(func() {
		// Runs on the output goroutine with the output locked.
		go s.finished(gen)
	})))
	s.started = true
	return nil
}

func (s *Sink) finished(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.wantPlay = false
	source := s.source
	s.mu.Unlock()

	log.Debug().Str("address", source).Msg("Speaker playback finished")
	s.emit(player.Event{Kind: player.EventEnded, Source: source})
}

// Play implements player.Sink.
func (s *Sink) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wantPlay = true
	switch {
	case s.cur == nil:
		return nil
	case !s.started:
		if s.cur.stream.Position() >= s.cur.stream.Len() {
			s.out.Lock()
			err := s.cur.stream.Seek(0)
			s.out.Unlock()
			if err != nil {
				return err
			}
		}
		return s.startLocked(s.gen)
	default:
		s.out.Lock()
		s.cur.ctrl.Paused = false
		s.out.Unlock()
		return nil
	}
}

// Pause implements player.Sink.
func (s *Sink) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wantPlay = false
	if s.cur != nil {
		s.out.Lock()
		s.cur.ctrl.Paused = true
		s.out.Unlock()
	}
	return nil
}

// Seek implements player.Sink.
func (s *Sink) Seek(ctx context.Context, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur == nil {
		return nil
	}

	pos := s.cur.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if pos < 0 {
		pos = 0
	}
	if last := s.cur.stream.Len() - 1; pos > last {
		pos = max(last, 0)
	}

	s.out.Lock()
	defer s.out.Unlock()
	return s.cur.stream.Seek(pos)
}

// SetVolume implements player.Sink.
func (s *Sink) SetVolume(ctx context.Context, volume float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.level = volume
	if s.cur != nil {
		s.out.Lock()
		setLevel(s.cur.volume, volume)
		s.out.Unlock()
	}
	return nil
}

// setLevel maps a linear 0..1 level onto a base-2 volume effect.
func setLevel(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		v.Volume = 0
		return
	}
	v.Silent = false
	v.Volume = math.Log2(math.Min(level, 1))
}

// Stop implements player.Sink.
func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.releaseLocked()
	s.source = ""
	return nil
}

// releaseLocked detaches the current track from the output.
func (s *Sink) releaseLocked() {
	s.wantPlay = false
	if s.cur == nil {
		return
	}
	if s.started {
		s.out.Clear()
	}
	s.cur.stream.Close()
	s.cur = nil
	s.started = false
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

func (s *Sink) sample() {
	s.mu.Lock()
	if s.cur == nil || !s.started {
		s.mu.Unlock()
		return
	}
	s.out.Lock()
	pos := s.cur.format.SampleRate.D(s.cur.stream.Position()).Seconds()
	length := s.cur.format.SampleRate.D(s.cur.stream.Len()).Seconds()
	s.out.Unlock()
	source := s.source
	s.mu.Unlock()

	s.emit(player.Event{Kind: player.EventTimeUpdate, Source: source, Position: pos, Duration: length})
}

// memFile is an in-memory ReadSeekCloser.
type memFile struct {
	*bytes.Reader
}

func (memFile) Close() error { return nil }
