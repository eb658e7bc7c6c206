package player

import (
	"context"
	"strings"
)

// EventKind identifies a playback-driven sink event.
type EventKind int

// Sink event kinds
const (
	EventTimeUpdate EventKind = iota
	EventDurationChange
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventTimeUpdate:
		return "timeupdate"
	case EventDurationChange:
		return "durationchange"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is reported by a Sink while a source is loaded.
// Source is the address the event belongs to.
type Event struct {
	Kind     EventKind
	Source   string
	Position float64 // seconds
	Duration float64 // seconds
}

// Sink is the single audio output the controller drives.
// Implementations deliver events from their own goroutines and never invoke
// the subscribed handler from inside one of these methods.
type Sink interface {
	// Source returns the currently loaded address, or "".
	Source() string
	// Load replaces the source and starts buffering without playing.
	Load(ctx context.Context, address string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	// Seek jumps to the given position in seconds.
	Seek(ctx context.Context, seconds float64) error
	// SetVolume sets the output volume in [0,1].
	SetVolume(ctx context.Context, volume float64) error
	// Stop halts playback and clears the source.
	Stop(ctx context.Context) error
	// Subscribe registers an event handler and returns its unsubscribe func.
	Subscribe(handler func(Event)) (unsubscribe func())
}

// ProbeResult is the outcome of a metadata-only request to an address.
type ProbeResult struct {
	StatusCode  int
	ContentType string
}

// OK reports whether the status code is 2xx.
func (r ProbeResult) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Prober issues metadata-only requests to audio addresses.
type Prober interface {
	Probe(ctx context.Context, address string) (ProbeResult, error)
}

// ContentTypePolicy decides whether a probed content type is playable.
type ContentTypePolicy func(contentType string) bool

// StrictAudioContentType accepts only content types starting with "audio".
func StrictAudioContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "audio")
}

// LenientAudioContentType also accepts a missing or generic binary content
// type, which some asset hosts send for audio files.
func LenientAudioContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return StrictAudioContentType(ct) || ct == "" || strings.HasPrefix(ct, "application/octet-stream")
}
