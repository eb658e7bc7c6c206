// Package player provides the playback controller: the single now-playing
// slot, address resolution and validation, and transport control of a Sink.
package player

import "math"

// Status is the controller state.
type Status string

// Controller states
const (
	StatusIdle      Status = "idle"
	StatusResolving Status = "resolving"
	StatusReady     Status = "ready"
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
)

// Loaded reports whether a validated source is bound to the sink.
func (s Status) Loaded() bool {
	return s == StatusReady || s == StatusPlaying || s == StatusPaused
}

// DefaultVolume is the initial output volume.
const DefaultVolume = 0.7

// State is a snapshot of the playback state.
type State struct {
	Status       Status  `json:"status"`
	NowPlayingID string  `json:"nowPlayingId,omitempty"`
	Title        string  `json:"title,omitempty"`
	Singer       string  `json:"singer,omitempty"`
	Address      string  `json:"address,omitempty"`
	IsPlaying    bool    `json:"isPlaying"`
	Progress     float64 `json:"progress"` // seconds
	Duration     float64 `json:"duration"` // seconds
	Volume       float64 `json:"volume"`   // 0..1
	Muted        bool    `json:"muted"`
}

// NewState creates an idle state with default volume.
func NewState() State {
	return State{
		Status: StatusIdle,
		Volume: DefaultVolume,
	}
}

// EffectiveVolume is the volume actually applied to the sink.
func (s State) EffectiveVolume() float64 {
	if s.Muted {
		return 0
	}
	return s.Volume
}

// ProgressPercent returns progress as a rounded 0-100 value, 0 when the
// duration is unknown.
func (s State) ProgressPercent() int {
	if s.Duration <= 0 {
		return 0
	}
	return int(math.Round(s.Progress / s.Duration * 100))
}

// clampVolume limits v to [0,1].
func clampVolume(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
