package socketio

import (
	"testing"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

func playingState() player.State {
	return player.State{
		Status:       player.StatusPlaying,
		NowPlayingID: "1",
		Title:        "Test Song",
		Singer:       "Test Artist",
		Address:      "http://api/uploads/a.mp3",
		IsPlaying:    true,
		Progress:     12.2,
		Duration:     300,
		Volume:       0.7,
	}
}

func TestIsStateSameBeforeFirstBroadcast(t *testing.T) {
	s := &Server{}
	if s.isStateSame(playingState()) {
		t.Error("nothing was broadcast yet")
	}
}

func TestIsStateSameSubSecondProgress(t *testing.T) {
	s := &Server{}
	s.saveLastState(playingState())

	next := playingState()
	next.Progress = 12.9
	if !s.isStateSame(next) {
		t.Error("progress within the same second should not rebroadcast")
	}

	next.Progress = 13.1
	if s.isStateSame(next) {
		t.Error("a new second should rebroadcast")
	}
}

func TestIsStateSameDetectsChanges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*player.State)
	}{
		{"volume", func(s *player.State) { s.Volume = 0.5 }},
		{"muted", func(s *player.State) { s.Muted = true }},
		{"paused", func(s *player.State) { s.IsPlaying = false; s.Status = player.StatusPaused }},
		{"song", func(s *player.State) { s.NowPlayingID = "2" }},
		{"duration", func(s *player.State) { s.Duration = 301 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := &Server{}
			s.saveLastState(playingState())

			changed := playingState()
			tc.mutate(&changed)
			if s.isStateSame(changed) {
				t.Errorf("%s change should be broadcast", tc.name)
			}
		})
	}
}
