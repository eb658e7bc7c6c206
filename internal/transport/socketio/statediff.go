package socketio

import (
	"math"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

// stateKey is the part of the playback state compared between broadcasts.
// Clients interpolate progress, so it is compared at whole-second resolution.
func stateKey(s player.State) player.State {
	s.Progress = math.Floor(s.Progress)
	return s
}

// isStateSame reports whether st matches the last broadcast state.
func (s *Server) isStateSame(st player.State) bool {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.hasLast && s.lastState == stateKey(st)
}

func (s *Server) saveLastState(st player.State) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	s.lastState = stateKey(st)
	s.hasLast = true
}
