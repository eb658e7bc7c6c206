package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
	"github.com/edumarques81/stellar-cloudplayer/internal/version"
)

// snapshotter is the part of the application the REST endpoints read.
type snapshotter interface {
	Snapshot() app.Snapshot
}

// newMux wires the HTTP endpoints. health reports the audio sink; staticDir
// may be empty.
func newMux(a snapshotter, socket http.Handler, sinkName string, health func() error, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	// Socket.io endpoint
	mux.Handle("/socket.io/", socket)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "sink": sinkName, "error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok", "sink": sinkName})
	})

	// Version endpoint
	mux.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(version.GetInfo())
	})

	// State endpoint (REST fallback)
	mux.HandleFunc("/api/v1/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.Snapshot()); err != nil {
			log.Error().Err(err).Msg("Failed to encode state")
		}
	})

	// Serve static files if directory specified (SPA mode)
	if staticDir != "" {
		log.Info().Str("dir", staticDir).Msg("Serving static files")
		fs := http.FileServer(http.Dir(staticDir))
		index := filepath.Join(staticDir, "index.html")
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" {
				http.ServeFile(w, r, index)
				return
			}
			if _, err := os.Stat(filepath.Join(staticDir, filepath.FromSlash(r.URL.Path))); os.IsNotExist(err) {
				// For SPA routing, serve index.html for non-existing paths
				http.ServeFile(w, r, index)
				return
			}
			fs.ServeHTTP(w, r)
		})
	}

	return mux
}
