// Package main is the entry point for the Stellar cloud player.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
	"github.com/edumarques81/stellar-cloudplayer/internal/console"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/account"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/library"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
	"github.com/edumarques81/stellar-cloudplayer/internal/infra/api"
	"github.com/edumarques81/stellar-cloudplayer/internal/infra/mpd"
	"github.com/edumarques81/stellar-cloudplayer/internal/infra/speaker"
	"github.com/edumarques81/stellar-cloudplayer/internal/infra/store"
	"github.com/edumarques81/stellar-cloudplayer/internal/transport/socketio"
	"github.com/edumarques81/stellar-cloudplayer/internal/tui"
	"github.com/edumarques81/stellar-cloudplayer/internal/version"
)

const defaultAPIBase = "http://localhost:5000"

// audioSink is a player.Sink with a lifecycle.
type audioSink interface {
	player.Sink
	Start(ctx context.Context) error
	Close()
}

func main() {
	// Command line flags
	port := flag.String("port", "3001", "HTTP server port")
	apiBase := flag.String("api-base", envOr("BACKEND_URL", defaultAPIBase), "Music API base URL")
	sinkName := flag.String("sink", "mpd", "Audio output: mpd or speaker")
	mpdHost := flag.String("mpd-host", "localhost", "MPD host")
	mpdPort := flag.Int("mpd-port", 6600, "MPD port")
	mpdPassword := flag.String("mpd-password", "", "MPD password")
	dataDir := flag.String("data-dir", defaultDataDir(), "Directory for the settings database")
	downloadDir := flag.String("download-dir", "", "Directory for downloaded songs (default <data-dir>/downloads)")
	lenientProbe := flag.Bool("lenient-probe", false, "Also accept empty and application/octet-stream content types")
	maxClients := flag.Int("max-clients", socketio.DefaultMaxExternalClients, "Maximum remote controllers (0 = unlimited)")
	staticDir := flag.String("static", "", "Directory to serve static files from (optional)")
	ui := flag.String("ui", "server", "Foreground interface: server, tui or console")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *downloadDir == "" {
		*downloadDir = filepath.Join(*dataDir, "downloads")
	}

	switch *ui {
	case "server", "tui", "console":
	default:
		fmt.Fprintf(os.Stderr, "unknown -ui %q (want server, tui or console)\n", *ui)
		os.Exit(2)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create data dir: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logFile := setupLogging(*debug, *ui, *dataDir)
	if logFile != nil {
		defer logFile.Close()
	}

	// Print startup banner
	versionInfo := version.GetInfo()
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", versionInfo.String())
	log.Info().Msg("  Cloud Music Player")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", *port).
		Str("api_base", *apiBase).
		Str("sink", *sinkName).
		Str("mpd_host", *mpdHost).
		Int("mpd_port", *mpdPort).
		Bool("password_set", *mpdPassword != "").
		Str("data_dir", *dataDir).
		Str("download_dir", *downloadDir).
		Bool("lenient_probe", *lenientProbe).
		Int("max_clients", *maxClients).
		Str("ui", *ui).
		Msg("Configuration")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence
	db := store.NewDB(filepath.Join(*dataDir, "cloudplayer.db"))
	if err := db.Open(); err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings database")
	}
	defer db.Close()

	// API client
	client := newAPIClient(*apiBase, versionInfo)
	defer client.Close()

	// Audio sink
	sink, health, err := newSink(*sinkName, *mpdHost, *mpdPort, *mpdPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create audio sink")
	}
	if err := sink.Start(ctx); err != nil {
		log.Fatal().Err(err).Str("sink", *sinkName).Msg("Failed to start audio sink")
	}
	defer sink.Close()

	// Services
	lib := library.NewService(db, library.NewDownloader(*downloadDir, client.BaseURL()))
	acct := account.NewService(client, db, lib)

	opts := []player.Option{player.WithBaseURL(client.BaseURL())}
	if *lenientProbe {
		opts = append(opts, player.WithContentTypePolicy(player.LenientAudioContentType))
	}
	application := app.New(client, lib, acct, sink, client, opts...)
	defer application.Close()

	if err := application.Init(); err != nil {
		log.Error().Err(err).Msg("Failed to restore saved session")
	}

	// The initial fetch runs in the background; failures show in the view.
	go func() {
		if err := application.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial catalog fetch failed")
		}
	}()

	// Create Socket.io server
	socketServer, err := socketio.NewServer(application, socketio.WithMaxExternalClients(*maxClients))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Socket.io server")
	}
	defer socketServer.Close()

	// Start HTTP server
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      corsMiddleware(newMux(application, socketServer, *sinkName, health, *staticDir)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		log.Info().Msg("Shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	if *ui == "server" {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
		log.Info().Msg("Server stopped")
		return
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	if *ui == "tui" {
		err = tui.Run(ctx, application)
	} else {
		err = console.Run(ctx, application)
	}
	if err != nil {
		log.Error().Err(err).Str("ui", *ui).Msg("Interface error")
	}
	cancel()
	log.Info().Msg("Stopped")
}

// newAPIClient creates the catalog client identified by this build.
func newAPIClient(base string, info version.Info) *api.Client {
	return api.NewClient(base, api.WithUserAgent(info.UserAgent()))
}

// newSink creates the selected audio output and its health check.
func newSink(name, mpdHost string, mpdPort int, mpdPassword string) (audioSink, func() error, error) {
	switch name {
	case "mpd":
		mpdClient := mpd.NewClient(mpdHost, mpdPort, mpdPassword)
		if err := mpdClient.Connect(); err != nil {
			return nil, nil, fmt.Errorf("connect to MPD at %s: %w", mpdClient.Addr(), err)
		}
		if err := mpdClient.Ping(); err != nil {
			mpdClient.Close()
			return nil, nil, fmt.Errorf("MPD ping failed: %w", err)
		}
		log.Info().Str("addr", mpdClient.Addr()).Msg("MPD connection verified")
		return &mpdSink{Sink: mpd.NewSink(mpdClient), client: mpdClient}, mpdClient.Ping, nil
	case "speaker":
		return speaker.NewSink(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown sink %q", name)
}

// mpdSink closes the MPD connection together with the sink.
type mpdSink struct {
	*mpd.Sink
	client *mpd.Client
}

func (s *mpdSink) Close() {
	s.Sink.Close()
	if err := s.client.Close(); err != nil {
		log.Warn().Err(err).Msg("MPD close failed")
	}
}

// setupLogging configures the global logger. Full-screen and console
// interfaces own the terminal, so their logs go to a file in dataDir.
func setupLogging(debug bool, ui, dataDir string) *os.File {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var out io.Writer = os.Stderr
	var file *os.File
	if ui != "server" {
		f, err := os.OpenFile(filepath.Join(dataDir, "cloudplayer.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			file = f
			out = f
		}
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: file != nil})
	return file
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "stellar-cloudplayer")
	}
	return "data"
}
