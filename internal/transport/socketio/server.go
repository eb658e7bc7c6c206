// Package socketio provides the Socket.io server remote controllers use to
// drive the player and receive state pushes.
package socketio

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/stellar-cloudplayer/internal/app"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

const (
	// DefaultMaxExternalClients is the number of concurrent non-local controllers.
	DefaultMaxExternalClients = 4

	// DefaultDebounceWindow batches bursts of application changes.
	DefaultDebounceWindow = 50 * time.Millisecond

	// actionTimeout bounds network-backed actions started by a client.
	actionTimeout = 5 * time.Minute
)

// Push event names
const (
	EventPushState   = "pushState"
	EventPushBrowse  = "pushBrowse"
	EventPushLibrary = "pushLibrary"
	EventPushAuth    = "pushAuth"
	EventPushToast   = "pushToastMessage"
)

// Toast is a user-visible notification.
type Toast struct {
	Type    string `json:"type"` // success, error, warning
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Option configures a Server.
type Option func(*Server)

// WithMaxExternalClients sets the remote controller cap. Zero disables it.
func WithMaxExternalClients(n int) Option {
	return func(s *Server) {
		s.limiter = NewConnectionLimiter(n)
	}
}

// WithDebounceWindow sets the broadcast batching window.
func WithDebounceWindow(d time.Duration) Option {
	return func(s *Server) {
		s.debounceWindow = d
	}
}

// Server handles Socket.io connections and events.
type Server struct {
	io             *socket.Server
	app            *app.App
	limiter        *ConnectionLimiter
	debouncer      *BroadcastDebouncer
	debounceWindow time.Duration
	unsubscribe    func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	clients map[string]*socket.Socket

	lastMu    sync.Mutex
	lastState player.State
	hasLast   bool
}

// NewServer creates a Socket.io server bound to a. Changes in a are pushed
// to every connected client.
func NewServer(a *app.App, opts ...Option) (*Server, error) {
	ioOpts := socket.DefaultServerOptions()
	ioOpts.SetPingTimeout(20 * time.Second)
	ioOpts.SetPingInterval(25 * time.Second)
	ioOpts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io:             socket.NewServer(nil, ioOpts),
		app:            a,
		limiter:        NewConnectionLimiter(DefaultMaxExternalClients),
		debounceWindow: DefaultDebounceWindow,
		ctx:            ctx,
		cancel:         cancel,
		clients:        make(map[string]*socket.Socket),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.debouncer = NewBroadcastDebouncer(s.debounceWindow, s.Broadcast)
	s.unsubscribe = a.Subscribe(s.debouncer.Trigger)
	s.setupHandlers()

	return s, nil
}

// setupHandlers registers the connection handler.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		address := client.Handshake().Address

		log.Info().Str("id", clientID).Str("address", address).Msg("Client connected")

		s.mu.Lock()
		s.clients[clientID] = client
		s.mu.Unlock()

		if _, evictedID := s.limiter.TryAdd(clientID, address); evictedID != "" {
			s.evict(evictedID)
		}

		// Send initial state after small delay
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.pushSnapshot(client)
		}()

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Client disconnected")

			s.limiter.Remove(clientID)
			s.mu.Lock()
			delete(s.clients, clientID)
			s.mu.Unlock()
		})

		s.registerPlayerHandlers(client, clientID)
		s.registerBrowseHandlers(client, clientID)
		s.registerLibraryHandlers(client, clientID)
		s.registerAccountHandlers(client, clientID)
	})
}

// evict disconnects a remote client displaced by a newer one.
func (s *Server) evict(clientID string) {
	s.mu.Lock()
	client, ok := s.clients[clientID]
	delete(s.clients, clientID)
	s.mu.Unlock()

	if !ok {
		return
	}
	log.Info().Str("id", clientID).Msg("Evicting oldest remote client")
	client.Emit(EventPushToast, Toast{
		Type:    "warning",
		Title:   "Disconnected",
		Message: "Another device took control of the player",
	})
	client.Disconnect(true)
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// pushSnapshot sends every part of the application state to one client.
func (s *Server) pushSnapshot(client *socket.Socket) {
	snap := s.app.Snapshot()
	client.Emit(EventPushState, snap.Playback)
	client.Emit(EventPushBrowse, snap.Browse)
	client.Emit(EventPushLibrary, snap.Library)
	client.Emit(EventPushAuth, snap.Auth)
}

// Broadcast sends one part of the application state to all clients.
func (s *Server) Broadcast(change app.Change) {
	switch change {
	case app.ChangeState:
		s.BroadcastState()
	case app.ChangeBrowse:
		s.io.Emit(EventPushBrowse, s.app.Browse())
	case app.ChangeLibrary:
		s.io.Emit(EventPushLibrary, s.app.Library())
	case app.ChangeAuth:
		s.io.Emit(EventPushAuth, s.app.Auth())
	}
}

// BroadcastState sends playback state to all clients when it changed since
// the last broadcast.
func (s *Server) BroadcastState() {
	state := s.app.Player().State()
	if s.isStateSame(state) {
		return
	}
	s.saveLastState(state)

	s.io.Emit(EventPushState, state)

	if log.Debug().Enabled() {
		data, _ := json.Marshal(state)
		log.Debug().RawJSON("state", data).Int("clients", s.ClientCount()).Msg("Broadcast state")
	}
}

// toast sends a notification to one client.
func toast(client *socket.Socket, kind, title, message string) {
	client.Emit(EventPushToast, Toast{Type: kind, Title: title, Message: message})
}

// async runs a network-backed action off the socket goroutine. It is
// cancelled when the server closes.
func (s *Server) async(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, actionTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server and waits for running actions.
func (s *Server) Close() error {
	s.unsubscribe()
	s.debouncer.Stop()
	s.cancel()
	s.wg.Wait()
	s.io.Close(nil)
	return nil
}
