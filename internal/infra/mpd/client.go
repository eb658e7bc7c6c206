// Package mpd drives a Music Player Daemon as the audio sink.
package mpd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/rs/zerolog/log"
)

// Client wraps the MPD client with reconnection logic.
type Client struct {
	mu       sync.RWMutex
	client   *mpd.Client
	host     string
	port     int
	password string
}

// NewClient creates a new MPD client wrapper.
func NewClient(host string, port int, password string) *Client {
	return &Client{
		host:     host,
		port:     port,
		password: password,
	}
}

// Addr returns the host:port of the daemon.
func (c *Client) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// Connect establishes connection to MPD.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectLocked()
}

// connectLocked establishes connection (must hold lock).
func (c *Client) connectLocked() error {
	addr := c.Addr()
	log.Info().Str("addr", addr).Msg("Connecting to MPD")

	client, err := mpd.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to MPD: %w", err)
	}

	if c.password != "" {
		if err := client.Command("password %s", c.password).OK(); err != nil {
			client.Close()
			return fmt.Errorf("MPD authentication failed: %w", err)
		}
	}

	c.client = client
	log.Info().Msg("Connected to MPD")
	return nil
}

// ensureConnected checks connection and reconnects if needed.
func (c *Client) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return c.connectLocked()
	}

	if err := c.client.Ping(); err != nil {
		log.Warn().Err(err).Msg("MPD connection lost, reconnecting...")
		c.client.Close()
		c.client = nil
		return c.connectLocked()
	}

	return nil
}

// do runs fn against a live connection.
func (c *Client) do(fn func(*mpd.Client) error) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	return fn(c.client)
}

// Close closes the MPD connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}

// Ping checks if the connection is alive.
func (c *Client) Ping() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return fmt.Errorf("not connected")
	}
	return c.client.Ping()
}

// Status is the subset of MPD status the sink needs.
type Status struct {
	State    string  // play, pause or stop
	Elapsed  float64 // seconds
	Duration float64 // seconds, 0 when unknown
	Song     int     // queue position, -1 when none
}

// Status returns the current playback status.
func (c *Client) Status() (Status, error) {
	var attrs mpd.Attrs
	err := c.do(func(m *mpd.Client) error {
		var err error
		attrs, err = m.Status()
		return err
	})
	if err != nil {
		return Status{}, err
	}
	return parseStatus(attrs), nil
}

func parseStatus(attrs mpd.Attrs) Status {
	s := Status{State: attrs["state"], Song: -1}

	if v, err := strconv.ParseFloat(attrs["elapsed"], 64); err == nil {
		s.Elapsed = v
	}
	if v, err := strconv.ParseFloat(attrs["duration"], 64); err == nil {
		s.Duration = v
	} else if parts := strings.SplitN(attrs["time"], ":", 2); len(parts) == 2 {
		// Servers older than 0.20 only report "time" as elapsed:total.
		if v, err := strconv.ParseFloat(parts[1], 64); err == nil {
			s.Duration = v
		}
	}
	if v, err := strconv.Atoi(attrs["song"]); err == nil {
		s.Song = v
	}
	return s
}

// Replace clears the queue and enqueues uri as its only entry.
func (c *Client) Replace(uri string) error {
	return c.do(func(m *mpd.Client) error {
		if err := m.Clear(); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		if err := m.Add(uri); err != nil {
			return fmt.Errorf("add %s: %w", uri, err)
		}
		return nil
	})
}

// Play starts playback at queue position pos.
func (c *Client) Play(pos int) error {
	return c.do(func(m *mpd.Client) error {
		return m.Play(pos)
	})
}

// Pause pauses or resumes playback.
func (c *Client) Pause(pause bool) error {
	return c.do(func(m *mpd.Client) error {
		return m.Pause(pause)
	})
}

// Stop stops playback and clears the queue.
func (c *Client) Stop() error {
	return c.do(func(m *mpd.Client) error {
		if err := m.Stop(); err != nil {
			return err
		}
		return m.Clear()
	})
}

// Seek seeks to position in current song (seconds).
func (c *Client) Seek(pos int) error {
	return c.do(func(m *mpd.Client) error {
		status, err := m.Status()
		if err != nil {
			return err
		}

		songPos, err := strconv.Atoi(status["song"])
		if err != nil {
			return fmt.Errorf("no song playing")
		}

		return m.Seek(songPos, pos)
	})
}

// SetVolume sets the volume (0-100).
func (c *Client) SetVolume(vol int) error {
	if vol < 0 {
		vol = 0
	} else if vol > 100 {
		vol = 100
	}

	return c.do(func(m *mpd.Client) error {
		return m.SetVolume(vol)
	})
}

// Watch reports changed subsystem names until ctx is cancelled. The watcher
// reconnects on its own after connection errors.
func (c *Client) Watch(ctx context.Context, subsystems ...string) (<-chan string, error) {
	watcher, err := mpd.NewWatcher("tcp", c.Addr(), c.password, subsystems...)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ch := make(chan string, 10)

	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case subsystem, ok := <-watcher.Event:
				if !ok {
					return
				}
				select {
				case ch <- subsystem:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Error:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("MPD watcher error")
				select {
				case <-time.After(time.Second):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
