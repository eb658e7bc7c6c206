// Package api provides the HTTP client for the song catalog server: catalog
// fetch, account endpoints and audio address probing.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/account"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/catalog"
	"github.com/edumarques81/stellar-cloudplayer/internal/domain/player"
)

const (
	// DefaultBaseURL is used when no backend URL is configured.
	DefaultBaseURL = "http://localhost:5000"

	// DefaultTimeout for API requests
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the player to the server.
	DefaultUserAgent = "StellarCloudPlayer/1.0"
)

// API paths
const (
	PathSongs          = "/api/admin/songs"
	PathLogin          = "/api/auth/login"
	PathRegister       = "/api/auth/register"
	PathForgotPassword = "/api/auth/forgot-password"
	PathResetPassword  = "/api/auth/reset-password"
)

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// messageBody is the {message} envelope used by the account endpoints.
type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Client talks to the catalog server.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	rc        *resty.Client
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:   baseURL,
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.rc = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(c.timeout).
		SetHeader("User-Agent", c.userAgent).
		SetHeader("Accept", "application/json")

	return c
}

// BaseURL returns the server base URL, also used to resolve asset paths.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.rc.Close()
}

// FetchSongs returns the full catalog.
func (c *Client) FetchSongs(ctx context.Context) ([]catalog.Song, error) {
	var songs []catalog.Song
	var body messageBody

	res, err := c.rc.R().
		SetContext(ctx).
		SetResult(&songs).
		SetError(&body).
		Get(PathSongs)
	if err != nil {
		return nil, fmt.Errorf("fetch songs: %w", err)
	}
	if !res.IsSuccess() {
		return nil, responseError(res, body)
	}

	log.Debug().Int("count", len(songs)).Msg("Fetched catalog")
	return songs, nil
}

// Login authenticates and returns the server's user object unchanged.
func (c *Client) Login(ctx context.Context, email, password string) (json.RawMessage, error) {
	var user json.RawMessage
	var body messageBody

	res, err := c.rc.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"email":    email,
			"password": password,
		}).
		SetResult(&user).
		SetError(&body).
		Post(PathLogin)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !res.IsSuccess() {
		return nil, responseError(res, body)
	}
	if len(user) == 0 {
		user = json.RawMessage("null")
	}
	return user, nil
}

// RegisterRequest is the sign-up payload.
type RegisterRequest = account.Registration

// Register creates an account and returns the server message.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	return c.postMessage(ctx, PathRegister, req)
}

// ForgotPassword requests a reset code for email.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.postMessage(ctx, PathForgotPassword, map[string]string{"email": email})
}

// ResetPassword sets a new password using the emailed one-time code.
func (c *Client) ResetPassword(ctx context.Context, email, otp, newPassword string) (string, error) {
	return c.postMessage(ctx, PathResetPassword, map[string]string{
		"email":       email,
		"otp":         otp,
		"newPassword": newPassword,
	})
}

func (c *Client) postMessage(ctx context.Context, path string, payload any) (string, error) {
	var result, failure messageBody

	res, err := c.rc.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		SetError(&failure).
		Post(path)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", path, err)
	}
	if !res.IsSuccess() {
		return "", responseError(res, failure)
	}
	return result.Message, nil
}

// Probe issues a HEAD request to an absolute audio address.
func (c *Client) Probe(ctx context.Context, address string) (player.ProbeResult, error) {
	res, err := c.rc.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		Head(address)
	if err != nil {
		return player.ProbeResult{}, fmt.Errorf("probe: %w", err)
	}

	return player.ProbeResult{
		StatusCode:  res.StatusCode(),
		ContentType: res.Header().Get("Content-Type"),
	}, nil
}

func responseError(res *resty.Response, body messageBody) *Error {
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = res.String()
	}
	if msg == "" {
		msg = http.StatusText(res.StatusCode())
	}
	return &Error{Status: res.StatusCode(), Message: msg}
}
