package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edumarques81/stellar-cloudplayer/internal/infra/api"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *api.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := api.NewClient(server.URL, api.WithTimeout(5*time.Second))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewClientDefaultBaseURL(t *testing.T) {
	c := api.NewClient("")
	defer c.Close()
	if c.BaseURL() != api.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL(), api.DefaultBaseURL)
	}
}

func TestFetchSongs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != api.PathSongs {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"_id":"a1","title":"Dynamite","singer":"BTS","filename":"Dynamite.mp3"},
			{"id":7,"title":"Butter","singer":"BTS","url":"https://cdn/butter.mp3"}
		]`))
	})

	songs, err := client.FetchSongs(context.Background())
	if err != nil {
		t.Fatalf("FetchSongs: %v", err)
	}
	if len(songs) != 2 {
		t.Fatalf("expected 2 songs, got %d", len(songs))
	}
	if songs[0].ID != "a1" || songs[1].ID != "7" {
		t.Errorf("ids = %q, %q", songs[0].ID, songs[1].ID)
	}
	if songs[1].Source() != "https://cdn/butter.mp3" {
		t.Errorf("source = %q", songs[1].Source())
	}
}

func TestFetchSongsServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"database unavailable"}`))
	})

	_, err := client.FetchSongs(context.Background())

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != "database unavailable" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestFetchSongsPlainTextError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.FetchSongs(context.Background())

	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %v", err)
	}
	if apiErr.Message != "upstream down" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestLogin(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != api.PathLogin || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "army@example.com" || body["password"] != "purple" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"_id":"u1","username":"army","email":"army@example.com"}`))
	})

	user, err := client.Login(context.Background(), "army@example.com", "purple")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(user, &decoded); err != nil {
		t.Fatalf("user is not JSON: %v", err)
	}
	if decoded["username"] != "army" {
		t.Errorf("username = %q", decoded["username"])
	}

	_, err = client.Login(context.Background(), "army@example.com", "wrong")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 api.Error, got %v", err)
	}
	if apiErr.Message != "Invalid credentials" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestMessageEndpoints(t *testing.T) {
	got := make(map[string]map[string]string)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		got[r.URL.Path] = body
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"ok:` + r.URL.Path + `"}`))
	})

	ctx := context.Background()

	msg, err := client.Register(ctx, api.RegisterRequest{Username: "jin", Email: "jin@example.com", Password: "p", Phone: "123"})
	if err != nil || msg != "ok:"+api.PathRegister {
		t.Errorf("Register = %q, %v", msg, err)
	}
	if got[api.PathRegister]["phone"] != "123" {
		t.Errorf("register payload = %v", got[api.PathRegister])
	}

	msg, err = client.ForgotPassword(ctx, "jin@example.com")
	if err != nil || msg != "ok:"+api.PathForgotPassword {
		t.Errorf("ForgotPassword = %q, %v", msg, err)
	}

	msg, err = client.ResetPassword(ctx, "jin@example.com", "123456", "new")
	if err != nil || msg != "ok:"+api.PathResetPassword {
		t.Errorf("ResetPassword = %q, %v", msg, err)
	}
	if got[api.PathResetPassword]["newPassword"] != "new" || got[api.PathResetPassword]["otp"] != "123456" {
		t.Errorf("reset payload = %v", got[api.PathResetPassword])
	}
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("expected HEAD, got %s", r.Method)
		}
		switch r.URL.Path {
		case "/uploads/song.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
		case "/uploads/page.html":
			w.Header().Set("Content-Type", "text/html")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := api.NewClient("http://catalog.invalid")
	defer client.Close()

	tests := []struct {
		path        string
		status      int
		contentType string
	}{
		{"/uploads/song.mp3", 200, "audio/mpeg"},
		{"/uploads/page.html", 200, "text/html"},
		{"/uploads/missing.mp3", 404, ""},
	}

	for _, tt := range tests {
		res, err := client.Probe(context.Background(), server.URL+tt.path)
		if err != nil {
			t.Fatalf("Probe(%s): %v", tt.path, err)
		}
		if res.StatusCode != tt.status {
			t.Errorf("Probe(%s) status = %d, want %d", tt.path, res.StatusCode, tt.status)
		}
		if tt.contentType != "" && res.ContentType != tt.contentType {
			t.Errorf("Probe(%s) content type = %q, want %q", tt.path, res.ContentType, tt.contentType)
		}
	}
}

func TestProbeNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	address := server.URL + "/a.mp3"
	server.Close()

	client := api.NewClient(server.URL)
	defer client.Close()

	if _, err := client.Probe(context.Background(), address); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestErrorString(t *testing.T) {
	if got := (&api.Error{Status: 404}).Error(); got != "api: status 404" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&api.Error{Status: 400, Message: "bad"}).Error(); got != "api: status 400: bad" {
		t.Errorf("Error() = %q", got)
	}
}
