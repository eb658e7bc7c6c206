package socketio

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"

	"github.com/edumarques81/stellar-cloudplayer/internal/domain/account"
	"github.com/edumarques81/stellar-cloudplayer/internal/infra/api"
)

// registerPlayerHandlers registers transport control events.
func (s *Server) registerPlayerHandlers(client *socket.Socket, clientID string) {
	client.On("getState", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("getState")
		s.pushSnapshot(client)
	})

	client.On("play", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("play")
		s.app.Play()
	})

	client.On("pause", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("pause")
		s.app.Pause()
	})

	client.On("toggle", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("toggle")
		s.app.Toggle()
	})

	client.On("next", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("next")
		s.app.Next()
	})

	client.On("prev", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("prev")
		s.app.Prev()
	})

	client.On("playIndex", func(args ...any) {
		i, ok := numberArg(args)
		if !ok {
			log.Warn().Str("id", clientID).Interface("data", args).Msg("playIndex without index")
			return
		}
		log.Debug().Str("id", clientID).Int("index", int(i)).Msg("playIndex")
		if err := s.app.PlayIndex(int(i)); err != nil {
			log.Error().Err(err).Msg("PlayIndex failed")
		}
	})

	client.On("playSong", func(args ...any) {
		id, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("song", id).Msg("playSong")
		if err := s.app.PlaySong(id); err != nil {
			log.Warn().Err(err).Msg("PlaySong failed")
			toast(client, "error", "Playback", err.Error())
		}
	})

	// seek takes a percentage of the track
	client.On("seek", func(args ...any) {
		if pos, ok := numberArg(args); ok {
			log.Debug().Str("id", clientID).Float64("pos", pos).Msg("seek")
			s.app.Seek(pos)
		}
	})

	// volume takes 0-100
	client.On("volume", func(args ...any) {
		if vol, ok := numberArg(args); ok {
			log.Debug().Str("id", clientID).Float64("vol", vol).Msg("volume")
			s.app.SetVolume(vol / 100)
		}
	})

	client.On("mute", func(args ...any) {
		log.Debug().Str("id", clientID).Interface("data", args).Msg("mute")
		if muted, ok := boolArg(args); ok {
			s.app.SetMuted(muted)
			return
		}
		s.app.ToggleMute()
	})
}

// registerBrowseHandlers registers catalog view events.
func (s *Server) registerBrowseHandlers(client *socket.Socket, clientID string) {
	client.On("setTab", func(args ...any) {
		tab, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("tab", tab).Msg("setTab")
		if err := s.app.SetTab(tab); err != nil {
			log.Warn().Err(err).Msg("SetTab failed")
		}
	})

	client.On("search", func(args ...any) {
		query, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("query", query).Msg("search")
		s.app.Search(query)
	})

	client.On("openAlbum", func(args ...any) {
		album, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("album", album).Msg("openAlbum")
		s.app.OpenAlbum(album)
	})

	client.On("openArtist", func(args ...any) {
		artist, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("artist", artist).Msg("openArtist")
		s.app.OpenArtist(artist)
	})

	client.On("openPlaylist", func(args ...any) {
		name, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("playlist", name).Msg("openPlaylist")
		s.app.OpenPlaylist(name)
	})

	client.On("back", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("back")
		s.app.Back()
	})

	client.On("refresh", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("refresh")
		s.async(func(ctx context.Context) {
			if err := s.app.Refresh(ctx); err != nil {
				toast(client, "error", "Catalog", "Could not load songs: "+errorMessage(err))
			}
		})
	})
}

// registerLibraryHandlers registers favorites and downloads events.
func (s *Server) registerLibraryHandlers(client *socket.Socket, clientID string) {
	client.On("toggleFavorite", func(args ...any) {
		id, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("song", id).Msg("toggleFavorite")
		if _, err := s.app.ToggleFavorite(id); err != nil {
			log.Warn().Err(err).Msg("ToggleFavorite failed")
			toast(client, "error", "Favorites", err.Error())
		}
	})

	client.On("download", func(args ...any) {
		id, _ := stringArg(args)
		log.Debug().Str("id", clientID).Str("song", id).Msg("download")
		s.async(func(ctx context.Context) {
			path, err := s.app.Download(ctx, id)
			if err != nil {
				toast(client, "error", "Download", errorMessage(err))
				return
			}
			toast(client, "success", "Download", "Saved to "+path)
		})
	})
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
	Username    string `json:"username"`
}

// registerAccountHandlers registers authentication and settings events.
func (s *Server) registerAccountHandlers(client *socket.Socket, clientID string) {
	client.On("login", func(args ...any) {
		var req credentials
		if err := decodeArg(args, &req); err != nil {
			toast(client, "error", "Login", "Invalid request")
			return
		}
		log.Debug().Str("id", clientID).Str("email", req.Email).Msg("login")
		s.async(func(ctx context.Context) {
			if err := s.app.Login(ctx, req.Email, req.Password); err != nil {
				toast(client, "error", "Login", errorMessage(err))
				return
			}
			toast(client, "success", "Login", "Welcome "+s.app.Auth().DisplayName)
		})
	})

	client.On("register", func(args ...any) {
		var req account.Registration
		if err := decodeArg(args, &req); err != nil {
			toast(client, "error", "Register", "Invalid request")
			return
		}
		log.Debug().Str("id", clientID).Str("email", req.Email).Msg("register")
		s.async(func(ctx context.Context) {
			s.reply(client, "Register", func() (string, error) { return s.app.Register(ctx, req) })
		})
	})

	client.On("forgotPassword", func(args ...any) {
		var req credentials
		if err := decodeArg(args, &req); err != nil {
			toast(client, "error", "Reset password", "Invalid request")
			return
		}
		log.Debug().Str("id", clientID).Str("email", req.Email).Msg("forgotPassword")
		s.async(func(ctx context.Context) {
			s.reply(client, "Reset password", func() (string, error) { return s.app.ForgotPassword(ctx, req.Email) })
		})
	})

	client.On("resetPassword", func(args ...any) {
		var req credentials
		if err := decodeArg(args, &req); err != nil {
			toast(client, "error", "Reset password", "Invalid request")
			return
		}
		log.Debug().Str("id", clientID).Str("email", req.Email).Msg("resetPassword")
		s.async(func(ctx context.Context) {
			s.reply(client, "Reset password", func() (string, error) {
				return s.app.ResetPassword(ctx, req.Email, req.OTP, req.NewPassword)
			})
		})
	})

	client.On("logout", func(args ...any) {
		log.Debug().Str("id", clientID).Msg("logout")
		if err := s.app.Logout(); err != nil {
			log.Error().Err(err).Msg("Logout failed")
			toast(client, "error", "Logout", err.Error())
		}
	})

	client.On("saveSettings", func(args ...any) {
		var req credentials
		// An empty payload keeps the current username.
		_ = decodeArg(args, &req)
		log.Debug().Str("id", clientID).Str("username", req.Username).Msg("saveSettings")
		if err := s.app.SaveSettings(req.Username); err != nil {
			toast(client, "error", "Settings", errorMessage(err))
			return
		}
		toast(client, "success", "Settings", "Settings saved")
	})
}

// reply sends the server message of an account action as a toast.
func (s *Server) reply(client *socket.Socket, title string, fn func() (string, error)) {
	msg, err := fn()
	if err != nil {
		toast(client, "error", title, errorMessage(err))
		return
	}
	toast(client, "success", title, msg)
}

// errorMessage prefers the API server's own message.
func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
