// Package http wires the control-channel HTTP API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/telewatch/server/internal/api/http/handler"
	"github.com/telewatch/server/internal/api/http/middleware"
	"github.com/telewatch/server/internal/logger"
)

// Handlers groups everything the router mounts. Token is optional;
// when nil the token mint route is not exposed.
type Handlers struct {
	Auth    *handler.Auth
	Monitor *handler.Monitor
	Session *handler.Session
	Feed    *handler.Feed
	Token   *handler.Token
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(log *logger.Logger, tokens middleware.TokenParser, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLogging(log).Handle)
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		if h.Token != nil {
			r.Post("/token", h.Token.Mint)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(tokens))

			r.Route("/login", func(r chi.Router) {
				r.Post("/start", h.Auth.Start)
				r.Post("/code", h.Auth.SubmitCode)
				r.Post("/password", h.Auth.SubmitPassword)
				r.Delete("/", h.Auth.Cancel)
			})

			r.Route("/monitors", func(r chi.Router) {
				r.Get("/", h.Monitor.List)
				r.Delete("/", h.Monitor.StopAll)
				r.Post("/{session}", h.Monitor.Start)
				r.Delete("/{session}", h.Monitor.Stop)
			})

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", h.Session.List)
				r.Delete("/{session}", h.Session.Delete)
				r.Put("/{session}/filters", h.Session.SetFilter)
				r.Get("/{session}/filters", h.Session.ListFilters)
				r.Delete("/{session}/filters", h.Session.ClearFilters)
			})

			r.Get("/feed", h.Feed.Stream)
		})
	})

	return r
}
