package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Chardonneaur/VisitorExclusion/internal/auth"
	"github.com/Chardonneaur/VisitorExclusion/internal/exclusion"
	"github.com/Chardonneaur/VisitorExclusion/internal/telemetry"
)

// requestTimeout bounds every non-streaming request.
const requestTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	AdminKey       string
	AdminKeyHash   string
	RateLimitPerIP int // requests per minute on the check endpoint; <= 0 disables the limit
	Logger         zerolog.Logger
}

type Server struct {
	svc            *exclusion.Service
	auth           *auth.Authenticator
	rateLimitPerIP int
	logger         zerolog.Logger
}

func NewServer(svc *exclusion.Service, opts Options) *Server {
	return &Server{
		svc:            svc,
		auth:           auth.NewAuthenticator(opts.AdminKey, opts.AdminKeyHash),
		rateLimitPerIP: opts.RateLimitPerIP,
		logger:         opts.Logger.With().Str("component", "api").Logger(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// public: long-lived, so it stays outside the timeout group
	r.Get("/v1/rules/stream", s.handleStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		// public: snapshot (ETag)
		r.Get("/v1/rules/snapshot", s.handleSnapshot)

		// public: decision endpoint for trackers
		r.With(s.rateLimiter()).Post("/v1/exclusions/check", s.handleCheck)

		// admin (protected): rule management
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireAdmin(s.denyAdmin))
			r.Get("/v1/rules", s.handleListRules)
			r.Post("/v1/rules", s.handleCreateRule)
			r.Get("/v1/rules/{id}", s.handleGetRule)
			r.Put("/v1/rules/{id}", s.handleUpdateRule)
			r.Delete("/v1/rules/{id}", s.handleDeleteRule)
		})
	})

	return r
}

func (s *Server) rateLimiter() func(http.Handler) http.Handler {
	if s.rateLimitPerIP <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.rateLimitPerIP,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			RateLimitedError(w, r, "rate limit exceeded")
		}),
	)
}

func (s *Server) denyAdmin(w http.ResponseWriter, r *http.Request, status int, message string) {
	hlog.FromRequest(r).Warn().
		Str("remote_ip", auth.GetIPAddress(r)).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("admin request rejected")
	if status == http.StatusUnauthorized {
		UnauthorizedError(w, r, message)
		return
	}
	ForbiddenError(w, r, message)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()
	setNoCache(w)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", snap.ETag)
	_ = json.NewEncoder(w).Encode(snap)
}
