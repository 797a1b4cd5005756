package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/snaptastic/snaptastic/internal/config"
	"github.com/snaptastic/snaptastic/internal/service"
)

// Uploader is the object storage surface the upload endpoint needs.
// Implemented by storage.Uploader.
type Uploader interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// Server is the JSON-over-HTTP API for the Snaptastic frontend.
type Server struct {
	addr          string
	log           *slog.Logger
	users         *service.UserService
	credits       *service.CreditService
	photos        *service.PhotoService
	enhance       *service.EnhanceService
	subscriptions *service.SubscriptionService
	uploader      Uploader
	secureCookies bool
	writeTimeout  time.Duration
	router        *chi.Mux
}

func NewServer(cfg config.Config, log *slog.Logger, users *service.UserService, credits *service.CreditService, photos *service.PhotoService, enhance *service.EnhanceService, subscriptions *service.SubscriptionService, uploader Uploader) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:          cfg.ListenAddr,
		log:           log,
		users:         users,
		credits:       credits,
		photos:        photos,
		enhance:       enhance,
		subscriptions: subscriptions,
		uploader:      uploader,
		secureCookies: cfg.SecureCookies,
		// Restore and export hold the response open while polling the
		// provider, so the write timeout must outlive the polling ceiling.
		writeTimeout: cfg.RequestTimeout + 15*time.Second,
		router:       r,
	}

	r.Post("/webhook/polar", s.handlePolarWebhook)
	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)
	r.Post("/api/auth/logout", s.handleLogout)
	r.Group(func(authed chi.Router) {
		authed.Use(s.sessionMiddleware)
		authed.Get("/api/credits", s.handleCredits)
		authed.Post("/api/restore", s.handleRestore)
		authed.Post("/api/export", s.handleExport)
		authed.Get("/api/photos", s.handleListPhotos)
		authed.Post("/api/photos", s.handleCreatePhoto)
		authed.Delete("/api/photos", s.handleDeletePhoto)
		authed.Post("/api/upload-image", s.handleUploadImage)
	})

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("api shutdown error", "err", err)
		}
	}()

	s.log.Info("api listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api listen: %w", err)
	}
	return nil
}
