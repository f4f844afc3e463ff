// Package api exposes the rig over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/allbin/labctl/internal/rig"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Server serves the HTTP API for one rig
type Server struct {
	rig      *rig.Rig
	log      zerolog.Logger
	interval time.Duration
	upgrader websocket.Upgrader
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// WithStatusInterval sets how often /ws/status pushes a snapshot
func WithStatusInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

// NewServer creates a server for r
func NewServer(r *rig.Rig, opts ...Option) *Server {
	s := &Server{
		rig:      r,
		log:      zerolog.Nop(),
		interval: 250 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the API handler
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/disable_gamepad", s.handleGamepad(false))
	r.Get("/enable_gamepad", s.handleGamepad(true))

	r.Get("/trigger", s.handleTriggerDefault)
	r.Get("/trigger/{channel}/{frames}/{stage}/{notify}", s.handleTrigger)

	r.Get("/move/{channel}/{position}", s.handleMove)
	r.Get("/velocity/{channel}/{speed}", s.handleVelocity)
	r.Get("/is_moving", s.handleIsMoving)
	r.Get("/get_is_moving", s.handleGetMoving)
	r.Get("/get_positions", s.handleGetPositions)
	r.Get("/emergency_stop", s.handleEmergencyStop)

	r.Get("/reset_galvo/{id}", s.handleResetGalvo)
	r.Post("/upload_wavetable/{id}", s.handleUploadWaveTable)
	r.Post("/upload_aotf/{id}", s.handleUploadGateTable)

	r.Get("/ws/status", s.handleStatusStream)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		ev := s.log.Debug()
		if ww.Status() >= http.StatusInternalServerError {
			ev = s.log.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
