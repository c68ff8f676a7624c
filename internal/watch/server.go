package watch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/modeldoc/internal/logfields"
)

// Server previews the generated site over HTTP.
type Server struct {
	Addr   string
	router chi.Router
	server *http.Server
}

// NewServer serves the files below root. metrics, when not nil, is mounted
// at /metrics.
func NewServer(addr, root string, metrics http.Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Get("/health", handleHealth)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}
	r.Handle("/*", http.FileServer(http.Dir(root)))

	return &Server{
		Addr:   addr,
		router: r,
		server: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start blocks serving until Shutdown.
func (s *Server) Start() error {
	slog.Info("Serving preview", "addr", s.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("request",
			"method", r.Method,
			logfields.Path(r.URL.Path),
			"status", ww.Status(),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	})
}
