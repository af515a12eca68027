// Package web serves controller and rig state over HTTP and accepts commands.
package web

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"codeberg.org/mutker/brewctl/internal/errors"
	"codeberg.org/mutker/brewctl/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP surface of the supervisor.
type Server struct {
	httpServer *http.Server
	dir        Directory
	telemetry  TelemetrySource
	origins    []string
	log        logger.Logger
}

func New(addr string, dir Directory, opts ...Option) *Server {
	s := &Server{
		dir:     dir,
		origins: []string{"*"},
		log:     logger.New("web"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/controllers", s.listControllers).Methods(http.MethodGet)
	r.HandleFunc("/controllers/{name}", s.getController).Methods(http.MethodGet)
	r.HandleFunc("/controllers/{name}", s.commandController).Methods(http.MethodPost)
	r.HandleFunc("/controllers/{name}/datahistory", s.controllerHistory).Methods(http.MethodGet)
	r.HandleFunc("/controllers/{name}/telemetry", s.controllerTelemetry).Methods(http.MethodGet)

	r.HandleFunc("/rigs", s.listRigs).Methods(http.MethodGet)
	r.HandleFunc("/rigs/{name}", s.getRig).Methods(http.MethodGet)
	r.HandleFunc("/rigs/{name}", s.commandRig).Methods(http.MethodPost)
	r.HandleFunc("/rigs/{name}/details", s.rigDetails).Methods(http.MethodGet)
	r.HandleFunc("/rigs/{name}/datahistory", s.rigHistory).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins(s.origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	var h http.Handler = r
	h = cors(h)
	h = handlers.LoggingHandler(logWriter{s.log}, h)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(h)

	return h
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

type logWriter struct {
	log logger.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.log.Debug().Msg(strings.TrimSpace(string(p)))
	return len(p), nil
}

type recoveryLogger struct {
	log logger.Logger
}

func (l recoveryLogger) Println(v ...any) {
	l.log.Error().Interface("panic", v).Msg("Recovered from handler panic")
}
