package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-wave-etl/internal/domain"
)

const writeWait = 10 * time.Second

// WindowSource provides the analysis windows of the latest completed run.
type WindowSource interface {
	Windows() []domain.AnalysisWindow
}

// Server exposes health, readiness, and metrics endpoints along with the
// analysis windows for rendering clients.
type Server struct {
	httpServer *http.Server
	windows    WindowSource
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics,
// /windows and the /ws/windows stream.
func NewServer(addr string, ready sharedobs.ReadinessChecker, windows WindowSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		windows: windows,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /windows", s.handleWindows)
	mux.HandleFunc("GET /ws/windows", s.handleWindowStream)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) messages() []domain.WindowMessage {
	windows := s.windows.Windows()
	out := make([]domain.WindowMessage, len(windows))
	for i, w := range windows {
		out[i] = domain.NewWindowMessage(w)
	}
	return out
}

func (s *Server) handleWindows(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.messages()); err != nil {
		s.logger.Warn("encode windows", "error", err)
	}
}

// handleWindowStream sends every window in frame order as one JSON text
// message, then closes the connection normally.
func (s *Server) handleWindowStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	msgs := s.messages()
	for _, msg := range msgs {
		if err := r.Context().Err(); err != nil {
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Warn("websocket write failed", "frame", msg.Frame, "error", err)
			return
		}
	}
	s.logger.Debug("window stream complete", "windows", len(msgs))

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
		time.Now().Add(writeWait))
}
