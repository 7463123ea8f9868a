package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Config configures the status/metrics HTTP endpoint.
type Config struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Status is the JSON document served at /api/v1/status.
type Status struct {
	Scenario  string  `json:"scenario"`
	RunID     string  `json:"run_id"`
	Step      int     `json:"step"`
	Regime    string  `json:"regime"`
	Inventory int64   `json:"inventory"`
	PnL       string  `json:"pnl"`
	Orders    int64   `json:"orders_sent"`
	Fills     int64   `json:"fills"`
	UptimeSec float64 `json:"uptime_sec"`
}

// StatusFunc supplies the current status document on each request.
type StatusFunc func() Status

// Server serves /metrics, /api/v1/health and /api/v1/status.
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	started    time.Time
}

// NewServer builds the status server around the given collectors and
// status supplier.
func NewServer(logger *zap.Logger, cfg Config, m *Metrics, status StatusFunc) *Server {
	s := &Server{logger: logger.Named("obs"), started: time.Now()}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		st := status()
		st.UptimeSec = time.Since(s.started).Seconds()
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(st); err != nil {
			s.logger.Warn("status encode failed", zap.Error(err))
		}
	}).Methods("GET")

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(r)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

// Start serves until Stop is called. Run it in its own goroutine.
func (s *Server) Start() error {
	s.logger.Info("status server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
