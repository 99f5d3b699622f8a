// Package server exposes the render engine over HTTP: health and metrics
// endpoints, a synchronous render endpoint, and a websocket stream that
// reports progress on long renders.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/storage"
)

// renderEngine is the engine surface the server needs. *render.Coordinator
// satisfies it.
type renderEngine interface {
	SetSource(hash string)
	Render(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error)
}

// Config holds server construction parameters.
type Config struct {
	CORSOrigin  string
	TimeoutSec  int
	PreviewSize int
}

// Server handles render requests against local scan files.
type Server struct {
	engine      renderEngine
	store       *storage.Store
	corsOrigin  string
	timeoutSec  int
	previewSize int
	logger      *slog.Logger
}

// NewServer wires the render engine and settings store into a server.
func NewServer(engine renderEngine, store *storage.Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 300
	}
	if cfg.PreviewSize <= 0 {
		cfg.PreviewSize = 2048
	}
	return &Server{
		engine:      engine,
		store:       store,
		corsOrigin:  cfg.CORSOrigin,
		timeoutSec:  cfg.TimeoutSec,
		previewSize: cfg.PreviewSize,
		logger:      logger,
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/render", s.corsMiddleware(s.renderHandler))
	mux.HandleFunc("/rolls", s.corsMiddleware(s.rollsHandler))
	mux.HandleFunc("/ws/render", s.renderWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// RenderRequest asks for a render of a local scan file. Settings override
// the stored per-file state when given; they use the flat key shape
// sidecar files use.
type RenderRequest struct {
	Path     string         `json:"path"`
	Settings map[string]any `json:"settings,omitempty"`
	FullRes  bool           `json:"full_res,omitempty"`
}

// RenderResponse summarizes a finished render.
type RenderResponse struct {
	Path       string         `json:"path"`
	Hash       string         `json:"hash"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	DurationMS int64          `json:"duration_ms"`
	Histogram  *HistogramJSON `json:"histogram,omitempty"`
}

// HistogramJSON carries per-channel bin counts.
type HistogramJSON struct {
	R []int `json:"r"`
	G []int `json:"g"`
	B []int `json:"b"`
}

// RollsResponse lists saved roll normalization records.
type RollsResponse struct {
	Rolls []RollJSON `json:"rolls"`
}

// RollJSON is one saved roll record.
type RollJSON struct {
	Name   string     `json:"name"`
	Floors [3]float64 `json:"floors"`
	Ceils  [3]float64 `json:"ceils"`
	Cast   [3]float64 `json:"cast"`
}
