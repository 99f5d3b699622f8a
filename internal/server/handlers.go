package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/negproof/negproof/internal/imageio"
	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/render"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "healthy",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	start := time.Now()
	resp, status, err := s.renderScan(ctx, &req)
	if err != nil {
		renderRequestsTotal.WithLabelValues("http", "error").Inc()
		writeError(w, status, err.Error())
		return
	}
	resp.DurationMS = time.Since(start).Milliseconds()

	renderRequestsTotal.WithLabelValues("http", "ok").Inc()
	renderDurationSeconds.WithLabelValues("http").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, resp)
}

// renderScan loads a scan, resolves its settings, and runs the engine.
// Shared between the HTTP and websocket paths.
func (s *Server) renderScan(ctx context.Context, req *RenderRequest) (*RenderResponse, int, error) {
	src, meta, err := imageio.LoadBuffer(req.Path)
	if err != nil {
		return nil, http.StatusNotFound, err
	}

	cfg, _ := s.store.SettingsFor(meta.Hash)
	if len(req.Settings) > 0 {
		cfg, err = overlaySettings(cfg, req.Settings)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
	}

	working := src
	if !req.FullRes {
		working = previewScale(src, s.previewSize)
	}

	s.engine.SetSource(meta.Hash)
	pc := negative.NewContext(working.W, working.H, cfg.Process.Mode, s.previewSize)
	out, err := s.engine.Render(ctx, working, &cfg, pc)
	if err != nil {
		return nil, http.StatusInternalServerError, fmt.Errorf("render %s: %w", req.Path, err)
	}

	resp := &RenderResponse{
		Path:   req.Path,
		Hash:   meta.Hash,
		Width:  out.W,
		Height: out.H,
	}
	hist, ok := pc.Metrics["histogram"].(*render.Histogram)
	if !ok {
		hist = render.ComputeHistogram(out)
	}
	resp.Histogram = &HistogramJSON{R: hist.R[:], G: hist.G[:], B: hist.B[:]}
	return resp, http.StatusOK, nil
}

func (s *Server) rollsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := RollsResponse{Rolls: []RollJSON{}}
	for _, name := range s.store.RollNames() {
		rec, ok := s.store.Roll(name)
		if !ok {
			continue
		}
		resp.Rolls = append(resp.Rolls, RollJSON{
			Name:   name,
			Floors: rec.Floors,
			Ceils:  rec.Ceils,
			Cast:   rec.Cast,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// overlaySettings merges flat-map overrides onto stored settings.
func overlaySettings(cfg negative.WorkspaceConfig, overrides map[string]any) (negative.WorkspaceConfig, error) {
	flat, err := cfg.FlatMap()
	if err != nil {
		return cfg, err
	}
	for k, v := range overrides {
		flat[k] = v
	}
	return negative.FromFlatMap(flat)
}

// previewScale fits src inside the preview long edge, never upscaling.
func previewScale(src *imagemath.Buffer, longEdge int) *imagemath.Buffer {
	long := src.W
	if src.H > long {
		long = src.H
	}
	if long <= longEdge {
		return src
	}
	scale := float64(longEdge) / float64(long)
	w := int(float64(src.W)*scale + 0.5)
	h := int(float64(src.H)*scale + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imagemath.ResizeBilinear(src, w, h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
