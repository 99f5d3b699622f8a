// Package batch runs whole-directory operations: roll normalization
// analysis and unattended render/export over sets of scans.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/negproof/negproof/internal/imageio"
	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/render"
)

// Renderer is the engine surface batch export needs. *render.Coordinator
// satisfies it.
type Renderer interface {
	SetSource(hash string)
	Render(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error)
}

// SettingsSource supplies per-file workspace settings. *storage.Store
// satisfies it.
type SettingsSource interface {
	SettingsFor(hash string) (negative.WorkspaceConfig, bool)
	Global() negative.WorkspaceConfig
}

// Progress is called after each file completes. done counts finished
// files, failures included.
type Progress func(done, total int, path string)

// Config controls discovery and output for a batch export run.
type Config struct {
	OutputDir       string
	Format          negative.ExportFormat // empty keeps each file's saved format
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	Progress        Progress
}

// Outcome records one file's result.
type Outcome struct {
	Path     string
	Output   string
	Duration time.Duration
	Err      error
}

// Result summarizes a batch export run.
type Result struct {
	Outcomes []Outcome
	Duration time.Duration
}

// Failed counts the outcomes that ended in an error.
func (r *Result) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Export renders every discovered scan with its stored settings and
// writes the prints to disk. Files are processed one at a time; the
// engines keep per-source caches that concurrent source switching would
// defeat. Individual file failures are recorded, not fatal.
func Export(ctx context.Context, args []string, eng Renderer, settings SettingsSource,
	cfg *Config, logger *slog.Logger,
) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := DiscoverScans(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("batch export: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("batch export: no scans found")
	}
	if cfg.OutputDir != "" {
		if err := os.MkdirAll(cfg.OutputDir, 0o750); err != nil {
			return nil, fmt.Errorf("batch export: %w", err)
		}
	}

	start := time.Now()
	res := &Result{Outcomes: make([]Outcome, 0, len(files))}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := exportOne(ctx, path, eng, settings, cfg)
		if out.Err != nil {
			logger.Warn("export failed", "file", path, "error", out.Err)
		} else {
			logger.Debug("exported", "file", path, "output", out.Output,
				"duration", out.Duration.Round(time.Millisecond))
		}
		res.Outcomes = append(res.Outcomes, out)
		if cfg.Progress != nil {
			cfg.Progress(i+1, len(files), path)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func exportOne(ctx context.Context, path string, eng Renderer, settings SettingsSource, cfg *Config) Outcome {
	start := time.Now()
	out := Outcome{Path: path}

	src, meta, err := imageio.LoadBuffer(path)
	if err != nil {
		out.Err = err
		out.Duration = time.Since(start)
		return out
	}

	ws, ok := settings.SettingsFor(meta.Hash)
	if !ok {
		ws = settings.Global()
	}
	if cfg.Format != "" {
		ws.Export.Format = cfg.Format
	}

	eng.SetSource(meta.Hash)
	pc := negative.NewContext(src.W, src.H, ws.Process.Mode, render.PreviewLongEdge)
	print, err := eng.Render(ctx, src, &ws, pc)
	if err != nil {
		out.Err = fmt.Errorf("render %s: %w", path, err)
		out.Duration = time.Since(start)
		return out
	}

	out.Output = imageio.ExportPath(path, cfg.OutputDir, ws.Export.Format)
	out.Err = imageio.Save(out.Output, render.BufferToImage(print, ws.Export.Format), ws.Export.Format)
	out.Duration = time.Since(start)
	return out
}
