//go:build nogpu

package gpu

import (
	"context"
	"log/slog"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Engine is unavailable in nogpu builds; the coordinator runs CPU-only.
type Engine struct{}

// New always fails under the nogpu build tag.
func New(_ *slog.Logger) (*Engine, error) {
	return nil, ErrUnavailable
}

func (e *Engine) Name() string { return "gpu" }

func (e *Engine) SetSource(string) {}

func (e *Engine) Render(context.Context, *imagemath.Buffer, *negative.WorkspaceConfig, *negative.Context) (*imagemath.Buffer, error) {
	return nil, ErrUnavailable
}

func (e *Engine) Close() error { return nil }
