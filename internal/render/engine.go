// Package render drives the processing pipeline: it owns the stage chain,
// the intermediate-result cache, and the choice between the CPU and the
// accelerated engine.
package render

import (
	"context"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// PreviewLongEdge is the long-edge size interactive previews render at.
// It doubles as the reference size kernel radii are tuned against, so a
// full-resolution export scales its filters up by longEdge/PreviewLongEdge.
const PreviewLongEdge = 2048

// Engine turns a linearized scan into a finished positive according to the
// workspace configuration. Implementations are safe for sequential reuse
// across renders of the same or different sources.
type Engine interface {
	// Render processes src and returns the finished print buffer. The
	// input buffer is never modified. Analysis results and UI metrics are
	// published through pc.
	Render(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error)

	// Name identifies the engine in logs and metrics.
	Name() string

	// Close releases engine resources.
	Close() error
}

// SourceSetter is implemented by engines that keep per-source caches and
// need to know when the loaded image changes.
type SourceSetter interface {
	SetSource(hash string)
}
