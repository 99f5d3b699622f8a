// Package stages implements the darkroom render stages. Each stage takes
// the working RGB buffer plus the shared render context and returns a new
// buffer; stages never mutate their input, which lets the engine cache
// intermediate results.
package stages

import (
	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Processor is one stage of the print pipeline.
type Processor interface {
	// Name identifies the stage in logs and metrics.
	Name() string

	// Process transforms the working buffer. Implementations may read and
	// publish context state (ROI, bounds, metrics) but must not modify img.
	Process(pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error)
}
