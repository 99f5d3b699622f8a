package negative

// ProcessMode identifies the film process a negative was shot on.
type ProcessMode string

const (
	ProcessC41 ProcessMode = "C-41"
	ProcessBW  ProcessMode = "B&W"
	ProcessE6  ProcessMode = "E-6"
)

// IsReversal reports whether the mode is a positive (slide) film process.
func (m ProcessMode) IsReversal() bool {
	return m == ProcessE6
}

// ROI is a pixel-space region of interest in row-major order:
// rows [Y1, Y2) and columns [X1, X2).
type ROI struct {
	Y1, Y2, X1, X2 int
}

// Width returns the ROI width in pixels.
func (r ROI) Width() int { return r.X2 - r.X1 }

// Height returns the ROI height in pixels.
func (r ROI) Height() int { return r.Y2 - r.Y1 }

// Empty reports whether the ROI selects no pixels.
func (r ROI) Empty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// NormalizationBounds holds per-channel log-density floors and ceils used
// to stretch a scan to the full tonal range.
type NormalizationBounds struct {
	Floors [3]float64 `yaml:"floors"`
	Ceils  [3]float64 `yaml:"ceils"`
}

// Initialized reports whether the bounds carry real analysis results. The
// zero value means "not analyzed yet".
func (b NormalizationBounds) Initialized() bool {
	for i := 0; i < 3; i++ {
		if b.Floors[i] != 0 || b.Ceils[i] != 0 {
			return true
		}
	}
	return false
}

// ShadowCastCorrection is a per-channel additive correction removing a
// color cast from the densest image regions.
type ShadowCastCorrection struct {
	Vector [3]float64 `yaml:"vector"`
}

// IsZero reports whether the correction is a no-op.
func (c ShadowCastCorrection) IsZero() bool {
	return c.Vector == [3]float64{}
}

// GeometryParams records the orientation transform the geometry stage
// applied, so later stages can map normalized source coordinates into the
// oriented frame.
type GeometryParams struct {
	Rotation     int     // quarter turns, clockwise
	FineRotation float64 // degrees
	FlipH        bool
	FlipV        bool
	SrcW, SrcH   int // dimensions before orientation
	OutW, OutH   int // dimensions after orientation
}

// RollRecord is a per-roll normalization lock: averaged bounds and cast
// shared by every frame of the roll.
type RollRecord struct {
	Name   string               `yaml:"name"`
	Bounds NormalizationBounds  `yaml:"bounds"`
	Cast   ShadowCastCorrection `yaml:"cast"`
}
