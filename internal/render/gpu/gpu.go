// Package gpu renders the print pipeline on a compute-capable GPU
// through wgpu/hal. The CPU engine remains the reference; this engine
// reproduces its output per stage and reports an error on any device
// failure so the caller can fall back.
package gpu

import "errors"

// ErrUnavailable is returned when no usable GPU backend exists, either
// because initialization failed or because the binary was built with
// the nogpu tag.
var ErrUnavailable = errors.New("gpu: no usable device")
