//go:build !nogpu

package gpu

import _ "embed"

// Embedded WGSL sources, one file per pass.

//go:embed shaders/geometry.wgsl
var geometryShaderSource string

//go:embed shaders/normalize.wgsl
var normalizeShaderSource string

//go:embed shaders/exposure.wgsl
var exposureShaderSource string

//go:embed shaders/clahe_hist.wgsl
var claheHistShaderSource string

//go:embed shaders/clahe_cdf.wgsl
var claheCDFShaderSource string

//go:embed shaders/clahe_apply.wgsl
var claheApplyShaderSource string

//go:embed shaders/retouch.wgsl
var retouchShaderSource string

//go:embed shaders/lab.wgsl
var labShaderSource string

//go:embed shaders/toning.wgsl
var toningShaderSource string

//go:embed shaders/layout.wgsl
var layoutShaderSource string

//go:embed shaders/histogram.wgsl
var histogramShaderSource string
