package negative

// Context carries per-render state between stages: the working scale, the
// active crop, and analysis results later stages or the UI want back.
type Context struct {
	// ScaleFactor relates the working resolution to the render reference
	// size; kernel radii and UI coordinates scale by it.
	ScaleFactor float64

	// Original source dimensions before any processing.
	OriginalW, OriginalH int

	Mode ProcessMode

	// ActiveROI is the crop selected by the geometry stage, in pixels of
	// the oriented frame. Nil means full frame.
	ActiveROI *ROI

	// Geometry is the orientation transform the geometry stage applied.
	Geometry *GeometryParams

	// Bounds and Cast are the normalization analysis results for this
	// source, cached across renders until the analysis inputs change.
	Bounds *NormalizationBounds
	Cast   *ShadowCastCorrection

	// boundsKey records the analysis inputs the cached Bounds were
	// computed with.
	boundsKey string

	// Metrics are free-form values stages publish for the UI (histogram
	// data, measured cast, base positive statistics).
	Metrics map[string]any
}

// NewContext builds a context for a source of the given dimensions.
// renderSizeRef is the long-edge size a preview render targets; the scale
// factor is the ratio between the actual long edge and that reference.
func NewContext(w, h int, mode ProcessMode, renderSizeRef int) *Context {
	long := w
	if h > long {
		long = h
	}
	sf := 1.0
	if renderSizeRef > 0 {
		sf = float64(long) / float64(renderSizeRef)
	}
	return &Context{
		ScaleFactor: sf,
		OriginalW:   w,
		OriginalH:   h,
		Mode:        mode,
		Metrics:     make(map[string]any),
	}
}

// CachedBounds returns the cached analysis bounds if they were computed
// with the same key (serialized analysis inputs), else nil.
func (c *Context) CachedBounds(key string) *NormalizationBounds {
	if c.Bounds != nil && c.boundsKey == key {
		return c.Bounds
	}
	return nil
}

// StoreBounds caches analysis bounds under the given key.
func (c *Context) StoreBounds(key string, b NormalizationBounds) {
	c.Bounds = &b
	c.boundsKey = key
}

// SetMetric publishes a named metric for the UI.
func (c *Context) SetMetric(name string, v any) {
	if c.Metrics == nil {
		c.Metrics = make(map[string]any)
	}
	c.Metrics[name] = v
}

// CloneMetrics returns a shallow copy of the metric map, used when a cache
// entry snapshots stage output.
func (c *Context) CloneMetrics() map[string]any {
	out := make(map[string]any, len(c.Metrics))
	for k, v := range c.Metrics {
		out[k] = v
	}
	return out
}
