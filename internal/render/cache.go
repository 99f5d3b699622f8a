package render

import (
	"sync"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// Stage groups in pipeline order. Each cached group holds the buffer after
// the last stage of the group; a config change in one group invalidates it
// and everything downstream, while upstream results are reused.
const (
	GroupBase     = iota // geometry + normalization
	GroupExposure        // tone curve
	GroupRetouch         // dust removal, spots, local adjustments
	GroupLab             // color grading
	NumGroups
)

var groupNames = [NumGroups]string{"base", "exposure", "retouch", "lab"}

// GroupKeys derives the cache key for each group from the workspace
// config. Keys are chained so that an upstream change produces new keys for
// every downstream group as well.
func GroupKeys(cfg *negative.WorkspaceConfig) [NumGroups]string {
	var keys [NumGroups]string
	keys[GroupBase] = negative.ConfigHash(cfg.Geometry) + negative.ConfigHash(cfg.Process)
	keys[GroupExposure] = keys[GroupBase] + negative.ConfigHash(cfg.Exposure)
	keys[GroupRetouch] = keys[GroupExposure] + negative.ConfigHash(cfg.Retouch)
	keys[GroupLab] = keys[GroupRetouch] + negative.ConfigHash(cfg.Lab)
	return keys
}

// snapshot is a cached intermediate result plus the context state that was
// current when it was produced, so a resumed render sees the same crop,
// geometry and analysis data a full render would have.
type snapshot struct {
	key      string
	img      *imagemath.Buffer
	roi      *negative.ROI
	geometry *negative.GeometryParams
	bounds   *negative.NormalizationBounds
	cast     *negative.ShadowCastCorrection
	metrics  map[string]any
}

func (s *snapshot) restore(pc *negative.Context) {
	pc.ActiveROI = s.roi
	pc.Geometry = s.geometry
	pc.Bounds = s.bounds
	pc.Cast = s.cast
	for k, v := range s.metrics {
		pc.SetMetric(k, v)
	}
}

// StageCache holds one intermediate buffer per stage group for the
// currently loaded source. Cached buffers are shared, never mutated.
type StageCache struct {
	mu         sync.Mutex
	sourceHash string
	entries    [NumGroups]*snapshot
}

func NewStageCache() *StageCache {
	return &StageCache{}
}

// SetSource clears the cache when a different source is loaded.
func (c *StageCache) SetSource(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hash == c.sourceHash {
		return
	}
	c.sourceHash = hash
	c.entries = [NumGroups]*snapshot{}
	cacheInvalidations.Inc()
}

// Clear drops all cached results.
func (c *StageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = [NumGroups]*snapshot{}
}

// Resume returns the deepest cached group whose key still matches, or -1
// when the render must start from the beginning. Matching stops at the
// first stale group, since later groups were computed from its output.
func (c *StageCache) Resume(keys [NumGroups]string) (int, *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	best := -1
	for g := 0; g < NumGroups; g++ {
		if c.entries[g] == nil || c.entries[g].key != keys[g] {
			break
		}
		best = g
	}
	if best < 0 {
		return -1, nil
	}
	return best, c.entries[best]
}

// Store records the result of a stage group together with the context
// state it produced. Stale downstream entries are dropped.
func (c *StageCache) Store(group int, key string, img *imagemath.Buffer, pc *negative.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[group] = &snapshot{
		key:      key,
		img:      img,
		roi:      pc.ActiveROI,
		geometry: pc.Geometry,
		bounds:   pc.Bounds,
		cast:     pc.Cast,
		metrics:  pc.CloneMetrics(),
	}
	for g := group + 1; g < NumGroups; g++ {
		c.entries[g] = nil
	}
}
