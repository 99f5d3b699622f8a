package render

import (
	"context"
	"fmt"
	"time"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/negative/stages"
)

// CPUEngine runs the full stage chain in process. It is the reference
// implementation every other engine must match.
type CPUEngine struct {
	cache *StageCache

	// stageHook, when set, is called before each stage runs. Used by
	// tests to observe which stages a render actually executed.
	stageHook func(name string)
}

func NewCPUEngine() *CPUEngine {
	return &CPUEngine{cache: NewStageCache()}
}

func (e *CPUEngine) Name() string { return "cpu" }

func (e *CPUEngine) Close() error {
	e.cache.Clear()
	return nil
}

// SetSource invalidates cached intermediates when the loaded image changes.
func (e *CPUEngine) SetSource(hash string) {
	e.cache.SetSource(hash)
}

func (e *CPUEngine) Render(ctx context.Context, src *imagemath.Buffer, cfg *negative.WorkspaceConfig, pc *negative.Context) (*imagemath.Buffer, error) {
	keys := GroupKeys(cfg)

	img := src
	start := GroupBase
	if group, snap := e.cache.Resume(keys); group >= 0 {
		snap.restore(pc)
		img = snap.img
		start = group + 1
		cacheHitsTotal.WithLabelValues(groupNames[group]).Inc()
	}

	groups := [NumGroups][]stages.Processor{
		GroupBase:     {stages.NewGeometry(cfg.Geometry), stages.NewNormalization(cfg.Process)},
		GroupExposure: {stages.NewPhotometric(cfg.Exposure)},
		GroupRetouch:  {stages.NewRetouch(cfg.Retouch)},
		GroupLab:      {stages.NewColorLab(cfg.Lab)},
	}

	var err error
	for g := start; g < NumGroups; g++ {
		for _, st := range groups[g] {
			if img, err = e.runStage(ctx, st, pc, img); err != nil {
				return nil, err
			}
		}
		if g == GroupExposure {
			// the uncorrected positive, used by pickers and analysis
			pc.SetMetric("base_positive", img)
		}
		e.cache.Store(g, keys[g], img, pc)
	}

	// Toning, crop and layout are cheap and depend on the output target,
	// so they run on every render and are never cached.
	if img, err = e.runStage(ctx, stages.NewToning(cfg.Toning), pc, img); err != nil {
		return nil, err
	}
	if img, err = e.runStage(ctx, &stages.Crop{KeepFullFrame: cfg.Geometry.KeepFullFrame}, pc, img); err != nil {
		return nil, err
	}
	sizeRef := max(img.W, img.H)
	if img, err = e.runStage(ctx, stages.NewLayout(cfg.Export, sizeRef), pc, img); err != nil {
		return nil, err
	}
	return img, nil
}

func (e *CPUEngine) runStage(ctx context.Context, st stages.Processor, pc *negative.Context, img *imagemath.Buffer) (*imagemath.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.stageHook != nil {
		e.stageHook(st.Name())
	}
	start := time.Now()
	out, err := st.Process(pc, img)
	stageDuration.WithLabelValues(st.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", st.Name(), err)
	}
	return out, nil
}
