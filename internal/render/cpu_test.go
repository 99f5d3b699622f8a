package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

// testNegative builds a plausible scanned negative: a dark border around a
// brighter, graded interior.
func testNegative(w, h int) *imagemath.Buffer {
	img := imagemath.NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float32(0.3) + 0.5*float32(x)/float32(w)
			if x < 2 || y < 2 || x >= w-2 || y >= h-2 {
				v = 0.05
			}
			img.Set(x, y, v, v*0.9, v*0.8)
		}
	}
	return img
}

func testWorkspace() negative.WorkspaceConfig {
	cfg := negative.DefaultWorkspaceConfig()
	// keep the finishing stages exercised but geometry simple
	cfg.Geometry.Autocrop = false
	cfg.Geometry.KeepFullFrame = true
	return cfg
}

func TestCPUEngineRendersFullChain(t *testing.T) {
	eng := NewCPUEngine()
	defer eng.Close()

	var ran []string
	eng.stageHook = func(name string) { ran = append(ran, name) }

	cfg := testWorkspace()
	pc := negative.NewContext(64, 64, cfg.Process.Mode, 64)
	out, err := eng.Render(context.Background(), testNegative(64, 64), &cfg, pc)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, []string{
		"geometry", "normalization", "photometric",
		"retouch", "lab", "toning", "crop", "layout",
	}, ran)

	for _, v := range out.Data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
	assert.Contains(t, pc.Metrics, "base_positive")
}

func TestCPUEngineCacheSkipsUnchangedStages(t *testing.T) {
	eng := NewCPUEngine()
	defer eng.Close()
	eng.SetSource("frame-1")

	cfg := testWorkspace()
	src := testNegative(64, 64)

	render := func() []string {
		var ran []string
		eng.stageHook = func(name string) { ran = append(ran, name) }
		pc := negative.NewContext(64, 64, cfg.Process.Mode, 64)
		_, err := eng.Render(context.Background(), src, &cfg, pc)
		require.NoError(t, err)
		return ran
	}

	render()

	// unchanged config: only the finishing stages run
	assert.Equal(t, []string{"toning", "crop", "layout"}, render())

	// a retouch change reruns retouch and lab but not the stages above it
	cfg.Retouch.DustThreshold = 0.2
	assert.Equal(t, []string{"retouch", "lab", "toning", "crop", "layout"}, render())

	// an exposure change reruns everything from the tone curve down
	cfg.Exposure.Density = 1.4
	assert.Equal(t, []string{"photometric", "retouch", "lab", "toning", "crop", "layout"}, render())

	// a source change starts over
	eng.SetSource("frame-2")
	assert.Equal(t, []string{
		"geometry", "normalization", "photometric",
		"retouch", "lab", "toning", "crop", "layout",
	}, render())
}

func TestCPUEngineDeterministic(t *testing.T) {
	cfg := testWorkspace()
	src := testNegative(100, 100)

	var outputs []*imagemath.Buffer
	for i := 0; i < 2; i++ {
		eng := NewCPUEngine()
		pc := negative.NewContext(100, 100, cfg.Process.Mode, 100)
		out, err := eng.Render(context.Background(), src, &cfg, pc)
		require.NoError(t, err)
		outputs = append(outputs, out)
		require.NoError(t, eng.Close())
	}
	assert.Equal(t, outputs[0].Data, outputs[1].Data)
}

func TestCPUEngineCachedResumeMatchesColdRender(t *testing.T) {
	cfg := testWorkspace()
	src := testNegative(64, 64)

	eng := NewCPUEngine()
	defer eng.Close()
	pc := negative.NewContext(64, 64, cfg.Process.Mode, 64)
	_, err := eng.Render(context.Background(), src, &cfg, pc)
	require.NoError(t, err)

	cfg.Lab.Saturation = 1.3
	pcWarm := negative.NewContext(64, 64, cfg.Process.Mode, 64)
	warm, err := eng.Render(context.Background(), src, &cfg, pcWarm)
	require.NoError(t, err)

	cold := NewCPUEngine()
	defer cold.Close()
	pcCold := negative.NewContext(64, 64, cfg.Process.Mode, 64)
	ref, err := cold.Render(context.Background(), src, &cfg, pcCold)
	require.NoError(t, err)

	assert.Equal(t, ref.Data, warm.Data)
}

func TestCPUEngineCanceledContext(t *testing.T) {
	eng := NewCPUEngine()
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testWorkspace()
	pc := negative.NewContext(32, 32, cfg.Process.Mode, 32)
	_, err := eng.Render(ctx, testNegative(32, 32), &cfg, pc)
	assert.ErrorIs(t, err, context.Canceled)
}
