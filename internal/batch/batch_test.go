package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/testutil"
)

type fakeRenderer struct {
	sources []string
	fail    bool
}

func (f *fakeRenderer) SetSource(hash string) {
	f.sources = append(f.sources, hash)
}

func (f *fakeRenderer) Render(_ context.Context, src *imagemath.Buffer,
	_ *negative.WorkspaceConfig, _ *negative.Context,
) (*imagemath.Buffer, error) {
	if f.fail {
		return nil, assert.AnError
	}
	return src.Clone(), nil
}

type fakeSettings struct {
	byHash map[string]negative.WorkspaceConfig
}

func (f *fakeSettings) SettingsFor(hash string) (negative.WorkspaceConfig, bool) {
	cfg, ok := f.byHash[hash]
	if !ok {
		return negative.DefaultWorkspaceConfig(), false
	}
	return cfg, true
}

func (f *fakeSettings) Global() negative.WorkspaceConfig {
	return negative.DefaultWorkspaceConfig()
}

func writeScan(t *testing.T, path string) {
	t.Helper()
	cfg := testutil.DefaultScanConfig()
	cfg.Width, cfg.Height = 6, 4
	testutil.WriteScanPNG(t, path, cfg)
}

func TestExportWritesPrints(t *testing.T) {
	dir := t.TempDir()
	writeScan(t, filepath.Join(dir, "frame_01.png"))
	writeScan(t, filepath.Join(dir, "frame_02.png"))
	outDir := filepath.Join(dir, "prints")

	eng := &fakeRenderer{}
	var progress []int
	res, err := Export(context.Background(), []string{dir}, eng, &fakeSettings{}, &Config{
		OutputDir: outDir,
		Format:    negative.FormatPNG,
		Progress:  func(done, total int, _ string) { progress = append(progress, done) },
	}, nil)
	require.NoError(t, err)

	assert.Zero(t, res.Failed())
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, []int{1, 2}, progress)
	assert.Len(t, eng.sources, 2)
	for _, o := range res.Outcomes {
		fi, err := os.Stat(o.Output)
		require.NoError(t, err)
		assert.Positive(t, fi.Size())
	}
}

func TestExportRecordsPerFileFailures(t *testing.T) {
	dir := t.TempDir()
	writeScan(t, filepath.Join(dir, "frame_01.png"))

	eng := &fakeRenderer{fail: true}
	res, err := Export(context.Background(), []string{dir}, eng, &fakeSettings{}, &Config{
		OutputDir: dir,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed())
	require.Error(t, res.Outcomes[0].Err)
}

func TestExportEmptyDirectoryFails(t *testing.T) {
	_, err := Export(context.Background(), []string{t.TempDir()}, &fakeRenderer{}, &fakeSettings{}, &Config{}, nil)
	require.Error(t, err)
}

func TestExportHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	writeScan(t, filepath.Join(dir, "frame_01.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Export(ctx, []string{dir}, &fakeRenderer{}, &fakeSettings{}, &Config{}, nil)
	require.ErrorIs(t, err, context.Canceled)
}
