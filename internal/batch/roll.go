package batch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/negproof/negproof/internal/imageio"
	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
	"github.com/negproof/negproof/internal/negative/stages"
	"github.com/negproof/negproof/internal/storage"
)

// analysisLongEdge bounds the working size for per-file measurement.
// Density floors and ceilings are percentile statistics; they are stable
// well below full scan resolution.
const analysisLongEdge = 1024

// FileAnalysis is the per-file measurement feeding a roll average.
type FileAnalysis struct {
	Path   string
	Hash   string
	Bounds negative.NormalizationBounds
	Cast   negative.ShadowCastCorrection
	Err    error
}

// RollOptions controls discovery and concurrency for roll analysis.
type RollOptions struct {
	Workers         int // <=0 means GOMAXPROCS
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	Progress        Progress
}

// AnalyzeRoll measures normalization bounds and shadow cast for every
// scan under args and aggregates them into one roll record. Frames that
// fail to load are reported in the per-file results and excluded from the
// aggregate; the run only fails when no frame could be measured.
func AnalyzeRoll(ctx context.Context, args []string, proc negative.ProcessConfig,
	opts *RollOptions,
) (storage.RollRecord, []FileAnalysis, error) {
	if opts == nil {
		opts = &RollOptions{}
	}

	files, err := DiscoverScans(args, opts.Recursive, opts.IncludePatterns, opts.ExcludePatterns)
	if err != nil {
		return storage.RollRecord{}, nil, fmt.Errorf("roll analysis: %w", err)
	}
	if len(files) == 0 {
		return storage.RollRecord{}, nil, errors.New("roll analysis: no scans found")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(files) {
		workers = len(files)
	}

	results := make([]FileAnalysis, len(files))
	var done atomic.Int64
	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = analyzeFile(files[i], proc)
				n := done.Add(1)
				if opts.Progress != nil {
					opts.Progress(int(n), len(files), files[i])
				}
			}
		}()
	}

	for i := range files {
		if ctx.Err() != nil {
			close(jobs)
			wg.Wait()
			return storage.RollRecord{}, results, ctx.Err()
		}
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return storage.RollRecord{}, results, ctx.Err()
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	rec, err := aggregateRoll(results)
	return rec, results, err
}

func analyzeFile(path string, proc negative.ProcessConfig) FileAnalysis {
	fa := FileAnalysis{Path: path}

	src, meta, err := imageio.LoadBuffer(path)
	if err != nil {
		fa.Err = err
		return fa
	}
	fa.Hash = meta.Hash

	small := src
	if long := max(src.W, src.H); long > analysisLongEdge {
		scale := float64(analysisLongEdge) / float64(long)
		small = imagemath.ResizeBilinear(src, scaleDim(src.W, scale), scaleDim(src.H, scale))
	}

	fa.Bounds = stages.AnalyzeBounds(small, nil, proc.Mode, proc.AnalysisBuffer, proc.E6Normalize)
	normalized := stages.Normalize(small, fa.Bounds)
	fa.Cast = stages.AnalyzeShadowCast(normalized, proc.ShadowCastThreshold)
	return fa
}

func scaleDim(d int, scale float64) int {
	out := int(math.Round(float64(d) * scale))
	if out < 1 {
		out = 1
	}
	return out
}

// aggregateRoll folds the successful per-file measurements into one
// record using a per-channel robust mean.
func aggregateRoll(results []FileAnalysis) (storage.RollRecord, error) {
	var rec storage.RollRecord
	ok := 0
	for _, fa := range results {
		if fa.Err == nil {
			ok++
		}
	}
	if ok == 0 {
		return rec, errors.New("roll analysis: no frame could be measured")
	}

	for ch := 0; ch < 3; ch++ {
		floors := make([]float64, 0, ok)
		ceils := make([]float64, 0, ok)
		casts := make([]float64, 0, ok)
		for _, fa := range results {
			if fa.Err != nil {
				continue
			}
			floors = append(floors, fa.Bounds.Floors[ch])
			ceils = append(ceils, fa.Bounds.Ceils[ch])
			casts = append(casts, fa.Cast.Vector[ch])
		}
		rec.Floors[ch] = RobustMean(floors)
		rec.Ceils[ch] = RobustMean(ceils)
		rec.Cast[ch] = RobustMean(casts)
	}
	return rec, nil
}

// RobustMean averages values while resisting the odd bad frame: a light
// leak or a blank exposure should not drag a whole roll's floors. Small
// samples get a plain mean; larger ones average only the values inside
// the [P10, P90] interval, falling back to the plain mean when trimming
// empties the sample.
func RobustMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < 5 {
		return mean(values)
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo := percentile(sorted, 0.10)
	hi := percentile(sorted, 0.90)

	var sum float64
	n := 0
	for _, v := range values {
		if v >= lo && v <= hi {
			sum += v
			n++
		}
	}
	if n == 0 {
		return mean(values)
	}
	return sum / float64(n)
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile interpolates linearly between the neighboring order
// statistics. sorted must be non-empty and ascending.
func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
