package batch

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/negproof/negproof/internal/storage"
)

func sampleResult() *Result {
	return &Result{
		Outcomes: []Outcome{
			{Path: "a.tif", Output: "out/a_print.tif", Duration: 1200 * time.Millisecond},
			{Path: "b.tif", Err: errors.New("decode failed"), Duration: 80 * time.Millisecond},
		},
		Duration: 1300 * time.Millisecond,
	}
}

func TestFormatResultText(t *testing.T) {
	out, err := FormatResult(sampleResult(), "text")
	require.NoError(t, err)
	assert.Contains(t, out, "ok    a.tif -> out/a_print.tif")
	assert.Contains(t, out, "FAIL  b.tif: decode failed")
	assert.Contains(t, out, "2 files, 1 failed")
}

func TestFormatResultJSON(t *testing.T) {
	out, err := FormatResult(sampleResult(), "json")
	require.NoError(t, err)

	var payload struct {
		Files []struct {
			File   string `json:"file"`
			Output string `json:"output"`
			Error  string `json:"error"`
		} `json:"files"`
		Total  int `json:"total"`
		Failed int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, 2, payload.Total)
	assert.Equal(t, 1, payload.Failed)
	require.Len(t, payload.Files, 2)
	assert.Equal(t, "out/a_print.tif", payload.Files[0].Output)
	assert.Empty(t, payload.Files[1].Output)
	assert.Equal(t, "decode failed", payload.Files[1].Error)
}

func TestFormatRoll(t *testing.T) {
	rec := storage.RollRecord{
		Floors: [3]float64{-2.1, -2.0, -1.9},
		Ceils:  [3]float64{-0.3, -0.25, -0.2},
		Cast:   [3]float64{0.02, -0.01, 0.015},
	}
	out := FormatRoll("portra-160", rec, 11, 12)
	assert.Contains(t, out, "roll portra-160 (11/12 frames measured)")
	assert.Contains(t, out, "-2.1000")
	assert.Contains(t, out, "+0.0200")

	out = FormatRoll("", rec, 3, 3)
	assert.Contains(t, out, "3/3 frames measured")
}
