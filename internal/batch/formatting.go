package batch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/negproof/negproof/internal/storage"
)

// FormatResult renders a batch export summary in the requested format
// ("json" or text).
func FormatResult(r *Result, format string) (string, error) {
	if format == "json" {
		return formatResultJSON(r)
	}
	return formatResultText(r), nil
}

func formatResultJSON(r *Result) (string, error) {
	type fileEntry struct {
		File     string `json:"file"`
		Output   string `json:"output,omitempty"`
		Duration string `json:"duration"`
		Error    string `json:"error,omitempty"`
	}
	payload := struct {
		Files    []fileEntry `json:"files"`
		Total    int         `json:"total"`
		Failed   int         `json:"failed"`
		Duration string      `json:"duration"`
	}{
		Files:    make([]fileEntry, 0, len(r.Outcomes)),
		Total:    len(r.Outcomes),
		Failed:   r.Failed(),
		Duration: r.Duration.Round(time.Millisecond).String(),
	}
	for _, o := range r.Outcomes {
		e := fileEntry{
			File:     o.Path,
			Output:   o.Output,
			Duration: o.Duration.Round(time.Millisecond).String(),
		}
		if o.Err != nil {
			e.Error = o.Err.Error()
			e.Output = ""
		}
		payload.Files = append(payload.Files, e)
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	return string(raw), err
}

func formatResultText(r *Result) string {
	var b strings.Builder
	for _, o := range r.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(&b, "FAIL  %s: %v\n", o.Path, o.Err)
			continue
		}
		fmt.Fprintf(&b, "ok    %s -> %s (%v)\n", o.Path, o.Output, o.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "\n%d files, %d failed, %v total\n",
		len(r.Outcomes), r.Failed(), r.Duration.Round(time.Millisecond))
	return b.String()
}

// FormatRoll renders a roll record for terminal output, one channel per
// column in the red, green, blue order the rest of the tooling uses.
func FormatRoll(name string, rec storage.RollRecord, measured, total int) string {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "roll %s (%d/%d frames measured)\n", name, measured, total)
	} else {
		fmt.Fprintf(&b, "%d/%d frames measured\n", measured, total)
	}
	fmt.Fprintf(&b, "  floors  %+.4f  %+.4f  %+.4f\n", rec.Floors[0], rec.Floors[1], rec.Floors[2])
	fmt.Fprintf(&b, "  ceils   %+.4f  %+.4f  %+.4f\n", rec.Ceils[0], rec.Ceils[1], rec.Ceils[2])
	fmt.Fprintf(&b, "  cast    %+.4f  %+.4f  %+.4f\n", rec.Cast[0], rec.Cast[1], rec.Cast[2])
	return b.String()
}
