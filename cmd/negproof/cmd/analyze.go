package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/negproof/negproof/internal/batch"
	"github.com/negproof/negproof/internal/negative"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <scan|dir>...",
	Short: "Measure averaged normalization bounds for a roll of negatives",
	Long: `Analyze every scan under the given paths and aggregate their
per-frame normalization bounds and shadow cast into one roll record.
Outlier frames (light leaks, blank frames) are trimmed from the average.

Examples:
  negproof analyze scans/roll12/
  negproof analyze scans/roll12/ --save-roll portra400-12
  negproof analyze scans/ --recursive --workers 8`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		rollName, _ := cmd.Flags().GetString("save-roll")
		workers, _ := cmd.Flags().GetInt("workers")
		recursive, _ := cmd.Flags().GetBool("recursive")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		if workers <= 0 {
			workers = cfg.Batch.Workers
		}

		proc := negative.DefaultProcessConfig()
		opts := &batch.RollOptions{
			Workers:         workers,
			Recursive:       recursive,
			IncludePatterns: include,
			ExcludePatterns: exclude,
			Progress: func(done, total int, path string) {
				slog.Debug("analyzed", "file", path, "done", done, "total", total)
			},
		}

		rec, frames, err := batch.AnalyzeRoll(cmd.Context(), args, proc, opts)
		if err != nil {
			return err
		}

		measured := 0
		for _, f := range frames {
			if f.Err == nil {
				measured++
			} else {
				slog.Warn("frame skipped", "file", f.Path, "error", f.Err)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), batch.FormatRoll(rollName, rec, measured, len(frames)))

		if rollName != "" {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			if err := store.SaveRoll(rollName, rec); err != nil {
				return fmt.Errorf("save roll %s: %w", rollName, err)
			}
			slog.Info("roll saved", "name", rollName, "frames", measured)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("save-roll", "", "persist the aggregate under this roll name")
	analyzeCmd.Flags().Int("workers", 0, "concurrent analysis workers (default: from config)")
	analyzeCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	analyzeCmd.Flags().StringSlice("include", nil, "only analyze files matching these glob patterns")
	analyzeCmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	rootCmd.AddCommand(analyzeCmd)
}
