package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/negproof/negproof/internal/batch"
	"github.com/negproof/negproof/internal/negative"
)

var exportCmd = &cobra.Command{
	Use:   "export <scan|dir>...",
	Short: "Batch-export prints for a set of negatives",
	Long: `Render every given scan (and every scan inside given directories)
with its stored settings and write the prints next to the originals or
into --output-dir.

Examples:
  negproof export scans/
  negproof export scans/ --recursive --output-dir prints/ --format TIFF
  negproof export scans/ --include "roll12_*" --exclude "*_reject*"`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		outputDir, _ := cmd.Flags().GetString("output-dir")
		format, _ := cmd.Flags().GetString("format")
		recursive, _ := cmd.Flags().GetBool("recursive")
		include, _ := cmd.Flags().GetStringSlice("include")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		outFormat, _ := cmd.Flags().GetString("output")

		if outputDir == "" {
			outputDir = cfg.Batch.OutputDir
		}
		if format == "" {
			format = cfg.Batch.Format
		}
		if !cmd.Flags().Changed("recursive") {
			recursive = cfg.Batch.Recursive
		}

		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		coord := newCoordinator(cfg)
		defer coord.Close()

		bc := &batch.Config{
			OutputDir:       outputDir,
			Format:          negative.ExportFormat(strings.ToUpper(format)),
			Recursive:       recursive,
			IncludePatterns: include,
			ExcludePatterns: exclude,
			Progress: func(done, total int, path string) {
				slog.Info("exported", "file", path, "done", done, "total", total)
			},
		}

		result, err := batch.Export(cmd.Context(), args, coord, store, bc, slog.Default())
		if err != nil {
			return err
		}

		out, err := batch.FormatResult(result, outFormat)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)

		if n := result.Failed(); n > 0 {
			return fmt.Errorf("%d of %d files failed", n, len(result.Outcomes))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output-dir", "", "directory for exported prints (default: alongside each scan)")
	exportCmd.Flags().String("format", "", "override the export format for every file (JPEG, TIFF, PNG)")
	exportCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	exportCmd.Flags().StringSlice("include", nil, "only process files matching these glob patterns")
	exportCmd.Flags().StringSlice("exclude", nil, "skip files matching these glob patterns")
	exportCmd.Flags().String("output", "text", "report format (text, json)")
	rootCmd.AddCommand(exportCmd)
}
