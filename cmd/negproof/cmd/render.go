package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/negproof/negproof/internal/imageio"
	"github.com/negproof/negproof/internal/imagemath"
	"github.com/negproof/negproof/internal/negative"
)

var renderCmd = &cobra.Command{
	Use:   "render <scan>",
	Short: "Render a single negative to a positive print",
	Long: `Render one scanned negative using its stored settings (or the
defaults) and write the print to disk.

Examples:
  negproof render scan_012.tif -o print.jpg
  negproof render scan_012.tif --full-res --format TIFF
  negproof render scan_012.tif --set density=0.3 --set saturation=1.1`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		fullRes, _ := cmd.Flags().GetBool("full-res")
		overrides, _ := cmd.Flags().GetStringToString("set")

		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		src, meta, err := imageio.LoadBuffer(args[0])
		if err != nil {
			return err
		}

		ws, _ := store.SettingsFor(meta.Hash)
		if format != "" {
			ws.Export.Format = negative.ExportFormat(strings.ToUpper(format))
		}
		if len(overrides) > 0 {
			if ws, err = applyOverrides(ws, overrides); err != nil {
				return err
			}
		}

		working := src
		if !fullRes {
			working = fitLongEdge(src, cfg.Render.PreviewSize)
		}

		coord := newCoordinator(cfg)
		defer coord.Close()
		coord.SetSource(meta.Hash)

		pc := negative.NewContext(working.W, working.H, ws.Process.Mode, cfg.Render.PreviewSize)
		start := time.Now()
		img, err := coord.RenderExport(cmd.Context(), working, &ws, pc)
		if err != nil {
			return fmt.Errorf("render %s: %w", args[0], err)
		}

		if output == "" {
			output = imageio.ExportPath(args[0], "", ws.Export.Format)
		}
		if err := imageio.Save(output, img, ws.Export.Format); err != nil {
			return err
		}

		slog.Info("render complete", "input", args[0], "output", output,
			"duration", time.Since(start).Round(time.Millisecond))
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

// applyOverrides merges --set key=value pairs into the workspace settings
// through the flat sidecar key space. Values are parsed as YAML scalars so
// numbers and booleans land typed.
func applyOverrides(ws negative.WorkspaceConfig, overrides map[string]string) (negative.WorkspaceConfig, error) {
	flat, err := ws.FlatMap()
	if err != nil {
		return ws, err
	}
	for k, v := range overrides {
		if _, known := flat[k]; !known {
			return ws, errors.New("unknown setting: " + k)
		}
		var val any
		if err := yaml.Unmarshal([]byte(v), &val); err != nil {
			return ws, fmt.Errorf("setting %s: %w", k, err)
		}
		flat[k] = val
	}
	return negative.FromFlatMap(flat)
}

// fitLongEdge scales a scan down so its long edge fits longEdge, never up.
func fitLongEdge(src *imagemath.Buffer, longEdge int) *imagemath.Buffer {
	long := src.W
	if src.H > long {
		long = src.H
	}
	if long <= longEdge {
		return src
	}
	scale := float64(longEdge) / float64(long)
	w := int(math.Round(float64(src.W) * scale))
	h := int(math.Round(float64(src.H) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return imagemath.ResizeBilinear(src, w, h)
}

func init() {
	renderCmd.Flags().StringP("output", "o", "", "output file (default: <scan>_print.<ext>)")
	renderCmd.Flags().String("format", "", "output format (JPEG, TIFF, PNG)")
	renderCmd.Flags().Bool("full-res", false, "render at scan resolution instead of preview size")
	renderCmd.Flags().StringToString("set", nil, "override a setting, e.g. --set density=0.3")
	rootCmd.AddCommand(renderCmd)
}
