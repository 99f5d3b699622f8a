// Package cmd implements the negproof command-line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/negproof/negproof/internal/config"
	"github.com/negproof/negproof/internal/render"
	"github.com/negproof/negproof/internal/render/gpu"
	"github.com/negproof/negproof/internal/storage"
)

var (
	configLoader *config.Loader
	globalConfig *config.Config
	cfgFile      string
)

var rootCmd = &cobra.Command{
	Use:   "negproof",
	Short: "Darkroom-style printing for scanned film negatives",
	Long: `negproof turns scanned film negatives into finished positive prints,
simulating the optical printing process: density-domain normalization,
paper tone curves, dodge/burn retouching, and print layout.

Examples:
  negproof render scan_012.tif -o print.jpg
  negproof export scans/ --output-dir prints --format TIFF
  negproof analyze scans/roll_07 --save-roll "portra 400 2026-08"
  negproof serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/negproof, /etc/negproof)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("store", "", "settings store path")
	rootCmd.PersistentFlags().Bool("no-gpu", false, "disable GPU acceleration")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("store_path", rootCmd.PersistentFlags().Lookup("store"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}

		var logLevel slog.Level
		if globalConfig.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch globalConfig.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)

		if noGPU, _ := cmd.Flags().GetBool("no-gpu"); noGPU {
			globalConfig.GPU.Enabled = false
		}
	}
}

func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// getConfig returns the effective configuration, re-unmarshaled so flag
// bindings done after the initial load take effect.
func getConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}
	var cfg config.Config
	if err := configLoader.GetViper().Unmarshal(&cfg); err != nil {
		return globalConfig
	}
	if !globalConfig.GPU.Enabled {
		cfg.GPU.Enabled = false
	}
	return &cfg
}

// newCoordinator builds the render coordinator, attaching the GPU engine
// when it is enabled and a device is available.
func newCoordinator(cfg *config.Config) *render.Coordinator {
	var accel render.Engine
	if cfg.GPU.Enabled {
		eng, err := gpu.New(slog.Default())
		if err != nil {
			slog.Warn("gpu unavailable, using cpu engine", "error", err)
		} else {
			accel = eng
		}
	}
	return render.NewCoordinator(accel, slog.Default())
}

// openStore opens the settings database named by the configuration.
func openStore(cfg *config.Config) (*storage.Store, error) {
	return storage.Open(cfg.StorePath)
}
