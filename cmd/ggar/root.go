package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"github.com/spf13/cobra"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/internal/config"
)

var (
	verbose    bool
	configPath string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ggar",
	Short: "Compose product designs and hand them off to AR viewers",
	Long: `ggar rasterises product designs into textures and moves them between
sessions: the editing session stores a design and shows a QR code, the AR
session scans it and loads the same design.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = c
		logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log, verbose)
		if err != nil {
			return err
		}
		ggar.SetLogger(logger)
		gg.SetLogger(logger)
		if cfg.Compose.Shaping {
			text.SetShaper(text.NewGoTextShaper())
		}
		return nil
	},
}

// newLogger builds the slog logger for the configured level and format.
// verbose forces debug.
func newLogger(w io.Writer, lc config.Log, verbose bool) (*slog.Logger, error) {
	level, err := lc.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == config.FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ggar:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
}
