// Package cmd holds the sentinel command tree.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yardeye/go-sentinel/config"
	"github.com/yardeye/go-sentinel/logging"
)

var (
	cfgPath string
	verbose bool

	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Camera-based monitoring appliance",
	Long: `Sentinel watches a camera for motion, classifies what moved with a
two-stage detector, and keeps durable detection statistics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		settings = s

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logging.Init(logging.Config{
			Level:      level,
			FilePath:   s.Paths.LogFile,
			MaxSizeMB:  10,
			MaxBackups: 3,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "sentinel.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(watchCommand())
	rootCmd.AddCommand(statsCommand())
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.Execute()
}
