package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MemoFlux/MemoFluxServer/cmd/memoflux/internal/config"
	"github.com/MemoFlux/MemoFluxServer/pkg/genx/modelloader"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "memoflux",
	Short: "Turn notes and images into schedules, knowledge and information",
	Long: `memoflux - extracts a schedule, a knowledge outline and an information
card from a piece of text or an image using configured LLM generators.

Configuration is read from --config or from the OS config directory:
  macOS:   ~/Library/Application Support/memoflux/config.yaml
  Linux:   ~/.config/memoflux/config.yaml
  Windows: %AppData%/memoflux/config.yaml

Examples:
  # Run the server
  memoflux serve

  # Extract locally and print one field
  memoflux extract --text "Dinner with Ana on Friday at 7" --query .schedule.tasks

  # Watch the stream
  echo "Go generics were added in 1.18" | memoflux stream`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		modelloader.Verbose = verbose
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $CONFIG_DIR/memoflux/config.yaml)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
