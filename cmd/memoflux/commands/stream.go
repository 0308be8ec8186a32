package commands

import (
	"github.com/spf13/cobra"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
	"github.com/MemoFlux/MemoFluxServer/pkg/cli"
)

var (
	streamInput inputFlags
	streamRaw   bool
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream the views as they are generated",
	Long: `Run the views one after another and print every envelope as it arrives,
schedule first, then knowledge, then information.

With --raw the envelopes are printed as server-sent event frames, exactly as
POST /aigen_streaming sends them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		svc, err := newService(cfg, nil)
		if err != nil {
			return err
		}
		c, err := streamInput.content(cmd)
		if err != nil {
			return err
		}
		tags := newEnricher(cmd.Context(), cfg).Augment(cmd.Context(), c, streamInput.tags)

		var sink aigen.Sink = cli.NewStreamPrinter(cmd.OutOrStdout(), 0)
		if streamRaw {
			sink = aigen.NewSSEWriter(cmd.OutOrStdout())
		}
		return svc.Stream(cmd.Context(), c, tags, sink)
	},
}

func init() {
	streamInput.register(streamCmd)
	streamCmd.Flags().BoolVar(&streamRaw, "raw", false, "print server-sent event frames")
	rootCmd.AddCommand(streamCmd)
}
