package commands

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/MemoFlux/MemoFluxServer/pkg/cli"
)

var (
	extractInput  inputFlags
	extractFormat string
	extractQuery  string
	extractOutput string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract all three views from text or an image",
	Long: `Run the schedule, knowledge and information views concurrently and print
the composite result. A view that fails is printed empty and its error is
listed under "errors".

Examples:
  memoflux extract --text "Standup moved to 10:30 tomorrow"
  memoflux extract --image receipt.png --format json
  memoflux extract -t "..." --query '.knowledge.knowledge_items[].header'`,
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
		c, err := extractInput.content(cmd)
		if err != nil {
			return err
		}
		tags := newEnricher(cmd.Context(), cfg).Augment(cmd.Context(), c, extractInput.tags)
		res := svc.Aggregate(cmd.Context(), c, tags)
		return cli.Output(res, cli.OutputOptions{
			Format: cli.OutputFormat(extractFormat),
			Query:  extractQuery,
			File:   extractOutput,
			Writer: writerUnlessFile(cmd, extractOutput),
		})
	},
}

func init() {
	extractInput.register(extractCmd)
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "yaml", "output format: yaml or json")
	extractCmd.Flags().StringVarP(&extractQuery, "query", "q", "", "jq expression applied to the result")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(extractCmd)
}

// writerUnlessFile leaves the writer unset when output goes to a file.
func writerUnlessFile(cmd *cobra.Command, file string) io.Writer {
	if file != "" {
		return nil
	}
	return cmd.OutOrStdout()
}
