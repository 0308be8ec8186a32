package commands

import (
	"github.com/spf13/cobra"

	"github.com/MemoFlux/MemoFluxServer/pkg/cli"
	"github.com/MemoFlux/MemoFluxServer/pkg/extract"
)

// inputFlags are shared by extract and stream.
type inputFlags struct {
	text  string
	image string
	tags  []string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.text, "text", "t", "", "text to process (default: read stdin)")
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "image file to process")
	cmd.Flags().StringSliceVar(&f.tags, "tags", nil, "tags guiding the knowledge and information views")
}

func (f *inputFlags) reset() { *f = inputFlags{} }

func (f *inputFlags) content(cmd *cobra.Command) (extract.Content, error) {
	return cli.ReadContent(f.text, f.image, cmd.InOrStdin())
}
