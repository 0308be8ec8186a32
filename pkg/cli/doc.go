// Package cli holds the terminal helpers of the memoflux command: result
// output as YAML or JSON with an optional jq filter, input loading, and a
// styled renderer for streamed envelopes.
//
//	cli.Output(composite, cli.OutputOptions{
//	    Format: cli.FormatJSON,
//	    Query:  ".knowledge.tags",
//	})
package cli
