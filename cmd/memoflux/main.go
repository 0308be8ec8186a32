// Command memoflux serves and runs the schedule, knowledge and information
// extractors.
//
// Usage:
//
//	memoflux [flags] <command> [args]
//
// Commands:
//
//	serve     - Run the HTTP server
//	extract   - Extract all three views from text or an image
//	stream    - Stream the views as they are generated
//	user add  - Register a user in the configured store
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/MemoFlux/MemoFluxServer/cmd/memoflux/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
