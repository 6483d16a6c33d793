// Command fitcoach is the entry point for the fitness coach. It provides a
// CLI (via Cobra) for one-shot questions, exercise search, and index
// maintenance, and an HTTP server exposing the coach API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/fitcoach-go/cmd/fitcoach/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
