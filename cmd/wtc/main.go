// Command wtc fetches chat history from Discord or Slack, summarizes it
// with an LLM, and answers questions about it interactively.
package main

import (
	"fmt"
	"os"

	"github.com/pymc-labs/whatthechat/cmd/wtc/commands"
)

// version is injected at build time via ldflags.
var version = "dev"

func main() {
	rootCmd := commands.NewRootCmd(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
