// Command newschat is the entry point for the news chatbot.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// chat API for interactive use.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/newschat-go/cmd/newschat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
