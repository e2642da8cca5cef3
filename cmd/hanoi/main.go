// Command hanoi is the entry point for both operating modes: it parses
// the CLI surface and dispatches to the server loop or the client loop
// depending on --mode (spec §4.11, §6).
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nghiat/Hanoi/internal/client"
	"github.com/nghiat/Hanoi/internal/server"
)

const (
	modeServer = "server"
	modeClient = "client"
)

var (
	mode       string
	root       string
	clientPipe string
	files      bool
	word       bool
	mainServer bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hanoi [term]",
		Short: "A persistent, directory-scoped text-search daemon and client",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			term := ""
			if len(args) == 1 {
				term = args[0]
			}
			return run(term)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", modeClient, "operating mode: server or client")
	cmd.Flags().StringVar(&root, "root", "", "root directory to index (required in server mode)")
	cmd.Flags().StringVar(&clientPipe, "client-pipe", "", "reply channel name (server-internal)")
	cmd.Flags().BoolVar(&files, "files", false, "list all indexed paths instead of searching")
	cmd.Flags().BoolVarP(&word, "word", "w", false, "restrict matches to non-alphanumeric-bounded occurrences")
	cmd.Flags().BoolVarP(&mainServer, "main-server", "m", false, "entry-point marker; set by the client on the first hop")

	return cmd
}

func run(term string) error {
	switch mode {
	case modeServer:
		if root == "" {
			return fmt.Errorf("--root is required in server mode")
		}
		return server.Run(root)
	case modeClient:
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		return client.Run(cwd, client.Query{Files: files, Word: word, Term: term}, os.Stdout)
	default:
		return fmt.Errorf("unknown --mode %q, expected %q or %q", mode, modeServer, modeClient)
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}
