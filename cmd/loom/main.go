// Command loom is the CLI entry point: one root cobra command, subcommands
// for dev and serve. Grounded on cmd/vango/main.go's rootCmd/AddCommand
// shape and version.go's version/commit/date build-time vars.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "The reactive core of loom, a deterministic UI framework for Go",
		Long: `loom is a server-driven reactive UI framework for Go.

A single-threaded cooperative scheduler serializes state mutations into
atomic, minimal updates of a live document tree, with server-rendered
hydration and a WebSocket live session for event dispatch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		devCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version)
				return
			}
			fmt.Printf("loom %s (%s, built %s)\n", version, commit, date)
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	return cmd
}
