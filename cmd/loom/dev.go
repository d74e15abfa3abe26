package main

import (
	"os"

	"github.com/spf13/cobra"
)

func devCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start loom in development mode",
		Long: `Runs the same HTTP/WebSocket server as "loom serve" with
LOOM_DEV_MODE=1 semantics: hook-order and render-time-mutation
assertions are enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Setenv("LOOM_DEV_MODE", "1")
			return runServe("127.0.0.1", port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to run on")
	return cmd
}
