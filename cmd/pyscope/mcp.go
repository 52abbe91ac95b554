package main

import (
	"github.com/spf13/cobra"

	"pyscope/internal/mcp"
)

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the analysis tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logFile, err := setupFileLogging(root.verbose)
			if err != nil {
				// stdout carries the protocol, so fall back to stderr.
				setupLogging(cmd.ErrOrStderr(), root.verbose)
			} else {
				defer logFile.Close()
			}

			a, err := openApp(root)
			if err != nil {
				return err
			}
			defer a.Close()
			defer startObservability(cmd.Context(), a)()

			return mcp.New(a.Service, a.Config.MCP).ServeStdio()
		},
	}
}
