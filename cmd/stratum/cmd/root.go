// Package cmd provides the CLI commands for Stratum.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manak-ai/stratum/pkg/version"
)

// NewRootCmd creates the root command for the stratum CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stratum",
		Short: "Semantic retrieval service for documents and repositories",
		Long: `Stratum indexes documents and source repositories into overview and
chunk collections and serves semantic queries over them: vector search,
cross-encoder reranking, and summarization, exposed over HTTP and as
agent tools.

Run 'stratum serve' to start the service.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("stratum version {{.Version}}\n")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
