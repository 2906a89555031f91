// Package cmd contains the mcpml command line interface.
package cmd

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/a5c-ai/mcpml/client"
	"github.com/a5c-ai/mcpml/pkg/version"
)

const DefaultServerURL = "http://127.0.0.1:8000"

var serverURL string

// apiClient talks to a running mcpml server. It is initialized before any
// subcommand runs so subcommands can use it directly.
var apiClient *client.Client

var rootCmd = &cobra.Command{
	Use:     "mcpml",
	Short:   "mcpml exposes declaratively-configured tools and sub-agents over MCP",
	Version: version.GetVersion(),
	Long: "mcpml is an MCP server whose tools are declared in a configuration file.\n" +
		"A tool is either a plain function or a delegated sub-agent that may itself\n" +
		"call other tools, including other sub-agents.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		apiClient = client.New(serverURL, http.DefaultClient)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&serverURL, "server", DefaultServerURL, "base URL of the mcpml server",
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
