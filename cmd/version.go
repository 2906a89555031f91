package cmd

import (
	"github.com/spf13/cobra"

	"github.com/a5c-ai/mcpml/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mcpml version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
