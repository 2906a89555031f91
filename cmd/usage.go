package cmd

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage <name>",
	Short: "Get usage information for a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetToolUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runGetToolUsage(cmd *cobra.Command, args []string) error {
	t, err := apiClient.GetTool(args[0])
	if err != nil {
		return fmt.Errorf("failed to get tool '%s': %w", args[0], err)
	}

	cmd.Printf("%s (%s)\n", t.Name, t.Kind)
	if t.Description != "" {
		cmd.Println(t.Description)
	}

	if len(t.InputSchema.Properties) == 0 {
		cmd.Println("This tool does not require any input parameters.")
		return nil
	}

	cmd.Println()
	cmd.Println("Input Parameters:")
	for k, v := range t.InputSchema.Properties {
		requiredOrOptional := "optional"
		if slices.Contains(t.InputSchema.Required, k) {
			requiredOrOptional = "required"
		}

		cmd.Printf("* %s (%s)\n", k, requiredOrOptional)

		j, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			// Simply print the raw object if we fail to marshal it
			cmd.Println(" ", v)
		} else {
			cmd.Println(" ", string(j))
		}
	}

	return nil
}
