package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var invokeToolArgs string

var invokeToolCmd = &cobra.Command{
	Use:   "invoke <name>",
	Short: "Invoke a tool on the mcpml server",
	Long: "Invoke a tool on the mcpml server.\n" +
		"The tool's arguments are supplied as a JSON object via --args.\n\n" +
		"Example:\n" +
		"  mcpml invoke mathlib.add --args '{\"a\": 2, \"b\": 3}'",
	Args: cobra.ExactArgs(1),
	RunE: runInvokeTool,
}

func init() {
	invokeToolCmd.Flags().StringVar(
		&invokeToolArgs, "args", "{}", "JSON object containing the tool's arguments",
	)
	rootCmd.AddCommand(invokeToolCmd)
}

func runInvokeTool(cmd *cobra.Command, args []string) error {
	toolArgs := map[string]any{}
	if err := json.Unmarshal([]byte(invokeToolArgs), &toolArgs); err != nil {
		return fmt.Errorf("arguments are not a valid JSON object: %w", err)
	}

	result, err := apiClient.InvokeTool(args[0], toolArgs)
	if err != nil {
		return fmt.Errorf("failed to invoke tool '%s': %w", args[0], err)
	}

	if result.IsError {
		cmd.Printf("Tool call failed (%s): %s\n", result.ErrorKind, result.Error)
		return nil
	}

	if s, ok := result.Result.(string); ok {
		cmd.Println(s)
		return nil
	}
	j, err := json.MarshalIndent(result.Result, "", "  ")
	if err != nil {
		cmd.Println(result.Result)
		return nil
	}
	cmd.Println(string(j))
	return nil
}
