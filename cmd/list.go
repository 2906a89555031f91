package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listInvocationsLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools, MCP servers or recorded invocations",
}

var listToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools exposed by the mcpml server",
	RunE:  runListTools,
}

var listServersCmd = &cobra.Command{
	Use:   "servers",
	Short: "List the upstream MCP servers available to agent tools",
	RunE:  runListServers,
}

var listInvocationsCmd = &cobra.Command{
	Use:   "invocations",
	Short: "List the most recent tool invocations",
	RunE:  runListInvocations,
}

func init() {
	listInvocationsCmd.Flags().IntVar(
		&listInvocationsLimit, "limit", 50, "maximum number of invocations to list",
	)

	listCmd.AddCommand(listToolsCmd)
	listCmd.AddCommand(listServersCmd)
	listCmd.AddCommand(listInvocationsCmd)
	rootCmd.AddCommand(listCmd)
}

func runListTools(cmd *cobra.Command, args []string) error {
	tools, err := apiClient.ListTools()
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	if len(tools) == 0 {
		cmd.Println("No tools found")
		return nil
	}
	for i, t := range tools {
		cmd.Printf("%d. %s (%s)\n", i+1, t.Name, t.Kind)
		if t.Description != "" {
			cmd.Println(t.Description)
		}
		cmd.Println()
	}
	return nil
}

func runListServers(cmd *cobra.Command, args []string) error {
	servers, err := apiClient.ListServers()
	if err != nil {
		return fmt.Errorf("failed to list MCP servers: %w", err)
	}
	if len(servers) == 0 {
		cmd.Println("No MCP servers configured")
		return nil
	}
	for i, s := range servers {
		target := s.URL
		if target == "" {
			target = s.Command
		}
		cmd.Printf("%d. %s [%s] %s\n", i+1, s.Name, s.Transport, target)
		if s.Description != "" {
			cmd.Println(s.Description)
		}
		cmd.Println()
	}
	return nil
}

func runListInvocations(cmd *cobra.Command, args []string) error {
	records, err := apiClient.ListInvocations(listInvocationsLimit)
	if err != nil {
		return fmt.Errorf("failed to list invocations: %w", err)
	}
	if len(records) == 0 {
		cmd.Println("No invocations recorded")
		return nil
	}
	for _, r := range records {
		line := fmt.Sprintf("%s  %s (%s)  %s  %dms", r.CreatedAt, r.ToolName, r.Kind, r.Outcome, r.DurationMs)
		if r.ErrorKind != "" {
			line += "  " + r.ErrorKind
		}
		cmd.Println(line)
	}
	return nil
}
