package main

import (
	"os"

	"github.com/a5c-ai/mcpml/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
