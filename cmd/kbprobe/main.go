package main

import (
	"fmt"
	"os"

	"github.com/kb2mcp/kb2mcp/internal/probe"
)

func main() {
	if err := probe.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
