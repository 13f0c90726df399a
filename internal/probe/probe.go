// Package probe implements kbprobe, a scripted conformance client for the
// kb2mcp bridge. It spawns a bridge, runs the MCP handshake and a few
// round-trips, and prints a transcript; any protocol violation fails the
// run with a non-zero exit.
package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kb2mcp/kb2mcp/internal/mcpclient"
	"github.com/kb2mcp/kb2mcp/internal/payload"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kbprobe [query]",
	Short: "Exercise a kb2mcp bridge over stdio and print the transcript",
	Long: "kbprobe spawns a bridge command, performs the MCP handshake, lists\n" +
		"the tools, and optionally ingests a file and runs a query against it.\n" +
		"Settings come from flags or a .kbproberc TOML file.",
	Args: cobra.MaximumNArgs(1),
	RunE: runProbe,
}

var (
	flagBridge  string
	flagTimeout int
	flagUpload  string
	flagVerbose bool
)

func init() {
	rootCmd.Flags().StringVar(&flagBridge, "bridge", "", "bridge command line (default from "+rcFileName+")")
	rootCmd.Flags().IntVar(&flagTimeout, "timeout", 0, "overall timeout in seconds (default from "+rcFileName+")")
	rootCmd.Flags().StringVar(&flagUpload, "upload", "", "path of a .pdf or .md file to ingest before querying")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "trace frame traffic on stderr")
}

// Execute runs the probe; a returned error means the run failed.
func Execute() error {
	return rootCmd.Execute()
}

func runProbe(_ *cobra.Command, args []string) error {
	rc, err := loadRC()
	if err != nil {
		return err
	}
	if flagBridge != "" {
		rc.Bridge = flagBridge
	}
	if flagTimeout > 0 {
		rc.TimeoutSeconds = flagTimeout
	}
	query := rc.Query
	if len(args) == 1 {
		query = strings.TrimSpace(args[0])
	}

	command := strings.Fields(rc.Bridge)
	if len(command) == 0 {
		return fmt.Errorf("no bridge command; pass --bridge or set bridge in %s", rcFileName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(rc.TimeoutSeconds)*time.Second)
	defer cancel()

	client := mcpclient.New(command, flagVerbose)
	defer client.Close()

	fmt.Println("-> initialize")
	info, err := client.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	fmt.Printf("<- %s %s (protocol %s)\n", info.ServerName, info.ServerVersion, info.ProtocolVersion)
	fmt.Println("-> notifications/initialized")

	fmt.Println("-> tools/list")
	tools, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		if tool.Name == "" {
			return fmt.Errorf("tools/list entry missing name")
		}
		names = append(names, tool.Name)
	}
	fmt.Printf("<- %d tools: %s\n", len(tools), strings.Join(names, ", "))

	fmt.Println("-> ping")
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Println("<- pong")

	if flagUpload != "" {
		if err := probeUpload(ctx, client, flagUpload); err != nil {
			return err
		}
	}
	if query != "" {
		if err := probeQuery(ctx, client, query); err != nil {
			return err
		}
	}
	return client.Close()
}

func probeUpload(ctx context.Context, client *mcpclient.Client, path string) error {
	kind, err := contentKindForPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read upload file: %w", err)
	}
	args := map[string]interface{}{
		"filename":    filepath.Base(path),
		"content":     payload.Encode(data),
		"contentKind": kind,
	}
	fmt.Printf("-> tools/call upload %s\n", filepath.Base(path))
	result, err := client.CallTool(ctx, "upload", args)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	printToolResult(result)
	if result.IsError {
		return fmt.Errorf("upload failed")
	}
	return nil
}

func probeQuery(ctx context.Context, client *mcpclient.Client, query string) error {
	fmt.Printf("-> tools/call query %q\n", query)
	result, err := client.CallTool(ctx, "query", map[string]interface{}{"query": query})
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	printToolResult(result)
	if result.IsError {
		return fmt.Errorf("query failed")
	}
	return nil
}

func printToolResult(result *mcpclient.ToolCallResult) {
	for _, item := range result.Content {
		for _, line := range strings.Split(item.Text, "\n") {
			fmt.Println("<-", line)
		}
	}
	fmt.Printf("   (%s)\n", result.Elapsed.Round(time.Millisecond))
}

func contentKindForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf", nil
	case ".md":
		return "text/markdown", nil
	}
	return "", fmt.Errorf("upload file must end in .pdf or .md, got %q", filepath.Base(path))
}
