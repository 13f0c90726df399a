package cli

import (
	"fmt"
	"os"

	"github.com/kb2mcp/kb2mcp/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter " + config.DefaultConfigName,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config as YAML (secrets redacted)",
	RunE:  runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath := globalFlags.ConfigPath
	if _, err := os.Stat(configPath); err == nil {
		exitWith(ExitGenericError, "ERROR: "+configPath+" already exists; edit it in place or remove it first")
	}
	if err := os.WriteFile(configPath, []byte(config.DefaultYAML), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Println("Wrote", configPath)

	// The token never lands in the file; the template points at the env var.
	if IsTTY() {
		fmt.Fprintln(os.Stderr, "Optional: enter a backend token now (input is hidden). Press Enter to skip and set KB2MCP_BACKEND_TOKEN later.")
		token, err := ReadSecret("Backend token: ")
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		if token != "" {
			fmt.Fprintln(os.Stderr, "Token received. Set it in your environment before running 'kb2mcp up':")
			fmt.Fprintln(os.Stderr, "  export KB2MCP_BACKEND_TOKEN=<your-token>")
		}
	} else {
		fmt.Println("Edit the file or set KB2MCP_BACKEND_URL and KB2MCP_BACKEND_TOKEN in your environment.")
	}
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	// Print even when the config would not validate.
	cfg := loadConfig(baseOverrides(), true)
	snap := config.Snapshot(cfg)
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}
