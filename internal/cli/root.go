package cli

import (
	"fmt"
	"os"

	"github.com/kb2mcp/kb2mcp/internal/config"
	"github.com/spf13/cobra"
)

// Exit codes. Transport failures are distinct from config problems so MCP
// hosts and scripts can tell a broken pipe from a missing backend URL.
const (
	ExitSuccess          = 0
	ExitGenericError     = 1
	ExitConfigInvalid    = 2
	ExitStateFailure     = 3
	ExitTransportFailure = 4
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath string
	StateDir   string
	BackendURL string
	LogLevel   string
	JSON       bool
	Quiet      bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "kb2mcp",
	Short: "Stdio MCP bridge for a knowledge-base backend",
	Long: "kb2mcp speaks MCP over stdio and forwards document uploads and\n" +
		"queries to an HTTP knowledge-base service, so any MCP host can ingest\n" +
		"and search documents without knowing the backend's API.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", config.DefaultConfigName, "config file path")
	rootCmd.PersistentFlags().StringVar(&globalFlags.StateDir, "state-dir", "", "journal directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.BackendURL, "backend-url", "", "knowledge-base base URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.LogLevel, "log-level", "", "log level: debug|info|warn|error (default from config)")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.JSON, "json", false, "machine-readable output for ask and status")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Quiet, "quiet", false, "suppress the startup banner")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command and returns an error; exit code is set by RunE.
func Execute() error {
	return rootCmd.Execute()
}

// exitWith prints message to stderr and exits with code.
func exitWith(code int, msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}

// baseOverrides translates the global flags into config overrides. Unset
// flags stay nil so file and env values keep their precedence.
func baseOverrides() *config.Overrides {
	o := &config.Overrides{}
	if globalFlags.BackendURL != "" {
		o.BackendURL = &globalFlags.BackendURL
	}
	if globalFlags.LogLevel != "" {
		o.LogLevel = &globalFlags.LogLevel
	}
	if globalFlags.StateDir != "" {
		o.StateDir = &globalFlags.StateDir
	}
	return o
}

// loadConfig resolves the effective config or exits with ExitConfigInvalid.
func loadConfig(overrides *config.Overrides, skipValidate bool) *config.Config {
	cfg, err := config.Load(config.Options{
		ConfigPath:   globalFlags.ConfigPath,
		SkipValidate: skipValidate,
		Overrides:    overrides,
	})
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	return cfg
}
