package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kb2mcp/kb2mcp/internal/config"
	"github.com/kb2mcp/kb2mcp/internal/journal"
	"github.com/kb2mcp/kb2mcp/internal/kb"
	"github.com/kb2mcp/kb2mcp/internal/log"
	"github.com/kb2mcp/kb2mcp/internal/mcp"
	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run the MCP bridge on stdin/stdout",
	Long: "up speaks MCP on stdio until the host closes the pipe. Protocol\n" +
		"frames own stdout; logs and the banner go to stderr.",
	RunE: runUp,
}

var (
	upMaxFileMB int
	upNoJournal bool
)

func init() {
	upCmd.Flags().IntVar(&upMaxFileMB, "max-file-mb", 0, "max decoded upload size in MB (default from config)")
	upCmd.Flags().BoolVar(&upNoJournal, "no-journal", false, "skip the upload journal even when the config enables it")
}

func runUp(_ *cobra.Command, _ []string) error {
	overrides := baseOverrides()
	if upMaxFileMB > 0 {
		overrides.MaxFileMB = &upMaxFileMB
	}
	cfg := loadConfig(overrides, false)

	logger := log.New(cfg.Log.Level)
	defer logger.Sync()

	client := kb.NewClient(cfg.Backend.URL, cfg.Backend.Token)
	client.SubmitTimeout = cfg.SubmitTimeout()
	client.QueryTimeout = cfg.QueryTimeout()

	opts := mcp.ServerOptions{
		Backend:         client,
		Logger:          logger,
		BackendURL:      cfg.Backend.URL,
		MaxUploadBytes:  cfg.MaxUploadBytes(),
		ProtocolVersion: cfg.Server.ProtocolVersion,
		Version:         version,
	}

	journalPath := ""
	if cfg.State.JournalEnabled && !upNoJournal {
		if err := os.MkdirAll(cfg.State.Dir, 0o700); err != nil {
			exitWith(ExitStateFailure, "ERROR: cannot create state dir "+cfg.State.Dir+": "+err.Error())
		}
		j := journal.NewSQLiteJournal(cfg.JournalPath())
		if err := j.Init(context.Background()); err != nil {
			exitWith(ExitStateFailure, "ERROR: journal init: "+err.Error())
		}
		defer j.Close()
		opts.Journal = j
		journalPath = cfg.JournalPath()
	}

	server, err := mcp.NewServer(opts)
	if err != nil {
		exitWith(ExitGenericError, "ERROR: "+err.Error())
	}

	if !globalFlags.Quiet {
		printUpBanner(cfg, journalPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bridge starting", map[string]interface{}{
		"backend_url":      cfg.Backend.URL,
		"protocol_version": cfg.Server.ProtocolVersion,
		"version":          version,
	})

	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		exitWith(ExitTransportFailure, "ERROR: transport: "+err.Error())
	}
	return nil
}

// printUpBanner writes the human banner to stderr; stdout carries frames.
func printUpBanner(cfg *config.Config, journalPath string) {
	st := newStyles(os.Stderr, globalFlags.JSON)
	fmt.Fprintln(os.Stderr, st.banner()+" "+version)
	fmt.Fprintln(os.Stderr, st.kv("Backend", cfg.Backend.URL))
	fmt.Fprintln(os.Stderr, st.kv("Protocol", cfg.Server.ProtocolVersion))
	fmt.Fprintln(os.Stderr, st.kv("Max upload", fmt.Sprintf("%d MB", cfg.Upload.MaxFileMB)))
	if journalPath != "" {
		fmt.Fprintln(os.Stderr, st.kv("Journal", journalPath))
	} else {
		fmt.Fprintln(os.Stderr, st.kv("Journal", "disabled"))
	}
	fmt.Fprintln(os.Stderr, st.dim("Speaking MCP on stdio; close stdin or Ctrl-C to stop."))
}
