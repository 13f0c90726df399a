package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kb2mcp/kb2mcp/internal/journal"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show upload totals from the local journal",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg := loadConfig(baseOverrides(), false)
	st := newStyles(os.Stdout, globalFlags.JSON)

	if !cfg.State.JournalEnabled {
		fmt.Println(st.warnPrefix(), "journal disabled (state.journal_enabled: false); nothing to report")
		return nil
	}
	path := cfg.JournalPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("No journal at %s - run 'kb2mcp up' and ingest a document first.\n", path)
		return nil
	}

	j := journal.NewSQLiteJournal(path)
	defer j.Close()
	ctx := context.Background()
	stats, err := j.Stats(ctx)
	if err != nil {
		exitWith(ExitStateFailure, "ERROR: journal: "+err.Error())
	}
	recent, err := j.Recent(ctx, 5)
	if err != nil {
		exitWith(ExitStateFailure, "ERROR: journal: "+err.Error())
	}

	if globalFlags.JSON {
		out := map[string]interface{}{
			"backend_url":  cfg.Backend.URL,
			"journal_path": path,
			"uploads":      stats.Uploads,
			"words":        stats.Words,
			"chunks":       stats.Chunks,
		}
		if !stats.LastUpload.IsZero() {
			out["last_upload"] = stats.LastUpload.UTC().Format(time.RFC3339)
		}
		if len(recent) > 0 {
			list := make([]map[string]interface{}, 0, len(recent))
			for _, r := range recent {
				list = append(list, map[string]interface{}{
					"filename":     r.Filename,
					"content_kind": r.ContentKind,
					"words":        r.Words,
					"chunks":       r.Chunks,
					"created_at":   r.CreatedAt.UTC().Format(time.RFC3339),
				})
			}
			out["recent"] = list
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	fmt.Println(st.sectionHeader("kb2mcp status"))
	fmt.Println(st.kv("Backend", cfg.Backend.URL))
	fmt.Println(st.kv("Journal", path))
	fmt.Println(st.kv("Uploads", fmt.Sprintf("%d", stats.Uploads)))
	fmt.Println(st.kv("Words", fmt.Sprintf("%d", stats.Words)))
	fmt.Println(st.kv("Chunks", fmt.Sprintf("%d", stats.Chunks)))
	if !stats.LastUpload.IsZero() {
		fmt.Println(st.kv("Last upload", stats.LastUpload.UTC().Format(time.RFC3339)))
	}
	if len(recent) > 0 {
		fmt.Println()
		fmt.Println(st.sectionHeader("Recent uploads"))
		for _, r := range recent {
			detail := fmt.Sprintf("(%s, %d words, %d chunks)", r.ContentKind, r.Words, r.Chunks)
			fmt.Printf("  %s %s\n", r.Filename, st.dim(detail))
		}
	}
	return nil
}
