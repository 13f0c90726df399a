package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kb2mcp/kb2mcp/internal/kb"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Query the knowledge base directly, without an MCP host",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var (
	askMaxResults int
	askNoSources  bool
)

func init() {
	askCmd.Flags().IntVar(&askMaxResults, "max-results", 5, "maximum excerpts to return")
	askCmd.Flags().BoolVar(&askNoSources, "no-sources", false, "omit source names")
}

func runAsk(_ *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		exitWith(ExitGenericError, "ERROR: query must not be empty")
	}
	cfg := loadConfig(baseOverrides(), false)

	client := kb.NewClient(cfg.Backend.URL, cfg.Backend.Token)
	client.SubmitTimeout = cfg.SubmitTimeout()
	client.QueryTimeout = cfg.QueryTimeout()

	st := newStyles(os.Stdout, globalFlags.JSON)
	hits, err := client.Query(context.Background(), query, askMaxResults)
	if err != nil {
		fmt.Fprintln(os.Stderr, st.errPrefix(), err.Error())
		os.Exit(ExitGenericError)
	}

	if globalFlags.JSON {
		out := make([]map[string]interface{}, 0, len(hits))
		for _, h := range hits {
			entry := map[string]interface{}{"excerpt": h.Text}
			if src := h.SourceName(); src != "" {
				entry["source"] = src
			}
			out = append(out, entry)
		}
		return json.NewEncoder(os.Stdout).Encode(out)
	}

	if len(hits) == 0 {
		fmt.Println("No relevant documents found for this query.")
		return nil
	}
	for i, h := range hits {
		if i > 0 {
			fmt.Println()
		}
		fmt.Printf("%d. %s\n", i+1, h.Text)
		if !askNoSources {
			if src := h.SourceName(); src != "" {
				fmt.Println(st.dim("   Source: " + src))
			}
		}
	}
	return nil
}
