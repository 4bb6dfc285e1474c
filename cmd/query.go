// ABOUTME: Query command for forceapp
// ABOUTME: Runs a SOQL query as the current user and prints the records

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/client"
	"github.com/bhariharan/SalesforceMobileSDK-Templates/internal/config"
)

var queryCmd = &cobra.Command{
	Use:   "query [soql]",
	Short: "Run a SOQL query",
	Long: `Run a SOQL query and print the Id and Name of every record.
Without an argument the configured query is used.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		soql := ""
		if len(args) == 1 {
			soql = args[0]
		}
		if code := runQuery(ctx, os.Stdout, soql); code != exitOK {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

// runQuery executes soql, or the configured query when empty, and returns exit code
func runQuery(ctx context.Context, w io.Writer, soql string) int {
	return withSession(w, func(cfg *config.Config, s session) int {
		if strings.TrimSpace(soql) == "" {
			soql = cfg.Query
		}

		records, err := s.Query(ctx, soql)
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			return exitFailure
		}

		if IsJSONOutput() {
			fmt.Fprintln(w, formatRecordsJSON(records))
		} else {
			fmt.Fprintln(w, formatRecordsHuman(records))
		}
		return exitOK
	})
}

// formatRecordsHuman formats records as an aligned two-column table
func formatRecordsHuman(records []client.Record) string {
	if len(records) == 0 {
		return "No records."
	}

	idWidth := len("ID")
	for _, r := range records {
		idWidth = max(idWidth, len(r.ID))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-*s  %s\n", idWidth, "ID", "NAME")
	for _, r := range records {
		fmt.Fprintf(&sb, "%-*s  %s\n", idWidth, r.ID, r.Name)
	}
	fmt.Fprintf(&sb, "\n%d record(s)", len(records))
	return sb.String()
}

// formatRecordsJSON formats records as a JSON array
func formatRecordsJSON(records []client.Record) string {
	if records == nil {
		records = []client.Record{}
	}
	data, _ := json.MarshalIndent(records, "", "  ")
	return string(data)
}
