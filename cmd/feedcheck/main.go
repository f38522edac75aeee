// Command feedcheck loads an incident feed once and reports data quality:
// whether it fetches and parses, how many rows survive normalization, and how
// many coordinates, dates and identifiers needed repair.
//
// Usage:
//
//	go run ./cmd/feedcheck https://example.com/incidents.csv
//	go run ./cmd/feedcheck --format json --strict data/mock/incidents_wrapped.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/incident-tracker-service/internal/domain"
	"github.com/couchcryptid/incident-tracker-service/internal/feed"
	"github.com/couchcryptid/incident-tracker-service/internal/query"
	"github.com/spf13/cobra"
)

var (
	formatFlag string
	timeout    time.Duration
	jsonOutput bool
	strict     bool
	topN       int
	verbose    bool
)

// errCheckFailed signals a failed check after the report has been printed.
var errCheckFailed = errors.New("feed check failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "feedcheck <url-or-path>",
	Short:         "Check an incident feed for data quality problems",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := feed.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cmd.OutOrStdout(), feed.Source{URL: args[0], Format: format})
	},
}

func init() {
	rootCmd.Flags().StringVarP(&formatFlag, "format", "f", "auto", "feed format: auto, csv or json")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "fetch timeout")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the normalization report as JSON")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "fail on any repaired or discarded row")
	rootCmd.Flags().IntVarP(&topN, "top", "n", query.DefaultTopN, "buckets per distribution")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log normalization details")
}

func run(ctx context.Context, w io.Writer, src feed.Source) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	loader := feed.NewLoader(&http.Client{Timeout: timeout}, domain.NewNormalizer(logger), logger)
	res, loadErr := loader.Load(ctx, src)
	phases := checkLoad(res, loadErr)

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"source":      src.URL,
			"format":      res.Format,
			"bytes":       res.Bytes,
			"lastUpdated": res.LastUpdated,
			"report":      res.Report,
			"passed":      allPassed(phases, strict),
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "=== Feed check: %s ===\n\n", src.URL)
		printReport(w, phases, strict)
		if loadErr == nil {
			fmt.Fprintf(w, "\nRecords: %d read, %d kept (%s, %d bytes)\n", res.Report.RowsRead, res.Report.Kept, res.Format, res.Bytes)
			printDistributions(w, res, topN)
		}
	}

	if !allPassed(phases, strict) {
		return errCheckFailed
	}
	return nil
}

func allPassed(phases []*phase, strict bool) bool {
	for _, p := range phases {
		if !p.passed(strict) {
			return false
		}
	}
	return true
}
