package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kursadbilgin/rowhook/internal/config"
	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/kursadbilgin/rowhook/internal/service"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the history store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return runHistory(cmd.Context(), cfg, historyLimit, historyJSON, cmd.OutOrStdout())
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", service.DefaultListLimit, "number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output in JSON format")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(ctx context.Context, cfg *config.Config, limit int, asJSON bool, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	d, err := openDeps(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer d.Close()

	runs, err := d.runs.ListRecent(ctx, service.NormalizeListLimit(limit))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if asJSON {
		return writeHistoryJSON(out, runs)
	}
	return writeHistoryTable(out, runs)
}

type historyEntry struct {
	ID           string             `json:"id"`
	Source       string             `json:"source,omitempty"`
	Endpoint     string             `json:"endpoint"`
	Status       string             `json:"status"`
	TotalRecords int                `json:"totalRecords"`
	Summary      *domain.RunSummary `json:"summary,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func writeHistoryJSON(out io.Writer, runs []domain.Run) error {
	entries := make([]historyEntry, 0, len(runs))
	for _, r := range runs {
		entries = append(entries, historyEntry{
			ID:           r.ID,
			Source:       r.Source,
			Endpoint:     r.Endpoint,
			Status:       r.Status.String(),
			TotalRecords: r.TotalRecords,
			Summary:      r.Summary,
			CreatedAt:    r.CreatedAt,
		})
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func writeHistoryTable(out io.Writer, runs []domain.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(out, "No runs recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTATUS\tRECORDS\tFAILED\tELAPSED\tSOURCE\tCREATED")
	for _, r := range runs {
		failed := "-"
		elapsed := "-"
		if r.Summary != nil {
			failed = fmt.Sprintf("%d", len(r.Summary.PermanentlyFailed))
			elapsed = fmt.Sprintf("%.2fs", r.Summary.ElapsedSeconds())
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.TotalRecords, failed, elapsed, r.Source, r.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
