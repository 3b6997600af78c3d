package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/kursadbilgin/rowhook/internal/config"
	"github.com/kursadbilgin/rowhook/internal/domain"
	"github.com/kursadbilgin/rowhook/internal/service"
	"github.com/kursadbilgin/rowhook/internal/sheet"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const progressBuffer = 64

// errPermanentFailures makes the process exit non-zero when any record was
// not delivered after its retry.
var errPermanentFailures = errors.New("some records were not delivered")

type sendOptions struct {
	path      string
	sheetName string
	url       string
}

var sendFlags sendOptions

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send FILE",
	Short: "Send every row of a spreadsheet to the webhook",
	Long: `Send reads FILE (.xlsx or .csv), posts one JSON object per data row to the
webhook and retries failed rows once. Progress goes to stderr; the summary
and the rows that still failed go to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		opts := sendFlags
		opts.path = args[0]
		return runSend(cmd.Context(), cfg, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendFlags.url, "url", "", "webhook endpoint (overrides WEBHOOK_URL)")
	sendCmd.Flags().StringVar(&sendFlags.sheetName, "sheet", "", "xlsx worksheet name (default: first sheet)")
	rootCmd.AddCommand(sendCmd)
}

type progressEvent struct {
	current int
	total   int
}

func runSend(ctx context.Context, cfg *config.Config, opts sendOptions, out io.Writer, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint := opts.url
	if endpoint == "" {
		endpoint = cfg.WebhookURL
	}
	if err := domain.ValidateEndpoint(endpoint); err != nil {
		return fmt.Errorf("%w (set --url or WEBHOOK_URL)", err)
	}

	table, err := sheet.Read(opts.path, opts.sheetName)
	if err != nil {
		return err
	}

	d, err := openDeps(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer d.Close()

	pipeline, journal, err := d.newPipeline(nil)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	runs, err := service.NewRunService(d.runs, pipeline, d.logger)
	if err != nil {
		return err
	}

	progress := make(chan progressEvent, progressBuffer)
	var run *domain.Run

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(progress)

		var runErr error
		run, runErr = runs.Execute(gctx, service.SubmitRunInput{
			Source:   filepath.Base(opts.path),
			Columns:  table.Columns,
			Rows:     table.Rows,
			Endpoint: endpoint,
			Progress: func(current, total int) {
				pushProgress(progress, progressEvent{current: current, total: total})
			},
		})
		return runErr
	})
	g.Go(func() error {
		for ev := range progress {
			fmt.Fprintf(errOut, "Progress: %d/%d records sent\n", ev.current, ev.total)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if err := printSummary(out, run); err != nil {
		return err
	}

	d.logger.Info("send finished",
		zap.String("runId", run.ID),
		zap.String("status", run.Status.String()),
	)

	if run.Status == domain.RunStatusPartialFailure {
		return fmt.Errorf("%w: %d of %d", errPermanentFailures, len(run.Summary.PermanentlyFailed), run.Summary.TotalRecords)
	}
	return nil
}

// pushProgress never blocks the delivery loop: when the renderer falls behind
// the oldest pending update is dropped, so the final count always shows.
func pushProgress(ch chan progressEvent, ev progressEvent) {
	select {
	case ch <- ev:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- ev:
	default:
	}
}

func printSummary(out io.Writer, run *domain.Run) error {
	summary := run.Summary
	if summary == nil {
		return fmt.Errorf("run %s has no summary", run.ID)
	}

	fmt.Fprintf(out, "Sent %d records, finished in %.2fs\n", summary.TotalRecords, summary.ElapsedSeconds())
	if len(summary.PermanentlyFailed) == 0 {
		fmt.Fprintln(out, "All records delivered")
		return nil
	}

	fmt.Fprintf(out, "%d records could not be delivered after retry:\n", len(summary.PermanentlyFailed))
	enc := json.NewEncoder(out)
	for _, payload := range summary.PermanentlyFailed {
		if err := enc.Encode(payload); err != nil {
			return err
		}
	}
	return nil
}
