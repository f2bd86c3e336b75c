package cli

import (
	"fmt"
	"time"

	"opas-admin-workers/internal/models"
	bulksellerapproval "opas-admin-workers/internal/workers/seller-approval/bulk-seller-approval"

	"github.com/spf13/cobra"
)

type bulkApproveFlags struct {
	filter           string
	start            string
	end              string
	notes            string
	stopOnFirstError bool
	maxBatchSize     int
}

func newBulkApproveCommand(root *rootOptions) *cobra.Command {
	f := &bulkApproveFlags{}
	cmd := &cobra.Command{
		Use:   "bulk-approve",
		Short: "Approve every pending seller application matching a filter",
		Example: `  opas-admin bulk-approve --filter documents_complete --notes "weekly review"
  opas-admin bulk-approve --filter date_range --start 2024-05-01 --end 2024-06-01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request(cmd.Flags().Changed("stop-on-first-error"))
			if err != nil {
				return err
			}

			a, err := root.loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.Bulk.Run(cmd.Context(), req)
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("bulk approval aborted at %s: %s", result.FailedStage, result.ErrorCode)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.filter, "filter", models.FilterAllPending, "all_pending, date_range, documents_complete or recent")
	cmd.Flags().StringVar(&f.start, "start", "", "date_range start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "date_range end, exclusive (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "admin notes sent with every approval")
	cmd.Flags().BoolVar(&f.stopOnFirstError, "stop-on-first-error", false, "stop the batch at the first failed approval")
	cmd.Flags().IntVar(&f.maxBatchSize, "max-batch-size", 0, "override the configured maximum batch size")
	return cmd
}

// request builds the workflow request. stopSet reports whether the flag was
// given; otherwise the configured default applies.
func (f *bulkApproveFlags) request(stopSet bool) (*bulksellerapproval.Request, error) {
	req := &bulksellerapproval.Request{
		Criteria:     models.FilterCriteria{Kind: f.filter},
		AdminNotes:   f.notes,
		MaxBatchSize: f.maxBatchSize,
	}
	if stopSet {
		stop := f.stopOnFirstError
		req.StopOnFirstError = &stop
	}
	if f.start != "" {
		t, err := parseDate(f.start)
		if err != nil {
			return nil, fmt.Errorf("--start: %w", err)
		}
		req.Criteria.Start = &t
	}
	if f.end != "" {
		t, err := parseDate(f.end)
		if err != nil {
			return nil, fmt.Errorf("--end: %w", err)
		}
		req.Criteria.End = &t
	}
	return req, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
