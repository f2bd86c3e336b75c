package cli

import (
	"context"
	"fmt"
	"time"

	"opas-admin-workers/internal/app"
	"opas-admin-workers/internal/audit"
	"opas-admin-workers/internal/models"
	"opas-admin-workers/internal/opas"

	"github.com/spf13/cobra"
)

func newRejectCommand(root *rootOptions) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <seller-id>",
		Short: "Reject one pending seller application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return decide(cmd, root, audit.ActionReject, args[0], reason,
				func(ctx context.Context, c *opas.Client) (*opas.DecisionResult, error) {
					return c.RejectSeller(ctx, args[0], reason)
				})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "rejection reason shown to the seller")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newSuspendCommand(root *rootOptions) *cobra.Command {
	var (
		reason string
		days   int
	)
	cmd := &cobra.Command{
		Use:   "suspend <seller-id>",
		Short: "Suspend an approved seller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			return decide(cmd, root, audit.ActionSuspend, args[0], reason,
				func(ctx context.Context, c *opas.Client) (*opas.DecisionResult, error) {
					return c.SuspendSeller(ctx, args[0], reason, days)
				})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "suspension reason")
	cmd.Flags().IntVar(&days, "days", 0, "suspension length in days, 0 for indefinite")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

type decisionOutput struct {
	SellerID string                `json:"seller_id"`
	Action   string                `json:"action"`
	Status   models.ApprovalStatus `json:"status"`
	Error    string                `json:"error,omitempty"`
}

func decide(cmd *cobra.Command, root *rootOptions, action, sellerID, notes string, call func(context.Context, *opas.Client) (*opas.DecisionResult, error)) error {
	ctx := cmd.Context()
	a, err := root.loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, callErr := call(ctx, a.OPAS)
	out := decisionOutput{SellerID: sellerID, Action: action, Status: models.ApprovalSuccess}
	switch {
	case callErr != nil:
		out.Status, out.Error = models.ApprovalError, callErr.Error()
	case res == nil || !res.Success:
		out.Status, out.Error = models.ApprovalFailed, "decision refused by backend"
		if res != nil && res.Error != "" {
			out.Error = res.Error
		}
	}

	recordDecision(ctx, a, out, notes)
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if out.Status != models.ApprovalSuccess {
		return fmt.Errorf("%s %s: %s", action, sellerID, out.Error)
	}
	return nil
}

func recordDecision(ctx context.Context, a *app.App, out decisionOutput, notes string) {
	if a.Audit == nil {
		return
	}
	err := a.Audit.Record(ctx, audit.Entry{
		SellerID:  out.SellerID,
		Action:    out.Action,
		Status:    string(out.Status),
		Error:     out.Error,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		a.Logger.Warn("audit write failed", map[string]interface{}{"sellerId": out.SellerID, "error": err.Error()})
	}
}
