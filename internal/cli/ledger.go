package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"carrental/backend/internal/services"
	"carrental/backend/internal/store"
)

func newLedgerCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Request ledger maintenance",
	}
	cmd.AddCommand(newLedgerReconcileCommand(a))
	return cmd
}

type reconcileResult struct {
	Repaired int `json:"repaired"`
}

func newLedgerReconcileCommand(a *app) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay rentee mirror writes left pending by failed acceptances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st store.DirectoryStore) error {
				bookings := services.NewBookingService(st, nil, olderThan, a.logger)
				repaired, err := bookings.ReconcileLedgerSyncs(cmd.Context())
				if err != nil {
					return err
				}
				result := reconcileResult{Repaired: repaired}
				return printResult(cmd.OutOrStdout(), a.opts.Format, result, func(w io.Writer) {
					fmt.Fprintf(w, "repaired %d ledger sync(s)\n", repaired)
				})
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*time.Second, "only replay syncs older than this")
	return cmd
}
