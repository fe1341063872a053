package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"carrental/backend/internal/models"
	"carrental/backend/internal/services"
)

func newBillCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bill",
		Short: "Billing helpers",
	}
	cmd.AddCommand(newBillPreviewCommand(a))
	return cmd
}

func newBillPreviewCommand(a *app) *cobra.Command {
	var (
		bookingID            string
		startingKm, endingKm float64
		pricePerKm, coverage float64
		currency             string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the bill for the given readings without sending it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			billing := services.NewBillingService(nil, nil, nil, nil, currency, a.logger)
			bill := billing.ComputeBill(bookingID, startingKm, endingKm, pricePerKm, coverage)
			return printResult(cmd.OutOrStdout(), a.opts.Format, bill, func(w io.Writer) {
				writeBill(w, bill, currency)
			})
		},
	}

	cmd.Flags().StringVar(&bookingID, "booking-id", "PREVIEW", "booking id printed on the bill")
	cmd.Flags().Float64Var(&startingKm, "starting-km", 0, "odometer at pickup")
	cmd.Flags().Float64Var(&endingKm, "ending-km", 0, "odometer at return")
	cmd.Flags().Float64Var(&pricePerKm, "price-per-km", 0, "rate per km")
	cmd.Flags().Float64Var(&coverage, "coverage-amount", 0, "coverage amount (informational)")
	cmd.Flags().StringVar(&currency, "currency", envOr("CURRENCY_SYMBOL", "₹"), "currency symbol")
	_ = cmd.MarkFlagRequired("starting-km")
	_ = cmd.MarkFlagRequired("ending-km")
	_ = cmd.MarkFlagRequired("price-per-km")
	return cmd
}

func writeBill(w io.Writer, bill *models.Bill, currency string) {
	fmt.Fprintf(w, "Booking ID:      %s\n", bill.BookingID)
	fmt.Fprintf(w, "Distance:        %.2f km\n", bill.Distance)
	fmt.Fprintf(w, "Bill Amount:     %s%.2f\n", currency, bill.BillAmount)
	fmt.Fprintf(w, "Service Charge:  %s%.2f\n", currency, bill.ServiceCharge)
	fmt.Fprintf(w, "Total Amount:    %s%.2f\n", currency, bill.TotalAmount)
	fmt.Fprintf(w, "%s\n", bill.PaymentStatus(currency))
}
