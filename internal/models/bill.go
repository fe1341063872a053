package models

import "fmt"

// Bill is the final settlement of a booking computed from odometer readings.
type Bill struct {
	BookingID       string  `json:"bookingId"`
	StartingKm      float64 `json:"startingKm"`
	EndingKm        float64 `json:"endingKm"`
	Distance        float64 `json:"distance"`
	PricePerKm      float64 `json:"pricePerKm"`
	CoverageAmount  float64 `json:"coverageAmount,omitempty"` // informational, not applied
	BillAmount      float64 `json:"billAmount"`
	ServiceCharge   float64 `json:"serviceCharge"`
	TotalAmount     float64 `json:"totalAmount"`
	SecurityDeposit float64 `json:"securityDeposit"`
	RefundAmount    float64 `json:"refundAmount"`
	AmountOwed      float64 `json:"amountOwed"`
}

// Refunds reports whether the deposit covers the total.
func (b *Bill) Refunds() bool {
	return b.TotalAmount <= b.SecurityDeposit
}

// PaymentStatus is the settlement line printed on the bill.
func (b *Bill) PaymentStatus(currency string) string {
	if b.Refunds() {
		return fmt.Sprintf("Remaining Amount Returned: %s%.2f", currency, b.RefundAmount)
	}
	return fmt.Sprintf("Amount to be Collected: %s%.2f", currency, b.AmountOwed)
}
