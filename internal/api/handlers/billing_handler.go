package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carrental/backend/internal/services"
)

type BillingHandler struct {
	billing services.IBillingService
	logger  *zap.Logger
}

func NewBillingHandler(billing services.IBillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, logger: logger}
}

type sendBillRequest struct {
	BookingID      string   `json:"bookingId"`
	StartingKm     *float64 `json:"startingKm"`
	EndingKm       *float64 `json:"endingKm"`
	PricePerKm     *float64 `json:"pricePerKm"`
	CoverageAmount float64  `json:"coverageAmount"`
}

// SendBill handles POST /sendBill: computes the bill and emails it to the rentee.
func (h *BillingHandler) SendBill(c *gin.Context) {
	var req sendBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "All required fields must be provided.")
		return
	}
	bill, err := h.billing.GenerateBill(c.Request.Context(), services.GenerateBillInput{
		BookingID:      req.BookingID,
		StartingKm:     req.StartingKm,
		EndingKm:       req.EndingKm,
		PricePerKm:     req.PricePerKm,
		CoverageAmount: req.CoverageAmount,
	})
	if err != nil {
		respondError(c, h.logger, err, "Server error.")
		return
	}
	respondOK(c, gin.H{"message": "Bill sent successfully!", "bill": bill})
}
