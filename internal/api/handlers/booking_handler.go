package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carrental/backend/internal/models"
	"carrental/backend/internal/services"
)

// BookingHandler serves the request ledger: requests, decisions and bookings.
type BookingHandler struct {
	bookings services.IBookingService
	logger   *zap.Logger
}

func NewBookingHandler(bookings services.IBookingService, logger *zap.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

type pairRequest struct {
	RenteeID string `json:"renteeId"`
	OwnerID  string `json:"ownerId"`
}

// SendRequest handles POST /sendRequest
func (h *BookingHandler) SendRequest(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	if err := h.bookings.SendRequest(c.Request.Context(), req.RenteeID, req.OwnerID); err != nil {
		respondError(c, h.logger, err, "Internal server error.")
		return
	}
	respondOK(c, gin.H{"message": "Request sent successfully."})
}

// GetRequests handles GET /getRequests?userId=
func (h *BookingHandler) GetRequests(c *gin.Context) {
	requests, err := h.bookings.GetPendingRequests(c.Request.Context(), c.Query("userId"))
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch requests.")
		return
	}
	respondOK(c, gin.H{"requests": requests})
}

type renteeRequest struct {
	RenteeID string `json:"renteeId"`
}

// GetRequestStatus handles POST /getRequestStatus
func (h *BookingHandler) GetRequestStatus(c *gin.Context) {
	var req renteeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	requests, err := h.bookings.GetRequestStatus(c.Request.Context(), req.RenteeID)
	if err != nil {
		respondError(c, h.logger, err, "Internal server error")
		return
	}
	respondOK(c, gin.H{"requests": requests})
}

type decisionRequest struct {
	RenterID string               `json:"renterId"`
	RenteeID string               `json:"renteeId"`
	Status   models.RequestStatus `json:"status"`
}

// UpdateRequestStatus handles POST /updateRequestStatus. Accepting through
// this route mints a booking id exactly like /acceptRequest.
func (h *BookingHandler) UpdateRequestStatus(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	result, err := h.bookings.UpdateRequestStatus(c.Request.Context(), req.RenterID, req.RenteeID, req.Status)
	if err != nil {
		respondError(c, h.logger, err, "Server error")
		return
	}
	h.respondTransition(c, result)
}

// AcceptRequest handles POST /acceptRequest
func (h *BookingHandler) AcceptRequest(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	result, err := h.bookings.AcceptRequest(c.Request.Context(), req.RenterID, req.RenteeID)
	if err != nil {
		respondError(c, h.logger, err, "Server error")
		return
	}
	h.respondTransition(c, result)
}

func (h *BookingHandler) respondTransition(c *gin.Context, result *services.TransitionResult) {
	body := gin.H{
		"message": fmt.Sprintf("Request %s successfully", strings.ToLower(string(result.Status))),
		"status":  result.Status,
	}
	if result.BookingID != "" {
		body["bookingId"] = result.BookingID
		body["renteePhone"] = result.RenteePhone
	}
	respondOK(c, body)
}

// ClearRequestStatus handles POST /clearRequestStatus
func (h *BookingHandler) ClearRequestStatus(c *gin.Context) {
	var req pairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	if err := h.bookings.ClearRequestStatus(c.Request.Context(), req.OwnerID, req.RenteeID); err != nil {
		respondError(c, h.logger, err, "Internal server error")
		return
	}
	respondOK(c, gin.H{"message": "Request cleared successfully"})
}

type bookingIDRequest struct {
	BookingID string `json:"bookingId"`
}

// DeleteBooking handles POST /deleteBooking
func (h *BookingHandler) DeleteBooking(c *gin.Context) {
	var req bookingIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	if err := h.bookings.DeleteBooking(c.Request.Context(), req.BookingID); err != nil {
		respondError(c, h.logger, err, "Failed to clear booking")
		return
	}
	respondOK(c, gin.H{"message": "Booking cleared successfully"})
}

type saveBookingIDRequest struct {
	RequestID string `json:"requestId"`
	BookingID string `json:"bookingId"`
}

// SaveBookingID handles POST /saveBookingId
func (h *BookingHandler) SaveBookingID(c *gin.Context) {
	var req saveBookingIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	if err := h.bookings.SaveBookingID(c.Request.Context(), req.RequestID, req.BookingID); err != nil {
		respondError(c, h.logger, err, "Internal Server Error")
		return
	}
	respondOK(c, nil)
}

// GetBookingDetails handles POST /generateBill, which only looks the
// booking up. The bill itself is produced by /sendBill.
func (h *BookingHandler) GetBookingDetails(c *gin.Context) {
	var req bookingIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	details, err := h.bookings.GetBookingDetails(c.Request.Context(), req.BookingID)
	if err != nil {
		respondError(c, h.logger, err, "Internal server error")
		return
	}
	respondOK(c, gin.H{"bookingDetails": details})
}
