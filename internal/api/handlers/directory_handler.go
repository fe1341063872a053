package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carrental/backend/internal/services"
)

// DirectoryHandler serves owner search and mechanic booking lookups.
type DirectoryHandler struct {
	directory services.IDirectoryService
	logger    *zap.Logger
}

func NewDirectoryHandler(directory services.IDirectoryService, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, logger: logger}
}

type pincodeRequest struct {
	Pincode string `json:"pincode"`
}

// Search handles POST /search
func (h *DirectoryHandler) Search(c *gin.Context) {
	var req pincodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	renters, err := h.directory.Search(c.Request.Context(), req.Pincode)
	if err != nil {
		respondError(c, h.logger, err, "Failed to fetch renters")
		return
	}
	respondOK(c, gin.H{"renters": renters})
}

// FetchMechanicBookings handles POST /fetchMechanicBookings
func (h *DirectoryHandler) FetchMechanicBookings(c *gin.Context) {
	var req pincodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	bookings, err := h.directory.FetchMechanicBookings(c.Request.Context(), req.Pincode)
	if err != nil {
		respondError(c, h.logger, err, "Internal server error")
		return
	}
	respondOK(c, gin.H{"bookings": bookings})
}

// FetchBookings handles GET /fetchBookings?mechanicId=
func (h *DirectoryHandler) FetchBookings(c *gin.Context) {
	bookings, err := h.directory.FetchBookings(c.Request.Context(), c.Query("mechanicId"))
	if err != nil {
		respondError(c, h.logger, err, "Internal server error")
		return
	}
	respondOK(c, gin.H{"bookings": bookings})
}

type mechanicIDRequest struct {
	MechanicID string `json:"mechanicId"`
}

// GetMechanicPincode handles POST /getMechanicPincode
func (h *DirectoryHandler) GetMechanicPincode(c *gin.Context) {
	var req mechanicIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	pincode, err := h.directory.GetMechanicPincode(c.Request.Context(), req.MechanicID)
	if err != nil {
		respondError(c, h.logger, err, "Server error")
		return
	}
	respondOK(c, gin.H{"pincode": pincode})
}
