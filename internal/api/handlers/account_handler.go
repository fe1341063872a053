package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"carrental/backend/internal/models"
	"carrental/backend/internal/services"
)

// AccountHandler serves registration, login and owner availability.
type AccountHandler struct {
	accounts services.IAccountService
	logger   *zap.Logger
}

func NewAccountHandler(accounts services.IAccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// Register handles POST /register
func (h *AccountHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	if err := h.accounts.Register(c.Request.Context(), input); err != nil {
		respondError(c, h.logger, err, "Failed to register user")
		return
	}
	respondOK(c, gin.H{"message": "User registered successfully"})
}

type loginRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Login handles POST /login for every role.
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	h.login(c, req.Username, req.Password, req.Role)
}

type mechanicLoginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
}

// MechanicLogin handles POST /mechanicLogin
func (h *AccountHandler) MechanicLogin(c *gin.Context) {
	var req mechanicLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	h.login(c, req.UserID, req.Password, models.RoleMechanic)
}

func (h *AccountHandler) login(c *gin.Context, username, password string, role models.Role) {
	result, err := h.accounts.Login(c.Request.Context(), username, password, role)
	if err != nil {
		respondError(c, h.logger, err, "An error occurred during login")
		return
	}
	body := gin.H{"message": "Login successful", "role": result.Role}
	if result.Role == models.RoleMechanic {
		body["pincode"] = result.Pincode
	}
	respondOK(c, body)
}

type availabilityRequest struct {
	UserID string `json:"userId"`
	models.Availability
}

// UpdateAvailability handles POST /updateAvailability
func (h *AccountHandler) UpdateAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, errInvalidBody)
		return
	}
	if err := h.accounts.UpdateAvailability(c.Request.Context(), req.UserID, req.Availability); err != nil {
		respondError(c, h.logger, err, "Failed to update availability")
		return
	}
	respondOK(c, gin.H{"message": "Availability updated successfully"})
}
