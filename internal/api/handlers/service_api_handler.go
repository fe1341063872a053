package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"carrental/backend/internal/email"
	"carrental/backend/internal/scheduler"
)

// JsonApiRequest defines the expected structure for JSON API requests.
type JsonApiRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// JsonApiResponse defines the structure for JSON API responses.
type JsonApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ApiError is a failed service method with the HTTP status to answer.
type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	return e.Message
}

func NewApiError(status int, message string) *ApiError {
	return &ApiError{Status: status, Message: message}
}

type apiMethodFunc func(c *gin.Context, args json.RawMessage) (interface{}, *ApiError)

// IMockMailbox reads emails captured by the Redis mock sender.
type IMockMailbox interface {
	Take(ctx context.Context, to, template string) (*email.MockEmail, error)
}

const (
	mailboxPollAttempts = 10
	mailboxPollInterval = 200 * time.Millisecond
)

// ServiceApiHandler serves the operator/test API on the service port.
type ServiceApiHandler struct {
	mailbox      IMockMailbox
	reconciler   scheduler.LedgerReconciler
	shutdownChan chan<- struct{}
	pollInterval time.Duration
	logger       *zap.Logger
	methods      map[string]apiMethodFunc
}

// NewServiceApiHandler wires the methods. mailbox may be nil when Redis is
// not available, in which case getTestEmail fails.
func NewServiceApiHandler(mailbox IMockMailbox, reconciler scheduler.LedgerReconciler, shutdownChan chan<- struct{}, logger *zap.Logger) *ServiceApiHandler {
	h := &ServiceApiHandler{
		mailbox:      mailbox,
		reconciler:   reconciler,
		shutdownChan: shutdownChan,
		pollInterval: mailboxPollInterval,
		logger:       logger,
	}
	h.methods = map[string]apiMethodFunc{
		"ping":            h.ping,
		"shutdown":        h.shutdown,
		"getTestEmail":    h.getTestEmail,
		"reconcileLedger": h.reconcileLedger,
	}
	return h
}

// HandleRequest is the entry point for POST /api
func (h *ServiceApiHandler) HandleRequest(c *gin.Context) {
	var req JsonApiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, JsonApiResponse{Error: "Invalid request format"})
		return
	}

	handlerFunc, ok := h.methods[req.Method]
	if !ok {
		c.JSON(http.StatusNotFound, JsonApiResponse{Error: fmt.Sprintf("Unknown service method: %s", req.Method)})
		return
	}

	result, apiErr := handlerFunc(c, req.Arguments)
	if apiErr != nil {
		c.JSON(apiErr.Status, JsonApiResponse{Error: apiErr.Message})
		return
	}
	c.JSON(http.StatusOK, JsonApiResponse{Success: true, Data: result})
}

func (h *ServiceApiHandler) ping(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	return "pong", nil
}

func (h *ServiceApiHandler) shutdown(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	h.logger.Info("shutdown requested via service API")
	select {
	case h.shutdownChan <- struct{}{}:
	default:
		h.logger.Warn("shutdown already signaled")
	}
	return "Shutdown initiated", nil
}

// getTestEmail expects arguments [template, email] and polls briefly for
// the message, since delivery runs in the background worker.
func (h *ServiceApiHandler) getTestEmail(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	var parts []string
	if err := json.Unmarshal(args, &parts); err != nil || len(parts) != 2 {
		return nil, NewApiError(http.StatusBadRequest, "Invalid arguments: expected JSON array [template, email]")
	}
	if h.mailbox == nil {
		return nil, NewApiError(http.StatusServiceUnavailable, "Mock mailbox not configured")
	}
	template, to := parts[0], parts[1]

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	for i := 0; i < mailboxPollAttempts; i++ {
		msg, err := h.mailbox.Take(ctx, to, template)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, redis.Nil) {
			h.logger.Error("mock mailbox read failed", zap.String("key", email.MockEmailKey(to, template)), zap.Error(err))
			return nil, NewApiError(http.StatusInternalServerError, "Redis error")
		}
		select {
		case <-ctx.Done():
			i = mailboxPollAttempts
		case <-time.After(h.pollInterval):
		}
	}
	return nil, NewApiError(http.StatusNotFound, fmt.Sprintf("Test email not found for key %s", email.MockEmailKey(to, template)))
}

func (h *ServiceApiHandler) reconcileLedger(c *gin.Context, args json.RawMessage) (interface{}, *ApiError) {
	repaired, err := h.reconciler.ReconcileLedgerSyncs(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger reconciliation via service API failed", zap.Error(err))
		return nil, NewApiError(http.StatusInternalServerError, "Ledger reconciliation failed")
	}
	return gin.H{"repaired": repaired}, nil
}
