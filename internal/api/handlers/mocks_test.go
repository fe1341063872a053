package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"carrental/backend/internal/email"
	"carrental/backend/internal/models"
	"carrental/backend/internal/services"
)

// --- Service mocks ---

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, input services.RegisterInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockAccountService) Login(ctx context.Context, username, password string, role models.Role) (*services.LoginResult, error) {
	args := m.Called(ctx, username, password, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.LoginResult), args.Error(1)
}

func (m *MockAccountService) UpdateAvailability(ctx context.Context, userID string, availability models.Availability) error {
	return m.Called(ctx, userID, availability).Error(0)
}

func (m *MockAccountService) AddMechanic(ctx context.Context, mechanic services.MechanicInput, replace bool) error {
	return m.Called(ctx, mechanic, replace).Error(0)
}

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) SendRequest(ctx context.Context, renteeID, ownerID string) error {
	return m.Called(ctx, renteeID, ownerID).Error(0)
}

func (m *MockBookingService) TransitionRequest(ctx context.Context, renterID, renteeID string, status models.RequestStatus) (*services.TransitionResult, error) {
	args := m.Called(ctx, renterID, renteeID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TransitionResult), args.Error(1)
}

func (m *MockBookingService) AcceptRequest(ctx context.Context, renterID, renteeID string) (*services.TransitionResult, error) {
	args := m.Called(ctx, renterID, renteeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TransitionResult), args.Error(1)
}

func (m *MockBookingService) UpdateRequestStatus(ctx context.Context, renterID, renteeID string, status models.RequestStatus) (*services.TransitionResult, error) {
	args := m.Called(ctx, renterID, renteeID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TransitionResult), args.Error(1)
}

func (m *MockBookingService) GetPendingRequests(ctx context.Context, userID string) ([]models.RequestEntry, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RequestEntry), args.Error(1)
}

func (m *MockBookingService) GetRequestStatus(ctx context.Context, renteeID string) ([]models.RequestStatusView, error) {
	args := m.Called(ctx, renteeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RequestStatusView), args.Error(1)
}

func (m *MockBookingService) ClearRequestStatus(ctx context.Context, ownerID, renteeID string) error {
	return m.Called(ctx, ownerID, renteeID).Error(0)
}

func (m *MockBookingService) DeleteBooking(ctx context.Context, bookingID string) error {
	return m.Called(ctx, bookingID).Error(0)
}

func (m *MockBookingService) SaveBookingID(ctx context.Context, requestID, bookingID string) error {
	return m.Called(ctx, requestID, bookingID).Error(0)
}

func (m *MockBookingService) GetBookingDetails(ctx context.Context, bookingID string) (*models.BookingDetails, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}

func (m *MockBookingService) ReconcileLedgerSyncs(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) ComputeBill(bookingID string, startingKm, endingKm, pricePerKm, coverageAmount float64) *models.Bill {
	return m.Called(bookingID, startingKm, endingKm, pricePerKm, coverageAmount).Get(0).(*models.Bill)
}

func (m *MockBillingService) GenerateBill(ctx context.Context, input services.GenerateBillInput) (*models.Bill, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bill), args.Error(1)
}

type MockDirectoryService struct {
	mock.Mock
}

func (m *MockDirectoryService) Search(ctx context.Context, pincode string) ([]models.PublicRenter, error) {
	args := m.Called(ctx, pincode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PublicRenter), args.Error(1)
}

func (m *MockDirectoryService) FetchMechanicBookings(ctx context.Context, pincode string) ([]models.MechanicBooking, error) {
	args := m.Called(ctx, pincode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MechanicBooking), args.Error(1)
}

func (m *MockDirectoryService) FetchBookings(ctx context.Context, mechanicID string) ([]models.MechanicBooking, error) {
	args := m.Called(ctx, mechanicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MechanicBooking), args.Error(1)
}

func (m *MockDirectoryService) GetMechanicPincode(ctx context.Context, mechanicID string) (string, error) {
	args := m.Called(ctx, mechanicID)
	return args.String(0), args.Error(1)
}

type MockMailbox struct {
	mock.Mock
}

func (m *MockMailbox) Take(ctx context.Context, to, template string) (*email.MockEmail, error) {
	args := m.Called(ctx, to, template)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*email.MockEmail), args.Error(1)
}

// --- Helpers ---

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func serviceError(kind error, msg string) error {
	return &services.Error{Kind: kind, Message: msg}
}
