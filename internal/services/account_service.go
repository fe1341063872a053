package services

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"go.uber.org/zap"

	"carrental/backend/internal/auth"
	"carrental/backend/internal/models"
	"carrental/backend/internal/store"
)

// IAccountService covers registration, credential checks and owner availability.
type IAccountService interface {
	Register(ctx context.Context, input RegisterInput) error
	Login(ctx context.Context, username, password string, role models.Role) (*LoginResult, error)
	UpdateAvailability(ctx context.Context, userID string, availability models.Availability) error
	AddMechanic(ctx context.Context, mechanic MechanicInput, replace bool) error
}

// RegisterInput is a new account with its plaintext password.
type RegisterInput struct {
	UserID        string      `json:"userId"`
	Name          string      `json:"name"`
	Email         string      `json:"email"`
	Password      string      `json:"password"`
	Phone         string      `json:"phone"`
	Role          models.Role `json:"role"`
	LicenseNumber string      `json:"licenseNumber"`
	AadharNumber  string      `json:"aadharNumber"`
	CarModel      string      `json:"carModel"`
	CarYear       int         `json:"carYear"`
	Address       string      `json:"address"`
	Pincode       string      `json:"pincode"`
	Price         float64     `json:"price"`
}

// MechanicInput is a mechanic record with its plaintext password.
type MechanicInput struct {
	UserID   string `yaml:"userId"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Pincode  string `yaml:"pincode"`
}

// LoginResult is returned on a successful credential check.
type LoginResult struct {
	Role    models.Role
	Pincode string // mechanics only
}

type accountService struct {
	store  store.DirectoryStore
	logger *zap.Logger
}

// NewAccountService creates a new AccountService.
func NewAccountService(st store.DirectoryStore, logger *zap.Logger) IAccountService {
	return &accountService{store: st, logger: logger.Named("accounts")}
}

func (s *accountService) Register(ctx context.Context, input RegisterInput) error {
	if input.UserID == "" || input.Email == "" || input.Password == "" {
		return invalidInput("User ID, email and password are required")
	}
	if !input.Role.Valid() {
		return invalidInput("Invalid role")
	}
	// Bare addresses only; the value ends up in the To header.
	if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		return invalidInput("Invalid email address")
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return dependency("Failed to register user", err)
	}
	account := &models.Account{
		UserID:        input.UserID,
		Name:          input.Name,
		Email:         input.Email,
		PasswordHash:  hash,
		Phone:         input.Phone,
		Role:          input.Role,
		Address:       input.Address,
		Pincode:       input.Pincode,
		LicenseNumber: input.LicenseNumber,
		AadharNumber:  input.AadharNumber,
		CarModel:      input.CarModel,
		CarYear:       input.CarYear,
		Price:         input.Price,
		Requests:      []models.RequestEntry{},
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return conflict("User ID or email already registered")
		}
		return dependency("Failed to register user", err)
	}
	s.logger.Info("account registered", zap.String("user_id", input.UserID), zap.String("role", string(input.Role)))
	return nil
}

// Login checks credentials. Mechanics are looked up in their own collection.
// Wrong credentials are reported as invalid input.
func (s *accountService) Login(ctx context.Context, username, password string, role models.Role) (*LoginResult, error) {
	if username == "" || password == "" || role == "" {
		return nil, invalidInput("Please provide all required fields.")
	}

	if role == models.RoleMechanic {
		mechanic, err := s.store.FindMechanic(ctx, username)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, invalidInput("Mechanic not found")
			}
			return nil, dependency("An error occurred during login", err)
		}
		if !auth.CheckPasswordHash(password, mechanic.PasswordHash) {
			return nil, invalidInput("Invalid password")
		}
		return &LoginResult{Role: models.RoleMechanic, Pincode: mechanic.Pincode}, nil
	}

	account, err := s.store.FindAccount(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalidInput("User not found")
		}
		return nil, dependency("An error occurred during login", err)
	}
	if !auth.CheckPasswordHash(password, account.PasswordHash) {
		return nil, invalidInput("Invalid password")
	}
	if account.Role != role {
		return nil, invalidInput("Role mismatch")
	}
	return &LoginResult{Role: account.Role}, nil
}

// UpdateAvailability replaces the owner's availability window.
func (s *accountService) UpdateAvailability(ctx context.Context, userID string, availability models.Availability) error {
	if userID == "" || availability.FromDate == "" || availability.ToDate == "" ||
		availability.FromTime == "" || availability.ToTime == "" {
		return invalidInput("All fields are required")
	}
	if err := s.store.SetAvailability(ctx, userID, availability); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("User not found")
		}
		return dependency("Failed to update availability", err)
	}
	return nil
}

// AddMechanic hashes the password and creates the mechanic. An existing
// mechanic is a Conflict unless replace is set.
func (s *accountService) AddMechanic(ctx context.Context, input MechanicInput, replace bool) error {
	if input.UserID == "" || input.Password == "" || input.Pincode == "" {
		return invalidInput("User ID, password and pincode are required")
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return dependency("Failed to add mechanic", err)
	}
	mechanic := &models.Mechanic{
		UserID:       input.UserID,
		Name:         input.Name,
		PasswordHash: hash,
		Pincode:      input.Pincode,
	}
	if replace {
		err = s.store.UpsertMechanic(ctx, mechanic)
	} else {
		err = s.store.InsertMechanic(ctx, mechanic)
	}
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return conflict("Mechanic already exists")
		}
		return dependency("Failed to add mechanic", err)
	}
	s.logger.Info("mechanic saved", zap.String("user_id", input.UserID), zap.String("pincode", input.Pincode))
	return nil
}
