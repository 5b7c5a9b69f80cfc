// Package auth implements operator authentication: login with optional
// TOTP second factor, token issuance, and account management.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"microlend/internal/domain"
	pkgerrors "microlend/pkg/errors"
)

const totpIssuer = "microlend"

// Repository is the subset of operator persistence the service needs.
type Repository interface {
	Create(ctx context.Context, op *domain.Operator) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
	FindByEmail(ctx context.Context, email string) (*domain.Operator, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, op *domain.Operator) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

// Service provides operator login and token issuance.
type Service struct {
	repo      Repository
	jwtSecret string
	jwtExpiry time.Duration
}

func NewService(repo Repository, jwtSecret string, jwtExpiry time.Duration) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

// CreateOperatorRequest captures the fields for a new back-office account.
type CreateOperatorRequest struct {
	Email    string              `json:"email" validate:"required,email"`
	Password string              `json:"password" validate:"required,min=8"`
	Name     string              `json:"name" validate:"required"`
	Role     domain.OperatorRole `json:"role" validate:"required,oneof=admin staff"`
}

// LoginRequest captures credentials plus the optional TOTP code.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code,omitempty"`
}

// TokenResponse is returned on successful login.
type TokenResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Operator    *domain.Operator `json:"operator"`
}

// TOTPSetupResponse carries the provisioning material for an authenticator
// app. The secret is only enabled after the first code verifies.
type TOTPSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// CreateOperator registers a back-office account.
func (s *Service) CreateOperator(ctx context.Context, req *CreateOperatorRequest) (*domain.Operator, error) {
	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, pkgerrors.ErrOperatorAlreadyExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	op := &domain.Operator{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Name:         req.Name,
		Role:         req.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, op); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, pkgerrors.ErrOperatorAlreadyExists
		}
		return nil, err
	}

	return op, nil
}

// Login authenticates an operator. Accounts with TOTP enabled must supply
// a valid code; a missing code yields ErrTOTPRequired so the UI can prompt
// for the second factor.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	op, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, pkgerrors.ErrInvalidCredentials
	}
	if !op.IsActive {
		return nil, pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, pkgerrors.ErrInvalidCredentials
	}

	if op.IsTOTPEnabled {
		if req.TOTPCode == "" {
			return nil, pkgerrors.ErrTOTPRequired
		}
		if op.TOTPSecret == nil || !totp.Validate(req.TOTPCode, *op.TOTPSecret) {
			return nil, pkgerrors.ErrInvalidTOTPCode
		}
	}

	if err := s.repo.UpdateLastLogin(ctx, op.ID); err != nil {
		return nil, err
	}

	return s.generateToken(op)
}

// SetupTOTP provisions a fresh secret for the operator. The secret is
// stored but stays disabled until EnableTOTP verifies a code from the
// authenticator app.
func (s *Service) SetupTOTP(ctx context.Context, operatorID uuid.UUID) (*TOTPSetupResponse, error) {
	op, err := s.repo.FindByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: op.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	secret := key.Secret()
	op.TOTPSecret = &secret
	op.IsTOTPEnabled = false
	if err := s.repo.Update(ctx, op); err != nil {
		return nil, err
	}

	return &TOTPSetupResponse{
		Secret:     secret,
		OTPAuthURL: key.URL(),
	}, nil
}

// EnableTOTP turns the second factor on after the operator proves they
// scanned the secret.
func (s *Service) EnableTOTP(ctx context.Context, operatorID uuid.UUID, code string) error {
	op, err := s.repo.FindByID(ctx, operatorID)
	if err != nil {
		return err
	}
	if op.TOTPSecret == nil {
		return pkgerrors.ErrInvalidTOTPCode
	}
	if !totp.Validate(code, *op.TOTPSecret) {
		return pkgerrors.ErrInvalidTOTPCode
	}

	op.IsTOTPEnabled = true
	return s.repo.Update(ctx, op)
}

// DisableTOTP removes the second factor. The current code is required so a
// hijacked session cannot silently downgrade the account.
func (s *Service) DisableTOTP(ctx context.Context, operatorID uuid.UUID, code string) error {
	op, err := s.repo.FindByID(ctx, operatorID)
	if err != nil {
		return err
	}
	if !op.IsTOTPEnabled || op.TOTPSecret == nil {
		return nil
	}
	if !totp.Validate(code, *op.TOTPSecret) {
		return pkgerrors.ErrInvalidTOTPCode
	}

	op.TOTPSecret = nil
	op.IsTOTPEnabled = false
	return s.repo.Update(ctx, op)
}

// ChangePassword rotates the operator's password after verifying the
// current one.
func (s *Service) ChangePassword(ctx context.Context, operatorID uuid.UUID, current, next string) error {
	op, err := s.repo.FindByID(ctx, operatorID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(current)); err != nil {
		return pkgerrors.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	op.PasswordHash = string(hash)
	return s.repo.Update(ctx, op)
}

func (s *Service) generateToken(op *domain.Operator) (*TokenResponse, error) {
	expiresAt := time.Now().Add(s.jwtExpiry)

	claims := jwt.MapClaims{
		"operator_id": op.ID.String(),
		"email":       op.Email,
		"role":        string(op.Role),
		"exp":         expiresAt.Unix(),
		"iat":         time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		Operator:    op,
	}, nil
}
