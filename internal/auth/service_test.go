package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"microlend/internal/domain"
	pkgerrors "microlend/pkg/errors"
)

type mockOperatorRepo struct {
	mock.Mock
}

func (m *mockOperatorRepo) Create(ctx context.Context, op *domain.Operator) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *mockOperatorRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *mockOperatorRepo) FindByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operator), args.Error(1)
}

func (m *mockOperatorRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockOperatorRepo) Update(ctx context.Context, op *domain.Operator) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *mockOperatorRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func testOperator(t *testing.T, password string) *domain.Operator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.Operator{
		ID:           uuid.New(),
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Name:         "Admin",
		Role:         domain.OperatorRoleAdmin,
		IsActive:     true,
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	op := testOperator(t, "s3cret-pass")
	repo.On("FindByEmail", mock.Anything, "admin@example.com").Return(op, nil)
	repo.On("UpdateLastLogin", mock.Anything, op.ID).Return(nil)

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, op.ID, resp.Operator.ID)

	token, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, op.ID.String(), claims["operator_id"])
	assert.Equal(t, "admin", claims["role"])

	repo.AssertExpectations(t)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	op := testOperator(t, "s3cret-pass")
	repo.On("FindByEmail", mock.Anything, "admin@example.com").Return(op, nil)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "admin@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	repo.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, pkgerrors.ErrOperatorNotFound)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestLoginInactiveOperator(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	op := testOperator(t, "s3cret-pass")
	op.IsActive = false
	repo.On("FindByEmail", mock.Anything, "admin@example.com").Return(op, nil)

	_, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}

func TestLoginTOTPChallenge(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "microlend", AccountName: "admin@example.com"})
	require.NoError(t, err)
	secret := key.Secret()

	op := testOperator(t, "s3cret-pass")
	op.TOTPSecret = &secret
	op.IsTOTPEnabled = true
	repo.On("FindByEmail", mock.Anything, "admin@example.com").Return(op, nil)
	repo.On("UpdateLastLogin", mock.Anything, op.ID).Return(nil)

	// No code: the caller must be told to present the second factor.
	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrTOTPRequired)

	// Wrong code.
	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
		TOTPCode: "000000",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTOTPCode)

	// Valid code.
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
		TOTPCode: code,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestCreateOperatorDuplicate(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	repo.On("ExistsByEmail", mock.Anything, "admin@example.com").Return(true, nil)

	_, err := svc.CreateOperator(context.Background(), &CreateOperatorRequest{
		Email:    "admin@example.com",
		Password: "s3cret-pass",
		Name:     "Admin",
		Role:     domain.OperatorRoleAdmin,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrOperatorAlreadyExists)
}

func TestEnableTOTP(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "microlend", AccountName: "admin@example.com"})
	require.NoError(t, err)
	secret := key.Secret()

	op := testOperator(t, "s3cret-pass")
	op.TOTPSecret = &secret
	repo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.Operator) bool {
		return updated.IsTOTPEnabled
	})).Return(nil)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.EnableTOTP(context.Background(), op.ID, code))
	repo.AssertExpectations(t)
}

func TestEnableTOTPRejectsBadCode(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "microlend", AccountName: "admin@example.com"})
	require.NoError(t, err)
	secret := key.Secret()

	op := testOperator(t, "s3cret-pass")
	op.TOTPSecret = &secret
	repo.On("FindByID", mock.Anything, op.ID).Return(op, nil)

	err = svc.EnableTOTP(context.Background(), op.ID, "123456")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTOTPCode)
}

func TestChangePassword(t *testing.T) {
	repo := new(mockOperatorRepo)
	svc := NewService(repo, "test-secret", time.Hour)

	op := testOperator(t, "old-password")
	repo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	repo.On("Update", mock.Anything, mock.MatchedBy(func(updated *domain.Operator) bool {
		return bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new-password")) == nil
	})).Return(nil)

	require.NoError(t, svc.ChangePassword(context.Background(), op.ID, "old-password", "new-password"))

	err := svc.ChangePassword(context.Background(), op.ID, "not-the-password", "whatever")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidCredentials)
}
