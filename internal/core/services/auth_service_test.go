package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-care-engine/internal/core/domain"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) GenerateToken(userID string) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}

func TestAuthService_Register(t *testing.T) {
	t.Parallel()

	t.Run("Success: Should register a valid user", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := NewAuthService(mockRepo, new(MockTokenIssuer))
		ctx := context.Background()

		input := RegisterInput{
			Email:    "fern_owner@care.app",
			Password: "StrongPassword123!",
		}

		mockRepo.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)

		user, err := service.Register(ctx, input)

		assert.NoError(t, err)
		assert.NotNil(t, user)
		assert.Equal(t, input.Email, user.Email)
		assert.NotEmpty(t, user.ID)
		assert.NotEmpty(t, user.PasswordHash)

		mockRepo.AssertExpectations(t)
	})

	t.Run("Fail: Should return error for invalid email", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := NewAuthService(mockRepo, new(MockTokenIssuer))

		user, err := service.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "pass"})

		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
		assert.Nil(t, user)
		mockRepo.AssertNotCalled(t, "Create")
	})

	t.Run("Fail: Should return error for short password", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := NewAuthService(mockRepo, new(MockTokenIssuer))

		user, err := service.Register(context.Background(), RegisterInput{Email: "valid@email.com", Password: "short"})

		assert.ErrorIs(t, err, domain.ErrPasswordTooShort)
		assert.Nil(t, user)
		mockRepo.AssertNotCalled(t, "Create")
	})

	t.Run("Fail: Should propagate repository error (Duplicate Email)", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := NewAuthService(mockRepo, new(MockTokenIssuer))
		ctx := context.Background()

		mockRepo.On("Create", ctx, mock.Anything).Return(domain.ErrEmailAlreadyExists)

		user, err := service.Register(ctx, RegisterInput{Email: "duplicate@email.com", Password: "StrongPassword123!"})

		assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)
		assert.Nil(t, user)
		mockRepo.AssertExpectations(t)
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	stored, err := domain.NewUser("user-1", "gardener@care.app")
	require.NoError(t, err)
	require.NoError(t, stored.SetPassword("StrongPassword123!"))

	t.Run("Success: Should issue a token", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		tokens := new(MockTokenIssuer)
		service := NewAuthService(mockRepo, tokens)
		ctx := context.Background()

		mockRepo.On("GetByEmail", ctx, "gardener@care.app").Return(stored, nil)
		tokens.On("GenerateToken", "user-1").Return("signed.jwt.token", nil)

		token, user, err := service.Login(ctx, LoginInput{Email: "  Gardener@Care.app ", Password: "StrongPassword123!"})

		require.NoError(t, err)
		assert.Equal(t, "signed.jwt.token", token)
		assert.Equal(t, "user-1", user.ID)
		mockRepo.AssertExpectations(t)
		tokens.AssertExpectations(t)
	})

	t.Run("Fail: Wrong password", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		tokens := new(MockTokenIssuer)
		service := NewAuthService(mockRepo, tokens)

		mockRepo.On("GetByEmail", mock.Anything, "gardener@care.app").Return(stored, nil)

		_, _, err := service.Login(context.Background(), LoginInput{Email: "gardener@care.app", Password: "WrongPassword!"})

		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		tokens.AssertNotCalled(t, "GenerateToken", mock.Anything)
	})

	t.Run("Fail: Unknown email looks like bad credentials", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := NewAuthService(mockRepo, new(MockTokenIssuer))

		mockRepo.On("GetByEmail", mock.Anything, "ghost@care.app").Return(nil, domain.ErrUserNotFound)

		_, _, err := service.Login(context.Background(), LoginInput{Email: "ghost@care.app", Password: "whatever123"})

		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("Fail: Store error is not hidden", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service := NewAuthService(mockRepo, new(MockTokenIssuer))

		mockRepo.On("GetByEmail", mock.Anything, "gardener@care.app").Return(nil, errors.New("connection reset"))

		_, _, err := service.Login(context.Background(), LoginInput{Email: "gardener@care.app", Password: "StrongPassword123!"})

		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}
