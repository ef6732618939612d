package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"tasklist/internal/apperrors"
	"tasklist/internal/auth"
	"tasklist/internal/cache"
	"tasklist/internal/model"
	"tasklist/internal/repository"
)

// AuthService handles registration, login, and password changes.
type AuthService interface {
	Register(ctx context.Context, name, email, password, phoneNumber, role string) (*model.User, error)
	Login(ctx context.Context, email, password string) (token string, user *model.User, err error)
	ChangePassword(ctx context.Context, user *model.User, currentPassword, newPassword string) error
}

type authService struct {
	userRepo   repository.UserRepository
	hasher     auth.PasswordHasher
	jwtService *auth.JWTService
	cache      *cache.Client
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, hasher auth.PasswordHasher, jwtService *auth.JWTService, cache *cache.Client) AuthService {
	return &authService{
		userRepo:   userRepo,
		hasher:     hasher,
		jwtService: jwtService,
		cache:      cache,
	}
}

// Register hashes the password and persists a new identity. The email unique
// index is the final authority: a duplicate surfaces as ErrEmailTaken even
// when two registrations race past the existence check.
func (s *authService) Register(ctx context.Context, name, email, password, phoneNumber, role string) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, apperrors.ErrEmailTaken
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	if role == "" {
		role = model.RoleUser
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		PhoneNumber:  phoneNumber,
		Role:         role,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrEmailTaken) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// Login verifies credentials and issues a bearer token whose subject is the
// identity's email. An unknown email and a wrong password return the same
// error; the unknown-email path still burns a hash comparison so the two are
// not separable by timing.
func (s *authService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			auth.DummyVerify(s.hasher)
			return "", nil, apperrors.ErrInvalidCredentials
		}
		// a store outage is not a credential failure
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", nil, apperrors.ErrInvalidCredentials
	}

	token, err := s.jwtService.IssueAccessToken(user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("issue access token: %w", err)
	}

	return token, user, nil
}

// ChangePassword verifies the current password, stores a hash of the new one,
// and drops the cached identity. Tokens issued before the change stay valid
// until they expire; the token model is stateless.
func (s *authService) ChangePassword(ctx context.Context, user *model.User, currentPassword, newPassword string) error {
	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return apperrors.ErrWrongPassword
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = passwordHash
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	_ = s.cache.Delete(ctx, userCacheKey(user.Email))
	return nil
}
