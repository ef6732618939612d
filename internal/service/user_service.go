package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"tasklist/internal/apperrors"
	"tasklist/internal/cache"
	"tasklist/internal/model"
	"tasklist/internal/repository"
)

const userCacheTTL = 5 * time.Minute

func userCacheKey(email string) string {
	return "user:email:" + email
}

// cachedUser is the cache payload for an identity. The API model drops
// PasswordHash from JSON, so caching model.User directly would hand back an
// identity with an empty hash; this DTO round-trips every column. It only ever
// travels between the service and Redis, never to a client.
type cachedUser struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	PhoneNumber  string    `json:"phone_number"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toCachedUser(u *model.User) *cachedUser {
	return &cachedUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		PhoneNumber:  u.PhoneNumber,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (c *cachedUser) toModel() *model.User {
	return &model.User{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		PhoneNumber:  c.PhoneNumber,
		Role:         c.Role,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

// UserService exposes identity operations.
type UserService interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User, name, phoneNumber string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, id uint) error
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

// GetByEmail resolves an identity through a read-through cache. Every mutation
// path invalidates the key, so a deleted identity stops resolving immediately.
func (s *userService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, userCacheKey(email)); data != nil {
		var cached cachedUser
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached.toModel(), nil
		}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	if payload, err := json.Marshal(toCachedUser(user)); err == nil {
		_ = s.cache.Set(ctx, userCacheKey(email), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile applies the provided fields; empty values leave the current
// ones untouched, matching last-writer-wins semantics per statement.
func (s *userService) UpdateProfile(ctx context.Context, user *model.User, name, phoneNumber string) (*model.User, error) {
	if name != "" {
		user.Name = name
	}
	if phoneNumber != "" {
		user.PhoneNumber = phoneNumber
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	_ = s.cache.Delete(ctx, userCacheKey(user.Email))
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// DeleteUser removes an identity. Outstanding tokens for it keep verifying
// until expiry, but the gate stops resolving the subject as soon as the row
// and its cache entry are gone.
func (s *userService) DeleteUser(ctx context.Context, id uint) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUserNotFound
		}
		return err
	}

	_ = s.cache.Delete(ctx, userCacheKey(user.Email))
	return nil
}
