package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"tasklist/internal/apperrors"
	"tasklist/internal/model"
	"tasklist/internal/repository"
)

// TodoService exposes task item operations. Owner-scoped methods treat a todo
// belonging to someone else exactly like a missing one.
type TodoService interface {
	ListForUser(ctx context.Context, userID uint) ([]model.Todo, error)
	Create(ctx context.Context, userID uint, title, description string) (*model.Todo, error)
	SetCompleted(ctx context.Context, userID, todoID uint, completed bool) (*model.Todo, error)
	Delete(ctx context.Context, userID, todoID uint) error
	ListAll(ctx context.Context) ([]model.Todo, error)
	AdminDelete(ctx context.Context, todoID uint) error
}

type todoService struct {
	repo repository.TodoRepository
}

// NewTodoService builds a TodoService.
func NewTodoService(repo repository.TodoRepository) TodoService {
	return &todoService{repo: repo}
}

func (s *todoService) ListForUser(ctx context.Context, userID uint) ([]model.Todo, error) {
	return s.repo.ListByOwner(ctx, userID)
}

func (s *todoService) Create(ctx context.Context, userID uint, title, description string) (*model.Todo, error) {
	todo := &model.Todo{
		Title:       title,
		Description: description,
		UserID:      userID,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *todoService) SetCompleted(ctx context.Context, userID, todoID uint, completed bool) (*model.Todo, error) {
	todo, err := s.repo.FindByIDAndOwner(ctx, todoID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTodoNotFound
		}
		return nil, err
	}

	todo.Completed = completed
	if err := s.repo.Update(ctx, todo); err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *todoService) Delete(ctx context.Context, userID, todoID uint) error {
	todo, err := s.repo.FindByIDAndOwner(ctx, todoID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTodoNotFound
		}
		return err
	}
	return s.repo.Delete(ctx, todo.ID)
}

func (s *todoService) ListAll(ctx context.Context) ([]model.Todo, error) {
	return s.repo.List(ctx)
}

// AdminDelete removes any todo regardless of owner.
func (s *todoService) AdminDelete(ctx context.Context, todoID uint) error {
	if err := s.repo.Delete(ctx, todoID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrTodoNotFound
		}
		return err
	}
	return nil
}
