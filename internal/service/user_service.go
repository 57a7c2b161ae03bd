package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
)

// UserService manages test takers.
type UserService struct {
	store repository.Store
}

// NewUserService creates a new UserService.
func NewUserService(store repository.Store) *UserService {
	return &UserService{store: store}
}

func validateUser(u *model.User) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	u.Phone = strings.TrimSpace(u.Phone)

	switch {
	case u.Name == "":
		return invalid("name", "name is required")
	case u.Age <= 0:
		return invalid("age", "age is required")
	case u.Email == "":
		return invalid("email", "email is required")
	case u.Phone == "":
		return invalid("phone", "phone is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return invalid("email", "email must be a valid email address")
	}
	return nil
}

// Upsert registers a user, or refreshes name, age and phone of the user
// with the same email (case-insensitive).
func (s *UserService) Upsert(ctx context.Context, req model.UpsertUserRequest) (*model.User, error) {
	u := &model.User{Name: req.Name, Age: req.Age, Email: req.Email, Phone: req.Phone}
	if err := validateUser(u); err != nil {
		return nil, err
	}
	if err := s.store.UpsertUserByEmail(ctx, u); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// List returns every user ordered by id.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetByID returns a single user.
func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update applies a partial edit.
func (s *UserService) Update(ctx context.Context, id int, req model.UpdateUserRequest) (*model.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Apply(u)
	if err := validateUser(u); err != nil {
		return nil, err
	}

	switch err := s.store.UpdateUser(ctx, u); {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, ErrDuplicateEmail
	case err != nil:
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete removes a user. Their test sessions are kept.
func (s *UserService) Delete(ctx context.Context, id int) error {
	err := s.store.DeleteUser(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
