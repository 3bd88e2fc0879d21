package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/taskdeck/internal/auth/domain"
	"github.com/aussiebroadwan/taskdeck/internal/auth/store"
)

var ErrUserNotFound = errors.New("user_not_found")

type UserService struct {
	Users store.Users
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Users.GetUserByID(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.User{}, ErrUserNotFound
	case err != nil:
		return domain.User{}, storeErr(err)
	}
	return u, nil
}
