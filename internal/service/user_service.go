package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"userapi/internal/auth"
	apperrors "userapi/internal/errors"
	"userapi/internal/model"
	"userapi/internal/repository"
)

// ProfileUpdate is a partial update. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string `json:"first_name" validate:"omitnil,max=150"`
	LastName  *string `json:"last_name" validate:"omitnil,max=150"`
	Email     *string `json:"email" validate:"omitnil,email,max=255"`
}

// Empty reports whether the update carries no field at all.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil
}

// UserService exposes profile and user directory operations.
type UserService interface {
	Profile(ctx context.Context, id uuid.UUID) (*model.UserView, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*model.UserView, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.UserView, error)
	ListUsers(ctx context.Context) ([]model.UserView, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo       repository.UserRepository
	cache      UserViewCache
	tokenStore auth.TokenStoreInterface
	logger     *zap.Logger
}

// NewUserService builds a UserService with repository, cache and token store.
func NewUserService(repo repository.UserRepository, cache UserViewCache, tokenStore auth.TokenStoreInterface, logger *zap.Logger) UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userService{repo: repo, cache: cache, tokenStore: tokenStore, logger: logger}
}

// Profile returns the cached view when present and falls back to persistence.
// A view loaded here only fills an empty slot: writers own the cache entry.
func (s *userService) Profile(ctx context.Context, id uuid.UUID) (*model.UserView, error) {
	if view, ok := s.cache.Get(ctx, id); ok {
		return &view, nil
	}
	return s.load(ctx, id)
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.UserView, error) {
	return s.Profile(ctx, id)
}

func (s *userService) load(ctx context.Context, id uuid.UUID) (*model.UserView, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrNotFound
	}
	view := user.View()
	s.cache.PutIfAbsent(ctx, view)
	return &view, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.UserView, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	views := make([]model.UserView, 0, len(users))
	for i := range users {
		views = append(views, users[i].View())
	}
	return views, nil
}

// UpdateProfile applies the provided fields in one transaction. The cached
// view is rewritten only after the commit succeeds.
func (s *userService) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*model.UserView, error) {
	if err := ValidateStruct(update); err != nil {
		return nil, err
	}

	var previousEmail string
	var updated *model.User
	err := s.repo.WithTransaction(ctx, func(ctx context.Context, repo repository.UserRepository) error {
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.ErrNotFound
		}
		previousEmail = current.Email

		patch := repository.Patch{}
		if update.FirstName != nil {
			patch["first_name"] = *update.FirstName
		}
		if update.LastName != nil {
			patch["last_name"] = *update.LastName
		}
		if update.Email != nil {
			email := repository.NormalizeEmail(*update.Email)
			if email != current.Email {
				owner, err := repo.FindByEmail(ctx, email)
				if err != nil {
					return err
				}
				if owner != nil && owner.ID != id {
					return errEmailTaken
				}
				patch["email"] = email
			}
		}

		updated, err = repo.Update(ctx, id, patch)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errEmailTaken
			}
			return err
		}
		if updated == nil {
			return apperrors.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if previousEmail != updated.Email {
		s.cache.Invalidate(ctx, id, previousEmail)
	}
	view := updated.View()
	s.cache.Put(ctx, view)
	return &view, nil
}

// DeleteAccount revokes the user's refresh tokens, removes the record and drops the cache entry.
func (s *userService) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return apperrors.ErrNotFound
	}

	if err := s.tokenStore.RevokeAllForUser(ctx, id); err != nil {
		return err
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if !removed {
		return apperrors.ErrNotFound
	}

	s.cache.Invalidate(ctx, id, user.Email)
	s.logger.Info("account deleted", zap.String("user_id", id.String()))
	return nil
}
