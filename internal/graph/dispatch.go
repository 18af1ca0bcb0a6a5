package graph

import (
	"context"
	"errors"

	"github.com/google/uuid"

	apperrors "userapi/internal/errors"
	"userapi/internal/model"
	"userapi/internal/service"
)

// UserInput is the register payload.
type UserInput struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
}

// UserUpdateInput is a partial profile update addressed by id.
type UserUpdateInput struct {
	ID        string
	FirstName *string
	LastName  *string
	Email     *string
}

func me(ctx context.Context, rc *RequestContext) (*model.UserView, error) {
	view, err := rc.CurrentUser(ctx)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return view, err
}

func getUser(ctx context.Context, rc *RequestContext, id string) (*model.UserView, error) {
	if _, err := rc.requireSession(); err != nil {
		return nil, err
	}
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	view, err := rc.Users.GetUser(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return view, err
}

func listUsers(ctx context.Context, rc *RequestContext) ([]model.UserView, error) {
	if _, err := rc.requireSession(); err != nil {
		return nil, err
	}
	return rc.Users.ListUsers(ctx)
}

func register(ctx context.Context, rc *RequestContext, in UserInput) (*model.UserView, error) {
	result, err := rc.Auth.Register(ctx, service.RegisterInput{
		Email:     in.Email,
		Password:  in.Password,
		FirstName: deref(in.FirstName),
		LastName:  deref(in.LastName),
	})
	if err != nil {
		return nil, err
	}
	return &result.User, nil
}

func updateUser(ctx context.Context, rc *RequestContext, in UserUpdateInput) (*model.UserView, error) {
	session, err := rc.requireSession()
	if err != nil {
		return nil, err
	}
	userID, err := parseID(in.ID)
	if err != nil {
		return nil, err
	}
	if userID != session.UserID {
		return nil, apperrors.ErrForbidden
	}
	return rc.Users.UpdateProfile(ctx, userID, service.ProfileUpdate{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
	})
}

func login(ctx context.Context, rc *RequestContext, email, password string) (*service.TokenPair, error) {
	result, err := rc.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return &result.Tokens, nil
}

func resetPassword(ctx context.Context, rc *RequestContext, email, newPassword string) (bool, error) {
	if err := rc.Auth.ResetPassword(ctx, email, newPassword, rc.Session); err != nil {
		return false, err
	}
	return true, nil
}

func logout(ctx context.Context, rc *RequestContext, refreshToken string) (bool, error) {
	session, err := rc.requireSession()
	if err != nil {
		return false, err
	}
	if err := rc.Auth.Logout(ctx, refreshToken, session); err != nil {
		return false, err
	}
	return true, nil
}

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperrors.NewValidationError("id", "must be a valid UUID")
	}
	return parsed, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
