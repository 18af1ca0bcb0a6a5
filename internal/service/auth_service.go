package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"userapi/internal/auth"
	apperrors "userapi/internal/errors"
	"userapi/internal/model"
	"userapi/internal/repository"
)

const bcryptCost = 10

var tracer = otel.Tracer("userapi/internal/service")

// dummyHash is compared against when an email is unknown so that a miss costs
// the same as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	hash, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	return hash
})

var errEmailTaken = apperrors.NewValidationError("email", "user with this email already exists")

// UserViewCache is the best-effort cache of public user fields.
type UserViewCache interface {
	Put(ctx context.Context, view model.UserView)
	PutIfAbsent(ctx context.Context, view model.UserView) bool
	Get(ctx context.Context, id uuid.UUID) (model.UserView, bool)
	Invalidate(ctx context.Context, id uuid.UUID, emails ...string)
	InvalidateByEmail(ctx context.Context, email string)
}

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=2,max=72"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

// TokenPair is an access token with the refresh token that can renew it.
// RefreshToken is empty when a refresh did not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   model.UserView
	Tokens TokenPair
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
	Logout(ctx context.Context, refreshToken string, session *auth.Claims) error
	ResetPassword(ctx context.Context, email, newPassword string, session *auth.Claims) error
}

type authService struct {
	users       repository.UserRepository
	jwtService  *auth.JWTService
	tokenStore  auth.TokenStoreInterface
	cache       UserViewCache
	rotateOnUse bool
	logger      *zap.Logger
}

// AuthOption customizes the authentication service.
type AuthOption func(*authService)

// WithRefreshRotation makes RefreshToken revoke the presented refresh token and issue a new one.
func WithRefreshRotation(enabled bool) AuthOption {
	return func(s *authService) { s.rotateOnUse = enabled }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) AuthOption {
	return func(s *authService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	users repository.UserRepository,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	cache UserViewCache,
	opts ...AuthOption,
) AuthService {
	s := &authService{
		users:      users,
		jwtService: jwtService,
		tokenStore: tokenStore,
		cache:      cache,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user with a hashed password and signs them in.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer span.End()

	if err := ValidateStruct(in); err != nil {
		return nil, err
	}
	email := repository.NormalizeEmail(in.Email)

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var result *AuthResult
	err = s.users.WithTransaction(ctx, func(ctx context.Context, repo repository.UserRepository) error {
		existing, err := repo.FindByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check user existence: %w", err)
		}
		if existing != nil {
			return errEmailTaken
		}

		user, err := repo.Create(ctx, &model.User{
			Email:        email,
			PasswordHash: string(hashedPassword),
			FirstName:    in.FirstName,
			LastName:     in.LastName,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errEmailTaken
			}
			return fmt.Errorf("create user: %w", err)
		}

		tokens, err := s.issueTokens(ctx, user)
		if err != nil {
			return err
		}
		result = &AuthResult{User: user.View(), Tokens: *tokens}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(ctx, result.User)
	span.SetAttributes(attribute.String("user.id", result.User.ID.String()))
	s.logger.Info("user registered", zap.String("user_id", result.User.ID.String()))
	return result, nil
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		s.logger.Info("login failed", zap.String("reason", "unknown email"))
		return nil, apperrors.ErrAuthentication
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed", zap.String("user_id", user.ID.String()), zap.String("reason", "password mismatch"))
		return nil, apperrors.ErrAuthentication
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	view := user.View()
	s.cache.Put(ctx, view)
	return &AuthResult{User: view, Tokens: *tokens}, nil
}

// RefreshToken validates a refresh token and returns a new access token.
// Every validation failure collapses into ErrInvalidToken.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := tracer.Start(ctx, "AuthService.RefreshToken")
	defer span.End()

	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}

	storedUserID, _, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrServiceUnavailable) {
			return nil, err
		}
		return nil, apperrors.ErrInvalidToken
	}
	if storedUserID != claims.UserID {
		return nil, apperrors.ErrInvalidToken
	}

	accessToken, err := s.jwtService.GenerateAccessToken(claims.UserID, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	pair := &TokenPair{AccessToken: accessToken}

	if s.rotateOnUse {
		if err := s.tokenStore.RevokeRefreshToken(ctx, claims.ID); err != nil {
			return nil, err
		}
		tokenID, newRefresh, err := s.jwtService.GenerateRefreshToken(claims.UserID, claims.Email)
		if err != nil {
			return nil, fmt.Errorf("generate refresh token: %w", err)
		}
		if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, claims.UserID, claims.Email, s.jwtService.RefreshTTL()); err != nil {
			return nil, err
		}
		pair.RefreshToken = newRefresh
	}
	return pair, nil
}

// Authenticate validates an access token and checks it was not logged out.
func (s *authService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := s.jwtService.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	blacklisted, err := s.tokenStore.IsAccessTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

// Logout revokes the refresh token, drops the cached user view and, when an
// access session is present, blacklists its access token.
func (s *authService) Logout(ctx context.Context, refreshToken string, session *auth.Claims) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return apperrors.ErrInvalidToken
	}
	if session != nil && session.UserID != claims.UserID {
		return apperrors.ErrInvalidToken
	}

	if err := s.tokenStore.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return err
	}
	s.cache.InvalidateByEmail(ctx, claims.Email)
	s.cache.Invalidate(ctx, claims.UserID)

	if session != nil {
		if err := s.tokenStore.BlacklistAccessToken(ctx, session.ID, session.Remaining(time.Now())); err != nil {
			return err
		}
	}
	s.logger.Info("user logged out", zap.String("user_id", claims.UserID.String()))
	return nil
}

// ResetPassword replaces the caller's password and revokes every refresh token they hold.
func (s *authService) ResetPassword(ctx context.Context, email, newPassword string, session *auth.Claims) error {
	if session == nil {
		return apperrors.ErrUnauthenticated
	}
	in := struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"new_password" validate:"required,min=2,max=72"`
	}{Email: email, Password: newPassword}
	if err := ValidateStruct(in); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if user == nil || user.ID != session.UserID {
		return apperrors.ErrForbidden
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	updated, err := s.users.Update(ctx, user.ID, repository.Patch{"password_hash": string(hashedPassword)})
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if updated == nil {
		return apperrors.ErrNotFound
	}

	if err := s.tokenStore.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}
	s.cache.Put(ctx, updated.View())
	s.logger.Info("password reset", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *authService) issueTokens(ctx context.Context, user *model.User) (*TokenPair, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, user.Email, s.jwtService.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
