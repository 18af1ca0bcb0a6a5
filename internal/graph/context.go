package graph

import (
	"context"
	"errors"

	"userapi/internal/auth"
	apperrors "userapi/internal/errors"
	"userapi/internal/model"
	"userapi/internal/service"
)

var errNoRequestContext = errors.New("graphql request context missing")

// RequestContext is built once per GraphQL request and handed to every
// dispatch function. Session is nil for anonymous callers.
type RequestContext struct {
	Auth    service.AuthService
	Users   service.UserService
	Session *auth.Claims
}

// NewRequestContext binds the services to the caller's session.
func NewRequestContext(authService service.AuthService, users service.UserService, session *auth.Claims) *RequestContext {
	return &RequestContext{Auth: authService, Users: users, Session: session}
}

// CurrentUser returns the authenticated user's view, or nil for anonymous requests.
func (rc *RequestContext) CurrentUser(ctx context.Context) (*model.UserView, error) {
	if rc.Session == nil {
		return nil, nil
	}
	return rc.Users.Profile(ctx, rc.Session.UserID)
}

func (rc *RequestContext) requireSession() (*auth.Claims, error) {
	if rc.Session == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	return rc.Session, nil
}

type requestContextKey struct{}

// WithRequestContext stores rc on ctx for the resolvers.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

func fromContext(ctx context.Context) (*RequestContext, error) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	if !ok || rc == nil {
		return nil, errNoRequestContext
	}
	return rc, nil
}
