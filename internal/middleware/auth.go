package middleware

import (
	"context"
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"userapi/internal/auth"
	apperrors "userapi/internal/errors"
)

// ClaimsKey is the echo context key holding the authenticated *auth.Claims.
const ClaimsKey = "user"

// Authenticator validates a bearer access token.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer access token.
func RequireAuth(authenticator Authenticator) echo.MiddlewareFunc {
	return echojwt.WithConfig(jwtConfig(authenticator, false))
}

// OptionalAuth attaches claims when a bearer token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalAuth(authenticator Authenticator) echo.MiddlewareFunc {
	return echojwt.WithConfig(jwtConfig(authenticator, true))
}

func jwtConfig(authenticator Authenticator, optional bool) echojwt.Config {
	return echojwt.Config{
		ContextKey:             ClaimsKey,
		TokenLookup:            "header:" + echo.HeaderAuthorization + ":Bearer ",
		ContinueOnIgnoredError: optional,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return authenticator.Authenticate(c.Request().Context(), token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			var extractErr *echojwt.TokenExtractionError
			if errors.As(err, &extractErr) {
				if optional {
					return nil
				}
				return ToHTTPError(apperrors.ErrUnauthenticated)
			}
			var parseErr *echojwt.TokenParsingError
			if errors.As(err, &parseErr) {
				return ToHTTPError(parseErr.Err)
			}
			return ToHTTPError(apperrors.ErrInvalidToken)
		},
	}
}

// ClaimsFrom returns the claims set by the auth middleware, or nil.
func ClaimsFrom(c echo.Context) *auth.Claims {
	claims, _ := c.Get(ClaimsKey).(*auth.Claims)
	return claims
}

// ToHTTPError renders a domain error as an echo error carrying the JSON error body.
func ToHTTPError(err error) *echo.HTTPError {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}
