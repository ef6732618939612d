package middleware

import (
	"errors"
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"tasklist/internal/apperrors"
	"tasklist/internal/auth"
	"tasklist/internal/model"
	"tasklist/internal/service"
)

const (
	claimsContextKey = "token_claims"
	userContextKey   = "current_user"
)

// unauthorized is the single rejection path for the gate. Malformed tokens,
// bad signatures, expired tokens, and subjects that no longer resolve all
// produce this exact response.
func unauthorized(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	httpErr := apperrors.MapErrorToHTTP(apperrors.ErrInvalidToken)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// Authenticated verifies the bearer token and resolves its subject to a stored
// identity, which is placed in the request context for handlers.
func Authenticated(jwtService *auth.JWTService, userService service.UserService) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		ContextKey:  claimsContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, tokenString string) (interface{}, error) {
			return jwtService.Verify(tokenString)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return unauthorized(c)
		},
	})

	resolve := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(claimsContextKey).(*auth.Claims)
			if !ok {
				return unauthorized(c)
			}

			user, err := userService.GetByEmail(c.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, apperrors.ErrUserNotFound) {
					// identity deleted after issuance is
					// indistinguishable from a bad token
					return unauthorized(c)
				}
				// store outage: fail the request, not the credential
				return echo.NewHTTPError(http.StatusInternalServerError,
					apperrors.NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR").ToErrorResponse())
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(resolve(next))
	}
}

// RequireAdmin rejects callers whose identity lacks the admin role. It must
// run after Authenticated.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return unauthorized(c)
		}
		if !user.IsAdmin() {
			httpErr := apperrors.MapErrorToHTTP(apperrors.ErrForbidden)
			return echo.NewHTTPError(http.StatusForbidden, httpErr.ToErrorResponse())
		}
		return next(c)
	}
}

// CurrentUser returns the authenticated identity, or nil outside the gate.
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}
