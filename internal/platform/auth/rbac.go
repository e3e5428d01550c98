package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
)

// Allowed reports whether role is one of allowed. Admin has no implicit
// access to routes that do not list it.
func Allowed(role string, allowed ...string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// RequireRole admits callers whose role is one of roles. It must run after
// Authenticate.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c.Request().Context())
			if !ok {
				return apperr.ErrUnauthorized.WithMessage("Not authenticated")
			}
			if !Allowed(p.Role, roles...) {
				return apperr.ErrForbidden.WithMessage("Required role: " + strings.Join(roles, " or "))
			}
			return next(c)
		}
	}
}
