package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
)

type contextKey string

const principalKey contextKey = "principal"

// Cookie names carrying the session credentials.
const (
	AccessCookie  = "user_access_token"
	RefreshCookie = "user_refresh_token"
)

// Roles.
const (
	RoleGuest = "guest"
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Principal is the authenticated caller as asserted by the access token.
type Principal struct {
	UserID   int64
	Role     string
	Username string
}

// AccessDecoder is satisfied by *TokenService.
type AccessDecoder interface {
	DecodeAccess(token, expectedName string) (*AccessClaims, error)
}

// Authenticate requires a valid access token, taken from the access cookie or
// an "Authorization: Bearer" header, and stores the Principal in the request
// context.
func Authenticate(tokens AccessDecoder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := AccessTokenFromRequest(c)
			if raw == "" {
				return apperr.ErrUnauthorized.WithMessage("Not authenticated")
			}

			claims, err := tokens.DecodeAccess(raw, AccessTokenName)
			if err != nil {
				return err
			}
			uid, err := claims.UserID()
			if err != nil {
				return apperr.ErrTokenInvalid.Wrap(err)
			}

			p := &Principal{UserID: uid, Role: claims.Role, Username: claims.Username}
			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

// AccessTokenFromRequest returns the access token from the cookie, falling
// back to a bearer Authorization header.
func AccessTokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	scheme, token, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// UserIDFromContext returns the caller's id, or 0 when unauthenticated.
func UserIDFromContext(ctx context.Context) int64 {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID
	}
	return 0
}

func RoleFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.Role
	}
	return ""
}
