package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/internal/platform/middleware"
)

// CookieConfig controls the session cookies set by the auth endpoints.
type CookieConfig struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Handler struct {
	svc     *Service
	cookies CookieConfig
	limit   middleware.RateLimitConfig
}

func NewHandler(svc *Service, cookies CookieConfig) *Handler {
	return &Handler{svc: svc, cookies: cookies, limit: middleware.AuthRateLimitConfig()}
}

// RegisterRoutes mounts the session endpoints on public and the profile
// endpoints on secured, which must already authenticate the caller.
func (h *Handler) RegisterRoutes(public, secured *echo.Group) {
	limited := middleware.RateLimit(h.limit)

	a := public.Group("/auth")
	a.POST("/telegram", h.Login, limited)
	a.POST("/refresh", h.Refresh, limited)
	a.POST("/logout", h.Logout)

	secured.POST("/auth/verify", h.Verify,
		auth.RequireRole(auth.RoleGuest, auth.RoleUser, auth.RoleAdmin))

	members := auth.RequireRole(auth.RoleUser, auth.RoleAdmin)
	secured.GET("/profile", h.GetProfile, members)
	secured.PATCH("/profile", h.UpdateProfile, members)
	secured.PATCH("/profile/become-admin", h.BecomeAdmin, auth.RequireRole(auth.RoleUser))
	secured.PATCH("/profile/stop-being-admin", h.StopBeingAdmin, auth.RequireRole(auth.RoleAdmin))
}

type okResponse struct {
	Msg string `json:"msg"`
}

var ok = okResponse{Msg: "ok"}

func (h *Handler) cookie(name, value string, ttl time.Duration, httpOnly bool) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: httpOnly,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cookies.Secure {
		ck.SameSite = http.SameSiteNoneMode
	}
	return ck
}

func (h *Handler) setAccess(c echo.Context, token string) {
	c.SetCookie(h.cookie(auth.AccessCookie, token, h.cookies.AccessTTL, false))
}

func (h *Handler) setRefresh(c echo.Context, token string) {
	c.SetCookie(h.cookie(auth.RefreshCookie, token, h.cookies.RefreshTTL, true))
}

func (h *Handler) clearCookies(c echo.Context) {
	access := h.cookie(auth.AccessCookie, "", 0, false)
	access.MaxAge = -1
	refresh := h.cookie(auth.RefreshCookie, "", 0, true)
	refresh.MaxAge = -1
	c.SetCookie(access)
	c.SetCookie(refresh)
}

// initDataFromRequest reads "Authorization: tma <init data>". The bearer
// scheme is accepted as well.
func initDataFromRequest(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", apperr.ErrUnauthorized.WithMessage("Not authenticated")
	}
	scheme, data, found := strings.Cut(header, " ")
	if !found || strings.TrimSpace(data) == "" {
		return "", apperr.ErrUnauthorized.WithMessage("Not authenticated")
	}
	switch strings.ToLower(scheme) {
	case "tma", "bearer":
	default:
		return "", apperr.ErrUnauthorized.WithMessage("Invalid scheme")
	}
	return strings.TrimSpace(data), nil
}

func refreshFromRequest(c echo.Context) (string, error) {
	ck, err := c.Cookie(auth.RefreshCookie)
	if err != nil || ck.Value == "" {
		return "", apperr.ErrUnauthorized.WithMessage("Refresh token not found")
	}
	return ck.Value, nil
}

func (h *Handler) Login(c echo.Context) error {
	initData, err := initDataFromRequest(c)
	if err != nil {
		return err
	}
	pair, err := h.svc.LoginViaTelegram(c.Request().Context(), initData)
	if err != nil {
		return err
	}
	h.setAccess(c, pair.Access)
	h.setRefresh(c, pair.Refresh)
	return c.JSON(http.StatusOK, ok)
}

func (h *Handler) Refresh(c echo.Context) error {
	presented, err := refreshFromRequest(c)
	if err != nil {
		return err
	}
	pair, err := h.svc.RefreshTokens(c.Request().Context(), presented)
	if err != nil {
		return err
	}
	h.setAccess(c, pair.Access)
	h.setRefresh(c, pair.Refresh)
	return c.JSON(http.StatusOK, ok)
}

func (h *Handler) Logout(c echo.Context) error {
	if presented, err := refreshFromRequest(c); err == nil {
		if err := h.svc.Logout(c.Request().Context(), presented); err != nil {
			return err
		}
	}
	h.clearCookies(c)
	return c.JSON(http.StatusOK, ok)
}

func (h *Handler) Verify(c echo.Context) error {
	var in VerifyInput
	if err := c.Bind(&in); err != nil {
		return apperr.ErrVerificationFailed.WithMessage("invalid request body")
	}
	access, err := h.svc.Verify(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), in)
	if err != nil {
		return err
	}
	h.setAccess(c, access)
	return c.JSON(http.StatusOK, ok)
}

func (h *Handler) GetProfile(c echo.Context) error {
	u, err := h.svc.GetProfile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	var p ProfileUpdate
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) BecomeAdmin(c echo.Context) error {
	access, err := h.svc.ChangeRoleToAdmin(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	h.setAccess(c, access)
	return c.JSON(http.StatusOK, ok)
}

func (h *Handler) StopBeingAdmin(c echo.Context) error {
	access, err := h.svc.ChangeRoleToUser(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	h.setAccess(c, access)
	return c.JSON(http.StatusOK, ok)
}
