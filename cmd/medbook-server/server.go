package main

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/config"
	"github.com/medbook/medbook/internal/domain/doctor"
	"github.com/medbook/medbook/internal/domain/identity"
	"github.com/medbook/medbook/internal/domain/scheduling"
	"github.com/medbook/medbook/internal/platform/apperr"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/internal/platform/db"
	"github.com/medbook/medbook/internal/platform/middleware"
)

const maxBodySize = "1M"

type services struct {
	tokens       *auth.TokenService
	identity     *identity.Service
	doctors      *doctor.Service
	appointments *scheduling.Service
}

func newServices(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*services, error) {
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.SecretKey),
		Algorithm:  cfg.Algorithm,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	})
	if err != nil {
		return nil, err
	}

	doctors := doctor.NewService(doctor.NewRepoPG(pool))
	return &services{
		tokens: tokens,
		identity: identity.NewService(
			identity.NewUserRepoPG(pool),
			identity.NewRefreshTokenRepoPG(pool),
			auth.NewTelegramVerifier(cfg.BotToken, cfg.TelegramMaxAge()),
			tokens,
			logger,
		),
		doctors:      doctors,
		appointments: scheduling.NewService(scheduling.NewRepoPG(pool), doctors, cfg.Location()),
	}, nil
}

type serverDeps struct {
	services *services
	tx       db.TxBeginner
	pinger   db.Pinger
	stats    func() *db.PoolStats
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(logger)
	// Rate limit buckets are keyed by client IP; forwarded headers are not
	// trusted.
	e.IPExtractor = echo.ExtractIPDirect()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	// DB health check endpoint
	e.GET("/health/db", db.HealthHandler(deps.pinger, deps.stats))

	// Every API request runs in its own transaction.
	api := e.Group("/api/v1", db.TxMiddleware(deps.tx, logger))
	secured := api.Group("", auth.Authenticate(deps.services.tokens))

	identity.NewHandler(deps.services.identity, identity.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	}).RegisterRoutes(api, secured)
	doctor.NewHandler(deps.services.doctors).RegisterRoutes(secured)
	scheduling.NewHandler(deps.services.appointments).RegisterRoutes(secured)

	// The secured group claims /api/v1/* for its not-found route, which would
	// put Authenticate in front of every unknown path. Unknown API paths
	// answer 404; unknown paths under a secured prefix still need a token.
	api.RouteNotFound("/*", echo.NotFoundHandler)

	return e
}
