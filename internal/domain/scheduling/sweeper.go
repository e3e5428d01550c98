package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/platform/db"
)

// RefreshTokenRetention is how long expired refresh tokens are kept before
// the sweeper purges them.
const RefreshTokenRetention = 7 * 24 * time.Hour

// RefreshTokenPurger deletes refresh tokens that expired before a cutoff.
type RefreshTokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Sweeper is the periodic housekeeping task: it finishes appointments whose
// slot has ended and purges stale refresh tokens.
type Sweeper struct {
	svc    *Service
	tx     db.TxBeginner
	tokens RefreshTokenPurger
	logger zerolog.Logger
	now    func() time.Time
}

// NewSweeper creates a Sweeper. tx may be nil to run without a transaction and
// tokens may be nil to skip the refresh token purge.
func NewSweeper(svc *Service, tx db.TxBeginner, tokens RefreshTokenPurger, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		svc:    svc,
		tx:     tx,
		tokens: tokens,
		logger: logger.With().Str("component", "sweeper").Logger(),
		now:    time.Now,
	}
}

// Run performs one sweep inside a single transaction.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.tx == nil {
		return s.sweep(ctx)
	}
	return db.WithTx(ctx, s.tx, pgx.TxOptions{}, s.sweep)
}

func (s *Sweeper) sweep(ctx context.Context) error {
	now := s.now()

	finished, err := s.svc.FinishExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("finish expired appointments: %w", err)
	}

	var purged int64
	if s.tokens != nil {
		purged, err = s.tokens.DeleteExpired(ctx, now.Add(-RefreshTokenRetention))
		if err != nil {
			return fmt.Errorf("purge refresh tokens: %w", err)
		}
	}

	ev := s.logger.Debug()
	if finished > 0 || purged > 0 {
		ev = s.logger.Info()
	}
	ev.Int64("finished", finished).Int64("purged_tokens", purged).Msg("sweep completed")
	return nil
}
