package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medbook/medbook/internal/platform/apperr"
)

type contextKey string

const TxKey contextKey = "db_tx"

// Queryable is the subset of pgx shared by *pgxpool.Pool, *pgxpool.Conn and
// pgx.Tx that repositories need.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TxBeginner starts transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Conn returns the transaction bound to ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback Queryable) Queryable {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return fallback
}

// TxFromContext retrieves the request-scoped transaction from context.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}

// WithTx runs fn inside a transaction stored in the context passed to fn. The
// transaction commits when fn returns nil or a domain error and rolls back on
// any other error or panic.
func WithTx(ctx context.Context, b TxBeginner, opts pgx.TxOptions, fn func(ctx context.Context) error) (err error) {
	tx, err := b.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	ferr := fn(context.WithValue(ctx, TxKey, tx))
	if ferr != nil && !apperr.IsDomain(ferr) {
		if rerr := tx.Rollback(ctx); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", ferr, rerr)
		}
		return ferr
	}

	if cerr := tx.Commit(ctx); cerr != nil {
		// A constraint violation aborts the transaction; the domain error it
		// was translated into is still the answer.
		if ferr != nil && errors.Is(cerr, pgx.ErrTxCommitRollback) {
			return ferr
		}
		return fmt.Errorf("commit transaction: %w", cerr)
	}
	return ferr
}

// TxMiddleware wraps every request in its own transaction. Safe methods get a
// read-only transaction.
func TxMiddleware(b TxBeginner, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			opts := pgx.TxOptions{}
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				opts.AccessMode = pgx.ReadOnly
			}

			var handlerErr error
			err := WithTx(c.Request().Context(), b, opts, func(ctx context.Context) error {
				c.SetRequest(c.Request().WithContext(ctx))
				handlerErr = next(c)
				return handlerErr
			})
			if err != nil && err != handlerErr {
				rid, _ := c.Get("request_id").(string)
				logger.Error().Err(err).Str("request_id", rid).Msg("transaction failed")
			}
			return err
		}
	}
}
