package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/recshare/internal/repository"
)

// psql renders $1-style placeholders for every squirrel builder here.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// querier is what both *pgxpool.Pool and pgx.Tx offer, so read helpers
// run inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBTX is what a store needs from its connection: querier plus Begin for
// multi-statement writes.
//
// Why not take *pgxpool.Pool directly like the handlers take interfaces?
//   - The pool is the only production implementation, but the SQL itself
//     (ON CONFLICT clauses, tag relinking, error classification) is the
//     part worth testing, and a concrete pool means a live Postgres.
//   - *pgxpool.Pool satisfies this as-is, and so does pgxmock's pool, so
//     store tests assert the exact statements without a database.
type DBTX interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// inTx runs fn in a transaction and commits if it returns nil. The
// deferred rollback is a no-op once Commit has succeeded.
func inTx(ctx context.Context, db DBTX, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// scanner covers pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify turns constraint violations into repository sentinels and
// wraps everything else with op.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, repository.ErrDuplicate, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", op, repository.ErrInvalidReference, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// nonNil keeps NOT NULL text[] columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
