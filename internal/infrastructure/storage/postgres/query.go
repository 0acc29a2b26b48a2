package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stockledger/internal/core/apperror"
)

// PostgreSQL error codes mapped to domain errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgSerializationFailed = "40001"
	pgDeadlockDetected    = "40P01"
)

// Builder returns a squirrel builder with PostgreSQL placeholder format.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Get runs q and scans exactly one row into dst.
// A missing row is reported as pgx.ErrNoRows; see NotFound.
func Get(ctx context.Context, db Querier, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, db, dst, sql, args...)
}

// Select runs q and scans every row into the slice dst points to.
func Select(ctx context.Context, db Querier, dst any, q squirrel.Sqlizer) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Select(ctx, db, dst, sql, args...)
}

// Exec runs a statement built with squirrel.
func Exec(ctx context.Context, db Querier, q squirrel.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build statement: %w", err)
	}
	return db.Exec(ctx, sql, args...)
}

// Count returns the number of rows q would produce without pagination.
func Count(ctx context.Context, db Querier, q squirrel.SelectBuilder) (int64, error) {
	sql, args, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := db.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Paginate applies limit and offset when they are set.
func Paginate(q squirrel.SelectBuilder, limit, offset int) squirrel.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

// NotFound reports whether err means the query returned no rows.
func NotFound(err error) bool {
	return pgxscan.NotFound(err)
}

// Columns keeps the values of data whose keys are in cols, minus skip.
func Columns(data map[string]any, cols []string, skip ...string) map[string]any {
	out := make(map[string]any, len(cols))
next:
	for _, col := range cols {
		for _, s := range skip {
			if col == s {
				continue next
			}
		}
		if v, ok := data[col]; ok {
			out[col] = v
		}
	}
	return out
}

// MapError converts constraint violations into domain errors.
// entity and value describe the row being written.
func MapError(err error, entity, value string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return apperror.NewDuplicate(entity, constraintField(pgErr), value).WithCause(err)
	case pgForeignKeyViolation:
		return apperror.NewConflict(entity + " references a record that does not exist or is still referenced").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case pgSerializationFailed, pgDeadlockDetected:
		return apperror.NewConcurrentModification(entity, value).WithCause(err)
	}
	return err
}

// constraintField guesses the user-facing field from a unique constraint name
// such as products_code_key or uq_bins_warehouse_code.
func constraintField(pgErr *pgconn.PgError) string {
	switch {
	case pgErr.ColumnName != "":
		return pgErr.ColumnName
	case strings.Contains(pgErr.ConstraintName, "idempotency"):
		return "idempotency key"
	case strings.Contains(pgErr.ConstraintName, "number"):
		return "number"
	default:
		return "code"
	}
}

// UniqueViolation returns the violated constraint when err is a unique
// violation.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// UpdateVersioned writes data to the row with rowID if its version still
// equals version, bumping the version. It reports whether a row was written.
func UpdateVersioned(ctx context.Context, db Querier, table string, rowID any, version int, data map[string]any) (bool, error) {
	tag, err := Exec(ctx, db, Builder().
		Update(table).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": rowID, "version": version}))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
