// internal/repository/repository.go
package repository

import (
	"context"
	"encoding/json"
	"errors"

	"remittance-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is the pool the repositories run on, normally a *pgxpool.Pool
type DB interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

const uniqueViolation = "23505"

// allowedSources lists the statuses a row may be in for a move to next.
func allowedSources(next domain.TransactionStatus) []string {
	var out []string
	for _, s := range []domain.TransactionStatus{domain.StatusPending, domain.StatusProcessing} {
		if s.CanTransitionTo(next) {
			out = append(out, string(s))
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error, resource, key string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.NotFoundError{Resource: resource, Key: key}
	}
	return err
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func marshalMetadata(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}
