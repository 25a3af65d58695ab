// Package mysql implements the repositories on MySQL. Embedded arrays are JSON
// columns and every conditional write is a single UPDATE statement.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SigNoz/storefront-go-app/internal/db"
	"github.com/SigNoz/storefront-go-app/internal/metrics"
	"github.com/SigNoz/storefront-go-app/internal/repository"
)

// NewStore builds the MySQL repositories on database
func NewStore(database *db.DB, m *metrics.AppMetrics) repository.Store {
	base := base{db: database, metrics: m}
	return repository.Store{
		Products:  &ProductRepo{base},
		Carts:     &CartRepo{base},
		Favorites: &FavoriteRepo{base},
	}
}

type base struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

func (b base) record(ctx context.Context, operation, table, query string, start time.Time, err error) {
	b.metrics.RecordDBQuery(ctx, operation, table, query, start, err == nil || errors.Is(err, sql.ErrNoRows))
}

// exec runs a write and returns the number of matched rows
func (b base) exec(ctx context.Context, operation, table, query string, args ...any) (int64, error) {
	start := time.Now()
	result, err := b.db.ExecContext(ctx, query, args...)
	b.record(ctx, operation, table, query, start, err)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
