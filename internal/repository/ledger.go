package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flexboard/internal/model"
)

// LedgerRepository runs read-only ranking aggregations over the transaction ledger.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Ranking returns the ranked participants of scope as of asOf, windowed by
// limit and offset. Ranks are 1..N without gaps or duplicates.
func (r *LedgerRepository) Ranking(ctx context.Context, scope model.Scope, asOf time.Time, limit, offset int) ([]model.RankedEntry, error) {
	f, err := newScopeFilter(scope, asOf)
	if err != nil {
		return nil, err
	}

	query := f.rankedCTE() + `
		SELECT rank, user_id::text, username, total_flex_points, total_spent
		FROM ranked
		ORDER BY rank
		LIMIT ` + f.arg(limit) + ` OFFSET ` + f.arg(offset)

	rows, err := r.pool.Query(ctx, query, f.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s ranking: %w", scope, err)
	}
	defer rows.Close()

	var entries []model.RankedEntry
	for rows.Next() {
		var e model.RankedEntry
		err := rows.Scan(
			&e.Rank,
			&e.UserID,
			&e.Username,
			&e.TotalFlexPoints,
			&e.TotalSpent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranked entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}

	return entries, nil
}

// Count returns the number of participants of scope as of asOf.
func (r *LedgerRepository) Count(ctx context.Context, scope model.Scope, asOf time.Time) (int64, error) {
	f, err := newScopeFilter(scope, asOf)
	if err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(DISTINCT t.user_id)
		FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE ` + f.where

	var count int64
	if err := r.pool.QueryRow(ctx, query, f.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s participants: %w", scope, err)
	}

	return count, nil
}

// UserRank returns the ranked entry of one user in scope as of asOf.
// Returns nil, nil when the user has no completed transactions in scope.
func (r *LedgerRepository) UserRank(ctx context.Context, userID string, scope model.Scope, asOf time.Time) (*model.RankedEntry, error) {
	f, err := newScopeFilter(scope, asOf)
	if err != nil {
		return nil, err
	}

	query := f.rankedCTE() + `
		SELECT rank, user_id::text, username, total_flex_points, total_spent
		FROM ranked
		WHERE user_id = ` + f.arg(userID)

	var e model.RankedEntry
	err = r.pool.QueryRow(ctx, query, f.args...).Scan(
		&e.Rank,
		&e.UserID,
		&e.Username,
		&e.TotalFlexPoints,
		&e.TotalSpent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user %s rank: %w", scope, err)
	}

	return &e, nil
}
