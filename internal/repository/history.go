package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flexboard/internal/model"
)

// HistoryRepository stores the append-only rank time series.
// Rows are never updated or deleted.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository instance.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

const historyColumns = `id, user_id::text, leaderboard_type, region, rank, total_flex_points, total_spent, rank_change, recorded_at`

func scanHistoryRow(row pgx.Row) (*model.HistoryRow, error) {
	var h model.HistoryRow
	var lt string
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&lt,
		&h.Region,
		&h.Rank,
		&h.TotalFlexPoints,
		&h.TotalSpent,
		&h.RankChange,
		&h.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	h.LeaderboardType = model.LeaderboardType(lt)
	return &h, nil
}

// Latest returns the most recent row for user and scope by recorded_at,
// ties broken by row id. Returns nil, nil when none exists.
func (r *HistoryRepository) Latest(ctx context.Context, userID string, scope model.Scope) (*model.HistoryRow, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM leaderboard_history
		WHERE user_id = $1
		  AND leaderboard_type = $2
		  AND region IS NOT DISTINCT FROM $3
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1
	`

	h, err := scanHistoryRow(r.pool.QueryRow(ctx, query, userID, string(scope.Type), scope.RegionPtr()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest history: %w", err)
	}

	return h, nil
}

// Insert appends a history row and fills its id and recorded_at.
func (r *HistoryRepository) Insert(ctx context.Context, row *model.HistoryRow) error {
	const query = `
		INSERT INTO leaderboard_history (
			user_id, leaderboard_type, region, rank,
			total_flex_points, total_spent, rank_change, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, recorded_at
	`

	err := r.pool.QueryRow(ctx, query,
		row.UserID,
		string(row.LeaderboardType),
		row.Region,
		row.Rank,
		row.TotalFlexPoints,
		row.TotalSpent,
		row.RankChange,
	).Scan(&row.ID, &row.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}

	return nil
}

// ListByUser returns up to limit rows for user and scope, most recent first.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, scope model.Scope, limit int) ([]*model.HistoryRow, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM leaderboard_history
		WHERE user_id = $1
		  AND leaderboard_type = $2
		  AND region IS NOT DISTINCT FROM $3
		ORDER BY recorded_at DESC, id DESC
		LIMIT $4
	`

	rows, err := r.pool.Query(ctx, query, userID, string(scope.Type), scope.RegionPtr(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	history := []*model.HistoryRow{}
	for rows.Next() {
		h, err := scanHistoryRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return history, nil
}
