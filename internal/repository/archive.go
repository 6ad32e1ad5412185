package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"flexboard/internal/model"
)

const uniqueViolation = "23505"

// ArchiveRepository stores frozen snapshots and period resets.
type ArchiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository creates a new ArchiveRepository instance.
func NewArchiveRepository(pool *pgxpool.Pool) *ArchiveRepository {
	return &ArchiveRepository{pool: pool}
}

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertSnapshot(ctx context.Context, q querier, snap *model.Snapshot) error {
	const query = `
		INSERT INTO leaderboard_snapshots (
			leaderboard_type, region, snapshot_data, period_start, period_end, taken_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, taken_at
	`

	entries := snap.Entries
	if entries == nil {
		entries = []model.RankedEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	err = q.QueryRow(ctx, query,
		string(snap.LeaderboardType),
		snap.Region,
		data,
		snap.PeriodStart,
		snap.PeriodEnd,
	).Scan(&snap.ID, &snap.TakenAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return nil
}

// InsertSnapshot appends a snapshot and fills its id and taken_at.
func (r *ArchiveRepository) InsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	return insertSnapshot(ctx, r.pool, snap)
}

// ArchiveReset writes the period snapshot and its reset row in one transaction.
// Returns ErrResetExists if the scope and period were already reset; nothing is
// written in that case.
func (r *ArchiveRepository) ArchiveReset(ctx context.Context, snap *model.Snapshot, reset *model.Reset) error {
	const query = `
		INSERT INTO leaderboard_resets (
			leaderboard_type, region, period_start, period_end,
			top_user_id, top_user_points, total_participants, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertSnapshot(ctx, tx, snap); err != nil {
			return err
		}
		return tx.QueryRow(ctx, query,
			string(reset.LeaderboardType),
			reset.Region,
			reset.PeriodStart,
			reset.PeriodEnd,
			reset.TopUserID,
			reset.TopUserPoints,
			reset.TotalParticipants,
		).Scan(&reset.ID, &reset.CreatedAt)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrResetExists
		}
		return fmt.Errorf("failed to archive reset: %w", err)
	}

	return nil
}

// ListSnapshots returns the latest snapshots of a scope, newest first.
func (r *ArchiveRepository) ListSnapshots(ctx context.Context, scope model.Scope, limit int) ([]*model.Snapshot, error) {
	const query = `
		SELECT id, leaderboard_type, region, snapshot_data, period_start, period_end, taken_at
		FROM leaderboard_snapshots
		WHERE leaderboard_type = $1
		  AND region IS NOT DISTINCT FROM $2
		ORDER BY taken_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(scope.Type), scope.RegionPtr(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*model.Snapshot{}
	for rows.Next() {
		var s model.Snapshot
		var lt string
		var data []byte
		err := rows.Scan(&s.ID, &lt, &s.Region, &data, &s.PeriodStart, &s.PeriodEnd, &s.TakenAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal(data, &s.Entries); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", s.ID, err)
		}
		s.LeaderboardType = model.LeaderboardType(lt)
		snapshots = append(snapshots, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// ListResets returns the latest resets of a scope, newest period first.
func (r *ArchiveRepository) ListResets(ctx context.Context, scope model.Scope, limit int) ([]*model.Reset, error) {
	const query = `
		SELECT id, leaderboard_type, region, period_start, period_end,
		       top_user_id::text, top_user_points, total_participants, created_at
		FROM leaderboard_resets
		WHERE leaderboard_type = $1
		  AND region IS NOT DISTINCT FROM $2
		ORDER BY period_start DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, string(scope.Type), scope.RegionPtr(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get resets: %w", err)
	}
	defer rows.Close()

	resets := []*model.Reset{}
	for rows.Next() {
		var rs model.Reset
		var lt string
		err := rows.Scan(
			&rs.ID,
			&lt,
			&rs.Region,
			&rs.PeriodStart,
			&rs.PeriodEnd,
			&rs.TopUserID,
			&rs.TopUserPoints,
			&rs.TotalParticipants,
			&rs.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reset: %w", err)
		}
		rs.LeaderboardType = model.LeaderboardType(lt)
		resets = append(resets, &rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resets: %w", err)
	}

	return resets, nil
}
