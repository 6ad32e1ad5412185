package service

import (
	"context"
	"time"

	"flexboard/internal/model"
)

// LedgerReader aggregates completed transactions into rankings.
type LedgerReader interface {
	Ranking(ctx context.Context, scope model.Scope, asOf time.Time, limit, offset int) ([]model.RankedEntry, error)
	Count(ctx context.Context, scope model.Scope, asOf time.Time) (int64, error)
	UserRank(ctx context.Context, userID string, scope model.Scope, asOf time.Time) (*model.RankedEntry, error)
}

// UserReader loads participants.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// HistoryStore is the append-only rank time series.
type HistoryStore interface {
	Latest(ctx context.Context, userID string, scope model.Scope) (*model.HistoryRow, error)
	Insert(ctx context.Context, row *model.HistoryRow) error
	ListByUser(ctx context.Context, userID string, scope model.Scope, limit int) ([]*model.HistoryRow, error)
}

// ArchiveStore persists snapshots and period resets.
type ArchiveStore interface {
	InsertSnapshot(ctx context.Context, snap *model.Snapshot) error
	ArchiveReset(ctx context.Context, snap *model.Snapshot, reset *model.Reset) error
	ListSnapshots(ctx context.Context, scope model.Scope, limit int) ([]*model.Snapshot, error)
	ListResets(ctx context.Context, scope model.Scope, limit int) ([]*model.Reset, error)
}
