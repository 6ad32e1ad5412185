// Package model defines the data models for the flexboard leaderboard backend.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the payment state of a ledger row.
// Transitions are monotonic: pending -> completed or pending -> failed.
type TransactionStatus string

// Transaction statuses.
const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// User is a participant. Region is the classification key for the regional scope.
type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Region    *string   `db:"region" json:"region,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Transaction is an append-only ledger row written by the payment flow.
// Only completed transactions contribute to rankings.
type Transaction struct {
	ID         int64             `db:"id"`
	UserID     string            `db:"user_id"`
	Amount     decimal.Decimal   `db:"amount"`
	FlexPoints int64             `db:"flex_points"`
	Status     TransactionStatus `db:"status"`
	CreatedAt  time.Time         `db:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at"`
}

// RankedEntry is one row of a computed ranking. It is derived per query and
// never persisted on its own (snapshots embed it as JSON).
type RankedEntry struct {
	Rank            int64           `json:"rank"`
	UserID          string          `json:"userId"`
	Username        string          `json:"username"`
	TotalFlexPoints int64           `json:"totalFlexPoints"`
	TotalSpent      decimal.Decimal `json:"totalSpent"`
}

// Page is a windowed slice of a ranking.
type Page struct {
	Entries    []RankedEntry `json:"data"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	Total      int64         `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// NewPage builds a Page and derives TotalPages = ceil(total/pageSize).
func NewPage(entries []RankedEntry, page, pageSize int, total int64) *Page {
	if entries == nil {
		entries = []RankedEntry{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &Page{
		Entries:    entries,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// HistoryRow is one immutable point of a user's rank time series.
// RankChange = previous rank - current rank (positive means improvement),
// nil when there was no earlier row.
type HistoryRow struct {
	ID              int64           `db:"id" json:"-"`
	UserID          string          `db:"user_id" json:"userId"`
	LeaderboardType LeaderboardType `db:"leaderboard_type" json:"leaderboardType"`
	Region          *string         `db:"region" json:"region,omitempty"`
	Rank            int64           `db:"rank" json:"rank"`
	TotalFlexPoints int64           `db:"total_flex_points" json:"totalFlexPoints"`
	TotalSpent      decimal.Decimal `db:"total_spent" json:"totalSpent"`
	RankChange      *int64          `db:"rank_change" json:"rankChange"`
	RecordedAt      time.Time       `db:"recorded_at" json:"recordedAt"`
}

// Snapshot is a frozen top-N ranking of a scope.
type Snapshot struct {
	ID              int64           `db:"id" json:"id"`
	LeaderboardType LeaderboardType `db:"leaderboard_type" json:"leaderboardType"`
	Region          *string         `db:"region" json:"region,omitempty"`
	Entries         []RankedEntry   `db:"snapshot_data" json:"entries"`
	PeriodStart     *time.Time      `db:"period_start" json:"periodStart"`
	PeriodEnd       *time.Time      `db:"period_end" json:"periodEnd"`
	TakenAt         time.Time       `db:"taken_at" json:"takenAt"`
}

// Reset records the outcome of a finalized period. One row per scope and period.
type Reset struct {
	ID                int64           `db:"id" json:"id"`
	LeaderboardType   LeaderboardType `db:"leaderboard_type" json:"leaderboardType"`
	Region            *string         `db:"region" json:"region,omitempty"`
	PeriodStart       time.Time       `db:"period_start" json:"periodStart"`
	PeriodEnd         time.Time       `db:"period_end" json:"periodEnd"`
	TopUserID         *string         `db:"top_user_id" json:"topUserId"`
	TopUserPoints     int64           `db:"top_user_points" json:"topUserPoints"`
	TotalParticipants int64           `db:"total_participants" json:"totalParticipants"`
	CreatedAt         time.Time       `db:"created_at" json:"createdAt"`
}

// RankChange is the outcome of recording a user's rank in history.
type RankChange struct {
	Entry        RankedEntry `json:"entry"`
	CurrentRank  int64       `json:"currentRank"`
	PreviousRank *int64      `json:"previousRank"`
	RankChange   *int64      `json:"rankChange"`
}

// ResetResult summarizes a period reset.
type ResetResult struct {
	LeaderboardType   LeaderboardType `json:"leaderboardType"`
	Region            *string         `json:"region,omitempty"`
	TopUser           *RankedEntry    `json:"topUser"`
	TotalParticipants int64           `json:"totalParticipants"`
	PeriodStart       time.Time       `json:"periodStart"`
	PeriodEnd         time.Time       `json:"periodEnd"`
}

// Standing is a user's current rank in every scope that applies to them.
// A nil rank means the user has no completed transactions in that scope.
type Standing struct {
	UserID   string                           `json:"userId"`
	Username string                           `json:"username"`
	Region   *string                          `json:"region,omitempty"`
	Ranks    map[LeaderboardType]*RankedEntry `json:"ranks"`
}
