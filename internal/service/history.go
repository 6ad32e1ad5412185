package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"flexboard/internal/model"
	"flexboard/internal/pkg/lock"
)

const lockTimeout = 10 * time.Second

// HistoryTracker appends rank observations to the per-user time series and
// derives the rank delta against the previous observation.
type HistoryTracker struct {
	ranking      *RankingService
	history      HistoryStore
	locks        *lock.KeyedLock
	defaultLimit int
}

// NewHistoryTracker creates a new HistoryTracker instance.
func NewHistoryTracker(ranking *RankingService, history HistoryStore, locks *lock.KeyedLock, defaultLimit int) *HistoryTracker {
	if locks == nil {
		locks = lock.NewKeyedLock()
	}
	if defaultLimit <= 0 {
		defaultLimit = 30
	}
	return &HistoryTracker{
		ranking:      ranking,
		history:      history,
		locks:        locks,
		defaultLimit: defaultLimit,
	}
}

// RecordUserRankHistory records the user's current rank in scope.
// Returns nil without error when the user is not ranked in scope.
func (t *HistoryTracker) RecordUserRankHistory(ctx context.Context, userID string, scope model.Scope) (*model.RankChange, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	var change *model.RankChange
	err := t.locks.WithLock(ctx, userID+"|"+scope.Key(), func() error {
		entry, err := t.ranking.GetUserRank(ctx, userID, scope)
		if err != nil {
			return err
		}
		if entry == nil {
			log.Debug().
				Str("user_id", userID).
				Str("leaderboard_type", string(scope.Type)).
				Str("region", scope.Region).
				Msg("User not ranked, skipping history")
			return nil
		}

		prev, err := t.history.Latest(ctx, userID, scope)
		if err != nil {
			return err
		}

		row := &model.HistoryRow{
			UserID:          userID,
			LeaderboardType: scope.Type,
			Region:          scope.RegionPtr(),
			Rank:            entry.Rank,
			TotalFlexPoints: entry.TotalFlexPoints,
			TotalSpent:      entry.TotalSpent,
		}
		change = &model.RankChange{Entry: *entry, CurrentRank: entry.Rank}
		if prev != nil {
			delta := prev.Rank - entry.Rank
			row.RankChange = &delta
			change.PreviousRank = &prev.Rank
			change.RankChange = &delta
		}

		return t.history.Insert(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	return change, nil
}

// GetUserLeaderboardHistory returns up to limit history rows, most recent first.
// A non-positive limit selects the default.
func (t *HistoryTracker) GetUserLeaderboardHistory(ctx context.Context, userID string, scope model.Scope, limit int) ([]*model.HistoryRow, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = t.defaultLimit
	}
	if _, err := uuid.Parse(userID); err != nil {
		return []*model.HistoryRow{}, nil
	}
	return t.history.ListByUser(ctx, userID, scope, limit)
}
