package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"flexboard/internal/model"
)

// maxAffectedRanks bounds the rank span carried by one leaderboard update.
const maxAffectedRanks = 100

// Broadcaster pushes rank events to live subscribers.
type Broadcaster interface {
	BroadcastRankChange(userID string, scope model.Scope, change *model.RankChange)
	BroadcastLeaderboardUpdate(scope model.Scope, affectedRanks []int64)
}

// LiveUpdater reacts to completed transactions: it records the user's rank in
// every scope they take part in and fans the deltas out to live clients.
type LiveUpdater struct {
	users   UserReader
	tracker *HistoryTracker
	hub     Broadcaster
}

// NewLiveUpdater creates a new LiveUpdater instance.
func NewLiveUpdater(users UserReader, tracker *HistoryTracker, hub Broadcaster) *LiveUpdater {
	return &LiveUpdater{
		users:   users,
		tracker: tracker,
		hub:     hub,
	}
}

// OnTransactionCompleted records history for the user in each of LiveScopes
// and broadcasts a rank change and a leaderboard update per scope. A failure
// in one scope does not stop the others.
func (u *LiveUpdater) OnTransactionCompleted(ctx context.Context, userID string) error {
	user, err := u.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", userID, err)
	}

	var errs []error
	for _, scope := range LiveScopes(user) {
		change, err := u.tracker.RecordUserRankHistory(ctx, user.ID, scope)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", scope, err))
			continue
		}
		if change == nil {
			continue
		}

		u.hub.BroadcastRankChange(user.ID, scope, change)
		u.hub.BroadcastLeaderboardUpdate(scope, AffectedRanks(change.PreviousRank, change.CurrentRank))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		log.Error().Err(err).Str("user_id", userID).Msg("Live update partially failed")
		return err
	}
	return nil
}

// LiveScopes extends UserScopes with the global, monthly and weekly scopes
// filtered to the user's region, so "monthly:US" style topics are served.
func LiveScopes(user *model.User) []model.Scope {
	scopes := UserScopes(user)
	if user.Region == nil || *user.Region == "" {
		return scopes
	}
	for _, t := range []model.LeaderboardType{model.Global, model.Monthly, model.Weekly} {
		scopes = append(scopes, model.Scope{Type: t, Region: *user.Region})
	}
	return scopes
}

// AffectedRanks returns the contiguous span of ranks that moved when a user
// went from previous to current. Without a previous rank only current moved.
func AffectedRanks(previous *int64, current int64) []int64 {
	lo, hi := current, current
	if previous != nil {
		lo, hi = min(*previous, current), max(*previous, current)
	}
	if hi-lo+1 > maxAffectedRanks {
		hi = lo + maxAffectedRanks - 1
	}
	ranks := make([]int64, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		ranks = append(ranks, r)
	}
	return ranks
}
