package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"flexboard/internal/model"
)

// ResetNotifier is told about every finalized period.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, result *model.ResetResult) error
}

// SnapshotService freezes top-N rankings and finalizes closed periods.
// A reset never touches the ledger; windowed rankings roll over by themselves
// once the calendar period changes.
type SnapshotService struct {
	ranking  *RankingService
	ledger   LedgerReader
	archive  ArchiveStore
	topN     int
	notifier ResetNotifier
}

// NewSnapshotService creates a new SnapshotService instance.
func NewSnapshotService(ranking *RankingService, ledger LedgerReader, archive ArchiveStore, topN int) *SnapshotService {
	if topN <= 0 {
		topN = 100
	}
	return &SnapshotService{
		ranking: ranking,
		ledger:  ledger,
		archive: archive,
		topN:    topN,
	}
}

// SetNotifier registers a notifier called after each successful reset.
func (s *SnapshotService) SetNotifier(n ResetNotifier) {
	s.notifier = n
}

// CreateLeaderboardSnapshot persists the current top-N of scope and returns it.
// Monthly and weekly snapshots carry the current period bounds; global and
// regional snapshots have none. A non-positive topN selects the default.
func (s *SnapshotService) CreateLeaderboardSnapshot(ctx context.Context, scope model.Scope, topN int) (*model.Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = s.topN
	}

	asOf := s.ranking.Now()
	entries, err := s.ranking.TopN(ctx, scope, asOf, topN)
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		LeaderboardType: scope.Type,
		Region:          scope.RegionPtr(),
		Entries:         entries,
	}
	if p, ok := model.CurrentPeriod(scope.Type, asOf); ok {
		start, end := p.Start, p.End()
		snap.PeriodStart, snap.PeriodEnd = &start, &end
	}

	if err := s.archive.InsertSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	log.Info().
		Str("leaderboard_type", string(scope.Type)).
		Str("region", scope.Region).
		Int("entries", len(entries)).
		Msg("Leaderboard snapshot created")

	return snap, nil
}

// ResetMonthly finalizes the previous calendar month.
func (s *SnapshotService) ResetMonthly(ctx context.Context, region string) (*model.ResetResult, error) {
	return s.reset(ctx, model.Monthly, region)
}

// ResetWeekly finalizes the previous ISO week.
func (s *SnapshotService) ResetWeekly(ctx context.Context, region string) (*model.ResetResult, error) {
	return s.reset(ctx, model.Weekly, region)
}

// reset snapshots the previous closed period of type t and records its winner
// and participant count. Both rows are written atomically. Returns
// repository.ErrResetExists when the period was already finalized.
func (s *SnapshotService) reset(ctx context.Context, t model.LeaderboardType, region string) (*model.ResetResult, error) {
	scope, err := model.NewScope(t, region)
	if err != nil {
		return nil, err
	}

	period, ok := model.PreviousPeriod(t, s.ranking.Now())
	if !ok {
		return nil, fmt.Errorf("%w: %s has no period", model.ErrInvalidLeaderboardType, t)
	}
	// Rankings are relative to asOf, so the period start selects the closed period.
	asOf := period.Start

	entries, err := s.ranking.TopN(ctx, scope, asOf, s.topN)
	if err != nil {
		return nil, err
	}
	total, err := s.ledger.Count(ctx, scope, asOf)
	if err != nil {
		return nil, err
	}

	start, end := period.Start, period.End()
	snap := &model.Snapshot{
		LeaderboardType: t,
		Region:          scope.RegionPtr(),
		Entries:         entries,
		PeriodStart:     &start,
		PeriodEnd:       &end,
	}
	reset := &model.Reset{
		LeaderboardType:   t,
		Region:            scope.RegionPtr(),
		PeriodStart:       start,
		PeriodEnd:         end,
		TotalParticipants: total,
	}

	result := &model.ResetResult{
		LeaderboardType:   t,
		Region:            scope.RegionPtr(),
		TotalParticipants: total,
		PeriodStart:       start,
		PeriodEnd:         end,
	}
	if len(entries) > 0 {
		top := entries[0]
		result.TopUser = &top
		reset.TopUserID = &top.UserID
		reset.TopUserPoints = top.TotalFlexPoints
	}

	if err := s.archive.ArchiveReset(ctx, snap, reset); err != nil {
		return nil, err
	}

	evt := log.Info().
		Str("leaderboard_type", string(t)).
		Str("region", region).
		Time("period_start", start).
		Int64("total_participants", total)
	if result.TopUser != nil {
		evt = evt.Str("top_user_id", result.TopUser.UserID)
	}
	evt.Msg("Leaderboard period reset")

	if s.notifier != nil {
		if err := s.notifier.NotifyReset(ctx, result); err != nil {
			log.Warn().Err(err).Str("leaderboard_type", string(t)).Msg("Failed to announce reset")
		}
	}

	return result, nil
}

// ListSnapshots returns recent snapshots of scope, newest first.
func (s *SnapshotService) ListSnapshots(ctx context.Context, scope model.Scope, limit int) ([]*model.Snapshot, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.archive.ListSnapshots(ctx, scope, clampLimit(limit))
}

// ListResets returns recent resets of scope, newest first.
func (s *SnapshotService) ListResets(ctx context.Context, scope model.Scope, limit int) ([]*model.Reset, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	return s.archive.ListResets(ctx, scope, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	}
	return limit
}

