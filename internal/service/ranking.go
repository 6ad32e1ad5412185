package service

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"flexboard/internal/model"
	"flexboard/internal/repository"
)

// RankingService computes paginated rankings and single-user ranks over the ledger.
type RankingService struct {
	ledger          LedgerReader
	users           UserReader
	defaultPageSize int
	maxPageSize     int
	now             func() time.Time
}

// NewRankingService creates a new RankingService instance.
func NewRankingService(ledger LedgerReader, users UserReader, defaultPageSize, maxPageSize int) *RankingService {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &RankingService{
		ledger:          ledger,
		users:           users,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		now:             time.Now,
	}
}

// WithClock overrides the time source used as "now" for windowed scopes.
func (s *RankingService) WithClock(now func() time.Time) *RankingService {
	s.now = now
	return s
}

// Now returns the current time according to the service clock.
func (s *RankingService) Now() time.Time {
	return s.now()
}

// ComputeRanking returns one page of scope's ranking as of now.
// A pageSize of 0 selects the default page size; sizes above the maximum are
// clamped to it.
func (s *RankingService) ComputeRanking(ctx context.Context, scope model.Scope, page, pageSize int) (*model.Page, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if pageSize == 0 {
		pageSize = s.defaultPageSize
	}
	if page < 1 || pageSize < 1 {
		return nil, ErrInvalidPagination
	}
	pageSize = min(pageSize, s.maxPageSize)
	// (page-1)*pageSize must fit in an int.
	if page-1 > math.MaxInt/pageSize {
		return nil, ErrInvalidPagination
	}

	asOf := s.now()
	total, err := s.ledger.Count(ctx, scope, asOf)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	var entries []model.RankedEntry
	if int64(offset) < total {
		entries, err = s.ledger.Ranking(ctx, scope, asOf, pageSize, offset)
		if err != nil {
			return nil, err
		}
	}

	return model.NewPage(entries, page, pageSize, total), nil
}

// TopN returns the first n entries of scope's ranking as of asOf.
func (s *RankingService) TopN(ctx context.Context, scope model.Scope, asOf time.Time, n int) ([]model.RankedEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, ErrInvalidPagination
	}
	return s.ledger.Ranking(ctx, scope, asOf, n, 0)
}

// GetUserRank returns the user's entry in scope, or nil if the user has no
// completed transactions there.
func (s *RankingService) GetUserRank(ctx context.Context, userID string, scope model.Scope) (*model.RankedEntry, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}
	return s.ledger.UserRank(ctx, userID, scope, s.now())
}

// GetStanding returns the user's rank in global, monthly and weekly scopes,
// plus regional when the user has a region.
func (s *RankingService) GetStanding(ctx context.Context, userID string) (*model.Standing, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, repository.ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	standing := &model.Standing{
		UserID:   user.ID,
		Username: user.Username,
		Region:   user.Region,
		Ranks:    make(map[model.LeaderboardType]*model.RankedEntry, 4),
	}

	for _, scope := range UserScopes(user) {
		entry, err := s.GetUserRank(ctx, user.ID, scope)
		if err != nil {
			return nil, err
		}
		standing.Ranks[scope.Type] = entry
	}
	if user.Region == nil {
		standing.Ranks[model.Regional] = nil
	}

	return standing, nil
}

// UserScopes lists the scopes a user participates in: the three unfiltered
// scopes and, if the user has a region, the regional scope for it.
func UserScopes(user *model.User) []model.Scope {
	scopes := []model.Scope{
		{Type: model.Global},
		{Type: model.Monthly},
		{Type: model.Weekly},
	}
	if user.Region != nil && *user.Region != "" {
		scopes = append(scopes, model.Scope{Type: model.Regional, Region: *user.Region})
	}
	return scopes
}
