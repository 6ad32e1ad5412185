package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"flexboard/internal/model"
	"flexboard/internal/repository"
)

var now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newRanking(store *fakeStore) *RankingService {
	return NewRankingService(store, store, 50, 100).WithClock(fixedClock(now))
}

// TestComputeRankingDenseRanksProperty checks that ranks are 1..N with no gaps
// or duplicates and that points never increase down the ranking.
func TestComputeRankingDenseRanksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newFakeStore()
		numUsers := rapid.IntRange(1, 30).Draw(t, "numUsers")
		for i := 0; i < numUsers; i++ {
			u := store.addUser(fmt.Sprintf("user%d", i), nil)
			numTx := rapid.IntRange(1, 4).Draw(t, "numTx")
			for j := 0; j < numTx; j++ {
				points := rapid.Int64Range(1, 500).Draw(t, "points")
				offset := time.Duration(rapid.IntRange(0, 72).Draw(t, "hoursAgo")) * time.Hour
				store.addTx(u.ID, points, model.StatusCompleted, now.Add(-offset))
			}
		}

		svc := newRanking(store)
		page, err := svc.ComputeRanking(context.Background(), model.Scope{Type: model.Global}, 1, 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if int64(len(page.Entries)) != page.Total {
			t.Fatalf("expected %d entries, got %d", page.Total, len(page.Entries))
		}
		for i, e := range page.Entries {
			if e.Rank != int64(i+1) {
				t.Fatalf("entry %d has rank %d", i, e.Rank)
			}
			if i > 0 && e.TotalFlexPoints > page.Entries[i-1].TotalFlexPoints {
				t.Fatalf("points increase at rank %d", e.Rank)
			}
		}
	})
}

// TestPendingNeverCountsProperty checks that adding a pending or failed
// transaction leaves a user's totals unchanged in every scope.
func TestPendingNeverCountsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newFakeStore()
		u := store.addUser("alice", strPtr("US"))
		store.addTx(u.ID, rapid.Int64Range(1, 1000).Draw(t, "points"), model.StatusCompleted, now)
		svc := newRanking(store)

		scopes := []model.Scope{
			{Type: model.Global}, {Type: model.Monthly}, {Type: model.Weekly},
			{Type: model.Regional, Region: "US"},
		}
		before := map[string]int64{}
		for _, s := range scopes {
			e, err := svc.GetUserRank(context.Background(), u.ID, s)
			if err != nil || e == nil {
				t.Fatalf("expected rank in %s: %v", s, err)
			}
			before[s.Key()] = e.TotalFlexPoints
		}

		status := rapid.SampledFrom([]model.TransactionStatus{model.StatusPending, model.StatusFailed}).Draw(t, "status")
		store.addTx(u.ID, rapid.Int64Range(1, 1000).Draw(t, "extra"), status, now)

		for _, s := range scopes {
			e, _ := svc.GetUserRank(context.Background(), u.ID, s)
			if e.TotalFlexPoints != before[s.Key()] {
				t.Fatalf("%s total changed from %d to %d", s, before[s.Key()], e.TotalFlexPoints)
			}
		}
	})
}

func TestComputeRanking_TieBreakByArrival(t *testing.T) {
	store := newFakeStore()
	a := store.addUser("A", nil)
	b := store.addUser("B", nil)
	c := store.addUser("C", nil)
	store.addTx(a.ID, 100, model.StatusCompleted, now.Add(-3*time.Hour))
	store.addTx(b.ID, 250, model.StatusCompleted, now.Add(-2*time.Hour))
	store.addTx(c.ID, 250, model.StatusCompleted, now.Add(-time.Hour))

	page, err := newRanking(store).ComputeRanking(context.Background(), model.Scope{Type: model.Global}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)

	assert.Equal(t, "B", page.Entries[0].Username)
	assert.Equal(t, int64(1), page.Entries[0].Rank)
	assert.Equal(t, "C", page.Entries[1].Username)
	assert.Equal(t, int64(2), page.Entries[1].Rank)
	assert.Equal(t, "A", page.Entries[2].Username)
	assert.Equal(t, int64(3), page.Entries[2].Rank)
}

func TestComputeRanking_Pagination(t *testing.T) {
	store := newFakeStore()
	for i := 0; i < 7; i++ {
		u := store.addUser(fmt.Sprintf("u%d", i), nil)
		store.addTx(u.ID, int64(100-i), model.StatusCompleted, now)
	}
	svc := newRanking(store)
	ctx := context.Background()

	page, err := svc.ComputeRanking(ctx, model.Scope{Type: model.Global}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Entries, 3)
	assert.Equal(t, int64(4), page.Entries[0].Rank)

	page, err = svc.ComputeRanking(ctx, model.Scope{Type: model.Global}, 5, 3)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.NotNil(t, page.Entries)

	page, err = svc.ComputeRanking(ctx, model.Scope{Type: model.Global}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, page.PageSize)
}

func TestComputeRanking_Validation(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("alice", nil)
	store.addTx(u.ID, 10, model.StatusCompleted, now)
	spy := &countingLedger{fakeStore: store}
	svc := NewRankingService(spy, store, 50, 100).WithClock(fixedClock(now))
	ctx := context.Background()

	tests := []struct {
		name     string
		scope    model.Scope
		page     int
		pageSize int
		want     error
	}{
		{"page zero", model.Scope{Type: model.Global}, 0, 10, ErrInvalidPagination},
		{"negative size", model.Scope{Type: model.Global}, 1, -1, ErrInvalidPagination},
		{"offset overflows", model.Scope{Type: model.Global}, math.MaxInt, 4, ErrInvalidPagination},
		{"offset overflows at max size", model.Scope{Type: model.Global}, math.MaxInt/100 + 2, 500, ErrInvalidPagination},
		{"regional without region", model.Scope{Type: model.Regional}, 1, 10, model.ErrRegionRequired},
		{"unknown type", model.Scope{Type: "daily"}, 1, 10, model.ErrInvalidLeaderboardType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy.calls = 0
			_, err := svc.ComputeRanking(ctx, tt.scope, tt.page, tt.pageSize)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
			assert.Zero(t, spy.calls, "ledger must not be queried")
		})
	}
}

// countingLedger counts queries that reach the ledger.
type countingLedger struct {
	*fakeStore
	calls int
}

func (c *countingLedger) Ranking(ctx context.Context, scope model.Scope, asOf time.Time, limit, offset int) ([]model.RankedEntry, error) {
	c.calls++
	if offset < 0 {
		return nil, errors.New("OFFSET must not be negative")
	}
	return c.fakeStore.Ranking(ctx, scope, asOf, limit, offset)
}

func (c *countingLedger) Count(ctx context.Context, scope model.Scope, asOf time.Time) (int64, error) {
	c.calls++
	return c.fakeStore.Count(ctx, scope, asOf)
}

func TestComputeRanking_ClampsPageSize(t *testing.T) {
	store := newFakeStore()
	for i := range 3 {
		u := store.addUser(fmt.Sprintf("user%d", i), nil)
		store.addTx(u.ID, int64(10*(i+1)), model.StatusCompleted, now)
	}

	page, err := newRanking(store).ComputeRanking(context.Background(), model.Scope{Type: model.Global}, 1, 101)
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)
	assert.Len(t, page.Entries, 3)
	assert.Equal(t, 1, page.TotalPages)
}

func TestComputeRanking_RegionalFiltersByRegion(t *testing.T) {
	store := newFakeStore()
	us := store.addUser("us", strPtr("US"))
	eu := store.addUser("eu", strPtr("EU"))
	store.addTx(us.ID, 10, model.StatusCompleted, now)
	store.addTx(eu.ID, 20, model.StatusCompleted, now)

	page, err := newRanking(store).ComputeRanking(context.Background(), model.Scope{Type: model.Regional, Region: "US"}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, us.ID, page.Entries[0].UserID)
}

func TestComputeRanking_MonthlyExcludesLastMonth(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("old", nil)
	store.addTx(u.ID, 10, model.StatusCompleted, now.AddDate(0, -1, 0))

	page, err := newRanking(store).ComputeRanking(context.Background(), model.Scope{Type: model.Monthly}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, int64(0), page.Total)
}

func TestComputeRanking_StoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")

	_, err := newRanking(store).ComputeRanking(context.Background(), model.Scope{Type: model.Global}, 1, 10)
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestGetUserRank_Absent(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("nobody", nil)
	svc := newRanking(store)

	entry, err := svc.GetUserRank(context.Background(), u.ID, model.Scope{Type: model.Global})
	require.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = svc.GetUserRank(context.Background(), "not-a-uuid", model.Scope{Type: model.Global})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestGetStanding(t *testing.T) {
	store := newFakeStore()
	u := store.addUser("alice", strPtr("US"))
	store.addTx(u.ID, 10, model.StatusCompleted, now.AddDate(0, -2, 0))
	svc := newRanking(store)

	standing, err := svc.GetStanding(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", standing.Username)
	require.NotNil(t, standing.Ranks[model.Global])
	assert.Equal(t, int64(1), standing.Ranks[model.Global].Rank)
	require.NotNil(t, standing.Ranks[model.Regional])
	assert.Nil(t, standing.Ranks[model.Monthly])
	assert.Nil(t, standing.Ranks[model.Weekly])

	_, err = svc.GetStanding(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}
