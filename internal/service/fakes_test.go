package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flexboard/internal/model"
	"flexboard/internal/repository"
)

// fakeStore is an in-memory ledger, user table and history/archive store that
// ranks the same way the SQL does.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*model.User
	txs       []model.Transaction
	history   []*model.HistoryRow
	snapshots []*model.Snapshot
	resets    []*model.Reset
	nextID    int64
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*model.User)}
}

func (f *fakeStore) addUser(name string, region *string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.User{ID: uuid.NewString(), Username: name, Region: region}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) addTx(userID string, points int64, status model.TransactionStatus, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.txs = append(f.txs, model.Transaction{
		ID:         f.nextID,
		UserID:     userID,
		Amount:     decimal.NewFromInt(points).Div(decimal.NewFromInt(10)),
		FlexPoints: points,
		Status:     status,
		CreatedAt:  at,
	})
}

func (f *fakeStore) rank(scope model.Scope, asOf time.Time) []model.RankedEntry {
	type agg struct {
		entry   model.RankedEntry
		firstAt time.Time
		firstID int64
	}
	period, windowed := model.CurrentPeriod(scope.Type, asOf)
	totals := map[string]*agg{}
	for _, tx := range f.txs {
		if tx.Status != model.StatusCompleted {
			continue
		}
		if windowed && !period.Contains(tx.CreatedAt) {
			continue
		}
		u := f.users[tx.UserID]
		if scope.Region != "" && (u.Region == nil || *u.Region != scope.Region) {
			continue
		}
		a, ok := totals[tx.UserID]
		if !ok {
			a = &agg{
				entry:   model.RankedEntry{UserID: u.ID, Username: u.Username},
				firstAt: tx.CreatedAt,
				firstID: tx.ID,
			}
			totals[tx.UserID] = a
		}
		a.entry.TotalFlexPoints += tx.FlexPoints
		a.entry.TotalSpent = a.entry.TotalSpent.Add(tx.Amount)
		if tx.CreatedAt.Before(a.firstAt) {
			a.firstAt = tx.CreatedAt
		}
		if tx.ID < a.firstID {
			a.firstID = tx.ID
		}
	}

	list := make([]*agg, 0, len(totals))
	for _, a := range totals {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.entry.TotalFlexPoints != b.entry.TotalFlexPoints {
			return a.entry.TotalFlexPoints > b.entry.TotalFlexPoints
		}
		if !a.firstAt.Equal(b.firstAt) {
			return a.firstAt.Before(b.firstAt)
		}
		if a.firstID != b.firstID {
			return a.firstID < b.firstID
		}
		return a.entry.UserID < b.entry.UserID
	})

	entries := make([]model.RankedEntry, len(list))
	for i, a := range list {
		entries[i] = a.entry
		entries[i].Rank = int64(i + 1)
	}
	return entries
}

func (f *fakeStore) Ranking(_ context.Context, scope model.Scope, asOf time.Time, limit, offset int) ([]model.RankedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	all := f.rank(scope, asOf)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (f *fakeStore) Count(_ context.Context, scope model.Scope, asOf time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(f.rank(scope, asOf))), nil
}

func (f *fakeStore) UserRank(_ context.Context, userID string, scope model.Scope, asOf time.Time) (*model.RankedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.rank(scope, asOf) {
		if e.UserID == userID {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func sameRegion(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeStore) Latest(_ context.Context, userID string, scope model.Scope) (*model.HistoryRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.history) - 1; i >= 0; i-- {
		h := f.history[i]
		if h.UserID == userID && h.LeaderboardType == scope.Type && sameRegion(h.Region, scope.RegionPtr()) {
			return h, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Insert(_ context.Context, row *model.HistoryRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row.ID = f.nextID
	row.RecordedAt = time.Now()
	f.history = append(f.history, row)
	return nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string, scope model.Scope, limit int) ([]*model.HistoryRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := []*model.HistoryRow{}
	for i := len(f.history) - 1; i >= 0 && len(rows) < limit; i-- {
		h := f.history[i]
		if h.UserID == userID && h.LeaderboardType == scope.Type && sameRegion(h.Region, scope.RegionPtr()) {
			rows = append(rows, h)
		}
	}
	return rows, nil
}

func (f *fakeStore) InsertSnapshot(_ context.Context, snap *model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	snap.ID = f.nextID
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeStore) ArchiveReset(_ context.Context, snap *model.Snapshot, reset *model.Reset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, r := range f.resets {
		if r.LeaderboardType == reset.LeaderboardType && sameRegion(r.Region, reset.Region) && r.PeriodStart.Equal(reset.PeriodStart) {
			return repository.ErrResetExists
		}
	}
	f.nextID++
	snap.ID = f.nextID
	reset.ID = f.nextID
	f.snapshots = append(f.snapshots, snap)
	f.resets = append(f.resets, reset)
	return nil
}

func (f *fakeStore) ListSnapshots(_ context.Context, scope model.Scope, limit int) ([]*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Snapshot{}
	for i := len(f.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		s := f.snapshots[i]
		if s.LeaderboardType == scope.Type && sameRegion(s.Region, scope.RegionPtr()) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListResets(_ context.Context, scope model.Scope, limit int) ([]*model.Reset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*model.Reset{}
	for i := len(f.resets) - 1; i >= 0 && len(out) < limit; i-- {
		r := f.resets[i]
		if r.LeaderboardType == scope.Type && sameRegion(r.Region, scope.RegionPtr()) {
			out = append(out, r)
		}
	}
	return out, nil
}

type rankEvent struct {
	userID string
	scope  model.Scope
	change *model.RankChange
}

type updateEvent struct {
	scope model.Scope
	ranks []int64
}

type fakeBroadcaster struct {
	mu      sync.Mutex
	changes []rankEvent
	updates []updateEvent
}

func (b *fakeBroadcaster) BroadcastRankChange(userID string, scope model.Scope, change *model.RankChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, rankEvent{userID: userID, scope: scope, change: change})
}

func (b *fakeBroadcaster) BroadcastLeaderboardUpdate(scope model.Scope, ranks []int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates = append(b.updates, updateEvent{scope: scope, ranks: ranks})
}

type fakeNotifier struct {
	results []*model.ResetResult
	err     error
}

func (n *fakeNotifier) NotifyReset(_ context.Context, r *model.ResetResult) error {
	n.results = append(n.results, r)
	return n.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }
