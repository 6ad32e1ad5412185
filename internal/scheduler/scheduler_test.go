package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"flexboard/internal/metrics"
	"flexboard/internal/model"
	"flexboard/internal/repository"
)

type fakeArchiver struct {
	mu        sync.Mutex
	monthly   []string
	weekly    []string
	snapshots []model.Scope
	resetErr  error
	panicOn   bool
}

func (f *fakeArchiver) ResetMonthly(_ context.Context, region string) (*model.ResetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn {
		panic("boom")
	}
	f.monthly = append(f.monthly, region)
	return &model.ResetResult{}, f.resetErr
}

func (f *fakeArchiver) ResetWeekly(_ context.Context, region string) (*model.ResetResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weekly = append(f.weekly, region)
	return &model.ResetResult{}, f.resetErr
}

func (f *fakeArchiver) CreateLeaderboardSnapshot(_ context.Context, scope model.Scope, _ int) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, scope)
	return &model.Snapshot{}, nil
}

func (f *fakeArchiver) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// TestGuardsProperty checks the guard predicates against the calendar.
func TestGuardsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sec := rapid.Int64Range(0, 4_000_000_000).Draw(t, "unix")
		now := time.Unix(sec, 0).UTC()

		if Due(TaskMonthlyReset, now) != (now.Day() == 1 && now.Hour() == 0) {
			t.Fatalf("monthly guard wrong at %s", now)
		}
		if Due(TaskWeeklyReset, now) != (now.Weekday() == time.Monday && now.Hour() == 0) {
			t.Fatalf("weekly guard wrong at %s", now)
		}
		if !Due(TaskHourlySnapshot, now) {
			t.Fatalf("hourly guard must always pass")
		}
	})
}

// TestWindowKeyProperty checks that two instants share a window key exactly
// when they fall in the same hour / ISO week / month.
func TestWindowKeyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "a"), 0).UTC()
		b := a.Add(time.Duration(rapid.Int64Range(0, 40*24*3600).Draw(t, "delta")) * time.Second)

		sameHour := a.Truncate(time.Hour).Equal(b.Truncate(time.Hour))
		if (WindowKey(TaskHourlySnapshot, a) == WindowKey(TaskHourlySnapshot, b)) != sameHour {
			t.Fatalf("hourly key mismatch for %s and %s", a, b)
		}

		sameMonth := a.Year() == b.Year() && a.Month() == b.Month()
		if (WindowKey(TaskMonthlyReset, a) == WindowKey(TaskMonthlyReset, b)) != sameMonth {
			t.Fatalf("monthly key mismatch for %s and %s", a, b)
		}

		ay, aw := a.ISOWeek()
		by, bw := b.ISOWeek()
		if (WindowKey(TaskWeeklyReset, a) == WindowKey(TaskWeeklyReset, b)) != (ay == by && aw == bw) {
			t.Fatalf("weekly key mismatch for %s and %s", a, b)
		}
	})
}

func TestTick_FiresOncePerWindow(t *testing.T) {
	arch := &fakeArchiver{}
	c := &clock{t: time.Date(2025, 9, 1, 0, 10, 0, 0, time.UTC)} // Monday the 1st
	s := New(arch, []string{"US", "EU"}, time.Hour, nil).WithClock(c.now)
	ctx := context.Background()

	s.tick(ctx)
	assert.Equal(t, []string{"", "US", "EU"}, arch.monthly)
	assert.Equal(t, []string{"", "US", "EU"}, arch.weekly)
	assert.Len(t, arch.snapshots, 5)

	c.set(time.Date(2025, 9, 1, 0, 50, 0, 0, time.UTC))
	s.tick(ctx)
	assert.Len(t, arch.monthly, 3, "same window must not fire twice")
	assert.Len(t, arch.weekly, 3)
	assert.Len(t, arch.snapshots, 5)

	c.set(time.Date(2025, 9, 1, 1, 0, 0, 0, time.UTC))
	s.tick(ctx)
	assert.Len(t, arch.monthly, 3)
	assert.Len(t, arch.snapshots, 10)
}

func TestTick_OutsideWindowsOnlySnapshots(t *testing.T) {
	arch := &fakeArchiver{}
	c := &clock{t: time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC)} // Wednesday the 3rd
	s := New(arch, nil, time.Hour, nil).WithClock(c.now)

	s.tick(context.Background())
	assert.Empty(t, arch.monthly)
	assert.Empty(t, arch.weekly)
	assert.Equal(t, []model.Scope{{Type: model.Global}, {Type: model.Monthly}, {Type: model.Weekly}}, arch.snapshots)
}

func TestTick_FailuresAreContained(t *testing.T) {
	arch := &fakeArchiver{resetErr: errors.New("db down")}
	c := &clock{t: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)}
	s := New(arch, nil, time.Hour, metrics.New()).WithClock(c.now)

	assert.NotPanics(t, func() { s.tick(context.Background()) })
	assert.Len(t, arch.snapshots, 3, "snapshot still runs after reset failures")

	arch.resetErr = nil
	arch.panicOn = true
	c.set(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	assert.NotPanics(t, func() { s.tick(context.Background()) })
	assert.Len(t, arch.snapshots, 6)
}

func TestTriggerMonthlyReset_AlreadyResetIsSkipped(t *testing.T) {
	arch := &fakeArchiver{resetErr: repository.ErrResetExists}
	s := New(arch, []string{"US"}, time.Hour, nil)

	require.NoError(t, s.TriggerMonthlyReset(context.Background()))
	assert.Equal(t, []string{"", "US"}, arch.monthly)

	arch.resetErr = errors.New("timeout")
	err := s.TriggerWeeklyReset(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestStartStop(t *testing.T) {
	arch := &fakeArchiver{}
	s := New(arch, nil, 10*time.Millisecond, nil)

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.Running())

	// Immediate pass on start.
	require.Eventually(t, func() bool { return arch.snapshotCount() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.False(t, s.Running())

	n := arch.snapshotCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, arch.snapshotCount(), "no ticks after stop")
}

func TestStart_StopsWithContext(t *testing.T) {
	arch := &fakeArchiver{}
	s := New(arch, nil, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())

	s.Start(ctx)
	cancel()
	s.Stop()
	assert.False(t, s.Running())
}
