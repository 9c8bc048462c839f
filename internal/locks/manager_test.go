package locks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestManager() (*Manager, *fakeClock) {
	clock := newFakeClock()
	return NewManager(store.NewMemoryStore()).WithClock(clock.Now), clock
}

func TestAcquireMutualExclusion(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "shoot1", "entry7", "bob", "Bob", 45*time.Second)
	var locked *AlreadyLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, "Alice", locked.Holder)
}

func TestAcquireDifferentKeysIndependent(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "shoot1", "entry8", "bob", "Bob", 45*time.Second)
	require.NoError(t, err)

	_, err = m.Acquire(ctx, "shoot2", "entry7", "bob", "Bob", 45*time.Second)
	require.NoError(t, err)
}

func TestAcquireIsIdempotentRenewalForHolder(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()

	first, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	clock.Advance(20 * time.Second)
	second, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	assert.Equal(t, first.AcquiredAt, second.AcquiredAt, "re-acquire keeps the original acquisition time")
	assert.True(t, second.ExpiresAt.After(first.ExpiresAt), "re-acquire extends the lease")
}

func TestAcquireSucceedsAfterExpiry(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	clock.Advance(46 * time.Second)
	lock, err := m.Acquire(ctx, "shoot1", "entry7", "bob", "Bob", 45*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "bob", lock.HolderID)
}

func TestRenewNeverShortensLease(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	lock, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 60*time.Second)
	require.NoError(t, err)

	require.NoError(t, m.Renew(ctx, "shoot1", "entry7", "alice", 10*time.Second))

	active, err := m.Active(ctx, "shoot1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.False(t, active[0].ExpiresAt.Before(lock.ExpiresAt), "renewal must not move expiry backwards")
}

func TestRenewAfterExpiryFailsClosed(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assert.ErrorIs(t, m.Renew(ctx, "shoot1", "entry7", "alice", 45*time.Second), ErrNotHolder)
}

func TestRenewByReclaimedLeaseFails(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = m.Acquire(ctx, "shoot1", "entry7", "bob", "Bob", 45*time.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, m.Renew(ctx, "shoot1", "entry7", "alice", 45*time.Second), ErrNotHolder)
}

func TestReleaseMakesNextAcquireSucceed(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)
	require.NoError(t, m.Release(ctx, "shoot1", "entry7", "alice"))

	_, err = m.Acquire(ctx, "shoot1", "entry7", "bob", "Bob", 45*time.Second)
	require.NoError(t, err)
}

func TestReleaseAbsentLockIsNoOp(t *testing.T) {
	m, _ := newTestManager()
	assert.NoError(t, m.Release(context.Background(), "shoot1", "entry7", "alice"))
}

func TestReleaseByNonHolderFails(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)
	assert.ErrorIs(t, m.Release(ctx, "shoot1", "entry7", "bob"), ErrNotHolder)
}

func TestActiveFiltersExpiredLocks(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry1", "alice", "Alice", 30*time.Second)
	require.NoError(t, err)
	clock.Advance(20 * time.Second)
	_, err = m.Acquire(ctx, "shoot1", "entry2", "bob", "Bob", 30*time.Second)
	require.NoError(t, err)

	clock.Advance(15 * time.Second) // entry1 lease now past expiry
	active, err := m.Active(ctx, "shoot1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "entry2", active[0].FieldOwnerID)
}

func TestSweepStaleIsIdempotent(t *testing.T) {
	m, clock := newTestManager()
	ctx := context.Background()

	_, err := m.Acquire(ctx, "shoot1", "entry1", "alice", "Alice", 30*time.Second)
	require.NoError(t, err)
	clock.Advance(20 * time.Second)
	_, err = m.Acquire(ctx, "shoot1", "entry2", "bob", "Bob", 30*time.Second)
	require.NoError(t, err)

	clock.Advance(15 * time.Second)
	swept, err := m.SweepStale(ctx, "shoot1")
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	sweptAgain, err := m.SweepStale(ctx, "shoot1")
	require.NoError(t, err)
	assert.Equal(t, 0, sweptAgain)

	active, err := m.Active(ctx, "shoot1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "entry2", active[0].FieldOwnerID)
}

func TestConcurrentAcquireExactlyOneWins(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	const holders = 8
	var wg sync.WaitGroup
	results := make([]error, holders)
	for i := 0; i < holders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = m.Acquire(ctx, "shoot1", "entry7", string(rune('a'+i)), "Holder", 45*time.Second)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var locked *AlreadyLockedError
		assert.True(t, errors.As(err, &locked), "losers must see AlreadyLocked, got %v", err)
	}
	assert.Equal(t, 1, wins, "exactly one concurrent acquire may succeed")
}

func TestWatchDeliversSnapshots(t *testing.T) {
	m, _ := newTestManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snapshots, err := m.Watch(ctx, "shoot1")
	require.NoError(t, err)

	snap := <-snapshots
	assert.Empty(t, snap, "initial snapshot of an empty container")

	_, err = m.Acquire(ctx, "shoot1", "entry7", "alice", "Alice", 45*time.Second)
	require.NoError(t, err)

	snap = waitForSnapshot(t, snapshots, 1)
	assert.Equal(t, "Alice", snap[0].HolderDisplayName)

	require.NoError(t, m.Release(ctx, "shoot1", "entry7", "alice"))
	waitForSnapshot(t, snapshots, 0)
}

func waitForSnapshot(t *testing.T, snapshots <-chan []models.Lock, want int) []models.Lock {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-snapshots:
			require.True(t, ok, "snapshot channel closed early")
			if len(snap) == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot with %d locks", want)
		}
	}
}
