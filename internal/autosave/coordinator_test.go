package autosave

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jsunwilke/employeeapp-sub001/internal/locks"
	"github.com/Jsunwilke/employeeapp-sub001/internal/store"
)

type recordingSaver struct {
	mu    sync.Mutex
	calls []savedValue
	saved chan savedValue
}

type savedValue struct {
	key   FieldKey
	value string
}

func newRecordingSaver() *recordingSaver {
	return &recordingSaver{saved: make(chan savedValue, 16)}
}

func (s *recordingSaver) SaveField(ctx context.Context, key FieldKey, value string) error {
	s.mu.Lock()
	s.calls = append(s.calls, savedValue{key: key, value: value})
	s.mu.Unlock()
	s.saved <- savedValue{key: key, value: value}
	return nil
}

func (s *recordingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

const testLease = 10 * time.Second

func newTestCoordinator(t *testing.T, delay time.Duration) (*Coordinator, *locks.Manager, *recordingSaver) {
	t.Helper()
	manager := locks.NewManager(store.NewMemoryStore())
	saver := newRecordingSaver()
	return NewCoordinator(manager, saver, delay, testLease), manager, saver
}

func acquireFor(t *testing.T, manager *locks.Manager, key FieldKey, holderID string) {
	t.Helper()
	_, err := manager.Acquire(context.Background(), key.ContainerID, key.FieldOwnerID, holderID, "Holder", testLease)
	require.NoError(t, err)
}

func TestDebounceCoalescesBurstIntoOneWrite(t *testing.T) {
	coord, manager, saver := newTestCoordinator(t, 40*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "image_numbers"}
	acquireFor(t, manager, key, "alice")

	require.NoError(t, coord.Begin(context.Background(), key, "alice", ""))
	require.NoError(t, coord.Change(key, "alice", "1"))
	require.NoError(t, coord.Change(key, "alice", "1,2"))
	require.NoError(t, coord.Change(key, "alice", "1,2,3"))

	select {
	case got := <-saver.saved:
		assert.Equal(t, "1,2,3", got.value, "only the last value of the burst is persisted")
	case <-time.After(time.Second):
		t.Fatal("debounced write never fired")
	}

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, saver.count(), "one write per debounce window")
}

func TestChangeBackToPersistedValueCancelsWrite(t *testing.T) {
	coord, manager, saver := newTestCoordinator(t, 40*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}
	acquireFor(t, manager, key, "alice")

	require.NoError(t, coord.Begin(context.Background(), key, "alice", "original"))
	require.NoError(t, coord.Change(key, "alice", "edited"))
	require.NoError(t, coord.Change(key, "alice", "original"))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, saver.count(), "reverting to the persisted value suppresses the write")
}

func TestEndFlushesPendingWriteAndReleasesLease(t *testing.T) {
	coord, manager, saver := newTestCoordinator(t, time.Hour)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}
	acquireFor(t, manager, key, "alice")

	require.NoError(t, coord.Begin(context.Background(), key, "alice", ""))
	require.NoError(t, coord.Change(key, "alice", "final"))
	require.NoError(t, coord.End(context.Background(), key, "alice"))

	require.Equal(t, 1, saver.count(), "End flushes synchronously")

	// The lease is gone, so anybody may take it immediately.
	_, err := manager.Acquire(context.Background(), key.ContainerID, key.FieldOwnerID, "bob", "Bob", testLease)
	require.NoError(t, err)
}

func TestBeginRequiresHeldLease(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, 40*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}

	err := coord.Begin(context.Background(), key, "alice", "")
	assert.ErrorIs(t, err, locks.ErrNotHolder)
}

func TestLostLeaseSuppressesWriteAndFailsClosed(t *testing.T) {
	coord, manager, saver := newTestCoordinator(t, 30*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}
	acquireFor(t, manager, key, "alice")

	require.NoError(t, coord.Begin(context.Background(), key, "alice", ""))

	// The lease is stolen behind the session's back.
	require.NoError(t, manager.Release(context.Background(), key.ContainerID, key.FieldOwnerID, "alice"))
	acquireFor(t, manager, key, "bob")

	require.NoError(t, coord.Change(key, "alice", "doomed"))

	select {
	case lost := <-coord.LostEdits():
		assert.Equal(t, "doomed", lost.Value)
		assert.ErrorIs(t, lost.Reason, locks.ErrNotHolder)
	case <-time.After(time.Second):
		t.Fatal("lost-edit signal never arrived")
	}

	assert.Equal(t, 0, saver.count(), "the write must be suppressed, not persisted")
	assert.ErrorIs(t, coord.Change(key, "alice", "more"), ErrNoSession, "session fails closed after a lost lease")
}

func TestChangeAndEndByNonHolderRejected(t *testing.T) {
	coord, manager, saver := newTestCoordinator(t, 20*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}
	acquireFor(t, manager, key, "alice")

	require.NoError(t, coord.Begin(context.Background(), key, "alice", "original"))

	// Another authenticated user must not be able to inject a value into
	// alice's session or flush-and-release it out from under her.
	assert.ErrorIs(t, coord.Change(key, "bob", "injected"), locks.ErrNotHolder)
	assert.ErrorIs(t, coord.End(context.Background(), key, "bob"), locks.ErrNotHolder)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, saver.count(), "the injected value must never be persisted")

	// Alice's session and lease are untouched.
	require.NoError(t, coord.Change(key, "alice", "hers"))
	select {
	case got := <-saver.saved:
		assert.Equal(t, "hers", got.value)
	case <-time.After(time.Second):
		t.Fatal("holder's own write never fired")
	}
}

func TestChangeWithoutSession(t *testing.T) {
	coord, _, _ := newTestCoordinator(t, 40*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}
	assert.ErrorIs(t, coord.Change(key, "alice", "x"), ErrNoSession)
}

func TestEndWithoutPendingWriteReleasesCleanly(t *testing.T) {
	coord, manager, saver := newTestCoordinator(t, 40*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}
	acquireFor(t, manager, key, "alice")

	require.NoError(t, coord.Begin(context.Background(), key, "alice", "unchanged"))
	require.NoError(t, coord.End(context.Background(), key, "alice"))
	assert.Equal(t, 0, saver.count())
}

func TestWritesForKeyAreOrdered(t *testing.T) {
	coord, manager, saver := newTestCoordinator(t, 20*time.Millisecond)
	key := FieldKey{ContainerID: "shoot1", FieldOwnerID: "entry7", Field: "notes"}
	acquireFor(t, manager, key, "alice")

	require.NoError(t, coord.Begin(context.Background(), key, "alice", ""))
	require.NoError(t, coord.Change(key, "alice", "first"))
	first := <-saver.saved
	require.NoError(t, coord.Change(key, "alice", "second"))
	second := <-saver.saved

	assert.Equal(t, "first", first.value)
	assert.Equal(t, "second", second.value)
	assert.Equal(t, 2, saver.count())
}
