package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "locks", "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "locks", "a", []byte(`{"v":1}`)))
	data, err := s.Get(ctx, "locks", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), data)

	require.NoError(t, s.Delete(ctx, "locks", "a"))
	_, err = s.Get(ctx, "locks", "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateErrorAborts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "locks", "a", []byte("before")))

	sentinel := errors.New("keep out")
	err := s.Update(ctx, "locks", "a", func(current []byte) (Mutation, error) {
		assert.Equal(t, []byte("before"), current)
		return Mutation{}, sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	data, err := s.Get(ctx, "locks", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("before"), data, "a failed update leaves the document untouched")
}

func TestMemoryStoreUpdateSeesAbsentDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.Update(ctx, "locks", "a", func(current []byte) (Mutation, error) {
		assert.Nil(t, current)
		return Mutation{Data: []byte("created")}, nil
	})
	require.NoError(t, err)

	data, err := s.Get(ctx, "locks", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("created"), data)
}

func TestMemoryStoreUpdateNoOpLeavesDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "locks", "a", []byte("v")))

	err := s.Update(ctx, "locks", "a", func(current []byte) (Mutation, error) {
		return Mutation{}, nil
	})
	require.NoError(t, err)

	data, err := s.Get(ctx, "locks", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)
}

func TestMemoryStoreUpdateIsAtomic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "counters", "n", []byte{0}))

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, "counters", "n", func(current []byte) (Mutation, error) {
				return Mutation{Data: []byte{current[0] + 1}}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	data, err := s.Get(ctx, "counters", "n")
	require.NoError(t, err)
	assert.Equal(t, byte(workers), data[0], "every increment must observe the previous one")
}

func TestMemoryStoreListIsScopedToCollection(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "locks:shoot1", "a", []byte("1")))
	require.NoError(t, s.Put(ctx, "locks:shoot1", "b", []byte("2")))
	require.NoError(t, s.Put(ctx, "locks:shoot2", "c", []byte("3")))

	docs, err := s.List(ctx, "locks:shoot1")
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Contains(t, docs, "a")
	assert.Contains(t, docs, "b")
}

func TestMemoryStoreWatchDeliversEventsAndClosesOnCancel(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := s.Watch(ctx, "locks")
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "locks", "a", []byte("v")))
	require.NoError(t, s.Put(context.Background(), "other", "x", []byte("v")))
	require.NoError(t, s.Delete(context.Background(), "locks", "a"))

	ev := nextEvent(t, events)
	assert.Equal(t, EventPut, ev.Type)
	assert.Equal(t, "a", ev.ID)
	assert.Equal(t, []byte("v"), ev.Data)

	ev = nextEvent(t, events)
	assert.Equal(t, EventDelete, ev.Type, "events from other collections are not delivered")
	assert.Equal(t, "a", ev.ID)

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok, "channel closes when the context ends")
	case <-time.After(time.Second):
		t.Fatal("watch channel never closed")
	}
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}
