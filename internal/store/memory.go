package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store with the same semantics as the redis
// implementation: Update is atomic per document (serialized under one mutex)
// and Watch delivers every change until the context ends. Used by tests and
// single-node development runs.
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[string]map[string][]byte
	watchers map[string][]*memWatcher
}

type memWatcher struct {
	ctx context.Context
	ch  chan Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]map[string][]byte),
		watchers: make(map[string][]*memWatcher),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(data), nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(collection, id, cloneBytes(data))
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(collection, id)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if data, ok := s.docs[collection][id]; ok {
		current = cloneBytes(data)
	}

	m, err := fn(current)
	if err != nil {
		return err
	}
	switch {
	case m.Delete:
		s.deleteLocked(collection, id)
	case m.Data != nil:
		s.putLocked(collection, id, cloneBytes(m.Data))
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte, len(s.docs[collection]))
	for id, data := range s.docs[collection] {
		out[id] = cloneBytes(data)
	}
	return out, nil
}

func (s *MemoryStore) Watch(ctx context.Context, collection string) (<-chan Event, error) {
	w := &memWatcher{ctx: ctx, ch: make(chan Event, 64)}
	s.mu.Lock()
	s.watchers[collection] = append(s.watchers[collection], w)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.watchers[collection]
		for i, cand := range list {
			if cand == w {
				s.watchers[collection] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(w.ch)
	}()
	return w.ch, nil
}

func (s *MemoryStore) putLocked(collection, id string, data []byte) {
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string][]byte)
	}
	s.docs[collection][id] = data
	s.notifyLocked(Event{Type: EventPut, Collection: collection, ID: id, Data: cloneBytes(data)})
}

func (s *MemoryStore) deleteLocked(collection, id string) {
	delete(s.docs[collection], id)
	s.notifyLocked(Event{Type: EventDelete, Collection: collection, ID: id})
}

func (s *MemoryStore) notifyLocked(ev Event) {
	for _, w := range s.watchers[ev.Collection] {
		select {
		case w.ch <- ev:
		default:
			// Slow subscriber; the next event still carries fresh state.
		}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
