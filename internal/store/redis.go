package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each document as a JSON value under "<collection>/<id>"
// and publishes change events on "store:<collection>". Update runs under
// WATCH/MULTI, so concurrent writers to the same document serialize through
// optimistic transactions instead of last-write-wins.
type RedisStore struct {
	client *redis.Client
}

const (
	txRetries    = 8
	retryBackoff = 20 * time.Millisecond
)

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func channel(collection string) string {
	return "store:" + collection
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, docKey(collection, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, collection, id string, data []byte) error {
	if err := s.client.Set(ctx, docKey(collection, id), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.publish(ctx, Event{Type: EventPut, Collection: collection, ID: id, Data: data})
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	if err := s.client.Del(ctx, docKey(collection, id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.publish(ctx, Event{Type: EventDelete, Collection: collection, ID: id})
	return nil
}

// Update applies fn to the document under an optimistic transaction. On
// contention the transaction is retried; fn must therefore be free of side
// effects beyond the returned Mutation.
func (s *RedisStore) Update(ctx context.Context, collection, id string, fn UpdateFunc) error {
	key := docKey(collection, id)

	var applied Mutation
	txFunc := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		m, err := fn(current)
		if err != nil {
			return updateAbort{err: err}
		}
		applied = m

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			switch {
			case m.Delete:
				pipe.Del(ctx, key)
			case m.Data != nil:
				pipe.Set(ctx, key, m.Data, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < txRetries; i++ {
		err := s.client.Watch(ctx, txFunc, key)
		if err == nil {
			switch {
			case applied.Delete:
				s.publish(ctx, Event{Type: EventDelete, Collection: collection, ID: id})
			case applied.Data != nil:
				s.publish(ctx, Event{Type: EventPut, Collection: collection, ID: id, Data: applied.Data})
			}
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			time.Sleep(retryBackoff << i)
			continue
		}
		var abort updateAbort
		if errors.As(err, &abort) {
			return abort.err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: transaction contention on %s", ErrUnavailable, key)
}

// updateAbort marks errors raised by an UpdateFunc so they travel out of the
// redis transaction untouched instead of being mistaken for transport errors.
type updateAbort struct{ err error }

func (a updateAbort) Error() string { return a.err.Error() }
func (a updateAbort) Unwrap() error { return a.err }

func (s *RedisStore) List(ctx context.Context, collection string) (map[string][]byte, error) {
	prefix := collection + "/"
	docs := make(map[string][]byte)

	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		docs[key[len(prefix):]] = data
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return docs, nil
}

func (s *RedisStore) Watch(ctx context.Context, collection string) (<-chan Event, error) {
	pubsub := s.client.Subscribe(ctx, channel(collection))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("store: dropping malformed event on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

func (s *RedisStore) publish(ctx context.Context, ev Event) {
	payload, _ := json.Marshal(ev)
	if err := s.client.Publish(ctx, channel(ev.Collection), payload).Err(); err != nil {
		log.Printf("store: failed to publish %s event for %s/%s: %v", ev.Type, ev.Collection, ev.ID, err)
	}
}
