// Package locks arbitrates exclusive field-editing leases. One lock document
// exists per (container, field owner) pair; expiry makes a lock invisible to
// every reader, so an abandoned lease frees itself after at most one lease
// duration without anyone deleting it.
package locks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/store"
)

// AlreadyLockedError is the normal contention outcome: somebody else holds an
// unexpired lease on the field. Holder carries their display name for the UI.
type AlreadyLockedError struct {
	Holder string
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("locks: field is being edited by %s", e.Holder)
}

// ErrNotHolder is returned when a renew or release finds the lease expired,
// reclaimed, or held by someone else.
var ErrNotHolder = errors.New("locks: lease not held")

// DefaultLease is used when a caller passes a non-positive lease duration.
const DefaultLease = 45 * time.Second

// RenewInterval returns the recommended renewal cadence for a lease.
func RenewInterval(lease time.Duration) time.Duration {
	return lease / 3
}

// Manager grants, renews and revokes field-editing leases on top of the
// document store. All arbitration happens inside store.Update, so two
// competing acquires for the same key can never both succeed.
type Manager struct {
	store store.Store
	now   func() time.Time
}

func NewManager(st store.Store) *Manager {
	return &Manager{store: st, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func collection(containerID string) string {
	return "field_locks:" + containerID
}

// Acquire grants a lease on (containerID, fieldOwnerID) to holderID, or
// reports the current holder via AlreadyLockedError. Re-acquiring a lease
// already held by holderID is an idempotent renewal.
func (m *Manager) Acquire(ctx context.Context, containerID, fieldOwnerID, holderID, holderDisplayName string, lease time.Duration) (*models.Lock, error) {
	if lease <= 0 {
		lease = DefaultLease
	}

	var granted models.Lock
	err := m.store.Update(ctx, collection(containerID), fieldOwnerID, func(current []byte) (store.Mutation, error) {
		now := m.now()
		existing := decodeLock(current)

		if existing != nil && !existing.ExpiredAt(now) && existing.HolderID != holderID {
			return store.Mutation{}, &AlreadyLockedError{Holder: existing.HolderDisplayName}
		}

		granted = models.Lock{
			ContainerID:       containerID,
			FieldOwnerID:      fieldOwnerID,
			HolderID:          holderID,
			HolderDisplayName: holderDisplayName,
			AcquiredAt:        now,
			ExpiresAt:         now.Add(lease),
		}
		if existing != nil && !existing.ExpiredAt(now) && existing.HolderID == holderID {
			// Idempotent re-acquire: keep the original acquisition time and
			// never let the renewal move expiry backwards.
			granted.AcquiredAt = existing.AcquiredAt
			granted.ExpiresAt = laterOf(granted.ExpiresAt, existing.ExpiresAt)
		}

		data, err := json.Marshal(&granted)
		if err != nil {
			return store.Mutation{}, err
		}
		return store.Mutation{Data: data}, nil
	})
	if err != nil {
		return nil, err
	}
	return &granted, nil
}

// Renew extends the lease if holderID still holds it. An expired or
// reclaimed lease surfaces as ErrNotHolder so the session fails closed.
func (m *Manager) Renew(ctx context.Context, containerID, fieldOwnerID, holderID string, lease time.Duration) error {
	if lease <= 0 {
		lease = DefaultLease
	}

	return m.store.Update(ctx, collection(containerID), fieldOwnerID, func(current []byte) (store.Mutation, error) {
		now := m.now()
		existing := decodeLock(current)
		if existing == nil || existing.ExpiredAt(now) || existing.HolderID != holderID {
			return store.Mutation{}, ErrNotHolder
		}

		existing.ExpiresAt = laterOf(now.Add(lease), existing.ExpiresAt)
		data, err := json.Marshal(existing)
		if err != nil {
			return store.Mutation{}, err
		}
		return store.Mutation{Data: data}, nil
	})
}

// Release deletes the lease held by holderID. An already-absent (or expired)
// lock is a successful no-op; a live lease held by someone else is
// ErrNotHolder.
func (m *Manager) Release(ctx context.Context, containerID, fieldOwnerID, holderID string) error {
	return m.store.Update(ctx, collection(containerID), fieldOwnerID, func(current []byte) (store.Mutation, error) {
		now := m.now()
		existing := decodeLock(current)
		if existing == nil || existing.ExpiredAt(now) {
			return store.Mutation{}, nil
		}
		if existing.HolderID != holderID {
			return store.Mutation{}, ErrNotHolder
		}
		return store.Mutation{Delete: true}, nil
	})
}

// Active returns the unexpired locks in a container, ordered by field owner.
func (m *Manager) Active(ctx context.Context, containerID string) ([]models.Lock, error) {
	docs, err := m.store.List(ctx, collection(containerID))
	if err != nil {
		return nil, err
	}

	now := m.now()
	active := make([]models.Lock, 0, len(docs))
	for _, data := range docs {
		if l := decodeLock(data); l != nil && !l.ExpiredAt(now) {
			active = append(active, *l)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].FieldOwnerID < active[j].FieldOwnerID
	})
	return active, nil
}

// Watch streams the active-lock snapshot for a container: one snapshot
// immediately, then a fresh one after every lock change, until ctx ends.
// This feeds the "being edited by X" indicators.
func (m *Manager) Watch(ctx context.Context, containerID string) (<-chan []models.Lock, error) {
	events, err := m.store.Watch(ctx, collection(containerID))
	if err != nil {
		return nil, err
	}

	initial, err := m.Active(ctx, containerID)
	if err != nil {
		return nil, err
	}

	snapshots := make(chan []models.Lock, 1)
	snapshots <- initial

	go func() {
		defer close(snapshots)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				snap, err := m.Active(ctx, containerID)
				if err != nil {
					log.Printf("locks: failed to refresh snapshot for %s: %v", containerID, err)
					continue
				}
				select {
				case snapshots <- snap:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return snapshots, nil
}

// SweepStale deletes every expired lock under the container. Safe to call
// redundantly and concurrently: each delete re-checks expiry atomically, so a
// lock renewed since listing survives and a lock already gone stays a no-op.
func (m *Manager) SweepStale(ctx context.Context, containerID string) (int, error) {
	docs, err := m.store.List(ctx, collection(containerID))
	if err != nil {
		return 0, err
	}

	swept := 0
	for id, data := range docs {
		l := decodeLock(data)
		if l != nil && !l.ExpiredAt(m.now()) {
			continue
		}
		deleted := false
		err := m.store.Update(ctx, collection(containerID), id, func(current []byte) (store.Mutation, error) {
			deleted = false
			cur := decodeLock(current)
			if cur == nil {
				return store.Mutation{}, nil
			}
			if !cur.ExpiredAt(m.now()) {
				// Renewed between listing and deletion; leave it.
				return store.Mutation{}, nil
			}
			deleted = true
			return store.Mutation{Delete: true}, nil
		})
		if err != nil {
			return swept, err
		}
		if deleted {
			swept++
		}
	}
	return swept, nil
}

// decodeLock treats corrupt documents as absent; an acquire will overwrite
// them and a sweep will delete them.
func decodeLock(data []byte) *models.Lock {
	if data == nil {
		return nil
	}
	var l models.Lock
	if err := json.Unmarshal(data, &l); err != nil {
		log.Printf("locks: discarding unreadable lock document: %v", err)
		return nil
	}
	return &l
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
