// Package store is the document-store adapter the consistency layer writes
// through. Documents are opaque JSON blobs addressed by (collection, id);
// Update gives callers an atomic read-modify-write so lock arbitration never
// has a read-then-write race window.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get for an absent document.
	ErrNotFound = errors.New("store: document not found")

	// ErrUnavailable wraps connectivity failures after retries are exhausted.
	ErrUnavailable = errors.New("store: unavailable")
)

type EventType string

const (
	EventPut    EventType = "put"
	EventDelete EventType = "delete"
)

// Event is one change notification delivered by Watch.
type Event struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Data       []byte    `json:"data,omitempty"`
}

// Mutation is the outcome an UpdateFunc asks for. Zero value means
// "leave the document alone".
type Mutation struct {
	Data   []byte
	Delete bool
}

// UpdateFunc receives the current document contents (nil if absent) and
// decides the mutation. Any error returned aborts the update and is
// propagated unchanged to the Update caller.
type UpdateFunc func(current []byte) (Mutation, error)

// Store is the minimal document-store surface the core components need:
// per-document read, write, atomic read-modify-write, delete, collection
// listing and a change subscription.
type Store interface {
	Get(ctx context.Context, collection, id string) ([]byte, error)
	Put(ctx context.Context, collection, id string, data []byte) error
	Update(ctx context.Context, collection, id string, fn UpdateFunc) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) (map[string][]byte, error)

	// Watch delivers an Event for every change to the collection until ctx
	// is cancelled. The channel is closed on cancellation.
	Watch(ctx context.Context, collection string) (<-chan Event, error)
}
