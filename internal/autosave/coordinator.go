// Package autosave coalesces rapid local edits to a field into a single
// delayed write, gated by lock ownership. A session never writes without
// re-verifying its lease, and a lost lease kills the session (fail closed)
// instead of letting a stale edit through.
package autosave

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Jsunwilke/employeeapp-sub001/internal/locks"
)

// FieldKey addresses one collaboratively edited field.
type FieldKey struct {
	ContainerID  string `json:"container_id"`
	FieldOwnerID string `json:"field_owner_id"`
	Field        string `json:"field"`
}

// Saver persists a field value once the debounce settles.
type Saver interface {
	SaveField(ctx context.Context, key FieldKey, value string) error
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, key FieldKey, value string) error

func (f SaverFunc) SaveField(ctx context.Context, key FieldKey, value string) error {
	return f(ctx, key, value)
}

// LostEdit is the out-of-band signal raised when a pending edit had to be
// suppressed because the session's lease was gone at write time.
type LostEdit struct {
	Key      FieldKey
	HolderID string
	Value    string
	Reason   error
}

var (
	// ErrNoSession is returned for edits against a field with no open session.
	ErrNoSession = errors.New("autosave: no session for field")

	// ErrSessionClosed is returned once a session has failed closed; the
	// caller must re-acquire the lease and begin a new session.
	ErrSessionClosed = errors.New("autosave: session closed after lost lease")

	// ErrSessionExists is returned when beginning a session that is already open.
	ErrSessionExists = errors.New("autosave: session already open for field")
)

// DefaultDelay is the trailing-edge debounce delay.
const DefaultDelay = 500 * time.Millisecond

// Coordinator owns one autosave session per field key. Writes for a given
// key are strictly ordered: a timer fire waits for the prior write to settle,
// and at most one write leaves per debounce window.
type Coordinator struct {
	locks *locks.Manager
	saver Saver
	delay time.Duration
	lease time.Duration

	mu       sync.Mutex
	sessions map[FieldKey]*session

	lost chan LostEdit
}

type session struct {
	key      FieldKey
	holderID string

	mu         sync.Mutex
	timer      *time.Timer
	pending    string
	hasPending bool
	lastSaved  string
	closed     bool

	// writeMu serializes flushes so two writes for the same key are never
	// in flight concurrently.
	writeMu sync.Mutex
}

func NewCoordinator(lockMgr *locks.Manager, saver Saver, delay, lease time.Duration) *Coordinator {
	if delay <= 0 {
		delay = DefaultDelay
	}
	if lease <= 0 {
		lease = locks.DefaultLease
	}
	return &Coordinator{
		locks:    lockMgr,
		saver:    saver,
		delay:    delay,
		lease:    lease,
		sessions: make(map[FieldKey]*session),
		lost:     make(chan LostEdit, 16),
	}
}

// LostEdits delivers suppressed writes. Callers surface these to the user
// instead of silently dropping their input.
func (c *Coordinator) LostEdits() <-chan LostEdit {
	return c.lost
}

// Begin opens an autosave session for the field. The holder must already
// have the lease; Begin re-verifies it by renewing, so a session can never
// open without a live lease behind it.
func (c *Coordinator) Begin(ctx context.Context, key FieldKey, holderID, initialValue string) error {
	if err := c.locks.Renew(ctx, key.ContainerID, key.FieldOwnerID, holderID, c.lease); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[key]; ok {
		return ErrSessionExists
	}
	c.sessions[key] = &session{
		key:       key,
		holderID:  holderID,
		lastSaved: initialValue,
	}
	return nil
}

// Change records a local edit. Equal-to-persisted values cancel any pending
// write; anything else restarts the trailing-edge debounce timer, so only the
// last value of a burst is ever persisted. Only the session's holder may edit;
// anyone else is rejected with locks.ErrNotHolder.
func (c *Coordinator) Change(key FieldKey, holderID, value string) error {
	c.mu.Lock()
	s, ok := c.sessions[key]
	c.mu.Unlock()
	if !ok {
		return ErrNoSession
	}
	if s.holderID != holderID {
		return locks.ErrNotHolder
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	if value == s.lastSaved {
		s.hasPending = false
		s.stopTimerLocked()
		return nil
	}

	s.pending = value
	s.hasPending = true
	s.stopTimerLocked()
	s.timer = time.AfterFunc(c.delay, func() {
		if err := c.flush(context.Background(), s); err != nil {
			log.Printf("autosave: flush for %v failed: %v", s.key, err)
		}
	})
	return nil
}

// End flushes any pending write synchronously, releases the lease and
// discards the session. The flush error is reported but the lease is
// released regardless, so navigating away never strands a lock. Only the
// session's holder may end it.
func (c *Coordinator) End(ctx context.Context, key FieldKey, holderID string) error {
	c.mu.Lock()
	s, ok := c.sessions[key]
	if ok && s.holderID != holderID {
		c.mu.Unlock()
		return locks.ErrNotHolder
	}
	if ok {
		delete(c.sessions, key)
	}
	c.mu.Unlock()
	if !ok {
		return ErrNoSession
	}

	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()

	flushErr := c.flush(ctx, s)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err := c.locks.Release(ctx, key.ContainerID, key.FieldOwnerID, s.holderID); err != nil {
		log.Printf("autosave: releasing lease for %v failed: %v", key, err)
	}
	if flushErr != nil && !errors.Is(flushErr, locks.ErrNotHolder) {
		return flushErr
	}
	return nil
}

// flush persists the pending value, re-verifying the lease first. Any
// failure closes the session and raises a LostEdit rather than retrying with
// a lease of unknown state.
func (c *Coordinator) flush(ctx context.Context, s *session) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed || !s.hasPending {
		s.mu.Unlock()
		return nil
	}
	value := s.pending
	s.mu.Unlock()

	if err := c.locks.Renew(ctx, s.key.ContainerID, s.key.FieldOwnerID, s.holderID, c.lease); err != nil {
		c.failClosed(s, value, err)
		return err
	}

	if err := c.saver.SaveField(ctx, s.key, value); err != nil {
		c.failClosed(s, value, err)
		return err
	}

	s.mu.Lock()
	s.lastSaved = value
	if s.pending == value {
		s.hasPending = false
	}
	s.mu.Unlock()
	return nil
}

func (c *Coordinator) failClosed(s *session, value string, reason error) {
	s.mu.Lock()
	s.closed = true
	s.hasPending = false
	s.stopTimerLocked()
	s.mu.Unlock()

	c.mu.Lock()
	if c.sessions[s.key] == s {
		delete(c.sessions, s.key)
	}
	c.mu.Unlock()

	edit := LostEdit{Key: s.key, HolderID: s.holderID, Value: value, Reason: reason}
	select {
	case c.lost <- edit:
	default:
		log.Printf("autosave: lost-edit channel full, dropping signal for %v", s.key)
	}
}

func (s *session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
