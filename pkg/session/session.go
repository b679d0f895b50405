// Package session provides editing sessions for the preview server and the
// terminal panel.
//
// A [Session] owns one [controller.Controller] together with the live HTML
// surface it renders into, so the preview page can show exactly what the
// controller last produced. Sessions expire after a period without activity.
//
// Storage backends implement [Store]:
//   - [MemoryStore]: live sessions of a running server
//   - [FileStore]: saved [State] snapshots, so the terminal panel can resume
//     where it left off
//
// # Usage
//
//	store := session.NewMemoryStore()
//	sess := session.New(session.DefaultTTL, controller.WithDelay(300*time.Millisecond))
//	store.Set(ctx, sess)
//
//	events, cancel := sess.Subscribe()
//	defer cancel()
//	sess.Controller().Set("steps", 40)
//	snap := <-events // delivered after the debounce delay
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/fractalglass/pkg/controller"
	"github.com/matzehuels/fractalglass/pkg/sink"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when a session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrExpired is returned when a session has exceeded its TTL.
	ErrExpired = errors.New("expired")
)

// Default durations.
const (
	// DefaultTTL is how long an idle session lives.
	DefaultTTL = 30 * time.Minute

	// DefaultCleanupInterval is how often expired sessions are reaped.
	DefaultCleanupInterval = time.Minute
)

// subscriberBuffer is the number of undelivered render events kept per
// subscriber. Older events are dropped for slow readers.
const subscriberBuffer = 4

// Session is one editing session: settings, selected image and the live
// preview they render to.
type Session struct {
	ID        string
	CreatedAt time.Time

	ttl        time.Duration
	surface    *sink.HTML
	controller *controller.Controller

	mu        sync.Mutex
	expiresAt time.Time
	subs      map[int]chan controller.Snapshot
	nextSub   int
	closed    bool
}

// New creates a session with a fresh ID. opts configure its controller;
// an OnRender option may be included and runs before subscribers are
// notified.
func New(ttl time.Duration, opts ...controller.Option) *Session {
	return NewWithSurface(ttl, sink.NewHTML(), opts...)
}

// NewWithSurface is New with a preconfigured preview surface. Its filter id
// must match the id of the engine passed in opts.
func NewWithSurface(ttl time.Duration, surface *sink.HTML, opts ...controller.Option) *Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	s := &Session{
		ID:        GenerateID(),
		CreatedAt: now,
		ttl:       ttl,
		expiresAt: now.Add(ttl),
		surface:   surface,
		subs:      make(map[int]chan controller.Snapshot),
	}
	opts = append(opts, controller.OnRender(s.publish))
	s.controller = controller.New(s.surface, opts...)
	return s
}

// GenerateID creates a random session ID.
func GenerateID() string {
	return uuid.NewString()
}

// Controller returns the session's controller.
func (s *Session) Controller() *controller.Controller {
	return s.controller
}

// Preview returns the HTML fragment of the most recent render.
func (s *Session) Preview() []byte {
	return s.surface.Bytes()
}

// Touch extends the session's lifetime by its TTL from now.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = time.Now().Add(s.ttl)
}

// ExpiresAt returns when the session expires unless touched.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt())
}

// Subscribe returns a channel that receives a snapshot after every render,
// and a function that unsubscribes. The channel is closed on unsubscribe
// or when the session closes.
func (s *Session) Subscribe() (<-chan controller.Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan controller.Snapshot, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (s *Session) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Close stops the controller and ends all subscriptions.
func (s *Session) Close() {
	s.controller.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Session) publish(snap controller.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest so the reader sees the latest render.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Store is the interface for live session storage.
type Store interface {
	// Get retrieves a session by ID.
	// Returns nil, ErrNotFound if the session doesn't exist.
	// Returns nil, ErrExpired if the session exists but has expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Set stores a session.
	Set(ctx context.Context, sess *Session) error

	// Delete closes and removes a session.
	Delete(ctx context.Context, id string) error

	// Cleanup closes and removes expired sessions and reports how many.
	Cleanup(ctx context.Context) (int, error)

	// Close closes every session.
	Close() error
}

// StartCleanup reaps expired sessions from store every interval until ctx
// is done. onReap, if not nil, is called with the count of each non-empty
// sweep.
func StartCleanup(ctx context.Context, store Store, interval time.Duration, onReap func(int)) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.Cleanup(ctx)
				if err == nil && n > 0 && onReap != nil {
					onReap(n)
				}
			}
		}
	}()
}
