// Package notify keeps the short-lived toasts a device shows. It never touches the room.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

type Notification struct {
	ID        string
	Message   string
	Kind      Kind
	ExpiresAt time.Time
}

const (
	DefaultCapacity = 5
	DefaultTTL      = 3 * time.Second
)

type Queue struct {
	mu    sync.Mutex
	items []Notification
	cap   int
	ttl   time.Duration
	now   func() time.Time
}

func NewQueue(capacity int, ttl time.Duration, now func() time.Time) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Queue{cap: capacity, ttl: ttl, now: now}
}

// Push adds a toast, evicting the oldest when full.
func (q *Queue) Push(message string, kind Kind) Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Kind:      kind,
		ExpiresAt: q.now().Add(q.ttl),
	}
	q.prune()
	if len(q.items) == q.cap {
		q.items = q.items[1:]
	}
	q.items = append(q.items, n)
	return n
}

// Active returns the unexpired toasts, oldest first.
func (q *Queue) Active() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prune()
	return append([]Notification(nil), q.items...)
}

func (q *Queue) prune() {
	now := q.now()
	kept := q.items[:0]
	for _, n := range q.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	q.items = kept
}
