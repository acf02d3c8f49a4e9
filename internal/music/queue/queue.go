// Package queue holds the bounded FIFO of pending tracks for one guild.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/keshon/rbot/internal/music/sources"
)

const DefaultCapacity = 10

var (
	ErrQueueFull = errors.New("queue is full")
	ErrTimedOut  = errors.New("timed out waiting for a track")
)

// Item is a queued request. Media is set when the request was already
// resolved at enqueue time; the player re-resolves it anyway.
type Item struct {
	Request sources.Request
	Media   *sources.Media
}

// Title is the best display name available before playback.
func (i Item) Title() string {
	if i.Media != nil && i.Media.Title != "" {
		return i.Media.Title
	}
	return i.Request.Query
}

// Queue is safe for many producers and a single consumer.
type Queue struct {
	mu    sync.Mutex
	items []Item
	cap   int
	ready chan struct{}
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		items: make([]Item, 0, capacity),
		cap:   capacity,
		ready: make(chan struct{}, 1),
	}
}

// Enqueue appends item or fails with ErrQueueFull, leaving the queue as is.
func (q *Queue) Enqueue(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.cap {
		return ErrQueueFull
	}
	q.items = append(q.items, item)
	q.signal()
	return nil
}

// TryDequeue pops the head without blocking.
func (q *Queue) TryDequeue() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return item, true
}

// Ready fires when an item may be available. Wake-ups can be spurious, so
// callers follow up with TryDequeue.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Dequeue blocks until an item arrives, timeout elapses (ErrTimedOut) or ctx
// is done. A non-positive timeout waits forever.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Item, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		if item, ok := q.TryDequeue(); ok {
			return item, nil
		}
		select {
		case <-q.ready:
		case <-deadline:
			return Item{}, ErrTimedOut
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

// Peek copies up to n items from the head.
func (q *Queue) Peek(n int) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Item, n)
	copy(out, q.items[:n])
	return out
}

func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) Cap() int {
	return q.cap
}

// Clear drops every pending item and reports how many were dropped.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.items)
	q.items = make([]Item, 0, q.cap)
	return n
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
