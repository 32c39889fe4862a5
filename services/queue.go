package services

import (
	"sync"
	"time"
)

const DefaultMatchTimeout = 30 * time.Second

type queueEntry struct {
	playerID   string
	enqueuedAt time.Time
	timer      *time.Timer
}

// MatchQueue holds players waiting for an opponent in arrival order. Every entry
// owns an expiry timer; expiry and removal by pairing or cancellation are
// serialized on the queue lock, so exactly one of them takes effect.
type MatchQueue struct {
	mu       sync.Mutex
	entries  map[string]*queueEntry
	order    []*queueEntry
	timeout  time.Duration
	onExpire func(playerID string)
}

// NewMatchQueue creates a queue whose entries expire after timeout. onExpire runs
// with the queue lock held; it must not block or call back into the queue.
func NewMatchQueue(timeout time.Duration, onExpire func(playerID string)) *MatchQueue {
	if timeout <= 0 {
		timeout = DefaultMatchTimeout
	}
	return &MatchQueue{
		entries:  make(map[string]*queueEntry),
		timeout:  timeout,
		onExpire: onExpire,
	}
}

func (q *MatchQueue) Enqueue(playerID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[playerID]; exists {
		return ErrAlreadyQueued
	}

	entry := &queueEntry{playerID: playerID, enqueuedAt: time.Now()}
	entry.timer = time.AfterFunc(q.timeout, func() { q.expire(entry) })

	q.entries[playerID] = entry
	q.order = append(q.order, entry)
	return nil
}

// DequeueAny removes and returns the longest-waiting player other than excluding.
func (q *MatchQueue) DequeueAny(excluding string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, entry := range q.order {
		if entry.playerID == excluding {
			continue
		}
		q.removeLocked(entry)
		return entry.playerID, nil
	}
	return "", ErrNoOpponent
}

// Cancel drops the player's entry, reporting whether one existed.
func (q *MatchQueue) Cancel(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[playerID]
	if !ok {
		return false
	}
	q.removeLocked(entry)
	return true
}

func (q *MatchQueue) Contains(playerID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.entries[playerID]
	return ok
}

func (q *MatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.order)
}

// Waiting lists queued player IDs, oldest first.
func (q *MatchQueue) Waiting() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(q.order))
	for _, entry := range q.order {
		ids = append(ids, entry.playerID)
	}
	return ids
}

func (q *MatchQueue) expire(entry *queueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// The entry may have been paired, cancelled or replaced while the timer fired.
	if current, ok := q.entries[entry.playerID]; !ok || current != entry {
		return
	}
	q.removeLocked(entry)

	if q.onExpire != nil {
		q.onExpire(entry.playerID)
	}
}

func (q *MatchQueue) removeLocked(entry *queueEntry) {
	entry.timer.Stop()
	delete(q.entries, entry.playerID)
	for i, e := range q.order {
		if e == entry {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}
