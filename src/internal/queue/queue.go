package queue

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"mqttlog/src/internal/core"
)

// Policy controls what happens when a message is pushed into a full queue.
type Policy uint8

const (
	// DropOldest evicts the head to make room; Push always succeeds.
	// Default: log delivery favors recency over completeness.
	DropOldest Policy = iota

	// DropNewest rejects the incoming message; Push returns false.
	DropNewest
)

// ParsePolicy converts a config policy name to a Policy. The empty string
// selects the default.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "drop_oldest":
		return DropOldest, nil
	case "drop_newest":
		return DropNewest, nil
	default:
		return DropOldest, fmt.Errorf("unknown overflow policy: %q", s)
	}
}

func (p Policy) String() string {
	switch p {
	case DropOldest:
		return "drop_oldest"
	case DropNewest:
		return "drop_newest"
	default:
		return "unknown"
	}
}

// Queue is a capacity-bounded FIFO holding encoded messages awaiting
// transmission. Push never blocks; overflow is resolved by the configured
// policy and surfaced only through counters. Safe for concurrent producers
// with a single draining consumer.
type Queue struct {
	mu       sync.Mutex
	buf      []core.EncodedMessage
	head     int
	count    int
	capacity int
	policy   Policy

	// Statistics
	evicted  atomic.Uint64 // head drops under DropOldest
	rejected atomic.Uint64 // push rejections under DropNewest
}

// New creates a queue with fixed capacity.
func New(capacity int, policy Policy) (*Queue, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("queue capacity must be positive: %d", capacity)
	}
	return &Queue{
		buf:      make([]core.EncodedMessage, capacity),
		capacity: capacity,
		policy:   policy,
	}, nil
}

// Push appends a message. Returns false only when the queue is full and the
// policy is DropNewest.
func (q *Queue) Push(msg core.EncodedMessage) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == q.capacity {
		if q.policy == DropNewest {
			q.rejected.Add(1)
			return false
		}
		// Evict head
		q.buf[q.head] = core.EncodedMessage{}
		q.head = (q.head + 1) % q.capacity
		q.count--
		q.evicted.Add(1)
	}

	q.buf[(q.head+q.count)%q.capacity] = msg
	q.count++
	return true
}

// Drain removes and returns up to max messages in FIFO order. Never blocks;
// returns fewer (or none) when the queue holds less.
func (q *Queue) Drain(max int) []core.EncodedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	if max <= 0 || q.count == 0 {
		return nil
	}

	n := max
	if n > q.count {
		n = q.count
	}

	out := make([]core.EncodedMessage, n)
	for i := 0; i < n; i++ {
		out[i] = q.buf[q.head]
		q.buf[q.head] = core.EncodedMessage{}
		q.head = (q.head + 1) % q.capacity
	}
	q.count -= n
	return out
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Capacity returns the fixed capacity.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Policy returns the overflow policy.
func (q *Queue) Policy() Policy {
	return q.policy
}

// GetStats returns queue statistics.
func (q *Queue) GetStats() map[string]any {
	return map[string]any{
		"length":   q.Len(),
		"capacity": q.capacity,
		"policy":   q.policy.String(),
		"evicted":  q.evicted.Load(),
		"rejected": q.rejected.Load(),
	}
}

// DroppedTotal returns the total messages lost to overflow.
func (q *Queue) DroppedTotal() uint64 {
	return q.evicted.Load() + q.rejected.Load()
}
