package queue

import (
	"fmt"
	"sync"
	"testing"

	"mqttlog/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string) core.EncodedMessage {
	return core.EncodedMessage{Topic: "t", Payload: []byte(id)}
}

func payloads(msgs []core.EncodedMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Payload)
	}
	return out
}

func TestParsePolicy(t *testing.T) {
	testCases := []struct {
		input       string
		expected    Policy
		expectError bool
	}{
		{"", DropOldest, false},
		{"drop_oldest", DropOldest, false},
		{"DROP_OLDEST", DropOldest, false},
		{"drop_newest", DropNewest, false},
		{"reject", DropOldest, true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%q", tc.input), func(t *testing.T) {
			policy, err := ParsePolicy(tc.input)
			if tc.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, policy)
			}
		})
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0, DropOldest)
	assert.Error(t, err)

	_, err = New(-1, DropOldest)
	assert.Error(t, err)
}

func TestDropOldestScenario(t *testing.T) {
	q, err := New(3, DropOldest)
	require.NoError(t, err)

	// Capacity 3, push A,B,C,D: the head is evicted
	assert.True(t, q.Push(msg("A")))
	assert.True(t, q.Push(msg("B")))
	assert.True(t, q.Push(msg("C")))
	assert.True(t, q.Push(msg("D")))

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"B", "C", "D"}, payloads(q.Drain(10)))
	assert.Equal(t, uint64(1), q.DroppedTotal())
}

func TestDropNewestScenario(t *testing.T) {
	q, err := New(3, DropNewest)
	require.NoError(t, err)

	assert.True(t, q.Push(msg("A")))
	assert.True(t, q.Push(msg("B")))
	assert.True(t, q.Push(msg("C")))

	// Full queue rejects the incoming message
	assert.False(t, q.Push(msg("D")))

	assert.Equal(t, []string{"A", "B", "C"}, payloads(q.Drain(10)))
	assert.Equal(t, uint64(1), q.DroppedTotal())
}

func TestCapacityInvariant(t *testing.T) {
	const capacity = 8
	q, err := New(capacity, DropOldest)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		q.Push(msg(fmt.Sprintf("%d", i)))
		require.LessOrEqual(t, q.Len(), capacity)
	}

	// Only the most recent pushes survive
	assert.Equal(t, []string{
		"992", "993", "994", "995", "996", "997", "998", "999",
	}, payloads(q.Drain(capacity)))
}

func TestDrainFIFOAndBounds(t *testing.T) {
	q, err := New(10, DropOldest)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		q.Push(msg(fmt.Sprintf("%d", i)))
	}

	// Drain caps at the requested count
	assert.Equal(t, []string{"0", "1"}, payloads(q.Drain(2)))

	// Drain returns fewer when the queue holds less
	assert.Equal(t, []string{"2", "3", "4"}, payloads(q.Drain(100)))

	// Empty queue drains nothing, never blocks
	assert.Empty(t, q.Drain(10))
	assert.Empty(t, q.Drain(0))
}

func TestWrapAround(t *testing.T) {
	q, err := New(4, DropOldest)
	require.NoError(t, err)

	// Force head movement, then refill across the buffer boundary
	for i := 0; i < 3; i++ {
		q.Push(msg(fmt.Sprintf("x%d", i)))
	}
	q.Drain(2)

	for i := 0; i < 3; i++ {
		q.Push(msg(fmt.Sprintf("y%d", i)))
	}

	assert.Equal(t, []string{"x2", "y0", "y1", "y2"}, payloads(q.Drain(10)))
}

func TestConcurrentProducers(t *testing.T) {
	const capacity = 64
	q, err := New(capacity, DropOldest)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				q.Push(msg(fmt.Sprintf("%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, capacity, q.Len())
	total := uint64(q.Len()) + q.DroppedTotal()
	assert.Equal(t, uint64(8*500), total)
}
