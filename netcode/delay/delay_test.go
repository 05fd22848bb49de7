package delay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePreservesFIFOOrderUnderVaryingDelay(t *testing.T) {
	q := NewQueue[int]()
	now := time.Now()

	q.Enqueue(now, 50, 1)
	q.Enqueue(now.Add(10*time.Millisecond), 5, 2) // would be "earlier" on its own, but must not overtake 1

	drained := q.Drain(now.Add(200 * time.Millisecond))
	require.Equal(t, []int{1, 2}, drained)
}

func TestQueueDrainOnlyReturnsDueItems(t *testing.T) {
	q := NewQueue[int]()
	now := time.Now()
	q.Enqueue(now, 100, 1)

	require.Empty(t, q.Drain(now))
	require.Equal(t, 1, q.Len())

	drained := q.Drain(now.Add(150 * time.Millisecond))
	require.Equal(t, []int{1}, drained)
	require.Equal(t, 0, q.Len())
}

func TestEnqueueImmediateBypassesDelay(t *testing.T) {
	q := NewQueue[int]()
	now := time.Now()
	q.Enqueue(now, 500, 1)
	q.EnqueueImmediate(now, 2)

	drained := q.Drain(now)
	require.Equal(t, []int{2}, drained)
}

func TestResetClearsSchedulingState(t *testing.T) {
	q := NewQueue[int]()
	now := time.Now()
	q.Enqueue(now, 1000, 1)
	q.Reset()

	require.Equal(t, 0, q.Len())

	q.Enqueue(now, 0, 2)
	require.Equal(t, []int{2}, q.Drain(now))
}

func TestScalarSetGet(t *testing.T) {
	var s Scalar
	require.Equal(t, uint32(0), s.Get())
	s.Set(42)
	require.Equal(t, uint32(42), s.Get())
}
