package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/parking-sim/utils/container"
)

func TestPriorityQueueOrder(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	q.HeapPush("c", 3)
	q.HeapPush("a", 1)
	q.HeapPush("b", 2)
	assert.Equal(t, 3, q.Len())
	v, p := q.First()
	assert.Equal(t, "a", v)
	assert.Equal(t, 1.0, p)
	v, _ = q.HeapPop()
	assert.Equal(t, "a", v)
	v, _ = q.HeapPop()
	assert.Equal(t, "b", v)
}

func TestPriorityQueueStableTies(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	for i := 0; i < 5; i++ {
		q.Push(i, 0)
	}
	q.Heapify()
	for i := 0; i < 5; i++ {
		v, _ := q.HeapPop()
		assert.Equal(t, i, v)
	}
	assert.True(t, q.Empty())
}

func TestPriorityQueuePopUntil(t *testing.T) {
	q := container.NewPriorityQueue[int]()
	for i := 0; i < 6; i++ {
		q.HeapPush(i, float64(i))
	}
	assert.Equal(t, []int{0, 1}, q.PopUntil(1.5, 0))
	assert.Equal(t, []int{2}, q.PopUntil(10, 1))
	assert.Equal(t, 3, q.Len())
	q.Clear()
	assert.True(t, q.Empty())
}
