package parking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/parking-sim/entity/parking"
	"github.com/tsinghua-fib-lab/parking-sim/utils/container"
)

func newTable(n int) *parking.Table {
	spots := make([]*parking.Spot, n)
	for i := range spots {
		spots[i] = &parking.Spot{ID: int32(i)}
	}
	return parking.NewTable(spots)
}

func TestReserveConfirmRelease(t *testing.T) {
	tb := newTable(3)
	owner := container.Handle{Index: 0, Gen: 1}
	s := tb.Get(1)
	tb.Reserve(s, owner)
	assert.False(t, s.Free())
	assert.Len(t, tb.FreeSpots(), 2)

	tb.Confirm(s, owner)
	assert.True(t, s.Occupied)
	assert.Equal(t, 1, tb.OccupiedCount())

	other := container.Handle{Index: 1, Gen: 1}
	assert.False(t, tb.Release(s, other))
	assert.True(t, s.Occupied)
	assert.True(t, tb.Release(s, owner))
	assert.True(t, s.Free())
}

func TestDoubleReservePanics(t *testing.T) {
	tb := newTable(1)
	s := tb.Get(0)
	tb.Reserve(s, container.Handle{Index: 0, Gen: 1})
	assert.Panics(t, func() {
		tb.Reserve(s, container.Handle{Index: 1, Gen: 1})
	})
}

func TestGetOutOfRange(t *testing.T) {
	tb := newTable(2)
	assert.Nil(t, tb.Get(-1))
	assert.Nil(t, tb.Get(2))
}

func TestReset(t *testing.T) {
	tb := newTable(2)
	h := container.Handle{Index: 3, Gen: 2}
	tb.Reserve(tb.Get(0), h)
	tb.Confirm(tb.Get(0), h)
	tb.Reset()
	assert.Len(t, tb.FreeSpots(), 2)
	assert.Equal(t, 0, tb.OccupiedCount())
}
