package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
)

func TestBehaviorValid(t *testing.T) {
	assert.True(t, entity.Behavior(0).Valid())
	assert.True(t, (entity.Reversing | entity.Yielding).Valid())
	assert.True(t, (entity.ChangingLane | entity.Yielding).Valid())
	assert.False(t, (entity.ChangingLane | entity.Merging).Valid())
	assert.False(t, (entity.Merging | entity.WaitingToMerge).Valid())
	assert.False(t, (entity.Reversing | entity.ChangingLane).Valid())
	assert.False(t, entity.Behavior(0x80).Valid())
}

func TestBehaviorString(t *testing.T) {
	assert.Equal(t, "NONE", entity.Behavior(0).String())
	assert.Equal(t, "REVERSING|YIELDING", (entity.Reversing | entity.Yielding).String())
}

func TestLocationRelated(t *testing.T) {
	assert.True(t, entity.OnMainRoad.Related(entity.OnMainRoad))
	assert.True(t, entity.OnExitRoad.Related(entity.OnMainRoad))
	assert.True(t, entity.InLot.Related(entity.OnEntryRoad))
	assert.True(t, entity.InSpot.Related(entity.InLot))
	assert.False(t, entity.OnMainRoad.Related(entity.InLot))
	assert.False(t, entity.LocationExited.Related(entity.LocationExited))
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "AT_MERGE_POINT", entity.StateAtMergePoint.String())
	assert.Equal(t, "EXITED", entity.StateExited.String())
	assert.Equal(t, "IN_SPOT", entity.InSpot.String())
	assert.Equal(t, "PASSING_THROUGH", entity.PassingThrough.String())
	assert.Equal(t, "EXODUS", entity.PhaseExodus.String())
	assert.Equal(t, "STUCK", entity.EventStuck.String())
	assert.True(t, entity.StateMerging.LaneBased())
	assert.False(t, entity.StateParking.LaneBased())
}
