package topology_test

import (
	"math"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
	"github.com/tsinghua-fib-lab/parking-sim/utils/container"
	"github.com/tsinghua-fib-lab/parking-sim/utils/randengine"
)

func TestLanes(t *testing.T) {
	lot := topology.New(50, 3)
	assert.InDelta(t, 8.75, lot.LaneY(0), 1e-9)
	assert.InDelta(t, 1.75, lot.LaneY(2), 1e-9)
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, lot.LaneAt(lot.LaneY(i)))
	}
	assert.Equal(t, entity.NoLane, lot.LaneAt(20))
}

func TestSpotsUnique(t *testing.T) {
	lot := topology.New(400, 3)
	spots := lot.Spots().All()
	require.Len(t, spots, 400)
	seen := map[[2]float64]bool{}
	for _, s := range spots {
		key := [2]float64{s.Position.X, s.Position.Y}
		assert.False(t, seen[key], "duplicate spot position %v", key)
		seen[key] = true
		assert.True(t, lot.IsWithinPavedArea(s.Position.X, s.Position.Y))
	}
}

func TestPavedAreaOnCenterlines(t *testing.T) {
	lot := topology.New(200, 3)
	m := lot.Landmarks()
	for x := m.RoadStartX; x <= m.RoadEndX; x += 5 {
		for lane := 0; lane < lot.LaneCount(); lane++ {
			assert.True(t, lot.IsWithinPavedArea(x, lot.LaneY(lane)))
		}
	}
	for y := m.RoadEdgeY; y <= m.LotTop; y += 0.5 {
		assert.True(t, lot.IsWithinPavedArea(m.EntryX, y))
		assert.True(t, lot.IsWithinPavedArea(m.ExitX, y))
	}
	for _, s := range lot.Spots().All() {
		for _, p := range append(lot.GenerateEntryPath(s, 2), lot.GenerateExitPath(s)...) {
			assert.True(t, lot.IsWithinPavedArea(p.X, p.Y), "waypoint %v", p)
		}
	}
	assert.False(t, lot.IsWithinPavedArea(-1000, -1000))
	assert.False(t, lot.IsWithinPavedArea(100, 25))
}

func TestNearestPavedPoint(t *testing.T) {
	lot := topology.New(50, 3)
	in := geometry.Point{X: 100, Y: 5}
	assert.Equal(t, in, lot.NearestPavedPoint(in))
	out := lot.NearestPavedPoint(geometry.Point{X: 100, Y: 14})
	assert.True(t, lot.IsWithinPavedArea(out.X, out.Y))
	assert.InDelta(t, lot.Landmarks().RoadEdgeY, out.Y, 1e-9)
}

func TestSpeedLimit(t *testing.T) {
	lot := topology.New(50, 3)
	m := lot.Landmarks()
	assert.Equal(t, topology.RoadSpeedLimit, lot.SpeedLimitAt(geometry.Point{X: 50, Y: lot.LaneY(1)}))
	assert.Equal(t, topology.RampSpeedLimit, lot.SpeedLimitAt(geometry.Point{X: m.EntryX, Y: m.RoadEdgeY + 5}))
	assert.Equal(t, topology.LotSpeedLimit, lot.SpeedLimitAt(geometry.Point{X: 300, Y: lot.AisleY(0)}))
}

func TestFindRandomSpot(t *testing.T) {
	lot := topology.New(2, 1)
	rng := randengine.New(1)
	s := lot.FindRandomSpot(rng)
	require.NotNil(t, s)
	lot.Spots().Reserve(s, container.Handle{Index: 0, Gen: 1})
	s2 := lot.FindRandomSpot(rng)
	require.NotNil(t, s2)
	assert.NotEqual(t, s.ID, s2.ID)
	lot.Spots().Reserve(s2, container.Handle{Index: 1, Gen: 1})
	assert.Nil(t, lot.FindRandomSpot(rng))
}

func TestAngleHelpers(t *testing.T) {
	assert.InDelta(t, -math.Pi/2, topology.NormalizeAngle(3*math.Pi/2), 1e-9)
	assert.InDelta(t, math.Pi, topology.NormalizeAngle(-math.Pi), 1e-9)
	assert.InDelta(t, math.Pi, topology.HeadingDelta(0, math.Pi), 1e-9)
	assert.InDelta(t, 3*math.Pi/2, topology.HeadingDelta(0, math.Pi/2), 1e-9)
}
