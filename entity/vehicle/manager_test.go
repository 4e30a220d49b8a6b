package vehicle

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
)

func TestSpawnReservesSpot(t *testing.T) {
	ctx := newFakeContext(1, 3)
	m := NewManager(ctx, DefaultParams())

	v, err := m.SpawnSeeking()
	require.NoError(t, err)
	require.NotNil(t, v.Spot)
	assert.Equal(t, v.Handle(), v.Spot.Owner)
	assert.False(t, v.Spot.Occupied)
	assert.Equal(t, entity.StateApproaching, v.State)
	assert.Equal(t, 1, v.WaypointIndex)
	assert.Equal(t, 1, ctx.count(entity.EventSpawn))

	_, err = m.SpawnSeeking()
	assert.ErrorIs(t, err, ErrNoFreeSpot)

	got, err := m.Get(v.ID())
	require.NoError(t, err)
	assert.Same(t, v, got)
	_, err = m.Get(999)
	assert.Error(t, err)
}

func TestSpawnBlocked(t *testing.T) {
	ctx := newFakeContext(10, 2)
	m := NewManager(ctx, DefaultParams())
	for i := 0; i < 2; i++ {
		_, err := m.SpawnPassThrough()
		require.NoError(t, err)
	}
	assert.False(t, m.SpawnPointClear(0))
	assert.False(t, m.SpawnPointClear(1))
	_, err := m.SpawnSeeking()
	assert.ErrorIs(t, err, ErrSpawnBlocked)
	_, err = m.SpawnPassThrough()
	assert.ErrorIs(t, err, ErrSpawnBlocked)
	// 生成失败不预约车位
	assert.Len(t, ctx.topo.Spots().FreeSpots(), 10)
}

func TestSpawnPointBlocksOwnLaneOnly(t *testing.T) {
	ctx := newFakeContext(10, 3)
	m := NewManager(ctx, DefaultParams())
	x := ctx.topo.Landmarks().RoadStartX
	place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: x + 2*m.params.Length - 0.5, Y: ctx.topo.LaneY(1)}, 10)
	assert.True(t, m.SpawnPointClear(0))
	assert.False(t, m.SpawnPointClear(1))
	assert.True(t, m.SpawnPointClear(2))

	// 驶出2倍车长后不再阻挡
	place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: x + 2*m.params.Length + 0.5, Y: ctx.topo.LaneY(2)}, 10)
	assert.True(t, m.SpawnPointClear(2))
	for i := 0; i < 3; i++ {
		v, err := m.SpawnPassThrough()
		if i < 2 {
			require.NoError(t, err)
			assert.NotEqual(t, 1, v.CurrentLane)
		} else {
			assert.ErrorIs(t, err, ErrSpawnBlocked)
		}
	}
}

func TestSpawnedVehicleWaitsOneTick(t *testing.T) {
	ctx := newFakeContext(10, 2)
	m := NewManager(ctx, DefaultParams())
	m.Prepare()
	v, err := m.SpawnPassThrough()
	require.NoError(t, err)
	m.Update(testDT)
	assert.Equal(t, 0., v.Pos.X)

	m.Prepare()
	m.Update(testDT)
	assert.Greater(t, v.Pos.X, 0.)
}

func TestUniqueSpotsUnderConcurrentSpawns(t *testing.T) {
	ctx := newFakeContext(30, 3)
	m := NewManager(ctx, DefaultParams())
	seen := map[int32]bool{}
	for i := 0; i < 400 && len(seen) < 30; i++ {
		v, err := m.SpawnSeeking()
		if err == nil {
			assert.False(t, seen[v.SpotID], "spot %d assigned twice", v.SpotID)
			seen[v.SpotID] = true
		}
		step(ctx, m)
	}
	for _, s := range ctx.topo.Spots().All() {
		if s.Owner.Valid() {
			owner, ok := m.vehicles.Get(s.Owner)
			require.True(t, ok)
			assert.Equal(t, s.ID, owner.SpotID)
		}
	}
}

func TestLifecycle(t *testing.T) {
	ctx := newFakeContext(1, 1)
	m := NewManager(ctx, DefaultParams())
	v, err := m.SpawnSeeking()
	require.NoError(t, err)
	spot := v.Spot

	states := map[entity.State]bool{}
	for i := 0; i < 20000 && v.State != entity.StateParked; i++ {
		step(ctx, m)
		states[v.State] = true
	}
	require.Equal(t, entity.StateParked, v.State)
	assert.True(t, states[entity.StateEntering])
	assert.True(t, states[entity.StateNavigatingToSpot])
	assert.True(t, spot.Occupied)
	assert.Equal(t, spot.Position, v.Pos)
	assert.Equal(t, entity.InSpot, v.Location)
	assert.Equal(t, 1, ctx.count(entity.EventParked))

	require.True(t, v.BeginExit())
	assert.False(t, v.BeginExit())
	assert.True(t, spot.Free())
	assert.True(t, v.Behavior().Has(entity.Reversing))

	for i := 0; i < 20000 && ctx.count(entity.EventExited) == 0; i++ {
		step(ctx, m)
		states[v.State] = true
	}
	require.Equal(t, entity.StateExited, v.State)
	for _, s := range []entity.State{
		entity.StateExitingSpot, entity.StateDrivingToExit, entity.StateInExitLane,
		entity.StateAtMergePoint, entity.StateMerging, entity.StateOnRoad,
	} {
		assert.True(t, states[s], "never reached %v", s)
	}
	assert.Greater(t, v.ExitDuration(), 0.)
	assert.False(t, v.MissedTurn())
	// 下一步Prepare后从集合中移除
	step(ctx, m)
	assert.Equal(t, 0, m.vehicles.Len())
}

func TestMissedTurn(t *testing.T) {
	ctx := newFakeContext(5, 3)
	m := NewManager(ctx, DefaultParams())
	v, err := m.SpawnSeeking()
	require.NoError(t, err)
	spot := v.Spot
	// 停在非转弯车道且已驶过入口
	v.Pos = geometry.Point{X: ctx.topo.Landmarks().EntryX + MissedTurnOvershoot + 1, Y: ctx.topo.LaneY(2)}
	v.CurrentLane = 2
	step(ctx, m)
	assert.Equal(t, entity.StateExited, v.State)
	assert.True(t, v.MissedTurn())
	assert.True(t, spot.Free())
	assert.Nil(t, v.Spot)
	assert.Equal(t, 1, ctx.requeued)
	require.Equal(t, 1, ctx.count(entity.EventExited))
	for _, e := range ctx.events {
		if e.Type == entity.EventExited {
			assert.True(t, e.MissedTurn)
			assert.Equal(t, spot.ID, e.SpotID)
		}
	}
}

func TestHeadOnInAisle(t *testing.T) {
	ctx := newFakeContext(50, 3)
	m := NewManager(ctx, DefaultParams())
	y := ctx.topo.AisleY(0)
	a := place(m, entity.StateNavigatingToSpot, entity.InLot, geometry.Point{X: 240, Y: y}, 2)
	a.Waypoints = []geometry.Point{{X: 240, Y: y}, {X: 400, Y: y}, {X: 450, Y: y}}
	a.WaypointIndex = 1
	b := place(m, entity.StateNavigatingToSpot, entity.InLot, geometry.Point{X: 280, Y: y}, 2)
	b.Waypoints = []geometry.Point{{X: 280, Y: y}, {X: 170, Y: y}, {X: 165, Y: y}}
	b.WaypointIndex = 1

	yielded := false
	collisions := 0
	for i := 0; i < int(15/testDT); i++ {
		collisions += step(ctx, m)
		yielded = yielded || b.Behavior().Has(entity.Yielding)
		assert.False(t, a.Behavior().Has(entity.Yielding))
		assert.Greater(t, a.Speed, 0.)
	}
	assert.True(t, yielded)
	assert.Zero(t, collisions)
	assert.Greater(t, a.Pos.X, b.Pos.X+5)
	// 会车后回到通道中心线
	assert.InDelta(t, y, a.Pos.Y, 1e-6)
	assert.InDelta(t, y, b.Pos.Y, 1e-6)
}

func TestFindLeader(t *testing.T) {
	ctx := newFakeContext(10, 3)
	m := NewManager(ctx, DefaultParams())
	y := ctx.topo.LaneY(1)
	v := place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 100, Y: y}, 10)
	lead := place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 120, Y: y}, 8)
	place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 110, Y: ctx.topo.LaneY(0)}, 8)
	place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 90, Y: y}, 8)
	m.Prepare()

	li := v.findLeader()
	assert.Same(t, lead, li.leader)
	assert.InDelta(t, 20-m.params.Length, li.gap, 1e-9)
	assert.Equal(t, 8., li.speed)

	li = lead.findLeader()
	assert.Nil(t, li.leader)
	assert.Equal(t, mathutil.INF, li.gap)
}

func TestOverlapCreeps(t *testing.T) {
	ctx := newFakeContext(10, 3)
	m := NewManager(ctx, DefaultParams())
	y := ctx.topo.LaneY(1)
	v := place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 100, Y: y}, 0)
	place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 103, Y: y}, 0)
	m.Prepare()
	v.computeSpeed(testDT)
	// 间距为负时不锁死
	assert.InDelta(t, m.params.Creep.Base*m.params.Creep.Overlap, v.Speed, 1e-9)
}

func TestReset(t *testing.T) {
	ctx := newFakeContext(10, 3)
	m := NewManager(ctx, DefaultParams())
	_, err := m.SpawnSeeking()
	require.NoError(t, err)
	step(ctx, m)
	m.Reset()
	ctx.topo.Spots().Reset()
	assert.Empty(t, m.Vehicles())
	v, err := m.SpawnSeeking()
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.ID())
}
