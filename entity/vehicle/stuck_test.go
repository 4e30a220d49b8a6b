package vehicle

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
)

func TestOverlapFollowerClimbsStuckLadder(t *testing.T) {
	ctx := newFakeContext(10, 1)
	m := NewManager(ctx, DefaultParams())
	y := ctx.topo.LaneY(0)
	stall := geometry.Point{X: 100, Y: y}
	lead := place(m, entity.StateOnRoad, entity.OnMainRoad, stall, 0)
	v := place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 97, Y: y}, 0)

	last := 0.
	for i := 0; i < int(12/testDT); i++ {
		step(ctx, m)
		lead.Pos, lead.Speed = stall, 0
		// 重叠时的兜底爬行不清零卡滞计时
		require.GreaterOrEqual(t, v.WaitTime, last, "tick %d", i)
		last = v.WaitTime
		assert.Less(t, geometry.Distance2D(v.Pos, lead.Pos), m.params.Length)
	}
	assert.InDelta(t, m.params.Creep.Base*m.params.Creep.Overlap, v.naturalSpeed, 1e-9)
	assert.True(t, v.blocked)
	assert.GreaterOrEqual(t, v.WaitTime, StuckCreepLow)
	assert.Less(t, v.WaitTime, StuckAdvance)
	assert.Equal(t, 1, ctx.count(entity.EventStuck))
	// 前方紧邻车辆时不授权额外爬行
	assert.Zero(t, v.creep)
}

func TestFreeVehicleResetsStuck(t *testing.T) {
	ctx := newFakeContext(10, 1)
	m := NewManager(ctx, DefaultParams())
	v := place(m, entity.StateOnRoad, entity.OnMainRoad, geometry.Point{X: 100, Y: ctx.topo.LaneY(0)}, 10)
	v.WaitTime = StuckCreepLow + 1
	v.creep = 0.3
	step(ctx, m)
	assert.False(t, v.blocked)
	assert.Zero(t, v.WaitTime)
	assert.Zero(t, v.creep)
}
