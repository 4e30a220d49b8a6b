package vehicle

import (
	"math"
	"strings"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
)

// exitScene 一辆沿离场路径驶向出口的车辆，当前目标为出口道路起点
func exitScene(t *testing.T, pos geometry.Point) (*fakeContext, *Manager, *Vehicle) {
	t.Helper()
	ctx := newFakeContext(50, 3)
	m := NewManager(ctx, DefaultParams())
	spot := ctx.topo.Spots().Get(0)
	v := place(m, entity.StateDrivingToExit, entity.InLot, pos, 1)
	v.Intent = entity.ExitingLot
	v.Waypoints = ctx.topo.GenerateExitPath(spot)
	v.WaypointIndex = 2
	return ctx, m, v
}

func TestFollowPathAdvancesPastWaypoint(t *testing.T) {
	ctx, m, v := exitScene(t, geometry.Point{})
	lm := ctx.topo.Landmarks()
	// 被推过出口道路起点但尚未切换状态
	v.Pos = geometry.Point{X: lm.ExitX, Y: lm.LotTop - 0.5}
	m.Prepare()

	v.followPath(0.1)
	assert.Equal(t, 3, v.WaypointIndex)
	assert.InDelta(t, lm.LotTop-0.6, v.Pos.Y, 1e-9)
	assert.Less(t, v.travelDir().Y, 0.)
	assert.InDelta(t, -math.Pi/2, v.Heading, 1e-9)
}

func TestNudgePastWaypointKeepsDirection(t *testing.T) {
	ctx, m, v := exitScene(t, geometry.Point{})
	lm := ctx.topo.Landmarks()
	v.State = entity.StateInExitLane
	v.Location = entity.OnExitRoad
	v.Pos = geometry.Point{X: lm.ExitX, Y: lm.LotTop + 0.2}
	other := place(m, entity.StateDrivingToExit, entity.InLot, geometry.Point{X: lm.ExitX, Y: lm.LotTop + 1.2}, 0)
	m.Prepare()

	m.nudge(v, other, 0.5)
	assert.InDelta(t, lm.LotTop-0.3, v.Pos.Y, 1e-9)
	assert.Equal(t, 3, v.WaypointIndex)
	assert.Less(t, v.travelDir().Y, 0.)
}

func TestExitLaneEntryWithKeepRightOffset(t *testing.T) {
	ctx, m, v := exitScene(t, geometry.Point{})
	lm := ctx.topo.Landmarks()
	v.Pos = geometry.Point{X: lm.ExitX + KeepRightOffset, Y: lm.LotTop - 0.5}
	v.offset = KeepRightOffset
	require.True(t, ctx.topo.IsWithinPavedArea(v.Pos.X, v.Pos.Y))

	step(ctx, m)
	assert.Equal(t, entity.StateInExitLane, v.State)
	assert.Equal(t, entity.OnExitRoad, v.Location)
	assert.Zero(t, v.offset)
	assert.Equal(t, MergeIDM, v.model())

	// 出口道路范围之外不切换
	_, _, w := exitScene(t, geometry.Point{X: lm.ExitX + topology.RampHalfWidth + 1, Y: lm.LotTop - 0.5})
	w.transition(testDT)
	assert.Equal(t, entity.StateDrivingToExit, w.State)
}

func TestOffsetReturnsToCentreline(t *testing.T) {
	ctx := newFakeContext(50, 3)
	m := NewManager(ctx, DefaultParams())
	y := ctx.topo.AisleY(0)
	v := place(m, entity.StateNavigatingToSpot, entity.InLot, geometry.Point{X: 300, Y: y + 0.03}, 2)
	v.Waypoints = []geometry.Point{{X: 240, Y: y}, {X: 400, Y: y}}
	v.WaypointIndex = 1
	v.offset = 0.03
	m.Prepare()

	v.updateOffset(testDT)
	assert.Equal(t, 0., v.offset)
	assert.Equal(t, y, v.Pos.Y)
}

func TestSteerTargetStaysPaved(t *testing.T) {
	ctx := newFakeContext(50, 3)
	m := NewManager(ctx, DefaultParams())
	// 最后一条通道外侧贴近停车场下边界的路段
	edge := ctx.topo.AisleY(0) + topology.LotMargin
	v := place(m, entity.StateNavigatingToSpot, entity.InLot, geometry.Point{X: 300, Y: edge - 0.5}, 2)
	v.Waypoints = []geometry.Point{{X: 200, Y: edge - 0.5}, {X: 400, Y: edge - 0.5}}
	v.WaypointIndex = 1
	v.offset = KeepRightOffset

	tgt := v.steerTarget()
	assert.True(t, ctx.topo.IsWithinPavedArea(tgt.X, tgt.Y))
	assert.Equal(t, geometry.Point{X: 400, Y: edge}, tgt)

	m.Prepare()
	v.step = 2
	v.followPath(v.step)
	assert.True(t, ctx.topo.IsWithinPavedArea(v.Pos.X, v.Pos.Y))
}

func TestOffPavementWarnsOncePerEpisode(t *testing.T) {
	hook := test.NewLocal(log.Logger)
	defer hook.Reset()
	warnings := func() int {
		n := 0
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "off pavement") {
				n++
			}
		}
		return n
	}

	ctx := newFakeContext(50, 3)
	m := NewManager(ctx, DefaultParams())
	outside := geometry.Point{X: 300, Y: ctx.topo.AisleY(0) + topology.LotMargin + 3}
	v := place(m, entity.StateNavigatingToSpot, entity.InLot, outside, 1)
	require.False(t, ctx.topo.IsWithinPavedArea(v.Pos.X, v.Pos.Y))

	for i := 0; i < 5; i++ {
		v.move(testDT)
	}
	assert.Equal(t, 1, warnings())
	assert.Less(t, v.Pos.Y, outside.Y)

	// 回到路面后再次离开重新告警
	v.Pos = geometry.Point{X: 300, Y: ctx.topo.AisleY(0)}
	v.move(testDT)
	v.Pos = outside
	v.move(testDT)
	v.move(testDT)
	assert.Equal(t, 2, warnings())
}
