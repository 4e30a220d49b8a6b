package vehicle

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/parking-sim/clock"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
	"github.com/tsinghua-fib-lab/parking-sim/utils/config"
	"github.com/tsinghua-fib-lab/parking-sim/utils/metrics"
	"github.com/tsinghua-fib-lab/parking-sim/utils/randengine"
)

const testDT = 0.05

// fakeContext 测试用任务上下文
type fakeContext struct {
	clock    *clock.Clock
	topo     *topology.Lot
	rng      *randengine.Engine
	phase    entity.Phase
	events   []entity.Event
	requeued int
}

func newFakeContext(spots, lanes int) *fakeContext {
	return &fakeContext{
		clock: clock.New(config.ControlStep{Total: 0, Interval: testDT}),
		topo:  topology.New(spots, lanes),
		rng:   randengine.New(7),
		phase: entity.PhaseFilling,
	}
}

func (c *fakeContext) Clock() *clock.Clock         { return c.clock }
func (c *fakeContext) Topology() entity.ITopology  { return c.topo }
func (c *fakeContext) Rand() *randengine.Engine    { return c.rng }
func (c *fakeContext) Metrics() *metrics.Collector { return nil }
func (c *fakeContext) Phase() entity.Phase         { return c.phase }
func (c *fakeContext) Emit(e entity.Event)         { c.events = append(c.events, e) }

func (c *fakeContext) RequeueSpawn() bool {
	c.requeued++
	return true
}

func (c *fakeContext) count(t entity.EventType) int {
	n := 0
	for _, e := range c.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// step 按仿真顺序推进一步，返回本步的碰撞数
func step(ctx *fakeContext, m *Manager) int {
	m.Prepare()
	m.Update(testDT)
	n := m.ResolveCollisions(testDT)
	m.Evict()
	ctx.clock.Advance(testDT)
	return n
}

// place 直接放置一辆车并加入管理器
func place(m *Manager, state entity.State, loc entity.Location, pos geometry.Point, speed float64) *Vehicle {
	v := newVehicle(m, m.newID())
	v.State = state
	v.Location = loc
	v.Pos = pos
	v.Speed = speed
	if state.LaneBased() {
		v.CurrentLane = m.topo.LaneAt(pos.Y)
		v.TargetLane = v.CurrentLane
	}
	m.insert(v)
	return v
}
