package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
)

// ResolveCollisions 碰撞检测与处理
// 功能：检测重叠的车辆对，令优先级低的一方紧急制动，并沿道路轴向小幅分离
// 参数：dt-时间步长
// 返回：本步检测到的重叠车辆对数
// 算法说明：
// 1. 对每辆车查询2倍车长范围内的邻车，只处理ID更大的一方，保证每对只处理一次
// 2. 只检查区域相关的车辆对，中心距小于(车长+车宽)/2视为重叠
// 3. 一方已停放时只有运动方制动，并承担全部分离量
// 4. 否则比较离场优先级（对向相遇时叠加等待加成），低优先级方制动；双方各分离一半
func (m *Manager) ResolveCollisions(dt float64) int {
	overlapDist := m.params.OverlapDistance()
	count := 0
	for _, a := range m.vehicles.Data() {
		if a.State == entity.StateExited {
			continue
		}
		for _, b := range m.neighbors(a.Pos, 2*m.params.Length) {
			if b.id <= a.id || b.State == entity.StateExited {
				continue
			}
			if a.State == entity.StateParked && b.State == entity.StateParked {
				continue
			}
			if !a.Location.Related(b.Location) {
				continue
			}
			d := geometry.Distance2D(a.Pos, b.Pos)
			if d >= overlapDist {
				continue
			}
			count++
			m.resolvePair(a, b, overlapDist-d, dt)
		}
	}
	if count > 0 {
		log.Debugf("%d overlapping pairs at t=%.2f", count, m.ctx.Clock().T)
	}
	return count
}

func (m *Manager) resolvePair(a, b *Vehicle, overlap, dt float64) {
	nudge := overlap * m.params.NudgeRatio
	switch {
	case a.State == entity.StateParked:
		m.brake(b, dt)
		m.nudge(b, a, nudge)
		return
	case b.State == entity.StateParked:
		m.brake(a, dt)
		m.nudge(a, b, nudge)
		return
	}
	headOn := IsHeadOn(a.Pos, a.motionHeading(), b.Pos, b.motionHeading())
	loser := b
	if !outranks(a, b, headOn) {
		loser = a
	}
	m.brake(loser, dt)
	if headOn {
		loser.addBehavior(entity.Yielding)
	}
	m.nudge(a, b, nudge/2)
	m.nudge(b, a, nudge/2)
}

// brake 紧急制动，每步最多一次
func (m *Manager) brake(v *Vehicle, dt float64) {
	if v.brakeTick == m.tick {
		return
	}
	v.brakeTick = m.tick
	v.Speed = math.Max(0, v.Speed-m.params.EmergencyDecel*dt)
}

// nudge 将v沿远离other的方向移动dist，方向受道路轴向约束
// 说明：主路只允许纵向，出入口道路只允许沿道路方向，停车场内不限；分离后离开路面则放弃
func (m *Manager) nudge(v, other *Vehicle, dist float64) {
	if v.State == entity.StateParked || dist <= 0 {
		return
	}
	u := v.Pos.Sub(other.Pos)
	if u.Length2D() < 1e-9 {
		// 完全重合时按ID决定方向
		u = geometry.Point{X: 1}
		if v.id < other.id {
			u.X = -1
		}
	}
	u = u.Unit()
	switch v.Location {
	case entity.OnMainRoad:
		u.Y = 0
	case entity.OnEntryRoad, entity.OnExitRoad:
		u.X = 0
	}
	if u.X == 0 && u.Y == 0 {
		return
	}
	next := v.Pos.Add(u.Scale(dist))
	if !m.topo.IsWithinPavedArea(next.X, next.Y) {
		return
	}
	v.Pos = next
	v.skipPassedWaypoints()
}
