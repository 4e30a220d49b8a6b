package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
)

// mergeGap 汇入判定阈值（车长倍数与秒）
type mergeGap struct {
	Ahead      float64 // 汇入点前方的空距
	Behind     float64 // 汇入点后方的空距
	BehindTime float64 // 后方来车到达汇入点的最短时间
	Clearance  float64 // 与其他正在汇入或等待汇入车辆的距离
}

var (
	normalMergeGap  = mergeGap{Ahead: 2.5, Behind: 4, BehindTime: 2, Clearance: 3}
	relaxedMergeGap = mergeGap{Ahead: 1.5, Behind: 2, BehindTime: 1, Clearance: 2}
)

// laneClear 检查指定车道在汇入点附近是否满足阈值
func (m *Manager) laneClear(v *Vehicle, lane int, g mergeGap) bool {
	L := m.params.Length
	y := m.topo.LaneY(lane)
	r := math.Max(g.Ahead, g.Behind) * L
	for _, o := range m.neighbors(v.Pos, r+topology.RoadSpeedLimit*g.BehindTime) {
		if o == v || o.Location != entity.OnMainRoad || math.Abs(o.Pos.Y-y) >= LateralWindow {
			continue
		}
		dx := o.Pos.X - v.Pos.X
		if dx >= 0 {
			if dx < g.Ahead*L {
				return false
			}
			continue
		}
		if -dx < g.Behind*L {
			return false
		}
		if o.Speed > 0 && -dx/o.Speed < g.BehindTime {
			return false
		}
	}
	return true
}

// mergeClearance 与正在汇入或排在前面等待汇入的车辆保持距离
// 说明：等待汇入的车辆按等待时间排队（相等时ID小者在前），排在后面的车辆不阻挡前者
func (m *Manager) mergeClearance(v *Vehicle, g mergeGap) bool {
	r := g.Clearance * m.params.Length
	for _, o := range m.neighbors(v.Pos, r) {
		if o == v {
			continue
		}
		if o.State == entity.StateMerging || o.behavior.Has(entity.WaitingToMerge) && mergesBefore(o, v) {
			if geometry.Distance2D(v.Pos, o.Pos) < r {
				return false
			}
		}
	}
	return true
}

// mergesBefore 等待汇入的a是否排在b前面
func mergesBefore(a, b *Vehicle) bool {
	if a.mergeWait != b.mergeWait {
		return a.mergeWait > b.mergeWait
	}
	return a.id < b.id
}

// arbitrateMerge 汇入仲裁
// 功能：为汇入点等待的车辆选择目标车道
// 参数：v-处于AT_MERGE_POINT的车辆
// 返回：目标车道与是否允许汇入
// 算法说明：
// 1. 同时处于MERGING的车辆数达到上限时等待
// 2. 等待未超时：按正常阈值逐条检查车道，选择满足条件的最小序号车道
// 3. 等待超时：汇入轨迹会穿过所有车道，按放宽阈值检查全部车道，全部满足时强制汇入0号车道
func (m *Manager) arbitrateMerge(v *Vehicle) (int, bool) {
	if m.merging >= m.params.MaxConcurrentMerges {
		return entity.NoLane, false
	}
	if v.mergeWait < m.params.MergeTimeout {
		if !m.mergeClearance(v, normalMergeGap) {
			return entity.NoLane, false
		}
		for lane := 0; lane < m.topo.LaneCount(); lane++ {
			if m.laneClear(v, lane, normalMergeGap) {
				return lane, true
			}
		}
		return entity.NoLane, false
	}
	if !m.mergeClearance(v, relaxedMergeGap) {
		return entity.NoLane, false
	}
	for lane := 0; lane < m.topo.LaneCount(); lane++ {
		if !m.laneClear(v, lane, relaxedMergeGap) {
			return entity.NoLane, false
		}
	}
	log.Debugf("vehicle %d forced merge after %.1fs", v.id, v.mergeWait)
	return 0, true
}
