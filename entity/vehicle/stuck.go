package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
)

// 卡滞恢复的时间阶梯（秒）
const (
	StuckSpeed    = 0.1 // 低于该速度视为停滞
	StuckNotice   = 5.  // [5, 10)预留，不做处理
	StuckCreepLow = 10. // [10, 15)低速爬行
	StuckCreepHi  = 15. // [15, 20)较高速爬行
	StuckAdvance  = 20. // 不小于20秒时跳到下一个路径点

	dangerGapFactor  = 0.6 // 前方车辆净间距小于该倍数车长时不爬行
	clusterGapFactor = 3.  // 卡滞车辆簇的范围（车长倍数）
)

// checkStuck 卡滞恢复
// 功能：按连续低速时长逐级干预，保证最终能继续前进
// 算法说明：
// 1. 累计时间达到StuckAdvance：无条件跳到下一个路径点并清零
// 2. 已停放、已离开与等待汇入的车辆不处理
// 3. 自然速度不低于StuckSpeed且不是受阻时的兜底爬行时清零；重叠、紧急区与比例油门下限的爬行仍持续计时
// 4. [10, 15)与[15, 20)分别给予较低与较高的爬行速度，只授予附近卡滞车辆中优先级最高且前方没有紧邻车辆的一辆
func (v *Vehicle) checkStuck(dt float64) {
	if v.WaitTime >= StuckAdvance {
		if v.WaypointIndex < len(v.Waypoints)-1 {
			v.WaypointIndex++
		}
		log.Infof("vehicle %d stuck for %.1fs in %v, skip to waypoint %d", v.id, v.WaitTime, v.State, v.WaypointIndex)
		v.resetStuck()
		return
	}
	switch v.State {
	case entity.StateParked, entity.StateExited, entity.StateAtMergePoint:
		return
	}
	if !v.blocked && v.naturalSpeed >= StuckSpeed {
		v.resetStuck()
		return
	}
	v.WaitTime += dt
	switch {
	case v.WaitTime >= StuckCreepHi:
		v.creep = 0
		if v.mayCreep() {
			v.creep = v.m.params.Creep.Base * v.m.params.Creep.StuckHigh
		}
	case v.WaitTime >= StuckCreepLow:
		if !v.stuckReported {
			v.stuckReported = true
			v.m.emit(v, entity.EventStuck)
		}
		v.creep = 0
		if v.mayCreep() {
			v.creep = v.m.params.Creep.Base * v.m.params.Creep.StuckLow
		}
	default:
		v.creep = 0
	}
}

func (v *Vehicle) resetStuck() {
	v.WaitTime = 0
	v.creep = 0
	v.stuckReported = false
}

// mayCreep 爬行授权
// 说明：前方紧邻车辆（净间距小于0.6倍车长）时不授权；附近卡滞车辆中存在更高优先级者时不授权
func (v *Vehicle) mayCreep() bool {
	L := v.m.params.Length
	dir := v.travelDir()
	for _, o := range v.m.neighbors(v.Pos, clusterGapFactor*L) {
		if o == v || o.State == entity.StateExited || !v.Location.Related(o.Location) {
			continue
		}
		rel := o.Pos.Sub(v.Pos)
		if rel.Dot2D(dir) > 0 && math.Abs(dir.Cross2D(rel)) < LateralWindow && geometry.Distance2D(v.Pos, o.Pos)-L < dangerGapFactor*L {
			return false
		}
		if o.State != entity.StateParked && o.WaitTime >= StuckCreepLow && outranks(o, v, false) {
			return false
		}
	}
	return true
}
