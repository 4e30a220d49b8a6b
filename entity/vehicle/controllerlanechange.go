package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
)

// MOBIL参数
const (
	Politeness        = 0.3 // 礼让系数
	ChangeThreshold   = 0.2 // 变道收益阈值（米/秒²）
	SafeDecel         = 4.  // 新后车允许的最大减速度bsafe
	TurnLaneBias      = 1.  // 驶向转弯车道的方向偏置
	leadGapPerSpeed   = 0.6 // 新前车间距随本车速度增加的系数
	followGapPerSpeed = 1.5 // 新后车间距随接近速度增加的系数

	DesperationDistance  = 40. // 距入口小于该值时允许强制变道
	DesperationSpeed     = 5.  // 强制变道后的速度上限
	DesperationGapFactor = 1.2 // 强制变道要求的最小前后间距（车长倍数）

	discretionaryCooldown = 4. // 自由变道冷却时间下限
	cooldownJitter        = 2. // 自由变道冷却时间随机部分
)

// laneEnv 目标车道上的前后车
type laneEnv struct {
	lead, follow         *Vehicle
	leadGap, followGap   float64
	leadSpeed, followSpd float64
}

// laneEnvAt 查找本车在指定车道上的前后车
// 说明：车道归属按y坐标判定，变道中的车辆可能同时属于两条车道
func (v *Vehicle) laneEnvAt(lane int) laneEnv {
	env := laneEnv{leadGap: mathutil.INF, followGap: mathutil.INF}
	y := v.m.topo.LaneY(lane)
	edge := v.m.landmarks.RoadEdgeY
	L := v.m.params.Length
	for _, o := range v.m.neighbors(v.Pos, LookAhead) {
		if o == v || o.State == entity.StateExited {
			continue
		}
		onRoad := o.Location == entity.OnMainRoad || (o.Location == entity.OnEntryRoad && o.Pos.Y <= edge)
		if !onRoad || math.Abs(o.Pos.Y-y) >= LateralWindow {
			continue
		}
		dx := o.Pos.X - v.Pos.X
		if dx >= 0 {
			if g := dx - L; g < env.leadGap {
				env.lead, env.leadGap, env.leadSpeed = o, g, o.Speed
			}
		} else {
			if g := -dx - L; g < env.followGap {
				env.follow, env.followGap, env.followSpd = o, g, o.Speed
			}
		}
	}
	return env
}

// FollowerDecel 变道后新后车的IDM加速度
func FollowerDecel(vFollow, v0, gap, vLead float64) float64 {
	return OpenRoadIDM.Accel(vFollow, v0, gap, vLead)
}

// LaneChangeSafe MOBIL安全条件
// 功能：判断在给定紧迫系数下变道是否安全
// 参数：urgency-紧迫系数（[0.15, 1]，越小要求的间距越小），v-本车速度，leadGap/followGap-与新前车/新后车的净间距，vFollow-新后车速度
// 算法说明：
// 1. 与新前车的间距不小于 urgency*(s0 + 0.6*v)
// 2. 与新后车的间距不小于 urgency*(s0 + 1.5*max(0, vFollow-v))
// 3. 新后车变道后的减速度不超过SafeDecel
func LaneChangeSafe(urgency, v, leadGap, followGap, vFollow float64) bool {
	s0 := OpenRoadIDM.S0
	if leadGap < urgency*(s0+leadGapPerSpeed*v) {
		return false
	}
	if followGap < urgency*(s0+followGapPerSpeed*math.Max(0, vFollow-v)) {
		return false
	}
	return FollowerDecel(vFollow, topology.RoadSpeedLimit, followGap, v) >= -SafeDecel
}

// incentive MOBIL收益
// 返回：Δa_self + politeness*(Δa_newFollower + Δa_oldFollower) + bias
func (v *Vehicle) incentive(cur, tgt laneEnv, bias float64) float64 {
	m := OpenRoadIDM
	v0 := v.desiredSpeed()
	vr := topology.RoadSpeedLimit
	L := v.m.params.Length
	self := m.Accel(v.Speed, v0, tgt.leadGap, tgt.leadSpeed) - m.Accel(v.Speed, v0, cur.leadGap, cur.leadSpeed)

	newFollower := 0.
	if tgt.follow != nil {
		before := mathutil.INF
		if tgt.lead != nil {
			before = tgt.lead.Pos.X - tgt.follow.Pos.X - L
		}
		newFollower = m.Accel(tgt.followSpd, vr, tgt.followGap, v.Speed) - m.Accel(tgt.followSpd, vr, before, tgt.leadSpeed)
	}
	oldFollower := 0.
	if cur.follow != nil {
		after := mathutil.INF
		if cur.lead != nil {
			after = cur.lead.Pos.X - cur.follow.Pos.X - L
		}
		oldFollower = m.Accel(cur.followSpd, vr, after, cur.leadSpeed) - m.Accel(cur.followSpd, vr, cur.followGap, v.Speed)
	}
	return self + Politeness*(newFollower+oldFollower) + bias
}

// planTurnLane 驶向入口的车辆向0号车道变道
// 算法说明：
// 1. 按到入口的距离计算紧迫系数u
// 2. u<1时为强制变道，只检查（缩放后的）安全条件
// 3. 强制变道的安全条件不满足且距入口小于DesperationDistance时，只要前后间距都不小于1.2倍车长就强行变道并限速
// 4. u=1时按MOBIL收益判断，带向转弯车道的方向偏置
func (v *Vehicle) planTurnLane() {
	if v.CurrentLane <= 0 {
		return
	}
	d := v.m.landmarks.EntryX - v.Pos.X
	u := UrgencyFactor(d)
	target := v.CurrentLane - 1
	tgt := v.laneEnvAt(target)
	safe := LaneChangeSafe(u, v.Speed, tgt.leadGap, tgt.followGap, tgt.followSpd)
	if u < 1 {
		if !safe && d < DesperationDistance {
			minGap := DesperationGapFactor * v.m.params.Length
			if tgt.leadGap >= minGap && tgt.followGap >= minGap {
				log.Debugf("vehicle %d forces lane change to %d at %.1f before entry", v.id, target, d)
				v.speedCap = DesperationSpeed
				safe = true
			}
		}
		if safe {
			v.startLaneChange(target)
		}
		return
	}
	if safe && v.incentive(v.laneEnvAt(v.CurrentLane), tgt, TurnLaneBias) > ChangeThreshold {
		v.startLaneChange(target)
	}
}

// planDiscretionary 主路车辆的自由变道
func (v *Vehicle) planDiscretionary() {
	ctx := v.m.ctx
	if ctx.Clock().T < v.lcCooldownUntil || v.CurrentLane == entity.NoLane {
		return
	}
	cur := v.laneEnvAt(v.CurrentLane)
	best, bestGain := entity.NoLane, ChangeThreshold
	for _, dir := range []int{entity.RIGHT, entity.LEFT} {
		lane := v.CurrentLane + dir
		if lane < 0 || lane >= v.m.topo.LaneCount() {
			continue
		}
		tgt := v.laneEnvAt(lane)
		if !LaneChangeSafe(1, v.Speed, tgt.leadGap, tgt.followGap, tgt.followSpd) {
			continue
		}
		if gain := v.incentive(cur, tgt, 0); gain > bestGain {
			best, bestGain = lane, gain
		}
	}
	if best != entity.NoLane {
		v.startLaneChange(best)
		v.lcCooldownUntil = ctx.Clock().T + discretionaryCooldown + ctx.Rand().Uniform(0, cooldownJitter)
	}
}

func (v *Vehicle) startLaneChange(lane int) {
	v.addBehavior(entity.ChangingLane)
	v.TargetLane = lane
	v.LaneChangeProgress = 0
	v.LaneChangeDir = entity.LEFT
	if lane < v.CurrentLane {
		v.LaneChangeDir = entity.RIGHT
	}
	v.lcFromY = v.Pos.Y
}

// easeInOut 平滑插值曲线
func easeInOut(p float64) float64 {
	return p * p * (3 - 2*p)
}

// blendY 在两个y坐标间插值
func blendY(from, to, k float64) float64 {
	return geometry.Blend(geometry.Point{Y: from}, geometry.Point{Y: to}, k).Y
}

// updateLaneChange 变道与汇入的横向运动，以及新变道的决策
func (v *Vehicle) updateLaneChange(dt float64) {
	p := v.m.params
	switch {
	case v.State == entity.StateMerging:
		v.LaneChangeProgress = math.Min(1, v.LaneChangeProgress+dt/p.MergeDuration)
		v.Pos.Y = blendY(v.lcFromY, v.m.topo.LaneY(v.TargetLane), easeInOut(v.LaneChangeProgress))
	case v.behavior.Has(entity.ChangingLane):
		v.LaneChangeProgress += dt / p.LaneChangeDuration
		if v.LaneChangeProgress >= 1 {
			v.finishLaneChange()
			return
		}
		v.Pos.Y = blendY(v.lcFromY, v.m.topo.LaneY(v.TargetLane), easeInOut(v.LaneChangeProgress))
	case v.State == entity.StateApproaching:
		v.planTurnLane()
	case v.State == entity.StateOnRoad:
		v.planDiscretionary()
	}
}

// finishLaneChange 变道完成：吸附到车道中心线并清理变道状态
func (v *Vehicle) finishLaneChange() {
	v.Pos.Y = v.m.topo.LaneY(v.TargetLane)
	v.CurrentLane = v.TargetLane
	v.LaneChangeProgress = 0
	v.LaneChangeDir = 0
	v.lcFromY = 0
	v.speedCap = 0
	v.clearBehavior(entity.ChangingLane)
}
