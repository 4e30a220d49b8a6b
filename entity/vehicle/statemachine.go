package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
)

// mergeArrival 到达汇入点的判定容差
const mergeArrival = 0.05

// transition 状态转移
// 说明：每步最多前进一个状态，转移条件为几何接近或越过拓扑边界
func (v *Vehicle) transition(dt float64) {
	lm := v.m.landmarks
	switch v.State {
	case entity.StateApproaching:
		if v.Pos.X > lm.EntryX+MissedTurnOvershoot {
			v.missTurn()
			return
		}
		if v.CurrentLane == 0 && !v.behavior.Has(entity.ChangingLane) &&
			v.Pos.X >= lm.EntryX-EntryWindowBefore && v.Pos.X <= lm.EntryX+EntryWindowAfter {
			v.State = entity.StateEntering
			v.Location = entity.OnEntryRoad
			v.Pos.X, v.Pos.Y = lm.EntryX, v.m.topo.LaneY(0)
			v.Heading = math.Pi / 2
			v.WaypointIndex = min(2, len(v.Waypoints)-1)
			v.CurrentLane = entity.NoLane
			v.speedCap = 0
		}
	case entity.StateEntering:
		if v.Pos.Y >= lm.LotTop {
			v.State = entity.StateNavigatingToSpot
			v.Location = entity.InLot
		}
	case entity.StateNavigatingToSpot:
		if v.WaypointIndex >= len(v.Waypoints)-1 {
			v.State = entity.StateParking
		}
	case entity.StateParking:
		if v.Spot != nil && geometry.Distance2D(v.Pos, v.Spot.Position) < ParkSnapDistance {
			v.park()
		}
	case entity.StateExitingSpot:
		if v.WaypointIndex >= 1 || geometry.Distance2D(v.Pos, v.Waypoints[0]) < ExitAisleDistance {
			v.State = entity.StateDrivingToExit
			v.Location = entity.InLot
			v.clearBehavior(entity.Reversing)
			v.WaypointIndex = max(v.WaypointIndex, 1)
		}
	case entity.StateDrivingToExit:
		// 越过停车场上边界进入出口道路范围即可，会车偏移下车辆不在出口中心线上
		if v.Pos.Y <= lm.LotTop && math.Abs(v.Pos.X-lm.ExitX) <= topology.RampHalfWidth {
			v.State = entity.StateInExitLane
			v.Location = entity.OnExitRoad
			v.offset = 0
		}
	case entity.StateInExitLane:
		if v.Pos.Y <= lm.MergeY+mergeArrival {
			v.State = entity.StateAtMergePoint
			v.addBehavior(entity.WaitingToMerge)
			v.mergeWait = 0
			v.resetStuck()
		}
	case entity.StateAtMergePoint:
		v.mergeWait += dt
		if lane, ok := v.m.arbitrateMerge(v); ok {
			v.State = entity.StateMerging
			v.Location = entity.OnMainRoad
			v.clearBehavior(entity.WaitingToMerge)
			v.addBehavior(entity.Merging)
			v.TargetLane = lane
			v.LaneChangeProgress = 0
			v.LaneChangeDir = entity.RIGHT
			v.lcFromY = v.Pos.Y
			v.Heading = 0
			v.m.merging++
			log.Debugf("vehicle %d merges into lane %d after %.1fs", v.id, lane, v.mergeWait)
		}
	case entity.StateMerging:
		if v.LaneChangeProgress >= 1 {
			v.State = entity.StateOnRoad
			v.Pos.Y = v.m.topo.LaneY(v.TargetLane)
			v.CurrentLane = v.TargetLane
			v.LaneChangeProgress = 0
			v.LaneChangeDir = 0
			v.clearBehavior(entity.Merging)
			v.m.merging--
		}
	case entity.StateOnRoad:
		if v.Pos.X >= lm.RoadEndX {
			v.exit()
		}
	}
}

// park 停稳：吸附到车位中心并确认占用
func (v *Vehicle) park() {
	ctx := v.m.ctx
	v.Pos = v.Spot.Position
	v.Speed, v.Acc, v.TargetSpeed = 0, 0, 0
	v.State = entity.StateParked
	v.Location = entity.InSpot
	v.Intent = entity.Parked
	v.SetBehavior(0)
	v.ParkTime = ctx.Clock().T
	v.offset = 0
	v.resetStuck()
	v.m.topo.Spots().Confirm(v.Spot, v.handle)
	v.m.emit(v, entity.EventParked)
}

// exit 驶离仿真范围
func (v *Vehicle) exit() {
	ctx := v.m.ctx
	v.State = entity.StateExited
	v.Location = entity.LocationExited
	v.SetBehavior(0)
	v.ExitCompleteTime = ctx.Clock().T
	if d := v.ExitDuration(); d >= 0 {
		ctx.Metrics().ObserveExit(d)
	}
	v.m.emit(v, entity.EventExited)
}

// missTurn 错过入口：释放车位，申请补发名额，强制离开
func (v *Vehicle) missTurn() {
	log.Infof("vehicle %d missed the turn at x=%.1f in lane %d", v.id, v.Pos.X, v.CurrentLane)
	v.missedTurn = true
	v.releaseSpot()
	v.m.ctx.Metrics().IncMissedTurns()
	if !v.m.ctx.RequeueSpawn() {
		log.Debugf("vehicle %d: replacement spawn not granted", v.id)
	}
	v.exit()
}

func (v *Vehicle) releaseSpot() {
	if v.Spot == nil {
		return
	}
	v.m.topo.Spots().Release(v.Spot, v.handle)
	v.Spot = nil
}

// BeginExit 已停放车辆开始离场
// 返回：车辆不处于PARKED时返回false
func (v *Vehicle) BeginExit() bool {
	if v.State != entity.StateParked || v.Spot == nil {
		return false
	}
	ctx := v.m.ctx
	v.Waypoints = v.m.topo.GenerateExitPath(v.Spot)
	v.WaypointIndex = 0
	v.releaseSpot()
	v.State = entity.StateExitingSpot
	v.Intent = entity.ExitingLot
	v.SetBehavior(entity.Reversing)
	v.ExitStartTime = ctx.Clock().T
	v.resetStuck()
	return true
}
