package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
)

const (
	approachSlowdown = 0.35 // 驶近入口时每米距离允许增加的速度
	minLaneUrgency   = 0.3  // 非转弯车道上的最低速度比例
	lotBaseSpeed     = 1.5  // 场内行驶的基础速度
	lotSpeedPerMeter = 0.5  // 场内距目标点每米增加的速度
	exitLaneBase     = 0.5  // 出口道路的基础速度
)

// mergeCreepFloor 等待汇入时最多爬行到主路边缘外该距离处，之后沿加速区向前爬行
const mergeCreepFloor = 2.

type leaderInfo struct {
	leader *Vehicle
	gap    float64
	speed  float64
}

// findLeader 查找前车
// 功能：在运动方向上查找最近的前车，处理对向相遇时的让行
// 返回：前车、净间距、前车速度（让行时视为0）；无前车时间距为mathutil.INF
// 算法说明：
// 1. 用空间网格查询LookAhead范围内的车辆，跳过已停放、已离开和区域无关的车辆
// 2. 将相对位置投影到运动方向上，纵向距离为正且横向偏移小于LateralWindow的视为前方车辆
// 3. 对向相遇时比较优先级（含等待加成）：
//   - 优先者忽略对方，除非间距已小于静止间距
//   - 让行者标记YIELDING，并把对方当作静止的前车
func (v *Vehicle) findLeader() leaderInfo {
	info := leaderInfo{gap: mathutil.INF}
	dir := v.travelDir()
	heading := dir.Angle2D()
	s0 := v.model().S0
	L := v.m.params.Length
	for _, o := range v.m.neighbors(v.Pos, LookAhead) {
		if o == v || o.State == entity.StateParked || o.State == entity.StateExited {
			continue
		}
		if !v.Location.Related(o.Location) {
			continue
		}
		rel := o.Pos.Sub(v.Pos)
		long := rel.Dot2D(dir)
		if long <= 0 {
			continue
		}
		if lat := math.Abs(dir.Cross2D(rel)); lat >= LateralWindow {
			continue
		}
		gap := long - L
		speed := o.Speed
		if IsHeadOn(v.Pos, heading, o.Pos, o.motionHeading()) {
			if outranks(v, o, true) {
				if gap >= s0 {
					continue
				}
			} else {
				v.addBehavior(entity.Yielding)
				speed = 0
			}
		}
		if gap < info.gap {
			info = leaderInfo{leader: o, gap: gap, speed: speed}
		}
	}
	return info
}

// model 按状态选择IDM参数
func (v *Vehicle) model() IDM {
	switch v.State {
	case entity.StateApproaching, entity.StateOnRoad:
		return OpenRoadIDM
	case entity.StateInExitLane, entity.StateAtMergePoint, entity.StateMerging:
		return MergeIDM
	default:
		return LotIDM
	}
}

// desiredSpeed 期望速度v0
func (v *Vehicle) desiredSpeed() float64 {
	topo := v.m.topo
	limit := topo.SpeedLimitAt(v.Pos)
	lm := v.m.landmarks
	switch v.State {
	case entity.StateApproaching:
		d := lm.EntryX - v.Pos.X
		v0 := math.Min(limit, topology.RampSpeedLimit+approachSlowdown*math.Max(d, 0))
		if v.CurrentLane != 0 {
			v0 *= math.Max(minLaneUrgency, UrgencyFactor(d))
		}
		return v0
	case entity.StateNavigatingToSpot, entity.StateDrivingToExit:
		if t, ok := v.target(); ok {
			return math.Min(limit, lotBaseSpeed+lotSpeedPerMeter*geometry.Distance2D(v.Pos, t))
		}
		return limit
	case entity.StateInExitLane:
		return math.Min(limit, exitLaneBase+0.5*math.Max(0, v.Pos.Y-lm.MergeY))
	}
	return limit
}

// computeSpeed 计算本步速度与行驶距离
// 算法说明：
// 1. 驶入车位与倒车出库使用比例油门
// 2. 等待汇入时以固定比例低速爬行，只在加速区末端或前方紧邻车辆时停下
// 3. 其余状态使用IDM加速度积分；间距进入紧急区或已重叠时改用平衡速度，保证不会永久锁死
// 4. 卡滞恢复的爬行下限与强制变道后的速度上限最后作用
//
// 说明：速度来自重叠或紧急区的兜底爬行、比例油门的下限时记为受阻，卡滞检测据此计时
func (v *Vehicle) computeSpeed(dt float64) {
	c := v.m.params.Creep
	li := v.findLeader()
	v0 := v.desiredSpeed()
	model := v.model()
	next, ds := 0., -1.
	v.blocked = false
	switch v.State {
	case entity.StateParking:
		base := ParkingSpeed
		if v.Spot != nil {
			base = math.Min(base, 0.5+0.5*geometry.Distance2D(v.Pos, v.Spot.Position))
		}
		next = LegacyThrottle(base, li.gap, LegacyDesiredGap, LegacyFloor)
		v.blocked = li.gap < LegacyDesiredGap*LegacyFloor
	case entity.StateExitingSpot:
		next = LegacyThrottle(ReverseSpeed, li.gap, LegacyDesiredGap, LegacyFloor)
		v.blocked = li.gap < LegacyDesiredGap*LegacyFloor
	case entity.StateAtMergePoint:
		if v.mergeRoom() > 0 && li.gap >= model.S0 {
			next = c.Base * c.MergeWait
		}
	default:
		ac := newAction()
		ac.Update(Action{A: model.Accel(v.Speed, v0, li.gap, li.speed)})
		next, ds = computeVAndDistance(v.Speed, ac.A, dt)
		if li.gap < c.EmergencyZone {
			next, ds = model.EquilibriumSpeed(li.gap, li.speed, v0, c), -1
			v.blocked = true
		}
		if clamped := lo.Clamp(next, 0, math.Max(v0, v.Speed)); clamped != next {
			next, ds = clamped, -1
		}
	}
	v.TargetSpeed = model.EquilibriumSpeed(li.gap, li.speed, v0, c)
	v.naturalSpeed = next
	if v.creep > 0 && next < v.creep {
		next, ds = v.creep, -1
	}
	if v.speedCap > 0 && next > v.speedCap {
		next, ds = v.speedCap, -1
	}
	if ds < 0 {
		ds = next * dt
	}
	if dt > 0 {
		v.Acc = (next - v.Speed) / dt
	}
	v.Speed = next
	v.step = ds
}

// move 按本步行驶距离更新位置与朝向
func (v *Vehicle) move(dt float64) {
	topo := v.m.topo
	if !topo.IsWithinPavedArea(v.Pos.X, v.Pos.Y) {
		// 离开路面：以基准爬行速度回到最近的路面点，每次离开只告警一次
		c := v.m.params.Creep
		if !v.offPavement {
			v.offPavement = true
			log.Warnf("vehicle %d off pavement at (%.2f, %.2f), recovering", v.id, v.Pos.X, v.Pos.Y)
		} else {
			log.Debugf("vehicle %d still off pavement at (%.2f, %.2f)", v.id, v.Pos.X, v.Pos.Y)
		}
		v.stepToward(topo.NearestPavedPoint(v.Pos), c.Base*dt)
		v.Speed = c.Base
		return
	}
	v.offPavement = false
	switch {
	case v.State == entity.StateAtMergePoint:
		if floor := v.mergeFloor(); v.Pos.Y > floor {
			v.Pos.Y = math.Max(floor, v.Pos.Y-v.step)
			v.Heading = -math.Pi / 2
		} else if end := v.mergeEnd(); v.Pos.X < end {
			v.Pos.X = math.Min(end, v.Pos.X+v.step)
			v.Heading = 0
		}
	case v.State.LaneBased():
		v.Pos.X += v.step
		if d := v.Pos.Sub(v.lastPos); d.X > 1e-9 || math.Abs(d.Y) > 1e-9 {
			v.Heading = d.Angle2D()
		}
	default:
		v.updateOffset(dt)
		v.followPath(v.step)
	}
}

// mergeFloor 等待汇入时向下爬行的下限
func (v *Vehicle) mergeFloor() float64 {
	return v.m.landmarks.RoadEdgeY + mergeCreepFloor
}

// mergeEnd 等待汇入时沿加速区爬行的终点，车头不越过加速区末端
func (v *Vehicle) mergeEnd() float64 {
	return v.m.landmarks.ExitX + topology.MergeTaper - v.m.params.Length
}

// mergeRoom 等待汇入时剩余的可爬行距离
func (v *Vehicle) mergeRoom() float64 {
	if floor := v.mergeFloor(); v.Pos.Y > floor {
		return v.Pos.Y - floor
	}
	return math.Max(0, v.mergeEnd()-v.Pos.X)
}

// stepToward 向目标点移动不超过ds的距离，返回实际移动距离
func (v *Vehicle) stepToward(p geometry.Point, ds float64) float64 {
	d := geometry.Distance2D(v.Pos, p)
	if d <= ds {
		v.Pos = p
		return d
	}
	v.Pos = geometry.Blend(v.Pos, p, ds/d)
	return ds
}

// followPath 沿路径点行驶
// 说明：
// 1. 到达或沿路段方向越过当前目标点后推进索引（最后一个点除外），剩余距离继续用于下一段
// 2. 转角处的直线移动离开路面时吸附回最近的路面点
func (v *Vehicle) followPath(ds float64) {
	if len(v.Waypoints) == 0 {
		return
	}
	topo := v.m.topo
	start := v.Pos
	v.skipPassedWaypoints()
	for ds > 1e-9 {
		t := v.steerTarget()
		moved := v.stepToward(t, ds)
		ds -= moved
		if !topo.IsWithinPavedArea(v.Pos.X, v.Pos.Y) {
			v.Pos = topo.NearestPavedPoint(v.Pos)
		}
		if geometry.Distance2D(v.Pos, t) > 1e-9 && !v.passedWaypoint() {
			break
		}
		if v.WaypointIndex >= len(v.Waypoints)-1 {
			break
		}
		v.WaypointIndex++
	}
	if d := v.Pos.Sub(start); d.Length2D() > 1e-9 {
		h := d.Angle2D()
		if v.behavior.Has(entity.Reversing) {
			h += math.Pi
		}
		v.Heading = topology.NormalizeAngle(h)
	}
}

// passedWaypoint 是否已沿所在路段方向越过当前目标点
// 说明：第一个路径点没有所在路段，只能通过到达判定
func (v *Vehicle) passedWaypoint() bool {
	i := v.WaypointIndex
	if i <= 0 || i >= len(v.Waypoints) {
		return false
	}
	wp := v.Waypoints[i]
	seg := wp.Sub(v.Waypoints[i-1])
	if seg.SquareLength2D() < 1e-12 {
		return false
	}
	return v.Pos.Sub(wp).Dot2D(seg) >= 0
}

// skipPassedWaypoints 跳过已被越过的路径点（例如被碰撞分离推过转角）
func (v *Vehicle) skipPassedWaypoints() {
	if v.State.LaneBased() || v.State == entity.StateAtMergePoint {
		return
	}
	for v.WaypointIndex < len(v.Waypoints)-1 && v.passedWaypoint() {
		v.WaypointIndex++
	}
}

// snapToPath 把位置投影回当前路段的中心线
func (v *Vehicle) snapToPath() {
	i := v.WaypointIndex
	if i <= 0 || i >= len(v.Waypoints) {
		return
	}
	a := v.Waypoints[i-1]
	seg := v.Waypoints[i].Sub(a)
	l2 := seg.SquareLength2D()
	if l2 < 1e-12 {
		return
	}
	p := a.Add(seg.Scale(v.Pos.Sub(a).Dot2D(seg) / l2))
	if v.m.topo.IsWithinPavedArea(p.X, p.Y) {
		v.Pos = p
	}
}

func (v *Vehicle) keepsRight() bool {
	return v.State == entity.StateNavigatingToSpot || v.State == entity.StateDrivingToExit
}

// right 运动方向的右侧单位向量
func right(dir geometry.Point) geometry.Point {
	return geometry.Point{X: -dir.Y, Y: dir.X}
}

// steerTarget 转向目标：当前路径点加上会车偏移，偏移后离开路面时取最近的路面点
func (v *Vehicle) steerTarget() geometry.Point {
	t, _ := v.target()
	if v.offset == 0 || !v.keepsRight() {
		return t
	}
	t = t.Add(right(v.travelDir()).Scale(v.offset))
	if topo := v.m.topo; !topo.IsWithinPavedArea(t.X, t.Y) {
		t = topo.NearestPavedPoint(t)
	}
	return t
}

// updateOffset 场内会车靠右
// 功能：前方HeadOnRange内有对向来车时，以固定横向速度向右平移至KeepRightOffset，会车结束后回正
// 说明：回正的最后一步直接回到路段中心线，不留浮点残差
func (v *Vehicle) updateOffset(dt float64) {
	if !v.keepsRight() {
		v.offset = 0
		return
	}
	dir := v.travelDir()
	want := 0.
	for _, o := range v.m.neighbors(v.Pos, HeadOnRange) {
		if o == v || !o.keepsRight() {
			continue
		}
		rel := o.Pos.Sub(v.Pos)
		if rel.Dot2D(dir) <= 0 || math.Abs(dir.Cross2D(rel)) >= HeadOnLateral {
			continue
		}
		if IsHeadOn(v.Pos, dir.Angle2D(), o.Pos, o.motionHeading()) {
			want = KeepRightOffset
			break
		}
	}
	delta := lo.Clamp(want-v.offset, -LateralSlideRate*dt, LateralSlideRate*dt)
	if delta == 0 {
		return
	}
	next := v.Pos.Add(right(dir).Scale(delta))
	if !v.m.topo.IsWithinPavedArea(next.X, next.Y) {
		return
	}
	v.Pos = next
	// 最后一步的delta恰为-offset，回正后offset精确为0
	v.offset += delta
	if v.offset == 0 {
		v.snapToPath()
	}
}
