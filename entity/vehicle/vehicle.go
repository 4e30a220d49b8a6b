package vehicle

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/parking"
	"github.com/tsinghua-fib-lab/parking-sim/utils/container"
)

// NoSpot 无车位的哨兵值
const NoSpot int32 = -1

// Vehicle 车辆实体
// 功能：保存车辆的运动状态、四层状态（状态机、区域、意图、行为标志）、车道与导航信息
// 说明：
// 1. 车辆只由所属Manager在单线程中修改
// 2. 行为标志通过SetBehavior写入，非法组合直接panic
// 3. 生成时已预约车位，Spot为nil表示过境车辆或已释放车位
type Vehicle struct {
	m      *Manager
	id     int32
	handle container.Handle

	Pos         geometry.Point
	Heading     float64 // 车身朝向（弧度），倒车时与运动方向相反
	Speed       float64
	TargetSpeed float64 // IDM平衡速度，仅用于展示
	Acc         float64

	State    entity.State
	Location entity.Location
	Intent   entity.Intent
	behavior entity.Behavior

	CurrentLane        int // 主路车道，不在主路上时为entity.NoLane
	TargetLane         int
	LaneChangeProgress float64 // [0, 1]
	LaneChangeDir      int     // entity.LEFT/entity.RIGHT，未变道时为0
	lcFromY            float64

	Waypoints     []geometry.Point
	WaypointIndex int

	Spot   *parking.Spot
	SpotID int32 // 最近一次预约的车位ID，释放后保留用于事件

	SpawnTime        float64
	ParkTime         float64
	ExitStartTime    float64
	ExitCompleteTime float64
	WaitTime         float64 // 连续低速时间

	naturalSpeed    float64 // 爬行与限速作用前的速度
	blocked         bool    // 本步速度来自受阻时的兜底爬行
	step            float64 // 本步行驶距离
	creep           float64 // 卡滞恢复给予的爬行速度下限
	speedCap        float64 // 强制变道后的速度上限，0表示不限
	stuckReported   bool
	brakeTick       int64
	mergeWait       float64
	lcCooldownUntil float64
	offset          float64 // 会车时的右侧偏移
	offPavement     bool
	lastPos         geometry.Point
	missedTurn      bool
	counted         bool
}

func newVehicle(m *Manager, id int32) *Vehicle {
	return &Vehicle{
		m:                m,
		id:               id,
		CurrentLane:      entity.NoLane,
		TargetLane:       entity.NoLane,
		SpotID:           NoSpot,
		ParkTime:         -1,
		ExitStartTime:    -1,
		ExitCompleteTime: -1,
		brakeTick:        -1,
	}
}

func (v *Vehicle) ID() int32 {
	return v.id
}

func (v *Vehicle) Handle() container.Handle {
	return v.handle
}

func (v *Vehicle) Behavior() entity.Behavior {
	return v.behavior
}

// SetBehavior 整体设置行为标志
func (v *Vehicle) SetBehavior(b entity.Behavior) {
	if !b.Valid() {
		log.Panicf("vehicle %d: invalid behavior %v (state %v)", v.id, b, v.State)
	}
	v.behavior = b
}

func (v *Vehicle) addBehavior(b entity.Behavior) {
	v.SetBehavior(v.behavior | b)
}

func (v *Vehicle) clearBehavior(b entity.Behavior) {
	v.behavior &^= b
}

// MissedTurn 是否因错过入口被强制离开
func (v *Vehicle) MissedTurn() bool {
	return v.missedTurn
}

// ExitDuration 从开始离场到驶离主路的用时，未完成时返回-1
func (v *Vehicle) ExitDuration() float64 {
	if v.ExitStartTime < 0 || v.ExitCompleteTime < 0 {
		return -1
	}
	return v.ExitCompleteTime - v.ExitStartTime
}

// target 当前导航目标点，路径走完时返回最后一个点
func (v *Vehicle) target() (geometry.Point, bool) {
	if len(v.Waypoints) == 0 {
		return geometry.Point{}, false
	}
	i := min(v.WaypointIndex, len(v.Waypoints)-1)
	return v.Waypoints[i], true
}

// travelDir 运动方向单位向量
func (v *Vehicle) travelDir() geometry.Point {
	switch {
	case v.State.LaneBased():
		return geometry.Point{X: 1}
	case v.State == entity.StateAtMergePoint:
		if v.Pos.Y > v.mergeFloor() {
			return geometry.Point{Y: -1}
		}
		return geometry.Point{X: 1}
	}
	if t, ok := v.target(); ok {
		if d := t.Sub(v.Pos); d.Length2D() > 1e-6 {
			return d.Unit()
		}
	}
	h := v.Heading
	if v.behavior.Has(entity.Reversing) {
		h += math.Pi
	}
	return headingVector(h)
}

// headingVector 方向角对应的单位向量
func headingVector(h float64) geometry.Point {
	return geometry.Point{X: 1}.Rotate(h)
}

// motionHeading 运动方向角
func (v *Vehicle) motionHeading() float64 {
	return v.travelDir().Angle2D()
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle{id=%d state=%v loc=%v pos=(%.2f,%.2f) v=%.2f lane=%d behavior=%v}",
		v.id, v.State, v.Location, v.Pos.X, v.Pos.Y, v.Speed, v.CurrentLane, v.behavior)
}

// Snapshot 车辆的只读快照，用于日志与外部展示
type Snapshot struct {
	ID          int32   `json:"id" yaml:"id"`
	X           float64 `json:"x" yaml:"x"`
	Y           float64 `json:"y" yaml:"y"`
	Heading     float64 `json:"heading" yaml:"heading"`
	Speed       float64 `json:"speed" yaml:"speed"`
	TargetSpeed float64 `json:"target_speed" yaml:"target_speed"`
	State       string  `json:"state" yaml:"state"`
	Location    string  `json:"location" yaml:"location"`
	Intent      string  `json:"intent" yaml:"intent"`
	Behavior    string  `json:"behavior" yaml:"behavior"`
	Lane        int     `json:"lane" yaml:"lane"`
	SpotID      int32   `json:"spot_id" yaml:"spot_id"`
	WaitTime    float64 `json:"wait_time" yaml:"wait_time"`
}

func (v *Vehicle) Snapshot() Snapshot {
	return Snapshot{
		ID:          v.id,
		X:           v.Pos.X,
		Y:           v.Pos.Y,
		Heading:     v.Heading,
		Speed:       v.Speed,
		TargetSpeed: v.TargetSpeed,
		State:       v.State.String(),
		Location:    v.Location.String(),
		Intent:      v.Intent.String(),
		Behavior:    v.behavior.String(),
		Lane:        v.CurrentLane,
		SpotID:      v.SpotID,
		WaitTime:    v.WaitTime,
	}
}

// update 单车单步更新：状态转移、变道、速度、位置、卡滞检测
func (v *Vehicle) update(dt float64) {
	v.lastPos = v.Pos
	v.clearBehavior(entity.Yielding)
	v.transition(dt)
	if v.State == entity.StateExited || v.State == entity.StateParked {
		return
	}
	v.updateLaneChange(dt)
	v.computeSpeed(dt)
	v.move(dt)
	v.checkStuck(dt)
}
