package entity

import (
	"fmt"
	"strings"
)

// 车道变换方向
const (
	LEFT  = +1 // 远离停车场一侧（车道序号增大）
	RIGHT = -1 // 靠近停车场一侧（车道序号减小，0号车道为转弯车道）
)

// NoLane 无可用车道的哨兵值
const NoLane = -1

// State 车辆状态机中的状态
// 说明：状态只能按声明顺序前进，EXITED为终态
type State int

const (
	StateApproaching      State = iota // 主路上驶向入口
	StateEntering                      // 入口道路
	StateNavigatingToSpot              // 场内行驶至车位所在通道
	StateParking                       // 驶入车位
	StateParked                        // 已停好
	StateExitingSpot                   // 倒车出库
	StateDrivingToExit                 // 场内行驶至出口
	StateInExitLane                    // 出口道路
	StateAtMergePoint                  // 汇入点等待
	StateMerging                       // 汇入主路
	StateOnRoad                        // 主路行驶（含过境车辆）
	StateExited                        // 已离开
)

var stateNames = [...]string{
	"APPROACHING", "ENTERING", "NAVIGATING_TO_SPOT", "PARKING", "PARKED", "EXITING_SPOT",
	"DRIVING_TO_EXIT", "IN_EXIT_LANE", "AT_MERGE_POINT", "MERGING", "ON_ROAD", "EXITED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// LaneBased 是否沿主路车道行驶（纵向为+x方向）
func (s State) LaneBased() bool {
	return s == StateApproaching || s == StateMerging || s == StateOnRoad
}

// Location 车辆所处区域
type Location int

const (
	OnMainRoad Location = iota
	OnEntryRoad
	OnExitRoad
	InLot
	InSpot
	LocationExited
)

var locationNames = [...]string{"ON_MAIN_ROAD", "ON_ENTRY_ROAD", "ON_EXIT_ROAD", "IN_LOT", "IN_SPOT", "EXITED"}

func (l Location) String() string {
	if l < 0 || int(l) >= len(locationNames) {
		return fmt.Sprintf("Location(%d)", int(l))
	}
	return locationNames[l]
}

// Related 两个区域的车辆是否可能发生空间冲突（同一区域或在连接处相邻）
func (l Location) Related(o Location) bool {
	if l == LocationExited || o == LocationExited {
		return false
	}
	if l == o {
		return true
	}
	if l > o {
		l, o = o, l
	}
	switch {
	case l == OnMainRoad && (o == OnEntryRoad || o == OnExitRoad):
		return true
	case (l == OnEntryRoad || l == OnExitRoad) && o == InLot:
		return true
	case l == InLot && o == InSpot:
		return true
	}
	return false
}

// Intent 车辆意图
type Intent int

const (
	SeekingParking Intent = iota
	Parked
	ExitingLot
	PassingThrough
)

var intentNames = [...]string{"SEEKING_PARKING", "PARKED", "EXITING_LOT", "PASSING_THROUGH"}

func (i Intent) String() string {
	if i < 0 || int(i) >= len(intentNames) {
		return fmt.Sprintf("Intent(%d)", int(i))
	}
	return intentNames[i]
}

// Behavior 车辆瞬时行为标志位集合
// 说明：非法组合由Valid判定，车辆的设置方法拒绝写入非法组合
type Behavior uint8

const (
	Reversing Behavior = 1 << iota
	ChangingLane
	Yielding
	Merging
	WaitingToMerge
)

var behaviorNames = []struct {
	b    Behavior
	name string
}{
	{Reversing, "REVERSING"},
	{ChangingLane, "CHANGING_LANE"},
	{Yielding, "YIELDING"},
	{Merging, "MERGING"},
	{WaitingToMerge, "WAITING_TO_MERGE"},
}

// Has 是否包含全部给定标志
func (b Behavior) Has(f Behavior) bool {
	return b&f == f
}

// Valid 标志组合是否合法
// 规则：
// 1. 只能使用已定义的位
// 2. 倒车时不能变道或汇入
// 3. 变道、汇入、等待汇入三者互斥
func (b Behavior) Valid() bool {
	const all = Reversing | ChangingLane | Yielding | Merging | WaitingToMerge
	if b&^all != 0 {
		return false
	}
	if b.Has(Reversing) && b&(ChangingLane|Merging|WaitingToMerge) != 0 {
		return false
	}
	n := 0
	for _, f := range []Behavior{ChangingLane, Merging, WaitingToMerge} {
		if b.Has(f) {
			n++
		}
	}
	return n <= 1
}

func (b Behavior) String() string {
	if b == 0 {
		return "NONE"
	}
	parts := make([]string, 0, 2)
	for _, x := range behaviorNames {
		if b.Has(x.b) {
			parts = append(parts, x.name)
		}
	}
	if rest := b &^ (Reversing | ChangingLane | Yielding | Merging | WaitingToMerge); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint8(rest)))
	}
	return strings.Join(parts, "|")
}

// Phase 仿真阶段，只能前进
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFilling
	PhaseWaiting
	PhaseExodus
	PhaseComplete
)

var phaseNames = [...]string{"IDLE", "FILLING", "WAITING", "EXODUS", "COMPLETE"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// EventType 对外事件类型
type EventType int

const (
	EventSpawn EventType = iota
	EventParked
	EventExited
	EventStuck
)

var eventNames = [...]string{"SPAWN", "PARKED", "EXITED", "STUCK"}

func (e EventType) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("EventType(%d)", int(e))
	}
	return eventNames[e]
}

// Event 车辆生命周期事件
type Event struct {
	Type       EventType
	Time       float64
	VehicleID  int32
	SpotID     int32 // 无车位时为-1
	State      State
	MissedTurn bool // EXITED事件：是否因错过入口被强制离开
}
