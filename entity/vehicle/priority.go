package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
)

const (
	headOnBonusRate = 0.5 // 每秒等待增加的对向优先级
	headOnBonusMax  = 5.  // 对向优先级加成上限，小于相邻状态间的级差

	urgencyMin         = 0.15 // 到达或驶过转弯点时的紧迫系数
	UrgencyFarDistance = 150. // 距离转弯点超过该值时紧迫系数为1
)

var stateRank = map[entity.State]float64{
	entity.StateOnRoad:           100,
	entity.StateMerging:          90,
	entity.StateAtMergePoint:     80,
	entity.StateInExitLane:       70,
	entity.StateDrivingToExit:    60,
	entity.StateExitingSpot:      50,
	entity.StateParking:          40,
	entity.StateNavigatingToSpot: 30,
	entity.StateEntering:         20,
	entity.StateApproaching:      10,
}

// Priority 离场优先级
// 功能：状态越接近离开越高，ON_ROAD最高，APPROACHING最低；APPROACHING内越早生成越高
// 返回：优先级标量，PARKED与EXITED为0
func Priority(s entity.State, spawnTime float64) float64 {
	r, ok := stateRank[s]
	if !ok {
		return 0
	}
	if s == entity.StateApproaching {
		r -= spawnTime * 1e-4
	}
	return r
}

// HeadOnBonus 对向冲突时按等待时间给出的优先级加成
func HeadOnBonus(waitTime float64) float64 {
	return math.Min(headOnBonusRate*math.Max(0, waitTime), headOnBonusMax)
}

// UrgencyFactor 变道紧迫系数
// 功能：随到转弯点距离减小而减小，用于缩小变道所需的安全间距
// 参数：distance-到转弯点的剩余距离（驶过为负）
// 返回：[urgencyMin, 1]
func UrgencyFactor(distance float64) float64 {
	if distance <= 0 {
		return urgencyMin
	}
	k := lo.Clamp(distance/UrgencyFarDistance, 0, 1)
	return urgencyMin + (1-urgencyMin)*k
}

// IsHeadOn 两车是否对向相遇
// 说明：朝向差在[135°, 225°]且双方都位于对方前方
func IsHeadOn(pa geometry.Point, ha float64, pb geometry.Point, hb float64) bool {
	d := topology.HeadingDelta(ha, hb)
	if d < 3*math.Pi/4 || d > 5*math.Pi/4 {
		return false
	}
	ab := pb.Sub(pa)
	return ab.Dot2D(headingVector(ha)) > 0 && ab.Dot2D(headingVector(hb)) < 0
}

// outranks a是否优先于b
// 说明：对向冲突时叠加等待加成；相等时ID小者优先
func outranks(a, b *Vehicle, headOn bool) bool {
	pa, pb := Priority(a.State, a.SpawnTime), Priority(b.State, b.SpawnTime)
	if headOn {
		pa += HeadOnBonus(a.WaitTime)
		pb += HeadOnBonus(b.WaitTime)
	}
	if pa != pb {
		return pa > pb
	}
	return a.id < b.id
}
