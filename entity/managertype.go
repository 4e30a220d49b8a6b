package entity

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/parking-sim/entity/parking"
	"github.com/tsinghua-fib-lab/parking-sim/utils/randengine"
)

// Landmarks 拓扑中的关键坐标
// 说明：主路沿+x方向行驶，y向停车场一侧增大
type Landmarks struct {
	RoadStartX float64 // 主路起点（车辆生成处）
	RoadEndX   float64 // 主路终点（到达即离开仿真）
	RoadEdgeY  float64 // 主路靠停车场一侧的边缘
	EntryX     float64 // 入口道路中心线x
	ExitX      float64 // 出口道路中心线x
	LotTop     float64 // 停车场上边界y
	MergeY     float64 // 出口道路汇入点y
}

// ITopology 拓扑与寻路服务的依赖倒置（entity/topology实现）
type ITopology interface {
	Spots() *parking.Table
	Landmarks() Landmarks
	LaneCount() int
	LaneY(lane int) float64
	// 根据y坐标返回所在主路车道，不在主路上时返回NoLane
	LaneAt(y float64) int

	// 随机选取一个空闲车位，没有时返回nil
	FindRandomSpot(rng *randengine.Engine) *parking.Spot
	// 入场路径：转弯点、入口、通道入口、车位前、车位
	GenerateEntryPath(spot *parking.Spot, spawnLane int) []geometry.Point
	// 离场路径：车位前、通道出口、出口、汇入点
	GenerateExitPath(spot *parking.Spot) []geometry.Point

	SpeedLimitAt(p geometry.Point) float64
	IsWithinPavedArea(x, y float64) bool
	// 最近的路面点（点在路面内时返回自身）
	NearestPavedPoint(p geometry.Point) geometry.Point
}
