package topology

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/parking"
	"github.com/tsinghua-fib-lab/parking-sim/utils/config"
	"github.com/tsinghua-fib-lab/parking-sim/utils/randengine"
)

var log = logrus.WithField("module", "topology")

// 默认停车场布局参数（米）
const (
	LaneWidth      = 3.5
	RoadStartX     = 0.
	RoadEndX       = 800.
	EntryX         = 200.
	ExitX          = 520.
	LotLeft        = 160.
	LotRight       = 560.
	RampHalfWidth  = 2.5  // 入口/出口道路半宽
	RampLength     = 19.5 // 主路边缘到停车场上边界的距离
	MergeOffset    = 3.   // 汇入点距主路边缘的距离
	MergeTaper     = 40.  // 汇入加速区长度
	AisleOffset    = 12.  // 第一条通道距停车场上边界的距离
	AisleSpacing   = 20.  // 相邻通道间距
	AisleHalfWidth = 3.25 // 通道半宽（双向）
	SpotWidth      = 3.5
	SpotDepth      = 5.
	FirstSpotX     = 215.
	LastSpotX      = 505.
	LotMargin      = 12. // 最后一条通道到停车场下边界的距离

	RoadSpeedLimit = 14.
	RampSpeedLimit = 6.
	LotSpeedLimit  = 4.

	MaxMainLanes = config.MaxMainLanes
)

// SpotsPerRow 每排车位数
var SpotsPerRow = int(math.Floor((LastSpotX-FirstSpotX)/SpotWidth)) + 1

type rect struct {
	minX, minY, maxX, maxY float64
}

func (r rect) contains(x, y float64) bool {
	return x >= r.minX && x <= r.maxX && y >= r.minY && y <= r.maxY
}

func (r rect) clamp(p geometry.Point) geometry.Point {
	return geometry.Point{X: lo.Clamp(p.X, r.minX, r.maxX), Y: lo.Clamp(p.Y, r.minY, r.maxY)}
}

// Lot 默认的停车场拓扑
// 功能：一条沿+x方向的多车道主路，入口道路与出口道路连接下方矩形停车场，停车场内为水平通道与两侧垂直车位
// 说明：0号车道离停车场最近，是唯一可以转入入口的车道
type Lot struct {
	lanes     int
	landmarks entity.Landmarks
	aisleYs   []float64
	lotBottom float64

	road, entry, exit, taper, lot rect

	spots *parking.Table
}

// New 创建停车场拓扑
// 参数：spotCount-车位数，mainLanes-主路车道数（1到MaxMainLanes）
func New(spotCount, mainLanes int) *Lot {
	if mainLanes < 1 || mainLanes > MaxMainLanes {
		log.Panicf("main lanes %d out of range [1, %d]", mainLanes, MaxMainLanes)
	}
	if spotCount < 0 {
		log.Panicf("negative spot count %d", spotCount)
	}
	edge := float64(mainLanes) * LaneWidth
	lotTop := edge + RampLength
	t := &Lot{
		lanes: mainLanes,
		landmarks: entity.Landmarks{
			RoadStartX: RoadStartX,
			RoadEndX:   RoadEndX,
			RoadEdgeY:  edge,
			EntryX:     EntryX,
			ExitX:      ExitX,
			LotTop:     lotTop,
			MergeY:     edge + MergeOffset,
		},
	}
	perAisle := 2 * SpotsPerRow
	aisles := max(1, (spotCount+perAisle-1)/perAisle)
	for k := 0; k < aisles; k++ {
		t.aisleYs = append(t.aisleYs, lotTop+AisleOffset+AisleSpacing*float64(k))
	}
	t.lotBottom = t.aisleYs[len(t.aisleYs)-1] + LotMargin

	t.road = rect{RoadStartX - 10, 0, RoadEndX + 10, edge}
	t.entry = rect{EntryX - RampHalfWidth, edge, EntryX + RampHalfWidth, lotTop}
	t.exit = rect{ExitX - RampHalfWidth, edge, ExitX + RampHalfWidth, lotTop}
	t.taper = rect{ExitX - RampHalfWidth, edge, ExitX + MergeTaper, edge + MergeOffset + RampHalfWidth}
	t.lot = rect{LotLeft, lotTop, LotRight, t.lotBottom}

	spots := make([]*parking.Spot, spotCount)
	offset := AisleHalfWidth + SpotDepth/2
	for i := range spots {
		aisle := i / perAisle
		r := i % perAisle
		side := -1
		if r%2 == 1 {
			side = 1
		}
		col := r / 2
		spots[i] = &parking.Spot{
			ID: int32(i),
			Position: geometry.Point{
				X: FirstSpotX + float64(col)*SpotWidth,
				Y: t.aisleYs[aisle] + float64(side)*offset,
			},
			Aisle: aisle,
			Side:  side,
		}
	}
	t.spots = parking.NewTable(spots)
	log.Debugf("lot created: %d spots, %d aisles, %d lanes", spotCount, aisles, mainLanes)
	return t
}

func (t *Lot) Spots() *parking.Table {
	return t.spots
}

func (t *Lot) Landmarks() entity.Landmarks {
	return t.landmarks
}

func (t *Lot) LaneCount() int {
	return t.lanes
}

// AisleY 通道中心线y坐标
func (t *Lot) AisleY(aisle int) float64 {
	return t.aisleYs[aisle]
}

// LaneY 车道中心线y坐标，lane越界时截断到有效范围
func (t *Lot) LaneY(lane int) float64 {
	lane = lo.Clamp(lane, 0, t.lanes-1)
	return t.landmarks.RoadEdgeY - (float64(lane)+0.5)*LaneWidth
}

func (t *Lot) LaneAt(y float64) int {
	if y < 0 || y > t.landmarks.RoadEdgeY {
		return entity.NoLane
	}
	lane := int((t.landmarks.RoadEdgeY - y) / LaneWidth)
	return lo.Clamp(lane, 0, t.lanes-1)
}

func (t *Lot) FindRandomSpot(rng *randengine.Engine) *parking.Spot {
	free := t.spots.FreeSpots()
	if len(free) == 0 {
		return nil
	}
	return free[rng.Intn(len(free))]
}

// GenerateEntryPath 入场路径
// 返回：[生成点, 转弯点, 入口道路末端, 通道入口, 车位前通道点, 车位中心]
func (t *Lot) GenerateEntryPath(spot *parking.Spot, spawnLane int) []geometry.Point {
	m := t.landmarks
	aisleY := t.aisleYs[spot.Aisle]
	return []geometry.Point{
		{X: m.RoadStartX, Y: t.LaneY(spawnLane)},
		{X: m.EntryX, Y: t.LaneY(0)},
		{X: m.EntryX, Y: m.LotTop},
		{X: m.EntryX, Y: aisleY},
		{X: spot.Position.X, Y: aisleY},
		spot.Position,
	}
}

// GenerateExitPath 离场路径
// 返回：[车位前通道点, 通道出口, 出口道路起点, 汇入点]
func (t *Lot) GenerateExitPath(spot *parking.Spot) []geometry.Point {
	m := t.landmarks
	aisleY := t.aisleYs[spot.Aisle]
	return []geometry.Point{
		{X: spot.Position.X, Y: aisleY},
		{X: m.ExitX, Y: aisleY},
		{X: m.ExitX, Y: m.LotTop},
		{X: m.ExitX, Y: m.MergeY},
	}
}

func (t *Lot) SpeedLimitAt(p geometry.Point) float64 {
	switch {
	case t.road.contains(p.X, p.Y):
		return RoadSpeedLimit
	case t.entry.contains(p.X, p.Y), t.exit.contains(p.X, p.Y), t.taper.contains(p.X, p.Y):
		return RampSpeedLimit
	default:
		return LotSpeedLimit
	}
}

func (t *Lot) IsWithinPavedArea(x, y float64) bool {
	for _, r := range t.rects() {
		if r.contains(x, y) {
			return true
		}
	}
	return false
}

func (t *Lot) NearestPavedPoint(p geometry.Point) geometry.Point {
	best, bestD := p, math.Inf(1)
	for _, r := range t.rects() {
		q := r.clamp(p)
		if d := geometry.Distance2D(p, q); d < bestD {
			best, bestD = q, d
		}
	}
	return best
}

func (t *Lot) rects() [5]rect {
	return [5]rect{t.road, t.entry, t.exit, t.taper, t.lot}
}
