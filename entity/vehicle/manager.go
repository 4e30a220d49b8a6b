package vehicle

import (
	"errors"
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/spatial"
	"github.com/tsinghua-fib-lab/parking-sim/utils/container"
)

var (
	// ErrNoFreeSpot 没有可预约的空闲车位
	ErrNoFreeSpot = errors.New("no free parking spot")
	// ErrSpawnBlocked 所有车道的生成点都被占用
	ErrSpawnBlocked = errors.New("spawn point blocked")
)

// spawnSpeedRatio 生成时的初速度占限速的比例
const spawnSpeedRatio = 0.5

// Manager 车辆管理器
// 功能：管理所有车辆的生成、逐步更新、碰撞处理与移除
// 说明：
// 1. 单线程按集合顺序逐车更新，本步生成的车辆在下一步Prepare后才参与更新
// 2. 空间网格在每步开始时由已生效车辆重建，步内不再更新
type Manager struct {
	ctx       entity.ITaskContext
	topo      entity.ITopology
	landmarks entity.Landmarks
	params    Params

	vehicles *container.SlotMap[*Vehicle]
	data     map[int32]container.Handle
	grid     *spatial.Grid[*Vehicle]

	nextID  int32
	tick    int64
	merging int // 当前处于MERGING的车辆数
}

// NewManager 创建车辆管理器
// 参数：ctx-任务上下文，params-车辆参数
func NewManager(ctx entity.ITaskContext, params Params) *Manager {
	topo := ctx.Topology()
	return &Manager{
		ctx:       ctx,
		topo:      topo,
		landmarks: topo.Landmarks(),
		params:    params,
		vehicles:  container.NewSlotMap[*Vehicle](),
		data:      make(map[int32]container.Handle),
		grid:      spatial.NewGrid[*Vehicle](spatial.DefaultCellSize),
	}
}

func (m *Manager) Params() Params {
	return m.params
}

// Reset 清空全部车辆，ID从0重新分配
func (m *Manager) Reset() {
	m.vehicles.Clear()
	clear(m.data)
	m.grid.Clear()
	m.nextID = 0
	m.tick = 0
	m.merging = 0
}

// Prepare 准备阶段：执行增量删除与加入，并重建空间网格
func (m *Manager) Prepare() {
	m.vehicles.Prepare()
	m.tick++
	m.grid.Clear()
	for _, v := range m.vehicles.Data() {
		if v.State == entity.StateExited {
			continue
		}
		m.grid.Insert(v.Pos.X, v.Pos.Y, v)
	}
}

// neighbors 空间网格半径查询
func (m *Manager) neighbors(p geometry.Point, r float64) []*Vehicle {
	return m.grid.Query(p.X, p.Y, r, nil)
}

// Update 更新阶段：按集合顺序逐车更新
func (m *Manager) Update(dt float64) {
	data := m.vehicles.Data()
	m.merging = lo.CountBy(data, func(v *Vehicle) bool { return v.State == entity.StateMerging })
	for _, v := range data {
		if v.State == entity.StateParked || v.State == entity.StateExited {
			continue
		}
		v.update(dt)
	}
}

// Evict 移除已离开且尚未计数的车辆
// 返回：本次移除的车辆，每辆车只会被返回一次
func (m *Manager) Evict() []*Vehicle {
	out := make([]*Vehicle, 0)
	for _, v := range m.vehicles.Data() {
		if v.State != entity.StateExited || v.counted {
			continue
		}
		v.counted = true
		m.vehicles.Remove(v.handle)
		delete(m.data, v.id)
		out = append(out, v)
	}
	return out
}

func (m *Manager) insert(v *Vehicle) {
	v.handle = m.vehicles.Insert(v)
	m.data[v.id] = v.handle
}

func (m *Manager) newID() int32 {
	id := m.nextID
	m.nextID++
	return id
}

// spawnClear 同一车道上生成点前后2倍车长内没有车辆（含本步刚生成的车辆）
// 说明：只检查横向偏移小于LateralWindow的车辆，相邻车道的车辆不阻挡生成
func (m *Manager) spawnClear(lane int) bool {
	p := geometry.Point{X: m.landmarks.RoadStartX, Y: m.topo.LaneY(lane)}
	r := 2 * m.params.Length
	for _, v := range m.vehicles.All() {
		if v.State == entity.StateExited {
			continue
		}
		if d := v.Pos.Sub(p); math.Abs(d.Y) < LateralWindow && math.Abs(d.X) < r {
			return false
		}
	}
	return true
}

// SpawnPointClear 指定车道的生成点是否空闲
func (m *Manager) SpawnPointClear(lane int) bool {
	if lane < 0 || lane >= m.topo.LaneCount() {
		return false
	}
	return m.spawnClear(lane)
}

// pickLane 在生成点空闲的车道中随机选择一条
func (m *Manager) pickLane() (int, bool) {
	lanes := lo.Filter(lo.Range(m.topo.LaneCount()), func(l int, _ int) bool { return m.spawnClear(l) })
	if len(lanes) == 0 {
		return entity.NoLane, false
	}
	return lanes[m.ctx.Rand().Intn(len(lanes))], true
}

func (m *Manager) newOnRoad(lane int) *Vehicle {
	v := newVehicle(m, m.newID())
	v.Pos = geometry.Point{X: m.landmarks.RoadStartX, Y: m.topo.LaneY(lane)}
	v.Location = entity.OnMainRoad
	v.CurrentLane = lane
	v.TargetLane = lane
	v.Speed = m.topo.SpeedLimitAt(v.Pos) * spawnSpeedRatio
	v.SpawnTime = m.ctx.Clock().T
	return v
}

// SpawnSeeking 生成一辆寻找车位的车辆
// 功能：先随机选择并预约一个空闲车位，再在生成点空闲的车道中随机选择一条生成
// 返回：新车辆；无空闲车位时返回ErrNoFreeSpot，生成点全部被占用时返回ErrSpawnBlocked
// 说明：车位在生成时同步预约，其他车辆不可能在此之后看到该车位空闲
func (m *Manager) SpawnSeeking() (*Vehicle, error) {
	spot := m.topo.FindRandomSpot(m.ctx.Rand())
	if spot == nil {
		return nil, ErrNoFreeSpot
	}
	lane, ok := m.pickLane()
	if !ok {
		return nil, ErrSpawnBlocked
	}
	v := m.newOnRoad(lane)
	v.State = entity.StateApproaching
	v.Intent = entity.SeekingParking
	v.Waypoints = m.topo.GenerateEntryPath(spot, lane)
	v.WaypointIndex = 1
	m.insert(v)
	m.topo.Spots().Reserve(spot, v.handle)
	v.Spot = spot
	v.SpotID = spot.ID
	m.emit(v, entity.EventSpawn)
	log.Debugf("spawn vehicle %d in lane %d for spot %d", v.id, lane, spot.ID)
	return v, nil
}

// SpawnPassThrough 生成一辆过境车辆
func (m *Manager) SpawnPassThrough() (*Vehicle, error) {
	lane, ok := m.pickLane()
	if !ok {
		return nil, ErrSpawnBlocked
	}
	v := m.newOnRoad(lane)
	v.State = entity.StateOnRoad
	v.Intent = entity.PassingThrough
	v.lcCooldownUntil = v.SpawnTime + discretionaryCooldown
	m.insert(v)
	m.emit(v, entity.EventSpawn)
	return v, nil
}

func (m *Manager) emit(v *Vehicle, t entity.EventType) {
	m.ctx.Emit(entity.Event{
		Type:       t,
		Time:       m.ctx.Clock().T,
		VehicleID:  v.id,
		SpotID:     v.SpotID,
		State:      v.State,
		MissedTurn: v.missedTurn,
	})
}

// Get 根据ID获取车辆
func (m *Manager) Get(id int32) (*Vehicle, error) {
	h, ok := m.data[id]
	if !ok {
		return nil, fmt.Errorf("no vehicle %d", id)
	}
	v, ok := m.vehicles.Get(h)
	if !ok {
		return nil, fmt.Errorf("vehicle %d handle %v expired", id, h)
	}
	return v, nil
}

// Vehicles 所有存活车辆（含本步刚生成的车辆）
func (m *Manager) Vehicles() []*Vehicle {
	return m.vehicles.All()
}

// Count 满足条件的存活车辆数
func (m *Manager) Count(pred func(*Vehicle) bool) int {
	return lo.CountBy(m.vehicles.All(), pred)
}

// Parked 按集合顺序返回全部已停放车辆
func (m *Manager) Parked() []*Vehicle {
	return lo.Filter(m.vehicles.All(), func(v *Vehicle, _ int) bool { return v.State == entity.StateParked })
}

// Snapshots 所有未离开车辆的快照，按集合顺序
func (m *Manager) Snapshots() []Snapshot {
	live := lo.Filter(m.vehicles.All(), func(v *Vehicle, _ int) bool { return v.State != entity.StateExited })
	return parallel.GoMap(live, func(v *Vehicle) Snapshot { return v.Snapshot() })
}
