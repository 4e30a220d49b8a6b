package task

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/parking-sim/clock"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/topology"
	"github.com/tsinghua-fib-lab/parking-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/parking-sim/utils/config"
	"github.com/tsinghua-fib-lab/parking-sim/utils/container"
	"github.com/tsinghua-fib-lab/parking-sim/utils/metrics"
	"github.com/tsinghua-fib-lab/parking-sim/utils/randengine"
)

var log = logrus.WithField("module", "task")

// ErrPhase 当前阶段不允许该操作（阶段只能前进）
var ErrPhase = errors.New("operation not allowed in current phase")

// counters 仿真累计计数
type counters struct {
	spawned      int // 寻找车位的车辆生成数
	passThrough  int // 过境车辆生成数
	exited       int // 从停车场离开并驶出主路的车辆数
	missedTurns  int
	collisions   int
	exitTimeSum  float64
	exodusExited int // 离场阶段开始后驶出的车辆数
}

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态，驱动逐步仿真流水线
// 说明：
// 1. 仿真核心单线程运行，除Close外的方法都不可并发调用
// 2. 阶段只能按IDLE→FILLING→WAITING→EXODUS→COMPLETE前进，Reset回到IDLE
type Context struct {
	// 运行ID，用于日志关联
	runID uuid.UUID
	// 关闭指令
	closed atomic.Bool

	config  config.Config
	clock   *clock.Clock
	rng     *randengine.Engine
	topo    *topology.Lot
	metrics *metrics.Collector

	// 车辆管理器
	vm *vehicle.Manager

	phase       entity.Phase
	spawnQueue  *container.PriorityQueue[struct{}] // 按计划生成时间排序的入场名额
	exodusQueue *container.PriorityQueue[int32]    // 按计划出库时间排序的车辆ID
	spawnTail   float64                            // 最后一个计划名额的生成时间
	credits     int                                // 已发放的补发名额
	exodusStart float64

	counters counters
	parked   int // 当前停放车辆数（每步重算）
	active   int // 当前存活车辆数（每步重算）

	hooks        []func(entity.Event)
	nextSnapshot float64

	log *logrus.Entry
}

// NewContext 创建新的仿真任务上下文
// 功能：根据配置初始化时钟、随机数、拓扑与车辆管理器
// 参数：c-已校验的配置，mc-指标收集器（可为nil）
// 返回：处于IDLE阶段的Context
func NewContext(c config.Config, mc *metrics.Collector) *Context {
	ctx := &Context{
		runID:       uuid.New(),
		config:      c,
		clock:       clock.New(c.Control.Step),
		rng:         randengine.New(c.Control.Seed),
		topo:        topology.New(c.Lot.SpotCount, c.Lot.MainLanes),
		metrics:     mc,
		spawnQueue:  container.NewPriorityQueue[struct{}](),
		exodusQueue: container.NewPriorityQueue[int32](),
	}
	ctx.log = log.WithField("run", ctx.runID.String())
	ctx.vm = vehicle.NewManager(ctx, vehicle.DefaultParams())
	ctx.log.Infof("lot: %d spots, %d lanes, seed %d", ctx.topo.Spots().Len(), ctx.topo.LaneCount(), c.Control.Seed)
	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Topology() entity.ITopology {
	return ctx.topo
}

func (ctx *Context) Rand() *randengine.Engine {
	return ctx.rng
}

func (ctx *Context) Metrics() *metrics.Collector {
	return ctx.metrics
}

func (ctx *Context) Phase() entity.Phase {
	return ctx.phase
}

func (ctx *Context) RunID() uuid.UUID {
	return ctx.runID
}

func (ctx *Context) VehicleManager() *vehicle.Manager {
	return ctx.vm
}

// IsWithinPavedArea 坐标是否位于路面（主路、出入口道路或停车场）内
func (ctx *Context) IsWithinPavedArea(x, y float64) bool {
	return ctx.topo.IsWithinPavedArea(x, y)
}

// OnEvent 注册事件回调，回调在仿真线程中同步执行
func (ctx *Context) OnEvent(hook func(entity.Event)) {
	ctx.hooks = append(ctx.hooks, hook)
}

// Emit 处理车辆发出的生命周期事件
// 功能：更新计数与指标，离场阶段中新停好的车辆直接排入出库队列，再依次调用回调
func (ctx *Context) Emit(e entity.Event) {
	switch e.Type {
	case entity.EventSpawn:
		if e.SpotID == vehicle.NoSpot {
			ctx.counters.passThrough++
		} else {
			ctx.counters.spawned++
		}
	case entity.EventParked:
		if ctx.phase == entity.PhaseExodus {
			ctx.exodusQueue.HeapPush(e.VehicleID, ctx.clock.T+ctx.config.Traffic.ExitInterval)
		}
	case entity.EventStuck:
		ctx.log.Debugf("vehicle %d stuck in %v", e.VehicleID, e.State)
	}
	ctx.metrics.IncEvent(strings.ToLower(e.Type.String()))
	for _, hook := range ctx.hooks {
		hook(e)
	}
}

// RequeueSpawn 错过入口后补发一个入场名额
// 说明：只在FILLING阶段且补发总数未超过上限时成功
func (ctx *Context) RequeueSpawn() bool {
	if ctx.phase != entity.PhaseFilling || ctx.credits >= ctx.config.Traffic.MaxReplacementCredits {
		return false
	}
	ctx.credits++
	ctx.spawnQueue.HeapPush(struct{}{}, ctx.clock.T+ctx.config.Traffic.SpawnInterval)
	return true
}

// FillLot 计划入场count辆寻找车位的车辆
// 功能：按生成间隔错开排入生成队列，并进入FILLING阶段
// 返回：阶段已过FILLING时返回ErrPhase
func (ctx *Context) FillLot(count int) error {
	if ctx.phase > entity.PhaseFilling {
		return fmt.Errorf("fill lot in %v: %w", ctx.phase, ErrPhase)
	}
	if count <= 0 {
		return nil
	}
	interval := ctx.config.Traffic.SpawnInterval
	start := ctx.clock.T
	if !ctx.spawnQueue.Empty() {
		// 接在已排队名额之后
		start = max(start, ctx.spawnTail+interval)
	}
	for i := range count {
		ctx.spawnQueue.Push(struct{}{}, start+float64(i)*interval)
	}
	ctx.spawnQueue.Heapify()
	ctx.spawnTail = start + float64(count-1)*interval
	ctx.setPhase(entity.PhaseFilling)
	ctx.log.Infof("fill lot: %d vehicles queued", count)
	return nil
}

// StartExodus 所有已停放车辆按出库间隔依次离场
// 功能：清空剩余生成名额，按集合顺序为已停放车辆排定出库时间，进入EXODUS阶段
// 返回：已处于EXODUS或COMPLETE时返回ErrPhase
func (ctx *Context) StartExodus() error {
	if ctx.phase >= entity.PhaseExodus {
		return fmt.Errorf("start exodus in %v: %w", ctx.phase, ErrPhase)
	}
	ctx.spawnQueue.Clear()
	for i, v := range ctx.vm.Parked() {
		ctx.exodusQueue.Push(v.ID(), ctx.clock.T+float64(i)*ctx.config.Traffic.ExitInterval)
	}
	ctx.exodusQueue.Heapify()
	ctx.exodusStart = ctx.clock.T
	ctx.setPhase(entity.PhaseExodus)
	ctx.log.Infof("exodus: %d vehicles queued", ctx.exodusQueue.Len())
	return nil
}

// SpawnVehicle 立即生成一辆寻找车位的车辆
// 返回：无空闲车位时返回vehicle.ErrNoFreeSpot且不增加车辆
func (ctx *Context) SpawnVehicle() (*vehicle.Vehicle, error) {
	return ctx.vm.SpawnSeeking()
}

// Reset 回到初始IDLE状态
// 功能：清空车辆、队列与计数，释放全部车位，时钟归零并以原种子重置随机数
// 说明：幂等，连续调用两次得到相同状态
func (ctx *Context) Reset() {
	ctx.vm.Reset()
	ctx.topo.Spots().Reset()
	ctx.clock.Init()
	ctx.rng.Reseed(ctx.config.Control.Seed)
	ctx.spawnQueue.Clear()
	ctx.exodusQueue.Clear()
	ctx.spawnTail = 0
	ctx.credits = 0
	ctx.exodusStart = 0
	ctx.counters = counters{}
	ctx.parked, ctx.active = 0, 0
	ctx.nextSnapshot = 0
	ctx.phase = entity.PhaseIdle
	ctx.metrics.SetState(0, int(entity.PhaseIdle), 0, 0)
}

func (ctx *Context) setPhase(p entity.Phase) {
	if p <= ctx.phase {
		return
	}
	ctx.log.Infof("phase %v -> %v at %s", ctx.phase, p, ctx.clock)
	ctx.phase = p
}

// Close 请求停止无界面运行循环，可从其他协程调用
func (ctx *Context) Close() {
	ctx.closed.Store(true)
}
