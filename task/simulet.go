package task

import (
	"errors"
	"flag"

	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/parking-sim/clock"
	"github.com/tsinghua-fib-lab/parking-sim/entity"
	"github.com/tsinghua-fib-lab/parking-sim/entity/vehicle"
	"gopkg.in/yaml.v2"
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// State 仿真状态的只读快照
type State struct {
	RunID       string             `json:"run_id" yaml:"run_id"`
	Time        float64            `json:"time" yaml:"time"`
	Step        int32              `json:"step" yaml:"step"`
	Phase       string             `json:"phase" yaml:"phase"`
	Spawned     int                `json:"spawned" yaml:"spawned"`
	PassThrough int                `json:"pass_through" yaml:"pass_through"`
	Parked      int                `json:"parked" yaml:"parked"`
	Exited      int                `json:"exited" yaml:"exited"`
	MissedTurns int                `json:"missed_turns" yaml:"missed_turns"`
	Collisions  int                `json:"collisions" yaml:"collisions"`
	Active      int                `json:"active" yaml:"active"`
	Throughput  float64            `json:"throughput" yaml:"throughput"`       // 离场阶段开始后每分钟驶出车辆数
	AvgExitTime float64            `json:"avg_exit_time" yaml:"avg_exit_time"` // 平均离场耗时（秒）
	Vehicles    []vehicle.Snapshot `json:"vehicles" yaml:"vehicles"`
}

// State 返回当前仿真状态
func (ctx *Context) State() State {
	return State{
		RunID:       ctx.runID.String(),
		Time:        ctx.clock.T,
		Step:        ctx.clock.InternalStep,
		Phase:       ctx.phase.String(),
		Spawned:     ctx.counters.spawned,
		PassThrough: ctx.counters.passThrough,
		Parked:      ctx.parked,
		Exited:      ctx.counters.exited,
		MissedTurns: ctx.counters.missedTurns,
		Collisions:  ctx.counters.collisions,
		Active:      ctx.active,
		Throughput:  ctx.throughput(),
		AvgExitTime: ctx.avgExitTime(),
		Vehicles:    ctx.vm.Snapshots(),
	}
}

func (ctx *Context) throughput() float64 {
	if ctx.phase < entity.PhaseExodus {
		return 0
	}
	minutes := (ctx.clock.T - ctx.exodusStart) / 60
	if minutes <= 0 {
		return 0
	}
	return float64(ctx.counters.exodusExited) / minutes
}

func (ctx *Context) avgExitTime() float64 {
	if ctx.counters.exited == 0 {
		return 0
	}
	return ctx.counters.exitTimeSum / float64(ctx.counters.exited)
}

// Step 推进一步仿真
// 功能：按固定流水线执行一个仿真步
// 参数：dt-步长（秒），被截断到[0, clock.MaxDT]
// 算法说明：
// 1. 准备阶段：重建空间网格，生成过境车辆，按计划生成入场车辆，按计划开始出库
// 2. 更新阶段：逐车更新，然后处理碰撞重叠
// 3. 收尾阶段：计数并移除已离开车辆，重算计数，推进时钟，判断阶段转换，输出快照
//
// 说明：本步生成的车辆不参与本步更新；固定dt序列与种子下结果确定
func (ctx *Context) Step(dt float64) {
	dt = clock.ClampDT(dt)
	ctx.prepare(dt)
	ctx.update(dt)
	ctx.finish(dt)
}

// prepare 准备阶段
func (ctx *Context) prepare(dt float64) {
	ctx.vm.Prepare()
	ctx.spawnPassThrough(dt)
	ctx.drainSpawnQueue()
	ctx.drainExodusQueue()
}

// spawnPassThrough 过境车流按每步伯努利抽样生成，p=rate/60·dt
func (ctx *Context) spawnPassThrough(dt float64) {
	rate := ctx.config.Traffic.RoadRate
	if rate <= 0 || !ctx.rng.PTrue(rate/60*dt) {
		return
	}
	if _, err := ctx.vm.SpawnPassThrough(); err != nil {
		log.Debugf("pass-through spawn skipped: %v", err)
	}
}

// drainSpawnQueue 生成已到计划时间的入场车辆
// 说明：
// 1. 主路上寻找入口的车辆达到上限时暂停
// 2. 生成点被占用时保留名额，下一步重试
// 3. 没有空闲车位时丢弃名额
func (ctx *Context) drainSpawnQueue() {
	approaching := ctx.vm.Count(func(v *vehicle.Vehicle) bool { return v.State == entity.StateApproaching })
	for !ctx.spawnQueue.Empty() {
		if _, at := ctx.spawnQueue.First(); at > ctx.clock.T {
			return
		}
		if approaching >= ctx.config.Traffic.MaxApproaching {
			return
		}
		_, err := ctx.vm.SpawnSeeking()
		switch {
		case errors.Is(err, vehicle.ErrSpawnBlocked):
			return
		case errors.Is(err, vehicle.ErrNoFreeSpot):
			ctx.log.Warnf("no free spot at %s, dropping scheduled spawn", ctx.clock)
		case err == nil:
			approaching++
		}
		ctx.spawnQueue.HeapPop()
	}
}

// drainExodusQueue 已到计划时间的停放车辆开始出库
func (ctx *Context) drainExodusQueue() {
	for _, id := range ctx.exodusQueue.PopUntil(ctx.clock.T, 0) {
		v, err := ctx.vm.Get(id)
		if err != nil {
			ctx.log.Warnf("exodus: %v", err)
			continue
		}
		if !v.BeginExit() {
			log.Debugf("exodus: vehicle %d is %v, skipped", id, v.State)
		}
	}
}

// update 更新阶段
func (ctx *Context) update(dt float64) {
	ctx.vm.Update(dt)
	n := ctx.vm.ResolveCollisions(dt)
	ctx.counters.collisions += n
	ctx.metrics.IncCollisions(n)
}

// finish 收尾阶段
func (ctx *Context) finish(dt float64) {
	for _, v := range ctx.vm.Evict() {
		switch d := v.ExitDuration(); {
		case v.MissedTurn():
			ctx.counters.missedTurns++
		case d >= 0:
			ctx.counters.exited++
			ctx.counters.exitTimeSum += d
			if ctx.phase >= entity.PhaseExodus {
				ctx.counters.exodusExited++
			}
		}
	}
	ctx.parked = ctx.topo.Spots().OccupiedCount()
	ctx.active = ctx.vm.Count(func(v *vehicle.Vehicle) bool { return v.State != entity.StateExited })

	ctx.clock.Advance(dt)
	ctx.updatePhase()
	ctx.metrics.SetState(ctx.clock.T, int(ctx.phase), ctx.active, ctx.parked)
	ctx.snapshot()
}

// updatePhase 根据车辆构成判断阶段转换
// 算法说明：
// 1. FILLING：生成队列为空且没有仍在寻找车位的车辆时进入WAITING
// 2. EXODUS：出库队列为空且没有停车场相关车辆时进入COMPLETE
func (ctx *Context) updatePhase() {
	switch ctx.phase {
	case entity.PhaseFilling:
		seeking := ctx.vm.Count(func(v *vehicle.Vehicle) bool {
			return v.Intent == entity.SeekingParking && v.State != entity.StateExited
		})
		if ctx.spawnQueue.Empty() && seeking == 0 {
			ctx.setPhase(entity.PhaseWaiting)
		}
	case entity.PhaseExodus:
		remaining := ctx.vm.Count(func(v *vehicle.Vehicle) bool {
			return v.Intent != entity.PassingThrough && v.State != entity.StateExited
		})
		if ctx.exodusQueue.Empty() && remaining == 0 {
			ctx.setPhase(entity.PhaseComplete)
		}
	}
}

// snapshot 按配置的间隔输出快照日志，调试级别下附带全部车辆
func (ctx *Context) snapshot() {
	if !ctx.config.Log.Enable || ctx.clock.T < ctx.nextSnapshot {
		return
	}
	ctx.nextSnapshot = ctx.clock.T + ctx.config.Log.Interval
	ctx.log.WithFields(logrus.Fields{
		"t":          ctx.clock.T,
		"phase":      ctx.phase.String(),
		"active":     ctx.active,
		"parked":     ctx.parked,
		"spawned":    ctx.counters.spawned,
		"exited":     ctx.counters.exited,
		"collisions": ctx.counters.collisions,
		"throughput": ctx.throughput(),
	}).Info("snapshot")
	if !ctx.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	out, err := yaml.Marshal(ctx.vm.Snapshots())
	if err != nil {
		ctx.log.Errorf("snapshot marshal: %v", err)
		return
	}
	ctx.log.Debugf("vehicles:\n%s", out)
}

// Run 无界面运行
// 功能：按配置入场，WAITING持续exodus_after秒后开始离场，直到完成、到达结束步或被关闭
func (ctx *Context) Run() {
	c := ctx.config.Control
	if err := ctx.FillLot(c.Fill); err != nil {
		log.Panicf("fill lot: %v", err)
	}
	waitingSince := -1.
	for !ctx.clock.Done() && ctx.phase != entity.PhaseComplete && !ctx.closed.Load() {
		ctx.Step(ctx.clock.DT)
		if ctx.phase == entity.PhaseWaiting {
			if waitingSince < 0 {
				waitingSince = ctx.clock.T
			}
			if ctx.clock.T-waitingSince >= c.ExodusAfter {
				if err := ctx.StartExodus(); err != nil {
					log.Panicf("start exodus: %v", err)
				}
			}
		}
		if *heartBeatInterval > 0 && ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
			hour, minute, second := ctx.clock.GetHourMinuteSecond()
			ctx.log.Infof(
				"STEP: %d(%d:%d:%.2f) %v active=%d parked=%d",
				ctx.clock.InternalStep,
				hour, minute, second,
				ctx.phase, ctx.active, ctx.parked,
			)
		}
	}
	s := ctx.State()
	ctx.log.Infof("engine complete: phase=%s spawned=%d exited=%d missed=%d collisions=%d avg_exit=%.1fs",
		s.Phase, s.Spawned, s.Exited, s.MissedTurns, s.Collisions, s.AvgExitTime)
}
