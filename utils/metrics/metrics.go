// Package metrics 仿真运行指标，以Prometheus格式导出
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector 仿真指标收集器
// 说明：所有方法对nil接收者安全，未启用监控时仿真核心可直接传nil
type Collector struct {
	gatherer prometheus.Gatherer

	Events           *prometheus.CounterVec // 按事件类型计数（spawn/parked/exited/stuck）
	Collisions       prometheus.Counter     // 碰撞重叠处理次数
	MissedTurns      prometheus.Counter     // 错过入口的车辆数
	ActiveVehicles   prometheus.Gauge       // 当前活动车辆数
	OccupiedSpots    prometheus.Gauge       // 当前被占用的车位数
	Phase            prometheus.Gauge       // 当前阶段（枚举序号）
	ExitDuration     prometheus.Histogram   // 离场耗时（秒）
	SimulationSecond prometheus.Gauge       // 当前仿真时间（秒）
}

// New 在给定Registerer上注册仿真指标
// 参数：reg-注册器，为nil时使用prometheus.DefaultRegisterer
// 返回：收集器与错误；同名指标已注册时复用已有实例
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}
	var err error

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_sim_events_total",
		Help: "Vehicle lifecycle events emitted by the simulation.",
	}, []string{"type"})
	if c.Events, err = registerCounterVec(reg, events, "parking_sim_events_total"); err != nil {
		return nil, err
	}
	if c.Collisions, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_sim_collisions_total",
		Help: "Overlapping vehicle pairs resolved by the collision pass.",
	}), "parking_sim_collisions_total"); err != nil {
		return nil, err
	}
	if c.MissedTurns, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parking_sim_missed_turns_total",
		Help: "Vehicles that overshot the lot entrance and were force-exited.",
	}), "parking_sim_missed_turns_total"); err != nil {
		return nil, err
	}
	if c.ActiveVehicles, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_sim_active_vehicles",
		Help: "Vehicles currently tracked by the simulation.",
	}), "parking_sim_active_vehicles"); err != nil {
		return nil, err
	}
	if c.OccupiedSpots, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_sim_occupied_spots",
		Help: "Parking spots currently occupied.",
	}), "parking_sim_occupied_spots"); err != nil {
		return nil, err
	}
	if c.Phase, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_sim_phase",
		Help: "Simulation phase (0 idle, 1 filling, 2 waiting, 3 exodus, 4 complete).",
	}), "parking_sim_phase"); err != nil {
		return nil, err
	}
	if c.SimulationSecond, err = registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parking_sim_time_seconds",
		Help: "Simulated time elapsed in the current run.",
	}), "parking_sim_time_seconds"); err != nil {
		return nil, err
	}
	exit := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "parking_sim_exit_duration_seconds",
		Help:    "Time from leaving the spot to reaching the end of the main road.",
		Buckets: []float64{10, 20, 30, 45, 60, 90, 120, 180, 300},
	})
	if c.ExitDuration, err = registerHistogram(reg, exit, "parking_sim_exit_duration_seconds"); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer 返回与收集器关联的Gatherer
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// IncEvent 事件计数
func (c *Collector) IncEvent(kind string) {
	if c == nil || c.Events == nil {
		return
	}
	c.Events.WithLabelValues(kind).Inc()
}

// IncCollisions 碰撞计数
func (c *Collector) IncCollisions(n int) {
	if c == nil || c.Collisions == nil || n <= 0 {
		return
	}
	c.Collisions.Add(float64(n))
}

// IncMissedTurns 错过入口计数
func (c *Collector) IncMissedTurns() {
	if c == nil || c.MissedTurns == nil {
		return
	}
	c.MissedTurns.Inc()
}

// ObserveExit 记录一次离场耗时
func (c *Collector) ObserveExit(seconds float64) {
	if c == nil || c.ExitDuration == nil || seconds < 0 {
		return
	}
	c.ExitDuration.Observe(seconds)
}

// SetState 更新状态类仪表
func (c *Collector) SetState(t float64, phase int, active, occupied int) {
	if c == nil {
		return
	}
	if c.SimulationSecond != nil {
		c.SimulationSecond.Set(t)
	}
	if c.Phase != nil {
		c.Phase.Set(float64(phase))
	}
	if c.ActiveVehicles != nil {
		c.ActiveVehicles.Set(float64(active))
	}
	if c.OccupiedSpots != nil {
		c.OccupiedSpots.Set(float64(occupied))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
