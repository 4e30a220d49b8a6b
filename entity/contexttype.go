package entity

import (
	"github.com/tsinghua-fib-lab/parking-sim/clock"
	"github.com/tsinghua-fib-lab/parking-sim/utils/metrics"
	"github.com/tsinghua-fib-lab/parking-sim/utils/randengine"
)

// ITaskContext 仿真任务上下文的依赖倒置
// 说明：实体包通过该接口访问时钟、拓扑与随机数，并向任务层回报事件
type ITaskContext interface {
	Clock() *clock.Clock
	Topology() ITopology
	Rand() *randengine.Engine
	Metrics() *metrics.Collector
	Phase() Phase

	Emit(e Event) // 发出生命周期事件
	// 错过入口后申请补发一个入场名额，返回是否成功（仅FILLING阶段且未超上限时成功）
	RequeueSpawn() bool
}
