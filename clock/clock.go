package clock

import (
	"fmt"

	"github.com/tsinghua-fib-lab/parking-sim/utils/config"
)

// MaxDT 单步允许的最大时间间隔（秒），超出部分被截断以保证积分稳定
const MaxDT = 0.1

// Clock 仿真时钟
// 功能：记录仿真时间与步数，步长由调用方逐步给出
// 说明：DT为配置中的默认步长，无界面运行器按DT推进；外部调用者可以传入任意dt，由ClampDT截断
type Clock struct {
	DT       float64 // 默认步长（秒）
	END_STEP int32   // 结束步，模拟区间[0, END)

	T            float64 // 当前时间（秒）
	InternalStep int32   // 当前步数
}

// New 根据配置创建新的时钟实例
// 参数：stepConfig-控制步配置
// 返回：初始化完成的时钟实例
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:       ClampDT(stepConfig.Interval),
		END_STEP: stepConfig.Total,
	}
	c.Init()
	return c
}

// Init 重置时钟状态
func (c *Clock) Init() {
	c.InternalStep = 0
	c.T = 0
}

// ClampDT 把步长限制在[0, MaxDT]
// 说明：NaN视为0
func ClampDT(dt float64) float64 {
	if !(dt > 0) {
		return 0
	}
	if dt > MaxDT {
		return MaxDT
	}
	return dt
}

// Advance 推进一步
// 参数：dt-已截断的步长
func (c *Clock) Advance(dt float64) {
	c.InternalStep++
	c.T += dt
}

// Done 是否已到达结束步（END_STEP<=0表示不限）
func (c *Clock) Done() bool {
	return c.END_STEP > 0 && c.InternalStep >= c.END_STEP
}

// String 获取时钟的字符串表示（HH:MM:SS）
func (c *Clock) String() string {
	h, m, s := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", h, m, int(s))
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	hour := int(c.T) / 3600
	minute := int(c.T) % 3600 / 60
	second := c.T - float64(hour*3600+minute*60)
	return hour, minute, second
}
