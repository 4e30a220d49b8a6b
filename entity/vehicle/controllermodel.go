package vehicle

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
)

const (
	idmTheta    = 4    // IDM加速度指数δ
	maxBrakingA = -9.  // 加速度下限（米/秒²）
	freeGap     = 100. // 间距不小于该值时视为自由流
)

// IDM 智能驾驶模型参数
// https://en.wikipedia.org/wiki/Intelligent_driver_model
type IDM struct {
	T  float64 // 安全车头时距（秒）
	S0 float64 // 静止最小间距（米）
	A  float64 // 最大加速度（米/秒²）
	B  float64 // 舒适减速度（米/秒²，正值）
}

// 三组场景参数
var (
	// 主路：车头时距较大，速度较高
	OpenRoadIDM = IDM{T: 1.5, S0: 2, A: 1.5, B: 2}
	// 停车场：间距更紧，加速更缓
	LotIDM = IDM{T: 1, S0: 1, A: 1, B: 1.5}
	// 汇入：间距紧，保持正常加速度
	MergeIDM = IDM{T: 1, S0: 1.5, A: 1.5, B: 2}
)

// DesiredGap 期望间距 s* = s0 + max(0, v*T + v*(v-vLead)/(2*sqrt(a*b)))
func (m IDM) DesiredGap(v, vLead float64) float64 {
	return m.S0 + math.Max(0, v*m.T+v*(v-vLead)/2/math.Sqrt(m.A*m.B))
}

// Accel IDM加速度
// 功能：根据本车速度、期望速度、间距与前车速度计算纵向加速度
// 参数：v-本车速度，v0-期望速度，gap-与前车的净间距，vLead-前车速度
// 返回：限制在[maxBrakingA, A]内的加速度
// 算法说明：
// 1. 间距不大于0（已重叠）时紧急制动
// 2. 否则 a = A * (1 - (v/v0)^δ - (s*/gap)^2)
// 说明：无前车时gap传mathutil.INF
func (m IDM) Accel(v, v0, gap, vLead float64) float64 {
	var acc float64
	if gap <= 0 {
		acc = -mathutil.INF
	} else {
		if v0 <= 0 {
			v0 = 1e-3
		}
		acc = m.A * (1 - math.Pow(v/v0, idmTheta) - math.Pow(m.DesiredGap(v, vLead)/gap, 2))
	}
	return lo.Clamp(acc, maxBrakingA, m.A)
}

// EquilibriumSpeed 给定间距下加速度为零的目标速度
// 功能：返回IDM在当前间距下的近似平衡速度，作为目标速度展示与爬行兜底
// 参数：gap-净间距，vLead-前车速度，v0-期望速度，c-爬行参数
// 算法说明：
// 1. 间距为负：返回Base*Overlap的爬行速度，避免永久锁死
// 2. 间距在[0, EmergencyZone)：爬行比例从EmergencyMin线性升至EmergencyMax
// 3. 间距不大于s0：0
// 4. 间距不小于freeGap：v0
// 5. 其余在s0与freeGap之间线性插值；若间距足以按前车速度跟驰，则不低于min(vLead, v0)
func (m IDM) EquilibriumSpeed(gap, vLead, v0 float64, c Creep) float64 {
	switch {
	case gap < 0:
		return c.Base * c.Overlap
	case gap < c.EmergencyZone:
		k := gap / c.EmergencyZone
		return c.Base * (c.EmergencyMin + (c.EmergencyMax-c.EmergencyMin)*k)
	case gap <= m.S0:
		return 0
	case gap >= freeGap:
		return v0
	}
	eq := v0 * (gap - m.S0) / (freeGap - m.S0)
	if vLead > 0 && gap >= m.S0+vLead*m.T {
		eq = math.Max(eq, math.Min(vLead, v0))
	}
	return eq
}

// LegacyThrottle 比例油门
// 功能：用于驶入车位、倒车出库等不适合IDM的低速机动
// 返回：base * clamp(gap/desiredGap, floor, 1)
func LegacyThrottle(base, gap, desiredGap, floor float64) float64 {
	if desiredGap <= 0 {
		return base
	}
	return base * lo.Clamp(gap/desiredGap, floor, 1)
}
