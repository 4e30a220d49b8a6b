package vehicle

import "git.fiblab.net/general/common/v2/mathutil"

// Action 车辆纵向控制动作
// 说明：多个约束同时存在时取最小加速度（最保守）
type Action struct {
	A float64 // 加速度（米/秒²）
}

// newAction 不受约束的动作
func newAction() Action {
	return Action{A: mathutil.INF}
}

// Update 采用取最小的方式合并加速度
func (a *Action) Update(others ...Action) {
	for _, o := range others {
		if o.A < a.A {
			a.A = o.A
		}
	}
}

// computeVAndDistance 计算本时刻的速度与移动距离
// v(t)=v(t-1)+acc*dt, ds=v(t-1)*dt+acc*dt*dt/2
func computeVAndDistance(v, a, dt float64) (float64, float64) {
	dv := a * dt
	if v+dv < 0 {
		// 刹车到停止
		if a == 0 {
			return 0, 0
		}
		return 0, v * v / 2 / -a
	}
	return v + dv, (v + dv/2) * dt
}
