package topology

import (
	"math"
)

// 平面距离、方向角与向量运算使用common/v2/geometry，这里只补充朝向规约

// NormalizeAngle 把角度规约到(-π, π]
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// HeadingDelta 两个朝向之差，规约到[0, 2π)
func HeadingDelta(a, b float64) float64 {
	d := math.Mod(a-b, 2*math.Pi)
	if d < 0 {
		d += 2 * math.Pi
	}
	return d
}
