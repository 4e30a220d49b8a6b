// 随机数引擎，包装了golang.org/x/exp/rand，提供仿真中用到的随机数生成方法
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎
// 功能：为单线程仿真循环提供可复现的随机数
// 说明：同一种子（含偏移量）与同一dt序列下，仿真结果逐步一致
type Engine struct {
	*rand.Rand
}

// New 创建随机数引擎
// 参数：seed-随机数种子（实际种子为seed+rand.seed_offset）
func New(seed uint64) *Engine {
	e := &Engine{}
	e.Reseed(seed)
	return e
}

// Reseed 以新种子重置随机序列
func (e *Engine) Reseed(seed uint64) {
	e.Rand = rand.New(rand.NewSource(seed + *seedOffset))
}

// PTrue 以指定概率返回true
// 说明：伯努利抽样，p<=0恒为false，p>=1恒为true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Uniform 生成[low, high)区间内的均匀分布随机数
func (e *Engine) Uniform(low, high float64) float64 {
	return low + (high-low)*e.Float64()
}
