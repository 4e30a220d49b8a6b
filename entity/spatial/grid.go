// Package spatial 每步重建的均匀网格空间索引，用于邻车查询
package spatial

import "math"

// DefaultCellSize 默认网格边长（米）
const DefaultCellSize = 10.

type entry[T any] struct {
	x, y  float64
	value T
}

// Grid 均匀网格空间索引
// 功能：按(cellX, cellY)打包成的整数键把元素分桶，支持按半径查询
// 说明：
// 1. 索引不跨步保留状态，每步Clear后重新Insert
// 2. 桶以稠密切片存放并在Clear时保留容量，重建不产生新的分配
// 3. 世界范围不设上下界，格坐标用32位有符号整数表示
type Grid[T any] struct {
	cellSize float64
	inv      float64
	index    map[uint64]int32 // 打包键 -> buckets下标
	buckets  [][]entry[T]
	used     int // 本轮已启用的桶数
	count    int
}

// NewGrid 创建网格
// 参数：cellSize-网格边长，建议不小于最常用的查询半径
func NewGrid[T any](cellSize float64) *Grid[T] {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid[T]{
		cellSize: cellSize,
		inv:      1 / cellSize,
		index:    make(map[uint64]int32),
		buckets:  make([][]entry[T], 0),
	}
}

// Key 把格坐标打包为64位整数
func Key(cx, cy int32) uint64 {
	return uint64(uint32(cx))<<32 | uint64(uint32(cy))
}

func (g *Grid[T]) cell(v float64) int32 {
	return int32(math.Floor(v * g.inv))
}

// Clear 清空索引，保留桶容量
func (g *Grid[T]) Clear() {
	for i := 0; i < g.used; i++ {
		g.buckets[i] = g.buckets[i][:0]
	}
	clear(g.index)
	g.used = 0
	g.count = 0
}

// Len 已插入元素数
func (g *Grid[T]) Len() int {
	return g.count
}

// Insert 在(x, y)处插入元素
func (g *Grid[T]) Insert(x, y float64, value T) {
	k := Key(g.cell(x), g.cell(y))
	b, ok := g.index[k]
	if !ok {
		if g.used == len(g.buckets) {
			g.buckets = append(g.buckets, make([]entry[T], 0, 4))
		}
		b = int32(g.used)
		g.used++
		g.index[k] = b
	}
	g.buckets[b] = append(g.buckets[b], entry[T]{x: x, y: y, value: value})
	g.count++
}

// Query 查询(x, y)半径r内（含边界）的全部元素，追加到out后返回
// 说明：结果顺序为格的扫描顺序加桶内插入顺序，对同一次重建是确定的
func (g *Grid[T]) Query(x, y, r float64, out []T) []T {
	if r < 0 {
		return out
	}
	r2 := r * r
	minX, maxX := g.cell(x-r), g.cell(x+r)
	minY, maxY := g.cell(y-r), g.cell(y+r)
	for cx := minX; cx <= maxX; cx++ {
		for cy := minY; cy <= maxY; cy++ {
			b, ok := g.index[Key(cx, cy)]
			if !ok {
				continue
			}
			for _, e := range g.buckets[b] {
				dx, dy := e.x-x, e.y-y
				if dx*dx+dy*dy <= r2 {
					out = append(out, e.value)
				}
			}
		}
	}
	return out
}
