package container

import "fmt"

// Handle 槽位句柄
// 功能：指向SlotMap中某个元素的稳定引用
// 说明：Index为槽位下标，Gen为代数；槽位被回收再分配后代数递增，旧句柄随即失效。
// 零值句柄（Gen==0）永远无效，可作为“无引用”的哨兵使用
type Handle struct {
	Index uint32
	Gen   uint32
}

// Valid 判断句柄是否为非零值（不检查是否仍指向存活元素）
func (h Handle) Valid() bool {
	return h.Gen != 0
}

func (h Handle) String() string {
	if !h.Valid() {
		return "Handle{nil}"
	}
	return fmt.Sprintf("Handle{%d@%d}", h.Index, h.Gen)
}

type slot[T any] struct {
	value T
	gen   uint32
	alive bool
}

// SlotMap 带代数标记的槽位数组，支持增量维护
// 功能：为仿真实体提供稳定句柄的存储，插入立即分配句柄，删除与加入遍历序列延迟到Prepare
// 说明：
// 1. Insert后元素可通过句柄Get到，但在Prepare前不会出现在Data()返回的遍历序列中
// 2. Remove只做标记，Prepare时才真正回收槽位并递增代数
// 3. 遍历序列保持插入顺序（集合顺序），被删除元素的位置被压缩掉
type SlotMap[T any] struct {
	slots  []slot[T]
	free   []uint32
	order  []Handle // 已生效元素的遍历顺序
	add    []Handle // 待加入遍历序列
	remove []Handle // 待回收
}

// NewSlotMap 创建槽位数组
func NewSlotMap[T any]() *SlotMap[T] {
	return &SlotMap[T]{
		slots:  make([]slot[T], 0),
		free:   make([]uint32, 0),
		order:  make([]Handle, 0),
		add:    make([]Handle, 0),
		remove: make([]Handle, 0),
	}
}

// Insert 插入元素
// 功能：分配槽位并返回句柄，元素在下一次Prepare后加入遍历序列
// 参数：value-要插入的元素
// 返回：新元素的句柄
// 算法说明：
// 1. 优先复用空闲槽位，否则在末尾追加新槽位
// 2. 代数加一，保证与该槽位历史上的所有句柄都不相等
func (m *SlotMap[T]) Insert(value T) Handle {
	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
	} else {
		idx = uint32(len(m.slots))
		m.slots = append(m.slots, slot[T]{})
	}
	s := &m.slots[idx]
	s.gen++
	s.value = value
	s.alive = true
	h := Handle{Index: idx, Gen: s.gen}
	m.add = append(m.add, h)
	return h
}

// Get 根据句柄获取元素
// 返回：元素值与是否存在；句柄过期或已回收时返回零值与false
func (m *SlotMap[T]) Get(h Handle) (T, bool) {
	if !m.Contains(h) {
		var zero T
		return zero, false
	}
	return m.slots[h.Index].value, true
}

// Contains 判断句柄是否仍指向存活元素
func (m *SlotMap[T]) Contains(h Handle) bool {
	if !h.Valid() || int(h.Index) >= len(m.slots) {
		return false
	}
	s := &m.slots[h.Index]
	return s.alive && s.gen == h.Gen
}

// Remove 删除元素（等到Prepare时才会真正回收）
// 说明：对失效句柄调用是无操作；同一Prepare周期内重复调用只记录一次
func (m *SlotMap[T]) Remove(h Handle) {
	if !m.Contains(h) {
		return
	}
	for _, r := range m.remove {
		if r == h {
			return
		}
	}
	m.remove = append(m.remove, h)
}

// Prepare 执行增量操作
// 功能：回收待删除槽位，把待加入元素追加到遍历序列末尾
// 算法说明：
// 1. 标记待删除槽位为非存活并清空其值，放入空闲列表
// 2. 原地过滤遍历序列，保持剩余元素的相对顺序
// 3. 追加本周期新插入且未被删除的元素
func (m *SlotMap[T]) Prepare() {
	var zero T
	for _, h := range m.remove {
		s := &m.slots[h.Index]
		s.alive = false
		s.value = zero
		m.free = append(m.free, h.Index)
	}
	kept := m.order[:0]
	for _, h := range m.order {
		if m.Contains(h) {
			kept = append(kept, h)
		}
	}
	for _, h := range m.add {
		if m.Contains(h) {
			kept = append(kept, h)
		}
	}
	m.order = kept
	m.add = m.add[:0]
	m.remove = m.remove[:0]
}

// Len 已生效元素数量
func (m *SlotMap[T]) Len() int {
	return len(m.order)
}

// Pending 尚未加入遍历序列的新元素数量
func (m *SlotMap[T]) Pending() int {
	return len(m.add)
}

// Handles 遍历序列中的句柄
// 说明：返回的切片在下次Prepare前有效，调用方不应修改
func (m *SlotMap[T]) Handles() []Handle {
	return m.order
}

// Data 按遍历顺序返回已生效元素
func (m *SlotMap[T]) Data() []T {
	out := make([]T, 0, len(m.order))
	for _, h := range m.order {
		out = append(out, m.slots[h.Index].value)
	}
	return out
}

// All 返回所有存活元素（含尚未Prepare的新元素），已生效元素在前
func (m *SlotMap[T]) All() []T {
	out := m.Data()
	for _, h := range m.add {
		if m.Contains(h) {
			out = append(out, m.slots[h.Index].value)
		}
	}
	return out
}

// Clear 清空全部元素
// 说明：槽位的代数保留，清空前发出的句柄在清空后全部失效
func (m *SlotMap[T]) Clear() {
	var zero T
	m.free = m.free[:0]
	for i := range m.slots {
		m.slots[i].alive = false
		m.slots[i].value = zero
		m.free = append(m.free, uint32(len(m.slots)-1-i))
	}
	m.order = m.order[:0]
	m.add = m.add[:0]
	m.remove = m.remove[:0]
}
