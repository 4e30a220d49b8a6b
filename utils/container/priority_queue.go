package container

import "container/heap"

// item 优先队列中单个元素
type item[T any] struct {
	Value    T
	Priority float64 // 越小越优先
	seq      uint64  // 入队序号，优先级相同时先入先出
	index    int
}

type priorityQueue[T any] []*item[T]

func (pq priorityQueue[T]) Len() int { return len(pq) }

func (pq priorityQueue[T]) Less(i, j int) bool {
	if pq[i].Priority == pq[j].Priority {
		return pq[i].seq < pq[j].seq
	}
	return pq[i].Priority < pq[j].Priority
}

func (pq priorityQueue[T]) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue[T]) Push(x any) {
	it := x.(*item[T])
	it.index = len(*pq)
	*pq = append(*pq, it)
}

func (pq *priorityQueue[T]) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // 避免内存泄漏
	it.index = -1
	*pq = old[0 : n-1]
	return it
}

// PriorityQueue 最小堆优先队列
// 功能：按时间等数值键排序的调度队列，用于分批生成车辆和离场排程
// 说明：优先级相同时按入队顺序出队，保证同一随机种子下的确定性
type PriorityQueue[T any] struct {
	queue priorityQueue[T]
	seq   uint64
}

// NewPriorityQueue 创建优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{queue: make(priorityQueue[T], 0)}
}

// Len 获取当前队列长度
func (q *PriorityQueue[T]) Len() int {
	return len(q.queue)
}

// Empty 队列是否为空
func (q *PriorityQueue[T]) Empty() bool {
	return len(q.queue) == 0
}

// First 查看优先级数值最小的元素（不移除）
// 说明：空队列调用会越界，调用前应检查Len
func (q *PriorityQueue[T]) First() (T, float64) {
	return q.queue[0].Value, q.queue[0].Priority
}

// Push 加入元素（简单添加）
// 说明：不维护堆结构，批量添加后需要调用Heapify()
func (q *PriorityQueue[T]) Push(value T, priority float64) {
	q.seq++
	q.queue = append(q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		seq:      q.seq,
	})
}

// Heapify 重新构建堆
func (q *PriorityQueue[T]) Heapify() {
	heap.Init(&q.queue)
}

// HeapPush 加入元素（堆操作）
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	q.seq++
	heap.Push(&q.queue, &item[T]{
		Value:    value,
		Priority: priority,
		seq:      q.seq,
	})
}

// HeapPop 弹出优先级数值最小的元素（堆操作）
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	it := heap.Pop(&q.queue).(*item[T])
	return it.Value, it.Priority
}

// PopUntil 弹出所有优先级数值不大于limit的元素，最多max个（max<=0表示不限）
// 功能：按截止时间批量取出到期的调度项
func (q *PriorityQueue[T]) PopUntil(limit float64, max int) []T {
	out := make([]T, 0)
	for len(q.queue) > 0 && q.queue[0].Priority <= limit {
		if max > 0 && len(out) >= max {
			break
		}
		v, _ := q.HeapPop()
		out = append(out, v)
	}
	return out
}

// Clear 清空队列
func (q *PriorityQueue[T]) Clear() {
	q.queue = q.queue[:0]
	q.seq = 0
}
