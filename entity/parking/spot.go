package parking

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/parking-sim/utils/container"
)

var log = logrus.WithField("module", "parking")

// Spot 停车位
// 说明：Owner为预约该车位的车辆句柄，零值表示无人预约；一个车位最多一个Owner
type Spot struct {
	ID       int32
	Position geometry.Point // 车位中心
	Aisle    int            // 所属通道序号
	Side     int            // 位于通道哪一侧：+1为y增大一侧，-1为y减小一侧
	Occupied bool
	Owner    container.Handle
}

// Free 车位既未被占用也未被预约
func (s *Spot) Free() bool {
	return !s.Occupied && !s.Owner.Valid()
}

// Table 车位表
// 功能：维护全部车位的预约与占用状态
// 说明：只在生成（预约）、停稳（确认）、开始离场或错过入口（释放）三处被修改；单线程访问，无锁
type Table struct {
	spots []*Spot
}

// NewTable 由车位列表创建车位表，车位ID需与下标一致
func NewTable(spots []*Spot) *Table {
	for i, s := range spots {
		if int(s.ID) != i {
			log.Panicf("spot id %d at index %d", s.ID, i)
		}
	}
	return &Table{spots: spots}
}

func (t *Table) Len() int {
	return len(t.spots)
}

// Get 根据ID获取车位，不存在时返回nil
func (t *Table) Get(id int32) *Spot {
	if id < 0 || int(id) >= len(t.spots) {
		return nil
	}
	return t.spots[id]
}

// All 全部车位
func (t *Table) All() []*Spot {
	return t.spots
}

// FreeSpots 所有空闲车位（按ID升序）
func (t *Table) FreeSpots() []*Spot {
	out := make([]*Spot, 0)
	for _, s := range t.spots {
		if s.Free() {
			out = append(out, s)
		}
	}
	return out
}

// OccupiedCount 被占用的车位数
func (t *Table) OccupiedCount() int {
	n := 0
	for _, s := range t.spots {
		if s.Occupied {
			n++
		}
	}
	return n
}

// Reserve 预约车位
// 说明：车位必须空闲，否则视为程序错误
func (t *Table) Reserve(s *Spot, owner container.Handle) {
	if !owner.Valid() {
		log.Panicf("reserve spot %d with nil owner", s.ID)
	}
	if !s.Free() {
		log.Panicf("spot %d already reserved by %v (occupied=%v)", s.ID, s.Owner, s.Occupied)
	}
	s.Owner = owner
}

// Confirm 车辆停稳，标记占用
func (t *Table) Confirm(s *Spot, owner container.Handle) {
	if s.Owner != owner {
		log.Panicf("spot %d confirmed by %v but owned by %v", s.ID, owner, s.Owner)
	}
	s.Occupied = true
}

// Release 释放车位
// 说明：只有当前Owner可以释放，否则为无操作并返回false
func (t *Table) Release(s *Spot, owner container.Handle) bool {
	if s.Owner != owner {
		log.Warnf("spot %d release by %v ignored, owner %v", s.ID, owner, s.Owner)
		return false
	}
	s.Owner = container.Handle{}
	s.Occupied = false
	return true
}

// Reset 清空全部预约与占用
func (t *Table) Reset() {
	for _, s := range t.spots {
		s.Owner = container.Handle{}
		s.Occupied = false
	}
}
