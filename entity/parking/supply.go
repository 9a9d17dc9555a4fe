package parking

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
)

// reserveResult 预约结果
type reserveResult int

const (
	reserved  reserveResult = iota // 成功
	rejected                       // 没有可用设施
	shortfall                      // 全局空位不足以完成多车位预约
)

func (r reserveResult) String() string {
	switch r {
	case reserved:
		return "reserved"
	case rejected:
		return "rejected"
	default:
		return "shortfall"
	}
}

// supply 车位供给
// 功能：持有占用计数表、空间索引与全局空位计数，所有修改在同一把锁内完成
// 说明：一个设施的占用变化与其索引插入/删除是一个原子单元，一次多车位预约整体也是一个原子单元
// 不变量：设施在索引中 <=> 占用 < 容量；free == 所有设施的(容量-占用)之和
type supply struct {
	mtx      sync.Mutex
	catalog  *facility.Catalog
	occupied *occupancyTable
	index    *spatialIndex
	free     int
}

// newSupply 构建车位供给，同步建立空间索引
// 说明：在模拟开始前调用，运行期间不存在延迟初始化
func newSupply(catalog *facility.Catalog) *supply {
	start := time.Now()
	s := &supply{
		catalog:  catalog,
		occupied: newOccupancyTable(catalog),
		index:    newSpatialIndex(catalog.Bound(), catalog.Len()),
	}
	for _, f := range catalog.All() {
		if f.Capacity() > 0 {
			s.index.insert(f)
		}
		s.free += f.Capacity()
	}
	log.Infof("parking spatial index built in %v: %d facilities within %v, %d free spaces",
		time.Since(start), s.index.len(), s.index.tree.Bound(), s.free)
	return s
}

// take 占用一个车位，设施变满时移出索引
func (s *supply) take(f *facility.Facility) {
	if s.occupied.increment(f.Index()) {
		s.index.remove(f)
	}
	s.free--
}

// give 释放一个车位，设施由满变为不满时重新加入索引
func (s *supply) give(f *facility.Facility) {
	if s.occupied.decrement(f.Index()) {
		s.index.insert(f)
	}
	s.free++
}

// reserveFirst 在候选设施中选择第一个有空位的设施，以其为锚点预约k个车位
// 功能：
// 1. 按顺序选出第一个有空位的候选设施，都没有空位时返回rejected
// 2. 全局空位少于k时不做任何修改，返回shortfall
// 3. 占用锚点设施的一个车位，之后每次查询距离锚点坐标最近的有空位设施并占用一个车位，直到占满k个
// 返回：按预约顺序排列的设施（同一设施可重复出现）与预约结果
func (s *supply) reserveFirst(candidates []*facility.Facility, k int) ([]*facility.Facility, reserveResult) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var target *facility.Facility
	for _, f := range candidates {
		if s.occupied.available(f.Index()) {
			target = f
			break
		}
	}
	if target == nil {
		return nil, rejected
	}
	if s.free < k {
		return nil, shortfall
	}
	spaces := make([]*facility.Facility, 0, k)
	s.take(target)
	spaces = append(spaces, target)
	for len(spaces) < k {
		f, ok := s.index.nearest(target.Coord())
		if !ok {
			log.Panicf("spatial index is empty with %d free spaces", s.free)
		}
		s.take(f)
		spaces = append(spaces, f)
	}
	return spaces, reserved
}

// release 释放一组车位
func (s *supply) release(spaces []*facility.Facility) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	for _, f := range spaces {
		s.give(f)
	}
}

func (s *supply) occupancy(f *facility.Facility) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.occupied.occupancy(f.Index())
}

// nearestWithFree 距离p最近的有空位设施及其空位数，在同一临界区内读取
func (s *supply) nearestWithFree(p orb.Point) (*facility.Facility, int, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	f, ok := s.index.nearest(p)
	if !ok {
		return nil, 0, false
	}
	return f, f.Capacity() - s.occupied.occupancy(f.Index()), true
}

// freeSpaces 一组设施的空位总数
func (s *supply) freeSpaces(fs []*facility.Facility) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	n := 0
	for _, f := range fs {
		n += f.Capacity() - s.occupied.occupancy(f.Index())
	}
	return n
}

// totalFree 全局空位数
func (s *supply) totalFree() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.free
}

// indexed 索引中的设施数
func (s *supply) indexed() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.index.len()
}

// snapshot 所有设施占用计数的一致快照
func (s *supply) snapshot() []int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.occupied.snapshot()
}
