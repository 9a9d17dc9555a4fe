package parking

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
)

// 索引边界在设施外包矩形基础上的外扩距离，保证单点或共线的设施集合也有合法边界
const boundPadding = 1.0

// spatialIndex 有空位设施的四叉树索引
// 功能：支持最近设施查询与单点插入/删除，present记录设施是否在索引中，使插入幂等
// 说明：不加锁，只能在supply的临界区内修改
type spatialIndex struct {
	tree    *quadtree.Quadtree
	present []bool
	size    int
}

func newSpatialIndex(bound orb.Bound, n int) *spatialIndex {
	return &spatialIndex{
		tree:    quadtree.New(bound.Pad(boundPadding)),
		present: make([]bool, n),
	}
}

// insert 插入设施，已在索引中时不做任何事
func (s *spatialIndex) insert(f *facility.Facility) {
	if s.present[f.Index()] {
		return
	}
	if err := s.tree.Add(f); err != nil {
		log.Panicf("failed to index %v: %v", f, err)
	}
	s.present[f.Index()] = true
	s.size++
}

// remove 删除设施，按指针匹配，坐标相同的其他设施不受影响
func (s *spatialIndex) remove(f *facility.Facility) {
	if !s.present[f.Index()] {
		return
	}
	if !s.tree.Remove(f, func(p orb.Pointer) bool { return p.(*facility.Facility) == f }) {
		log.Panicf("index lost %v", f)
	}
	s.present[f.Index()] = false
	s.size--
}

// nearest 距离p最近（欧氏距离）的有空位设施，索引为空时返回false
func (s *spatialIndex) nearest(p orb.Point) (*facility.Facility, bool) {
	if s.size == 0 {
		return nil, false
	}
	found := s.tree.Find(p)
	if found == nil {
		return nil, false
	}
	return found.(*facility.Facility), true
}

func (s *spatialIndex) contains(f *facility.Facility) bool {
	return s.present[f.Index()]
}

func (s *spatialIndex) len() int {
	return s.size
}
