package parking

import "github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"

// occupancyTable 设施占用计数表，按目录序号索引
// 说明：不加锁，只能在supply的临界区内访问
type occupancyTable struct {
	capacity []int
	occupied []int
}

func newOccupancyTable(catalog *facility.Catalog) *occupancyTable {
	t := &occupancyTable{
		capacity: make([]int, catalog.Len()),
		occupied: make([]int, catalog.Len()),
	}
	for i, f := range catalog.All() {
		t.capacity[i] = f.Capacity()
	}
	return t
}

func (t *occupancyTable) occupancy(i int) int {
	return t.occupied[i]
}

// available 设施是否还有空位
func (t *occupancyTable) available(i int) bool {
	return t.occupied[i] < t.capacity[i]
}

// increment 占用一个车位，返回占用后设施是否已满
func (t *occupancyTable) increment(i int) (full bool) {
	if t.occupied[i] >= t.capacity[i] {
		log.Panicf("occupancy of facility #%d exceeds capacity %d", i, t.capacity[i])
	}
	t.occupied[i]++
	return t.occupied[i] == t.capacity[i]
}

// decrement 释放一个车位，返回释放前设施是否已满
func (t *occupancyTable) decrement(i int) (wasFull bool) {
	if t.occupied[i] <= 0 {
		log.Panicf("release facility #%d with no occupied space", i)
	}
	wasFull = t.occupied[i] == t.capacity[i]
	t.occupied[i]--
	return
}

// snapshot 当前占用计数的拷贝
func (t *occupancyTable) snapshot() []int {
	return append([]int(nil), t.occupied...)
}
