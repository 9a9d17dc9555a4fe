package facility

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

// Catalog 停车设施目录
// 功能：加载后不可变的停车设施登记表，支持按ID与按所属路段查找
// 说明：构建完成后只读，可被多个协程并发访问
type Catalog struct {
	facilities []*Facility
	data       map[string]*Facility
	byLink     map[string][]*Facility // 路段上的设施，保持输入顺序
}

// NewCatalog 根据输入记录构建停车设施目录
// 功能：为每条记录构造对应类型的停车许可规则，建立ID与路段索引
// 参数：records-停车设施输入记录
// 返回：设施目录；记录中存在未知类型、重复ID、空ID或负容量时返回错误
func NewCatalog(records []Record) (*Catalog, error) {
	c := &Catalog{
		facilities: make([]*Facility, 0, len(records)),
		data:       make(map[string]*Facility, len(records)),
		byLink:     make(map[string][]*Facility),
	}
	for i, r := range records {
		f, err := newFacility(i, r)
		if err != nil {
			return nil, err
		}
		if _, ok := c.data[f.id]; ok {
			return nil, fmt.Errorf("duplicated parking facility id %s", f.id)
		}
		c.facilities = append(c.facilities, f)
		c.data[f.id] = f
		c.byLink[f.linkID] = append(c.byLink[f.linkID], f)
	}
	log.Infof("parking facility catalog: %d facilities on %d links, %d spaces",
		len(c.facilities), len(c.byLink), c.TotalCapacity())
	for category, n := range lo.CountValuesBy(c.facilities, (*Facility).Category) {
		log.Debugf("parking facility type %s: %d", category, n)
	}
	return c, nil
}

// Get 根据ID获取设施，如果不存在则panic
func (c *Catalog) Get(id string) *Facility {
	if f, ok := c.data[id]; !ok {
		log.Panicf("no id %s in parking facility data", id)
		return nil
	} else {
		return f
	}
}

// GetOrError 根据ID获取设施，如果不存在则返回错误
func (c *Catalog) GetOrError(id string) (*Facility, error) {
	if f, ok := c.data[id]; !ok {
		return nil, fmt.Errorf("no id %s in parking facility data", id)
	} else {
		return f, nil
	}
}

// FacilitiesAtLink 获取路段上的所有设施（目录顺序），路段上没有设施时返回空
func (c *Catalog) FacilitiesAtLink(linkID string) []*Facility {
	return c.byLink[linkID]
}

// Capacity 获取设施容量，设施不存在则panic
func (c *Catalog) Capacity(id string) int {
	return c.Get(id).capacity
}

// All 获取所有设施（目录顺序）
func (c *Catalog) All() []*Facility {
	return c.facilities
}

func (c *Catalog) Len() int {
	return len(c.facilities)
}

// TotalCapacity 所有设施的总车位数
func (c *Catalog) TotalCapacity() int {
	return lo.SumBy(c.facilities, func(f *Facility) int { return f.capacity })
}

// Bound 所有设施坐标的外包矩形，目录为空时返回原点处的空矩形
func (c *Catalog) Bound() orb.Bound {
	if len(c.facilities) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: c.facilities[0].coord, Max: c.facilities[0].coord}
	for _, f := range c.facilities[1:] {
		b = b.Extend(f.coord)
	}
	return b
}
