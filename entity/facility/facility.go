package facility

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Record 停车设施的输入记录
// 功能：描述场景输入中的一个停车设施，支持YAML与MongoDB（bson）两种来源
type Record struct {
	ID                 string  `yaml:"id" bson:"id"`
	X                  float64 `yaml:"x" bson:"x"`
	Y                  float64 `yaml:"y" bson:"y"`
	LinkID             string  `yaml:"link" bson:"link"`
	Type               string  `yaml:"type" bson:"type"`
	MaxParkingDuration float64 `yaml:"max_parking_duration,omitempty" bson:"max_parking_duration,omitempty"`
	Capacity           int     `yaml:"capacity" bson:"capacity"`
}

// Facility 停车设施
// 功能：目录构建后不可变的停车设施，包含位置、所属路段、容量与停车许可规则
type Facility struct {
	index    int
	id       string
	coord    orb.Point
	linkID   string
	capacity int
	category Category
	policy   Policy
}

// newFacility 根据输入记录创建停车设施
func newFacility(index int, r Record) (*Facility, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("parking facility #%d has empty id", index)
	}
	if r.Capacity < 0 {
		return nil, fmt.Errorf("parking facility %s has negative capacity %d", r.ID, r.Capacity)
	}
	category, err := ParseCategory(r.Type)
	if err != nil {
		return nil, fmt.Errorf("parking facility %s: %w", r.ID, err)
	}
	policy, err := newPolicy(category, r.MaxParkingDuration)
	if err != nil {
		return nil, fmt.Errorf("parking facility %s: %w", r.ID, err)
	}
	return &Facility{
		index:    index,
		id:       r.ID,
		coord:    orb.Point{r.X, r.Y},
		linkID:   r.LinkID,
		capacity: r.Capacity,
		category: category,
		policy:   policy,
	}, nil
}

// Index 设施在目录中的序号
func (f *Facility) Index() int {
	return f.index
}

func (f *Facility) ID() string {
	return f.id
}

func (f *Facility) Coord() orb.Point {
	return f.coord
}

// Point 实现orb.Pointer，用于空间索引
func (f *Facility) Point() orb.Point {
	return f.coord
}

func (f *Facility) LinkID() string {
	return f.linkID
}

func (f *Facility) Capacity() int {
	return f.capacity
}

func (f *Facility) Category() Category {
	return f.category
}

// IsAllowedToPark 请求者能否在[fromTime, toTime)时段内在该设施停车
func (f *Facility) IsAllowedToPark(fromTime, toTime float64, requesterID string) bool {
	return f.policy.IsAllowedToPark(fromTime, toTime, requesterID)
}

func (f *Facility) String() string {
	return fmt.Sprintf("Facility{ID:%s, Link:%s, Type:%s, Capacity:%d, Coord:%v}", f.id, f.linkID, f.category, f.capacity, f.coord)
}
