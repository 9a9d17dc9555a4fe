package entity

import "fmt"

// FacilityRef 停车位置引用
// 功能：Tracked(id)表示目录中的停车设施，Outside表示不受管理的路边停车（容量不限，不计入占用与空间索引）
// 说明：零值即Outside
type FacilityRef struct {
	id      string
	tracked bool
}

// Outside 路边停车（不在任何受管理的设施内）
var Outside = FacilityRef{}

// Tracked 引用目录中的停车设施
func Tracked(id string) FacilityRef {
	return FacilityRef{id: id, tracked: true}
}

// IsOutside 是否为路边停车
func (r FacilityRef) IsOutside() bool {
	return !r.tracked
}

// ID 设施ID，Outside返回空字符串
func (r FacilityRef) ID() string {
	return r.id
}

func (r FacilityRef) String() string {
	if !r.tracked {
		return "outside"
	}
	return r.id
}

// ParkedLocation 车辆的实际停车位置
// 功能：记录车辆停放的路段与占用的设施（按预约顺序，同一设施可出现多次）
// 说明：Facilities为空表示停在路边（Outside）
type ParkedLocation struct {
	LinkID     string
	Facilities []string
}

// Outside 是否停在路边
func (l ParkedLocation) Outside() bool {
	return len(l.Facilities) == 0
}

// Facility 车辆所在的设施（第一个预约的设施）
func (l ParkedLocation) Facility() FacilityRef {
	if l.Outside() {
		return Outside
	}
	return Tracked(l.Facilities[0])
}

func (l ParkedLocation) String() string {
	return fmt.Sprintf("ParkedLocation{Link:%s, Facility:%v, Spaces:%d}", l.LinkID, l.Facility(), max(len(l.Facilities), 1))
}

// FacilityStatistics 单个设施的占用统计
type FacilityStatistics struct {
	LinkID     string `json:"link_id"`
	FacilityID string `json:"facility_id"`
	Capacity   int    `json:"capacity"`
	Occupied   int    `json:"occupied"`
}

// String 统计行，格式为 linkId;facilityId;capacity;occupied
func (s FacilityStatistics) String() string {
	return fmt.Sprintf("%s;%s;%d;%d", s.LinkID, s.FacilityID, s.Capacity, s.Occupied)
}
