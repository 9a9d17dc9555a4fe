package vehicle

import (
	"math"

	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/input"
)

// 到达时的停车结果
type outcome int

const (
	outcomeFacility outcome = iota // 停入受管理的设施
	outcomeNoFacility              // 路段上没有设施，停在路边
	outcomeRefused                 // 设施拒绝或已满，停在路边
)

func (o outcome) String() string {
	switch o {
	case outcomeFacility:
		return "facility"
	case outcomeNoFacility:
		return "no_facility"
	default:
		return "refused"
	}
}

// Vehicle 按停车活动序列行动的车辆
// 功能：依次执行停车活动，每个活动包含到达停车与离开两个事件
// 说明：同一车辆的事件只由一个协程处理
type Vehicle struct {
	id         string
	activities []input.ParkingActivity // 按到达时间排序且互不重叠

	next   int  // 下一个未完成的活动
	parked bool // 是否正处于activities[next]的停车中
}

func newVehicle(id string, activities []input.ParkingActivity) *Vehicle {
	return &Vehicle{id: id, activities: activities}
}

func (v *Vehicle) ID() string {
	return v.id
}

// done 所有活动都已完成
func (v *Vehicle) done() bool {
	return v.next >= len(v.activities)
}

// nextEventTime 下一个事件（到达或离开）的时刻，全部完成时为+Inf
func (v *Vehicle) nextEventTime() float64 {
	if v.done() {
		return math.Inf(1)
	}
	a := v.activities[v.next]
	if v.parked {
		return a.Departure
	}
	return a.Arrival
}

// step 处理所有不晚于t的事件
func (v *Vehicle) step(m *VehicleManager, t float64) {
	for !v.done() && v.nextEventTime() <= t {
		a := v.activities[v.next]
		if !v.parked {
			m.record(v.arrive(m.ctx.ParkingManager(), a, t))
			v.parked = true
		} else {
			m.ctx.ParkingManager().Unpark(v.id, t)
			m.depart()
			v.parked = false
			v.next++
		}
	}
}

// arrive 到达后预约并停车
// 算法说明：
// 1. 指定了设施时，先在该设施预约，设施ID未知时退化为按路段预约
// 2. 未指定设施时，在路段上按设施顺序预约
// 3. 路段上没有设施或预约被拒绝时，停在路边（Outside）
func (v *Vehicle) arrive(pm entity.IParkingManager, a input.ParkingActivity, t float64) outcome {
	linkID := a.LinkID
	if a.FacilityID != "" {
		f, err := pm.Catalog().GetOrError(a.FacilityID)
		if err != nil {
			log.Warnf("vehicle %s: %v, fall back to link %q", v.id, err, linkID)
		} else {
			if linkID == "" {
				linkID = f.LinkID()
			}
			ref := entity.Tracked(f.ID())
			if pm.ReserveAtFacility(v.id, ref, a.Arrival, a.Departure) {
				pm.ParkAtFacility(v.id, ref, t)
				return outcomeFacility
			}
			return v.parkOutside(pm, linkID, a, t, outcomeRefused)
		}
	}
	if !pm.HasFacilityAtLink(linkID) {
		return v.parkOutside(pm, linkID, a, t, outcomeNoFacility)
	}
	if pm.ReserveAtLink(v.id, linkID, a.Arrival, a.Departure) {
		pm.ParkAtLink(v.id, linkID, t)
		return outcomeFacility
	}
	return v.parkOutside(pm, linkID, a, t, outcomeRefused)
}

func (v *Vehicle) parkOutside(pm entity.IParkingManager, linkID string, a input.ParkingActivity, t float64, o outcome) outcome {
	pm.ReserveAtFacility(v.id, entity.Outside, a.Arrival, a.Departure)
	pm.ParkAtLink(v.id, linkID, t)
	return o
}
