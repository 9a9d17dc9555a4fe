package vehicle

import (
	"fmt"
	"sort"
	"sync/atomic"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/container"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/input"
)

// Summary 车辆停车结果统计
type Summary struct {
	Vehicles   int   // 车辆数
	Facility   int64 // 停入设施的次数
	NoFacility int64 // 路段上没有设施而停在路边的次数
	Refused    int64 // 被拒绝后停在路边的次数
	Departures int64 // 离开次数
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"vehicles=%d facility=%d no_facility=%d refused=%d departures=%d",
		s.Vehicles, s.Facility, s.NoFacility, s.Refused, s.Departures,
	)
}

// VehicleManager 车辆管理器
// 功能：按停车需求驱动停车管理器，每步处理到期的到达与离开事件
type VehicleManager struct {
	ctx entity.ITaskContext

	data  map[string]*Vehicle
	queue *container.TimeQueue[*Vehicle] // 按下一个事件时刻排序

	counts     [3]atomic.Int64 // 按outcome计数
	nDepart    atomic.Int64
	arrivals   *prometheus.CounterVec
	departures prometheus.Counter
}

// NewManager 创建车辆管理器
func NewManager(ctx entity.ITaskContext) *VehicleManager {
	factory := promauto.With(ctx.Registerer())
	m := &VehicleManager{
		ctx:   ctx,
		data:  make(map[string]*Vehicle),
		queue: container.NewTimeQueue[*Vehicle](),
		arrivals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_vehicle_arrivals_total",
			Help: "Vehicle arrivals by where the vehicle ended up parking.",
		}, []string{"outcome"}),
		departures: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_vehicle_departures_total",
			Help: "Vehicle departures.",
		}),
	}
	return m
}

// Init 按车辆分组停车活动
// 功能：同一车辆的活动按到达时间排序，与前一个活动时间重叠的活动被丢弃
// 参数：activities-停车活动
func (m *VehicleManager) Init(activities []input.ParkingActivity) {
	groups := lo.GroupBy(activities, func(a input.ParkingActivity) string {
		return a.VehicleID
	})
	ids := lo.Keys(groups)
	sort.Strings(ids)
	dropped := 0
	for _, id := range ids {
		as := groups[id]
		sort.SliceStable(as, func(i, j int) bool {
			return as[i].Arrival < as[j].Arrival
		})
		kept := make([]input.ParkingActivity, 0, len(as))
		for _, a := range as {
			if n := len(kept); n > 0 && a.Arrival < kept[n-1].Departure {
				log.Warnf("drop %v: overlaps %v", a, kept[n-1])
				dropped++
				continue
			}
			kept = append(kept, a)
		}
		v := newVehicle(id, kept)
		m.data[id] = v
		m.queue.Push(v, v.nextEventTime())
	}
	log.Infof("vehicles: %d, activities: %d (%d dropped)", len(m.data), len(activities)-dropped, dropped)
}

// Update 更新阶段
// 功能：取出下一个事件不晚于t的车辆并发处理，处理后重新按下一个事件时刻入队
// 说明：不同车辆之间并发，同一车辆的事件串行
func (m *VehicleManager) Update(t float64) {
	due := m.queue.PopDue(t)
	if len(due) == 0 {
		return
	}
	parallel.GoFor(due, func(v *Vehicle) { v.step(m, t) })
	for _, v := range due {
		if !v.done() {
			m.queue.Push(v, v.nextEventTime())
		}
	}
}

// Pending 尚有未完成活动的车辆数
func (m *VehicleManager) Pending() int {
	return m.queue.Len()
}

// Summary 当前的停车结果统计
func (m *VehicleManager) Summary() Summary {
	return Summary{
		Vehicles:   len(m.data),
		Facility:   m.counts[outcomeFacility].Load(),
		NoFacility: m.counts[outcomeNoFacility].Load(),
		Refused:    m.counts[outcomeRefused].Load(),
		Departures: m.nDepart.Load(),
	}
}

func (m *VehicleManager) record(o outcome) {
	m.counts[o].Add(1)
	m.arrivals.WithLabelValues(o.String()).Inc()
}

func (m *VehicleManager) depart() {
	m.nDepart.Add(1)
	m.departures.Inc()
}
