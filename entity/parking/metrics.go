package parking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 预约类型
const (
	kindLink     = "link"
	kindFacility = "facility"
	kindOutside  = "outside"
)

// metrics 停车管理的监控指标
type metrics struct {
	reservations   *prometheus.CounterVec // 按类型与结果统计的预约次数
	spacesReserved prometheus.Counter
	spacesReleased prometheus.Counter
	shortfalls     prometheus.Counter
}

// newMetrics 创建监控指标，reg为nil时不注册
// 参数：reg-指标注册器，s-车位供给（用于占用与索引规模的实时指标）
func newMetrics(reg prometheus.Registerer, s *supply) *metrics {
	factory := promauto.With(reg)
	m := &metrics{
		reservations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parking_reservations_total",
			Help: "Parking reservation requests by kind and result.",
		}, []string{"kind", "result"}),
		spacesReserved: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_spaces_reserved_total",
			Help: "Tracked parking spaces reserved, counting every space of a scaled-up reservation.",
		}),
		spacesReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_spaces_released_total",
			Help: "Tracked parking spaces released by unpark or cancellation.",
		}),
		shortfalls: factory.NewCounter(prometheus.CounterOpts{
			Name: "parking_shortfall_total",
			Help: "Reservations refused because fewer spaces were free system-wide than one vehicle represents.",
		}),
	}
	total := float64(s.catalog.TotalCapacity())
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "parking_occupied_spaces",
		Help: "Occupied tracked parking spaces.",
	}, func() float64 {
		return total - float64(s.totalFree())
	})
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "parking_available_facilities",
		Help: "Facilities with at least one free space (spatial index size).",
	}, func() float64 {
		return float64(s.indexed())
	})
	return m
}

func (m *metrics) observe(kind string, result reserveResult, spaces int) {
	m.reservations.WithLabelValues(kind, result.String()).Inc()
	switch result {
	case reserved:
		m.spacesReserved.Add(float64(spaces))
	case shortfall:
		m.shortfalls.Inc()
	}
}
