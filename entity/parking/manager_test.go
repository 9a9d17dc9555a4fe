package parking

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-parking/clock"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/config"
)

var _ entity.IParkingManager = (*ParkingManager)(nil)

type fakeContext struct {
	rc  *config.RuntimeConfig
	reg prometheus.Registerer
}

func (c *fakeContext) Clock() *clock.Clock                     { return nil }
func (c *fakeContext) RuntimeConfig() *config.RuntimeConfig    { return c.rc }
func (c *fakeContext) ParkingManager() entity.IParkingManager { return nil }
func (c *fakeContext) VehicleManager() entity.IVehicleManager { return nil }
func (c *fakeContext) Registerer() prometheus.Registerer       { return c.reg }

func newTestManager(t *testing.T, sampleSize float64, records []facility.Record) (*ParkingManager, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	ctx := &fakeContext{
		rc: config.NewRuntimeConfig(config.Config{
			Control: config.Control{Parking: config.Parking{SampleSize: sampleSize}},
		}),
		reg: reg,
	}
	m := NewManager(ctx)
	m.Init(records)
	return m, reg
}

func garage(id, link string, x, y float64, capacity int) facility.Record {
	return facility.Record{ID: id, X: x, Y: y, LinkID: link, Type: "Garage", Capacity: capacity}
}

// checkInvariants 占用不超过容量，设施在索引中当且仅当有空位，全局空位计数一致
func checkInvariants(t *testing.T, m *ParkingManager) {
	t.Helper()
	s := m.supply
	s.mtx.Lock()
	defer s.mtx.Unlock()
	free, available := 0, 0
	for _, f := range m.catalog.All() {
		occ := s.occupied.occupancy(f.Index())
		require.GreaterOrEqual(t, occ, 0, f.ID())
		require.LessOrEqual(t, occ, f.Capacity(), f.ID())
		require.Equal(t, occ < f.Capacity(), s.index.contains(f), f.ID())
		free += f.Capacity() - occ
		if occ < f.Capacity() {
			available++
		}
	}
	require.Equal(t, free, s.free)
	require.Equal(t, available, s.index.len())
}

func TestSingleFacilityScenario(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{garage("A", "L", 5, 5, 1)})
	assert.Equal(t, 1, m.VehiclesPerVehicle())

	assert.True(t, m.ReserveAtLink("v1", "L", 0, 100))
	m.ParkAtLink("v1", "L", 0)
	assert.Equal(t, 1, m.Occupancy("A"))
	checkInvariants(t, m)

	assert.False(t, m.ReserveAtLink("v2", "L", 0, 100))
	_, _, ok := m.NearestAvailable(orb.Point{5, 5})
	assert.False(t, ok)

	m.Unpark("v1", 50)
	assert.Equal(t, 0, m.Occupancy("A"))
	f, _, ok := m.NearestAvailable(orb.Point{5, 5})
	require.True(t, ok)
	assert.Equal(t, "A", f.ID())
	checkInvariants(t, m)

	assert.True(t, m.ReserveAtLink("v2", "L", 0, 100))
	checkInvariants(t, m)
}

func TestScaleUpScenario(t *testing.T) {
	m, _ := newTestManager(t, 0.5, []facility.Record{
		garage("A", "L1", 0, 0, 1),
		garage("B", "L2", 1, 0, 1),
		garage("C", "L3", 100, 0, 1),
	})
	assert.Equal(t, 2, m.VehiclesPerVehicle())

	assert.True(t, m.ReserveAtFacility("v1", entity.Tracked("A"), 0, 100))
	assert.Equal(t, 1, m.Occupancy("A"))
	assert.Equal(t, 1, m.Occupancy("B"))
	assert.Equal(t, 0, m.Occupancy("C"))
	assert.False(t, m.supply.index.contains(m.catalog.Get("A")))
	assert.False(t, m.supply.index.contains(m.catalog.Get("B")))
	checkInvariants(t, m)

	loc := m.ParkAtFacility("v1", entity.Tracked("A"), 10)
	assert.Equal(t, entity.ParkedLocation{LinkID: "L1", Facilities: []string{"A", "B"}}, loc)
}

func TestScaleUpReusesAnchor(t *testing.T) {
	m, _ := newTestManager(t, 1.0/3, []facility.Record{
		garage("A", "L1", 0, 0, 5),
		garage("B", "L1", 1, 0, 5),
	})
	assert.Equal(t, 3, m.VehiclesPerVehicle())

	assert.True(t, m.ReserveAtLink("v1", "L1", 0, 100))
	loc := m.ParkAtLink("v1", "L1", 0)
	assert.Equal(t, []string{"A", "A", "A"}, loc.Facilities)
	assert.Equal(t, 3, m.Occupancy("A"))
	checkInvariants(t, m)

	// 锚点只剩2个空位，第3个车位取最近的B
	assert.True(t, m.ReserveAtLink("v2", "L1", 0, 100))
	loc = m.ParkAtLink("v2", "L1", 0)
	assert.Equal(t, []string{"A", "A", "B"}, loc.Facilities)
	checkInvariants(t, m)

	// A已满，按路段顺序以B为锚点
	assert.True(t, m.ReserveAtLink("v3", "L1", 0, 100))
	loc = m.ParkAtLink("v3", "L1", 0)
	assert.Equal(t, []string{"B", "B", "B"}, loc.Facilities)
	assert.Equal(t, 1, m.FreeSpaces())
	checkInvariants(t, m)
}

func TestScaleUpIncreasesOccupancyByK(t *testing.T) {
	records := make([]facility.Record, 0)
	for i := range 20 {
		records = append(records, garage(fmt.Sprintf("F%d", i), fmt.Sprintf("L%d", i%5), float64(i%4)*10, float64(i/4)*10, 1+i%3))
	}
	m, _ := newTestManager(t, 0.25, records)
	total := m.catalog.TotalCapacity()

	for i := range 5 {
		before := total - m.FreeSpaces()
		require.True(t, m.ReserveAtFacility(fmt.Sprintf("v%d", i), entity.Tracked(fmt.Sprintf("F%d", i*3)), 0, 10))
		assert.Equal(t, before+4, total-m.FreeSpaces())
		checkInvariants(t, m)
	}
}

func TestShortfallIsAllOrNothing(t *testing.T) {
	m, reg := newTestManager(t, 0.25, []facility.Record{
		garage("A", "L1", 0, 0, 2),
		garage("B", "L2", 3, 4, 1),
	})
	assert.False(t, m.ReserveAtLink("v1", "L1", 0, 100))
	assert.False(t, m.HasReservation("v1"))
	assert.Equal(t, 0, m.Occupancy("A"))
	assert.Equal(t, 0, m.Occupancy("B"))
	assert.Equal(t, 3, m.FreeSpaces())
	checkInvariants(t, m)

	assert.Equal(t, 1., testutil.ToFloat64(m.metrics.shortfalls))
	assert.Equal(t, 1., testutil.ToFloat64(m.metrics.reservations.WithLabelValues(kindLink, "shortfall")))
	n, err := testutil.GatherAndCount(reg, "parking_shortfall_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRoundTripRestoresOccupancy(t *testing.T) {
	m, _ := newTestManager(t, 0.5, []facility.Record{
		garage("A", "L1", 0, 0, 3),
		garage("B", "L1", 2, 0, 1),
		garage("C", "L2", 5, 0, 2),
	})
	require.True(t, m.ReserveAtLink("w", "L2", 0, 10))
	m.ParkAtLink("w", "L2", 0)
	before := m.supply.snapshot()

	require.True(t, m.ReserveAtLink("v", "L1", 0, 100))
	assert.True(t, m.HasReservation("v"))
	_, parked := m.VehicleLocation("v")
	assert.False(t, parked)

	m.ParkAtLink("v", "L1", 10)
	assert.False(t, m.HasReservation("v"))
	_, parked = m.VehicleLocation("v")
	assert.True(t, parked)
	checkInvariants(t, m)

	m.Unpark("v", 100)
	_, parked = m.VehicleLocation("v")
	assert.False(t, parked)
	assert.Equal(t, before, m.supply.snapshot())
	checkInvariants(t, m)
}

func TestPolicyRejection(t *testing.T) {
	m, reg := newTestManager(t, 1.0, []facility.Record{
		{ID: "blue", LinkID: "L", Type: "BlueZone", MaxParkingDuration: 3600, Capacity: 5},
		garage("garage", "L", 50, 0, 1),
	})
	// 蓝区只允许在限时时段内停1小时，跳过蓝区选择停车场
	assert.True(t, m.ReserveAtLink("v1", "L", 9*3600, 12*3600))
	assert.Equal(t, []string{"garage"}, m.ParkAtLink("v1", "L", 9*3600).Facilities)

	// 蓝区拒绝且停车场已满
	assert.False(t, m.ReserveAtLink("v2", "L", 9*3600, 12*3600))
	assert.False(t, m.ReserveAtFacility("v2", entity.Tracked("blue"), 9*3600, 12*3600))

	assert.True(t, m.ReserveAtLink("v2", "L", 9*3600, 9.5*3600))
	assert.Equal(t, []string{"blue"}, m.ParkAtLink("v2", "L", 9*3600).Facilities)

	assert.Equal(t, 1., testutil.ToFloat64(m.metrics.reservations.WithLabelValues(kindFacility, "rejected")))
	assert.Equal(t, 1., testutil.ToFloat64(m.metrics.reservations.WithLabelValues(kindLink, "rejected")))
	assert.Equal(t, 2., testutil.ToFloat64(m.metrics.reservations.WithLabelValues(kindLink, "reserved")))
	assert.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(`
# HELP parking_occupied_spaces Occupied tracked parking spaces.
# TYPE parking_occupied_spaces gauge
parking_occupied_spaces 2
# HELP parking_available_facilities Facilities with at least one free space (spatial index size).
# TYPE parking_available_facilities gauge
parking_available_facilities 1
`), "parking_occupied_spaces", "parking_available_facilities"))
}

func TestLinkWithoutFacility(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{garage("A", "L1", 0, 0, 1)})
	assert.False(t, m.HasFacilityAtLink("L2"))
	assert.True(t, m.HasFacilityAtLink("L1"))
	assert.False(t, m.ReserveAtLink("v1", "L2", 0, 100))
	assert.False(t, m.HasReservation("v1"))
	assert.Equal(t, 0, m.LinkCapacity("L2"))
}

func TestOutside(t *testing.T) {
	m, _ := newTestManager(t, 0.5, []facility.Record{garage("A", "L1", 0, 0, 1)})

	assert.True(t, m.ReserveAtFacility("v1", entity.Outside, 0, 100))
	loc := m.ParkAtLink("v1", "L7", 0)
	assert.True(t, loc.Outside())
	assert.Equal(t, "L7", loc.LinkID)
	assert.Equal(t, entity.Outside, loc.Facility())

	got, ok := m.VehicleLocation("v1")
	require.True(t, ok)
	assert.Equal(t, loc, got)
	assert.Equal(t, 1, m.FreeSpaces())
	assert.Equal(t, 0, m.Occupancy("A"))

	m.Unpark("v1", 10)
	checkInvariants(t, m)

	// 按设施停车时Outside没有路段
	assert.True(t, m.ReserveAtFacility("v2", entity.Outside, 0, 100))
	loc = m.ParkAtFacility("v2", entity.Outside, 0)
	assert.True(t, loc.Outside())
	assert.Empty(t, loc.LinkID)
}

func TestProtocolViolations(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{
		garage("A", "L1", 0, 0, 2),
		garage("B", "L2", 1, 0, 2),
	})

	assert.Panics(t, func() { m.ParkAtLink("v3", "L1", 0) })
	assert.Panics(t, func() { m.ParkAtFacility("v3", entity.Tracked("A"), 0) })
	assert.Panics(t, func() { m.Unpark("v3", 0) })

	require.True(t, m.ReserveAtLink("v1", "L1", 0, 100))
	assert.Panics(t, func() { m.ReserveAtLink("v1", "L1", 0, 100) })
	assert.Panics(t, func() { m.ReserveAtFacility("v1", entity.Outside, 0, 100) })
	m.ParkAtLink("v1", "L1", 0)
	assert.Panics(t, func() { m.ReserveAtLink("v1", "L1", 0, 100) })
	m.Unpark("v1", 1)
	assert.Panics(t, func() { m.Unpark("v1", 2) })

	require.True(t, m.ReserveAtFacility("v2", entity.Tracked("A"), 0, 100))
	assert.Panics(t, func() { m.ParkAtFacility("v2", entity.Tracked("B"), 0) })
	assert.Equal(t, 0, m.Occupancy("A"))
	checkInvariants(t, m)
}

func TestReserveAtUnknownFacility(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{garage("A", "L1", 0, 0, 2)})

	assert.False(t, m.ReserveAtFacility("v1", entity.Tracked("nowhere"), 0, 100))
	assert.False(t, m.HasReservation("v1"))
	assert.Equal(t, 2, m.FreeSpaces())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.reservations.WithLabelValues(kindFacility, rejected.String())))

	// 拒绝后车辆仍可正常预约
	require.True(t, m.ReserveAtFacility("v1", entity.Tracked("A"), 0, 100))
	checkInvariants(t, m)
}

func TestNearestAvailableFreeSpaces(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{
		garage("A", "L1", 0, 0, 3),
		garage("B", "L2", 10, 0, 1),
	})
	require.True(t, m.ReserveAtFacility("v1", entity.Tracked("A"), 0, 100))

	f, free, ok := m.NearestAvailable(orb.Point{1, 0})
	require.True(t, ok)
	assert.Equal(t, "A", f.ID())
	assert.Equal(t, 2, free)

	for _, v := range []string{"v2", "v3"} {
		require.True(t, m.ReserveAtFacility(v, entity.Tracked("A"), 0, 100))
	}
	f, free, ok = m.NearestAvailable(orb.Point{1, 0})
	require.True(t, ok)
	assert.Equal(t, "B", f.ID())
	assert.Equal(t, 1, free)

	require.True(t, m.ReserveAtFacility("v4", entity.Tracked("B"), 0, 100))
	_, free, ok = m.NearestAvailable(orb.Point{1, 0})
	assert.False(t, ok)
	assert.Zero(t, free)
}

func TestParkAtOtherLink(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{
		garage("A", "L1", 0, 0, 2),
		garage("B", "L2", 1, 0, 2),
	})
	require.True(t, m.ReserveAtFacility("v1", entity.Tracked("A"), 0, 100))

	var loc entity.ParkedLocation
	assert.NotPanics(t, func() { loc = m.ParkAtLink("v1", "L2", 0) })
	assert.Equal(t, entity.ParkedLocation{LinkID: "L2", Facilities: []string{"A"}}, loc)
	assert.Equal(t, 1, m.Occupancy("A"))
	assert.Equal(t, 0, m.Occupancy("B"))

	m.Unpark("v1", 10)
	assert.Equal(t, 0, m.Occupancy("A"))
	checkInvariants(t, m)
}

func TestCancelReservation(t *testing.T) {
	m, _ := newTestManager(t, 0.5, []facility.Record{
		garage("A", "L1", 0, 0, 1),
		garage("B", "L1", 1, 1, 1),
	})
	assert.False(t, m.CancelReservation("v1"))
	require.True(t, m.ReserveAtLink("v1", "L1", 0, 100))
	assert.Equal(t, 0, m.LinkFreeSpaces("L1"))
	assert.True(t, m.CancelReservation("v1"))
	assert.Equal(t, 2, m.LinkFreeSpaces("L1"))
	assert.Equal(t, 2., testutil.ToFloat64(m.metrics.spacesReleased))
	checkInvariants(t, m)

	// 取消后可以重新预约
	assert.True(t, m.ReserveAtLink("v1", "L1", 0, 100))
}

func TestZeroCapacityFacility(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{
		garage("Z", "L1", 0, 0, 0),
		garage("A", "L1", 10, 0, 1),
	})
	assert.False(t, m.supply.index.contains(m.catalog.Get("Z")))
	assert.False(t, m.ReserveAtFacility("v1", entity.Tracked("Z"), 0, 1))
	f, _, ok := m.NearestAvailable(orb.Point{0, 0})
	require.True(t, ok)
	assert.Equal(t, "A", f.ID())
	checkInvariants(t, m)
}

func TestCoLocatedFacilities(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{
		garage("A", "L1", 3, 3, 1),
		garage("B", "L2", 3, 3, 1),
	})
	require.True(t, m.ReserveAtFacility("v1", entity.Tracked("B"), 0, 1))
	f, _, ok := m.NearestAvailable(orb.Point{3, 3})
	require.True(t, ok)
	assert.Equal(t, "A", f.ID())
	checkInvariants(t, m)

	require.True(t, m.ReserveAtFacility("v2", entity.Tracked("A"), 0, 1))
	_, _, ok = m.NearestAvailable(orb.Point{3, 3})
	assert.False(t, ok)
	checkInvariants(t, m)
}

func TestLinkSpaces(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{
		garage("A", "L1", 0, 0, 2),
		garage("B", "L1", 1, 0, 3),
		garage("C", "L2", 2, 0, 4),
	})
	assert.Equal(t, 5, m.LinkCapacity("L1"))
	require.True(t, m.ReserveAtLink("v1", "L1", 0, 1))
	assert.Equal(t, 4, m.LinkFreeSpaces("L1"))
	assert.Equal(t, 4, m.LinkFreeSpaces("L2"))
}

func TestStatistics(t *testing.T) {
	m, _ := newTestManager(t, 1.0, []facility.Record{garage("F1", "L1", 0, 0, 3)})
	for _, v := range []string{"v1", "v2", "v3"} {
		require.True(t, m.ReserveAtLink(v, "L1", 0, 100))
		m.ParkAtLink(v, "L1", 0)
	}
	m.Unpark("v2", 50)

	assert.Equal(t, []string{"L1;F1;3;2"}, m.Statistics())
	var buf bytes.Buffer
	require.NoError(t, m.WriteStatistics(&buf))
	assert.Equal(t, "L1;F1;3;2\n", buf.String())

	assert.Equal(t, []entity.FacilityStatistics{{LinkID: "L1", FacilityID: "F1", Capacity: 3, Occupied: 2}}, m.FacilityStatistics())
	m.Reset(1)
	assert.Equal(t, []string{"L1;F1;3;2"}, m.Statistics())
}

func TestInitConfigurationFault(t *testing.T) {
	assert.Panics(t, func() {
		newTestManager(t, 1.0, []facility.Record{{ID: "X", LinkID: "L", Type: "Helipad", Capacity: 1}})
	})
}

func TestConcurrentVehicles(t *testing.T) {
	records := make([]facility.Record, 0)
	for i := range 50 {
		records = append(records, garage(fmt.Sprintf("F%d", i), fmt.Sprintf("L%d", i%10), float64(i%7)*13, float64(i/7)*11, 1+i%4))
	}
	m, _ := newTestManager(t, 0.5, records)

	var wg sync.WaitGroup
	var mtx sync.Mutex
	parkedInFacility := 0
	for w := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				v := fmt.Sprintf("w%d-%d", w, i)
				link := fmt.Sprintf("L%d", (w+i)%10)
				if !m.ReserveAtLink(v, link, 0, 100) {
					assert.True(t, m.ReserveAtFacility(v, entity.Outside, 0, 100))
				}
				loc := m.ParkAtLink(v, link, 0)
				if !loc.Outside() {
					mtx.Lock()
					parkedInFacility++
					mtx.Unlock()
				}
				if i%3 != 0 {
					m.Unpark(v, 1)
				}
			}
		}()
	}
	wg.Wait()
	checkInvariants(t, m)
	assert.Positive(t, parkedInFacility)

	// 所有车辆离开后占用归零
	m.parked.Range(func(v string, _ *parkedVehicle) bool {
		m.Unpark(v, 2)
		return true
	})
	checkInvariants(t, m)
	assert.Equal(t, m.catalog.TotalCapacity(), m.FreeSpaces())
	for _, line := range m.FacilityStatistics() {
		assert.Zero(t, line.Occupied)
	}
}
