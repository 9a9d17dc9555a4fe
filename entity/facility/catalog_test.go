package facility_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
)

func testRecords() []facility.Record {
	return []facility.Record{
		{ID: "F1", X: 0, Y: 0, LinkID: "L1", Type: "Garage", Capacity: 3},
		{ID: "F2", X: 10, Y: 0, LinkID: "L1", Type: "BlueZone", MaxParkingDuration: 3600, Capacity: 2},
		{ID: "F3", X: 10, Y: 20, LinkID: "L2", Type: "LowTariffWhiteZone", MaxParkingDuration: 7200, Capacity: 1},
		{ID: "F4", X: -5, Y: 4, LinkID: "L3", Type: "HighTariffWhiteZone", MaxParkingDuration: math.Inf(1), Capacity: 0},
	}
}

func TestNewCatalog(t *testing.T) {
	c, err := facility.NewCatalog(testRecords())
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, 6, c.TotalCapacity())

	f := c.Get("F2")
	assert.Equal(t, "F2", f.ID())
	assert.Equal(t, "L1", f.LinkID())
	assert.Equal(t, 2, f.Capacity())
	assert.Equal(t, facility.BlueZone, f.Category())
	assert.Equal(t, orb.Point{10, 0}, f.Coord())
	assert.Equal(t, 1, f.Index())
	assert.Equal(t, 3, c.Capacity("F1"))

	// 路段上的设施保持输入顺序
	atL1 := c.FacilitiesAtLink("L1")
	require.Len(t, atL1, 2)
	assert.Equal(t, "F1", atL1[0].ID())
	assert.Equal(t, "F2", atL1[1].ID())
	assert.Empty(t, c.FacilitiesAtLink("no-such-link"))

	_, err = c.GetOrError("F9")
	assert.Error(t, err)
	assert.Panics(t, func() { c.Get("F9") })

	assert.Equal(t, orb.Bound{Min: orb.Point{-5, 0}, Max: orb.Point{10, 20}}, c.Bound())
}

func TestNewCatalogConfigurationFaults(t *testing.T) {
	_, err := facility.NewCatalog([]facility.Record{
		{ID: "F1", LinkID: "L1", Type: "PurpleZone", Capacity: 1},
	})
	assert.ErrorContains(t, err, "PurpleZone")

	_, err = facility.NewCatalog([]facility.Record{
		{ID: "F1", LinkID: "L1", Type: "Garage", Capacity: 1},
		{ID: "F1", LinkID: "L2", Type: "Garage", Capacity: 1},
	})
	assert.ErrorContains(t, err, "duplicated")

	_, err = facility.NewCatalog([]facility.Record{
		{ID: "F1", LinkID: "L1", Type: "Garage", Capacity: -1},
	})
	assert.Error(t, err)

	_, err = facility.NewCatalog([]facility.Record{
		{LinkID: "L1", Type: "Garage", Capacity: 1},
	})
	assert.Error(t, err)
}

func TestEmptyCatalog(t *testing.T) {
	c, err := facility.NewCatalog(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, orb.Bound{}, c.Bound())
}
