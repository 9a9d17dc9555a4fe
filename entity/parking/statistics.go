package parking

import (
	"bufio"
	"io"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
)

// FacilityStatistics 每个设施的占用统计，按目录顺序，基于同一时刻的占用快照
func (m *ParkingManager) FacilityStatistics() []entity.FacilityStatistics {
	occupied := m.supply.snapshot()
	return lo.Map(m.catalog.All(), func(f *facility.Facility, i int) entity.FacilityStatistics {
		return entity.FacilityStatistics{
			LinkID:     f.LinkID(),
			FacilityID: f.ID(),
			Capacity:   f.Capacity(),
			Occupied:   occupied[i],
		}
	})
}

// Statistics 统计行，每个设施一行，格式为 linkId;facilityId;capacity;occupied
func (m *ParkingManager) Statistics() []string {
	return lo.Map(m.FacilityStatistics(), func(s entity.FacilityStatistics, _ int) string {
		return s.String()
	})
}

// WriteStatistics 将统计行写入w，每行以换行结尾
func (m *ParkingManager) WriteStatistics(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, line := range m.Statistics() {
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
