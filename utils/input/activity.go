package input

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/randengine"
)

// ParkingActivity 一次停车活动
// 功能：车辆在Arrival时刻到达路段（或指定设施）停车，在Departure时刻离开
// 说明：FacilityID为空时按路段预约
type ParkingActivity struct {
	VehicleID  string  `yaml:"vehicle" bson:"vehicle"`
	LinkID     string  `yaml:"link" bson:"link"`
	FacilityID string  `yaml:"facility,omitempty" bson:"facility,omitempty"`
	Arrival    float64 `yaml:"arrival" bson:"arrival"`
	Departure  float64 `yaml:"departure" bson:"departure"`
}

func (a ParkingActivity) String() string {
	return fmt.Sprintf("ParkingActivity{Vehicle:%s, Link:%s, Facility:%s, [%.0f, %.0f)}", a.VehicleID, a.LinkID, a.FacilityID, a.Arrival, a.Departure)
}

// Validate 检查停车活动的合法性
func (a ParkingActivity) Validate() error {
	if a.VehicleID == "" {
		return fmt.Errorf("empty vehicle id")
	}
	if a.LinkID == "" && a.FacilityID == "" {
		return fmt.Errorf("neither link nor facility is given")
	}
	if a.Departure < a.Arrival {
		return fmt.Errorf("departure %v before arrival %v", a.Departure, a.Arrival)
	}
	return nil
}

// FilterValid 丢弃非法的停车活动并记录警告
func FilterValid(activities []ParkingActivity) []ParkingActivity {
	return lo.Filter(activities, func(a ParkingActivity, _ int) bool {
		if err := a.Validate(); err != nil {
			log.Warnf("ignore %v: %v", a, err)
			return false
		}
		return true
	})
}

// Synthesize 在已加载的停车设施上合成停车需求
// 功能：每辆车生成一次停车活动，目标设施按容量加权随机选取
// 参数：c-合成配置，records-停车设施
// 返回：停车活动列表，按LinkRatio的比例只给出路段而不指定设施
// 说明：结果只由Seed（与rand.seed_offset）决定
func Synthesize(c config.SyntheticDemand, records []facility.Record) []ParkingActivity {
	candidates := lo.Filter(records, func(r facility.Record, _ int) bool {
		return r.Capacity > 0 && r.LinkID != ""
	})
	if len(candidates) == 0 || c.Vehicles <= 0 {
		log.Warnf("no parking demand synthesized (%d vehicles, %d facilities with spaces)", c.Vehicles, len(candidates))
		return nil
	}
	weights := lo.Map(candidates, func(r facility.Record, _ int) float64 {
		return float64(r.Capacity)
	})
	engine := randengine.New(c.Seed)
	activities := make([]ParkingActivity, 0, c.Vehicles)
	for i := range c.Vehicles {
		r := candidates[engine.DiscreteDistribution(weights)]
		arrival := engine.Uniform(c.Start, c.End)
		a := ParkingActivity{
			VehicleID:  fmt.Sprintf("synthetic-%d", i),
			LinkID:     r.LinkID,
			FacilityID: r.ID,
			Arrival:    arrival,
			Departure:  arrival + engine.Uniform(c.MinDuration, c.MaxDuration),
		}
		if engine.PTrue(c.LinkRatio) {
			a.FacilityID = ""
		}
		activities = append(activities, a)
	}
	log.Infof("synthesize %d parking activities over %d facilities", len(activities), len(candidates))
	return activities
}
