package facility

import (
	"fmt"
	"math"
)

const (
	secondsPerDay = 86400.

	// 蓝区限时停车的生效时段 [08:00, 19:00)
	blueZoneRestrictionStart = 8 * 3600.
	blueZoneRestrictionEnd   = 19 * 3600.
)

// Category 停车设施类型
type Category string

const (
	BlueZone            Category = "BlueZone"            // 蓝区：免费限时路边停车
	LowTariffWhiteZone  Category = "LowTariffWhiteZone"  // 白区：低价计时路边停车
	HighTariffWhiteZone Category = "HighTariffWhiteZone" // 白区：高价计时路边停车
	Garage              Category = "Garage"              // 停车场
)

// ParseCategory 解析停车设施类型，未知类型返回错误
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case BlueZone, LowTariffWhiteZone, HighTariffWhiteZone, Garage:
		return c, nil
	default:
		return "", fmt.Errorf("unknown parking facility type %q", s)
	}
}

// Policy 停车许可规则
// 功能：判断请求者能否在[fromTime, toTime)时段内在该设施停车
// 说明：预约引擎只通过该接口与容量访问设施，不关心具体类型的字段
type Policy interface {
	IsAllowedToPark(fromTime, toTime float64, requesterID string) bool
}

// newPolicy 按设施类型构造停车许可规则
// 参数：c-设施类型，maxParkingDuration-最长停车时长（秒，<=0或+Inf表示不限）
func newPolicy(c Category, maxParkingDuration float64) (Policy, error) {
	switch c {
	case BlueZone:
		return &blueZonePolicy{maxDuration: maxParkingDuration}, nil
	case LowTariffWhiteZone, HighTariffWhiteZone:
		return &whiteZonePolicy{durationLimit: durationLimit(maxParkingDuration), tariff: c}, nil
	case Garage:
		return &garagePolicy{durationLimit: durationLimit(maxParkingDuration)}, nil
	default:
		return nil, fmt.Errorf("unknown parking facility type %q", c)
	}
}

// unlimited 最长停车时长是否不受限
func unlimited(maxDuration float64) bool {
	return maxDuration <= 0 || math.IsInf(maxDuration, 1)
}

// blueZonePolicy 蓝区规则：每天[08:00, 19:00)内累计停车不超过最长时长，时段外不限
type blueZonePolicy struct {
	maxDuration float64
}

func (p *blueZonePolicy) IsAllowedToPark(fromTime, toTime float64, _ string) bool {
	if toTime < fromTime {
		return false
	}
	if unlimited(p.maxDuration) {
		return true
	}
	return restrictedOverlap(fromTime, toTime) <= p.maxDuration
}

// restrictedOverlap 计算[from, to)与每日限时时段的重叠总时长
func restrictedOverlap(from, to float64) float64 {
	total := 0.
	for day := math.Floor(from / secondsPerDay); day*secondsPerDay < to; day++ {
		start := day*secondsPerDay + blueZoneRestrictionStart
		end := day*secondsPerDay + blueZoneRestrictionEnd
		total += math.Max(0, math.Min(to, end)-math.Max(from, start))
	}
	return total
}

// durationLimit 整段停车时长上限
type durationLimit float64

func (d durationLimit) allows(fromTime, toTime float64) bool {
	if toTime < fromTime {
		return false
	}
	return unlimited(float64(d)) || toTime-fromTime <= float64(d)
}

// whiteZonePolicy 白区规则：整段停车时长不超过最长时长
// 说明：tariff仅作为类型标记保留，收费计算不在本模块内
type whiteZonePolicy struct {
	durationLimit
	tariff Category
}

func (p *whiteZonePolicy) IsAllowedToPark(fromTime, toTime float64, _ string) bool {
	return p.allows(fromTime, toTime)
}

// garagePolicy 停车场规则
type garagePolicy struct {
	durationLimit
}

func (p *garagePolicy) IsAllowedToPark(fromTime, toTime float64, _ string) bool {
	return p.allows(fromTime, toTime)
}
