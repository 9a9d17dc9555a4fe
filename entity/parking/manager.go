package parking

import (
	"github.com/paulmach/orb"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
)

// reservation 车辆尚未确认的预约
type reservation struct {
	ref    entity.FacilityRef    // 预约的设施，Outside表示路边停车
	spaces []*facility.Facility // 占用的车位，按预约顺序，Outside时为空
}

// parkedVehicle 已停车车辆
type parkedVehicle struct {
	location entity.ParkedLocation
	spaces   []*facility.Facility
}

// ParkingManager 停车管理器
// 功能：管理停车设施的预约、停车与离开，保证占用不超过容量，支持抽样放大后的多车位预约
// 说明：Init之后所有方法可被多个模拟协程并发调用。
// 车位状态（占用计数、空间索引）由supply加锁维护，车辆的预约与停车表为并发map，不同车辆之间互不阻塞
type ParkingManager struct {
	ctx entity.ITaskContext

	vehiclesPerVehicle int

	catalog *facility.Catalog
	supply  *supply

	reservations *xsync.MapOf[string, *reservation]
	parked       *xsync.MapOf[string, *parkedVehicle]

	metrics *metrics
}

// NewManager 创建停车管理器实例，需要调用Init完成初始化
func NewManager(ctx entity.ITaskContext) *ParkingManager {
	return &ParkingManager{
		ctx:          ctx,
		reservations: xsync.NewMapOf[string, *reservation](),
		parked:       xsync.NewMapOf[string, *parkedVehicle](),
	}
}

// Init 初始化
// 功能：构建设施目录与空间索引，读取抽样放大系数，注册监控指标
// 参数：records-停车设施输入记录
// 说明：设施配置错误（未知类型、重复ID等）直接panic
func (m *ParkingManager) Init(records []facility.Record) {
	catalog, err := facility.NewCatalog(records)
	if err != nil {
		log.Panicf("invalid parking facility data: %v", err)
	}
	m.catalog = catalog
	m.vehiclesPerVehicle = m.ctx.RuntimeConfig().VehiclesPerVehicle
	m.supply = newSupply(catalog)
	m.metrics = newMetrics(m.ctx.Registerer(), m.supply)
	log.Infof("one simulated vehicle reserves %d parking spaces", m.vehiclesPerVehicle)
}

func (m *ParkingManager) Catalog() *facility.Catalog {
	return m.catalog
}

// VehiclesPerVehicle 一个模拟车辆代表的真实车辆数
func (m *ParkingManager) VehiclesPerVehicle() int {
	return m.vehiclesPerVehicle
}

// ReserveAtLink 在路段上预约车位
// 功能：按目录顺序遍历路段上的设施，跳过不允许在[fromTime, toTime)停车的设施，以第一个有空位的设施为锚点预约
// 返回：是否预约成功；路段上没有设施、设施全部不允许或已满、全局空位不足时返回false
// 说明：路段上没有受管理的设施不代表禁止停车，由调用方决定是否改为路边停车
func (m *ParkingManager) ReserveAtLink(vehicleID, linkID string, fromTime, toTime float64) bool {
	m.mustBeFree(vehicleID)
	candidates := lo.Filter(m.catalog.FacilitiesAtLink(linkID), func(f *facility.Facility, _ int) bool {
		return f.IsAllowedToPark(fromTime, toTime, vehicleID)
	})
	return m.reserve(vehicleID, kindLink, candidates)
}

// ReserveAtFacility 在指定设施预约车位
// 功能：Outside总是成功且只预约一个不计数的车位；受管理的设施需要允许停车且有空位，并以其为锚点预约
// 说明：设施ID不存在时视为没有可用车位，返回false
func (m *ParkingManager) ReserveAtFacility(vehicleID string, ref entity.FacilityRef, fromTime, toTime float64) bool {
	m.mustBeFree(vehicleID)
	if ref.IsOutside() {
		m.metrics.observe(kindOutside, reserved, 0)
		m.store(vehicleID, &reservation{ref: entity.Outside})
		return true
	}
	f, err := m.catalog.GetOrError(ref.ID())
	if err != nil {
		log.Debugf("vehicle %s: %v", vehicleID, err)
		m.metrics.observe(kindFacility, rejected, 0)
		return false
	}
	if !f.IsAllowedToPark(fromTime, toTime, vehicleID) {
		m.metrics.observe(kindFacility, rejected, 0)
		return false
	}
	return m.reserve(vehicleID, kindFacility, []*facility.Facility{f})
}

// reserve 在候选设施上完成多车位预约并记录
func (m *ParkingManager) reserve(vehicleID, kind string, candidates []*facility.Facility) bool {
	spaces, result := m.supply.reserveFirst(candidates, m.vehiclesPerVehicle)
	m.metrics.observe(kind, result, len(spaces))
	switch result {
	case rejected:
		return false
	case shortfall:
		log.Warnf("vehicle %s: %d spaces required but only %d free in total, reservation refused",
			vehicleID, m.vehiclesPerVehicle, m.supply.totalFree())
		return false
	}
	m.store(vehicleID, &reservation{ref: entity.Tracked(spaces[0].ID()), spaces: spaces})
	return true
}

// mustBeFree 车辆既不能持有预约也不能处于停车状态
func (m *ParkingManager) mustBeFree(vehicleID string) {
	if p, ok := m.parked.Load(vehicleID); ok {
		log.Panicf("vehicle %s reserves while parked at %v", vehicleID, p.location)
	}
	if r, ok := m.reservations.Load(vehicleID); ok {
		log.Panicf("vehicle %s reserves twice, already holding %v", vehicleID, r.ref)
	}
}

func (m *ParkingManager) store(vehicleID string, r *reservation) {
	if old, loaded := m.reservations.LoadOrStore(vehicleID, r); loaded {
		m.supply.release(r.spaces)
		log.Panicf("vehicle %s reserves twice, already holding %v", vehicleID, old.ref)
	}
}

// CancelReservation 放弃尚未停车的预约（例如改道），归还占用的车位
// 返回：是否存在预约
func (m *ParkingManager) CancelReservation(vehicleID string) bool {
	r, ok := m.reservations.LoadAndDelete(vehicleID)
	if !ok {
		return false
	}
	m.supply.release(r.spaces)
	m.metrics.spacesReleased.Add(float64(len(r.spaces)))
	log.Debugf("vehicle %s cancels reservation at %v", vehicleID, r.ref)
	return true
}

// consume 取出车辆的预约，没有预约时panic
func (m *ParkingManager) consume(vehicleID string, at any) *reservation {
	r, ok := m.reservations.LoadAndDelete(vehicleID)
	if !ok {
		log.Panicf("vehicle %s parks at %v without reservation", vehicleID, at)
	}
	return r
}

// ParkAtLink 在路段上停车
// 功能：把车辆的预约转换为停车位置，Outside预约记录在该路段上
// 说明：没有预约时panic；预约的设施不在该路段上时记录警告，车辆仍占用预约的车位并记录在该路段上
func (m *ParkingManager) ParkAtLink(vehicleID, linkID string, t float64) entity.ParkedLocation {
	r := m.consume(vehicleID, "link "+linkID)
	loc := entity.ParkedLocation{LinkID: linkID}
	if !r.ref.IsOutside() {
		if reservedLink := r.spaces[0].LinkID(); reservedLink != linkID {
			log.Warnf("vehicle %s parks at link %s but reserved %v on link %s", vehicleID, linkID, r.ref, reservedLink)
		}
		loc.Facilities = facilityIDs(r.spaces)
	}
	m.settle(vehicleID, loc, r.spaces, t)
	return loc
}

// ParkAtFacility 在设施停车
// 说明：没有预约，或ref与预约的设施不一致时panic
func (m *ParkingManager) ParkAtFacility(vehicleID string, ref entity.FacilityRef, t float64) entity.ParkedLocation {
	r := m.consume(vehicleID, ref)
	if r.ref != ref {
		m.supply.release(r.spaces)
		log.Panicf("vehicle %s parks at %v but reserved %v", vehicleID, ref, r.ref)
	}
	var loc entity.ParkedLocation
	if !ref.IsOutside() {
		loc.LinkID = r.spaces[0].LinkID()
		loc.Facilities = facilityIDs(r.spaces)
	}
	m.settle(vehicleID, loc, r.spaces, t)
	return loc
}

func (m *ParkingManager) settle(vehicleID string, loc entity.ParkedLocation, spaces []*facility.Facility, t float64) {
	if old, loaded := m.parked.LoadOrStore(vehicleID, &parkedVehicle{location: loc, spaces: spaces}); loaded {
		log.Panicf("vehicle %s parks twice, already parked at %v", vehicleID, old.location)
	}
	log.Debugf("t=%.0f vehicle %s parked at %v", t, vehicleID, loc)
}

// Unpark 车辆离开车位
// 功能：删除停车位置并释放占用的全部车位，设施由满变为不满时重新进入空间索引
// 说明：车辆未停车时panic
func (m *ParkingManager) Unpark(vehicleID string, t float64) {
	p, ok := m.parked.LoadAndDelete(vehicleID)
	if !ok {
		log.Panicf("vehicle %s unparks at t=%.0f but is not parked", vehicleID, t)
	}
	m.supply.release(p.spaces)
	m.metrics.spacesReleased.Add(float64(len(p.spaces)))
	log.Debugf("t=%.0f vehicle %s left %v", t, vehicleID, p.location)
}

// VehicleLocation 查询车辆的停车位置，未停车时返回false
func (m *ParkingManager) VehicleLocation(vehicleID string) (entity.ParkedLocation, bool) {
	p, ok := m.parked.Load(vehicleID)
	if !ok {
		return entity.ParkedLocation{}, false
	}
	return p.location, true
}

// HasReservation 车辆是否持有尚未确认的预约
func (m *ParkingManager) HasReservation(vehicleID string) bool {
	_, ok := m.reservations.Load(vehicleID)
	return ok
}

// HasFacilityAtLink 路段上是否有受管理的设施
func (m *ParkingManager) HasFacilityAtLink(linkID string) bool {
	return len(m.catalog.FacilitiesAtLink(linkID)) > 0
}

// LinkCapacity 路段上所有设施的车位总数
func (m *ParkingManager) LinkCapacity(linkID string) int {
	return lo.SumBy(m.catalog.FacilitiesAtLink(linkID), (*facility.Facility).Capacity)
}

// LinkFreeSpaces 路段上所有设施的空位总数
func (m *ParkingManager) LinkFreeSpaces(linkID string) int {
	return m.supply.freeSpaces(m.catalog.FacilitiesAtLink(linkID))
}

// Occupancy 设施当前占用数，设施不存在时panic
func (m *ParkingManager) Occupancy(facilityID string) int {
	return m.supply.occupancy(m.catalog.Get(facilityID))
}

// FreeSpaces 全局空位数
func (m *ParkingManager) FreeSpaces() int {
	return m.supply.totalFree()
}

// NearestAvailable 距离p最近的有空位设施及其空位数（只读查询）
func (m *ParkingManager) NearestAvailable(p orb.Point) (f *facility.Facility, free int, ok bool) {
	return m.supply.nearestWithFree(p)
}

// Reset 迭代重置
// 说明：占用与停车位置应在每个模拟日结束时自然清空，不做任何清理，只记录残留情况
func (m *ParkingManager) Reset(iteration int) {
	log.Infof("parking reset for iteration %d: %d pending reservations, %d parked vehicles",
		iteration, m.reservations.Size(), m.parked.Size())
}

func facilityIDs(spaces []*facility.Facility) []string {
	return lo.Map(spaces, func(f *facility.Facility, _ int) string { return f.ID() })
}
