package entity

import (
	"io"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/facility"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/input"
)

// Manager依赖倒置

// entity/parking/manager.go的依赖倒置
type IParkingManager interface {
	// 初始化：构建设施目录与空间索引，必须在第一个模拟步之前完成
	Init(records []facility.Record)
	// 注册到Sidecar
	Register(sidecar *syncer.Sidecar)

	// 设施目录
	Catalog() *facility.Catalog

	// 在路段上预约车位，路段上没有设施或全部设施不可用时返回false
	ReserveAtLink(vehicleID, linkID string, fromTime, toTime float64) bool
	// 在指定设施预约车位，Outside总是成功
	ReserveAtFacility(vehicleID string, ref FacilityRef, fromTime, toTime float64) bool
	// 放弃未停车的预约，返回是否存在预约
	CancelReservation(vehicleID string) bool
	// 按路段停车，消耗预约
	ParkAtLink(vehicleID, linkID string, t float64) ParkedLocation
	// 按设施停车，消耗预约
	ParkAtFacility(vehicleID string, ref FacilityRef, t float64) ParkedLocation
	// 离开车位
	Unpark(vehicleID string, t float64)

	// 查询车辆停车位置
	VehicleLocation(vehicleID string) (ParkedLocation, bool)
	// 路段上是否有受管理的设施
	HasFacilityAtLink(linkID string) bool

	// 每个设施一行的统计
	Statistics() []string
	// 结构化统计
	FacilityStatistics() []FacilityStatistics
	// 按统计行格式写出
	WriteStatistics(w io.Writer) error
	// 迭代重置
	Reset(iteration int)
}

// entity/vehicle/manager.go的依赖倒置
type IVehicleManager interface {
	Init(activities []input.ParkingActivity) // 初始化
	Update(t float64)                        // 更新阶段
}
