package parking

import "github.com/tsinghua-fib-lab/agentsociety-parking/entity"

// ParkingServiceName 停车查询服务（只读），使用connect协议与JSON编码
const ParkingServiceName = "city.parking.v1.ParkingService"

const (
	GetVehicleParkingProcedure    = "/" + ParkingServiceName + "/GetVehicleParking"
	GetStatisticsProcedure        = "/" + ParkingServiceName + "/GetStatistics"
	GetLinkParkingProcedure       = "/" + ParkingServiceName + "/GetLinkParking"
	FindNearestAvailableProcedure = "/" + ParkingServiceName + "/FindNearestAvailable"
)

type GetVehicleParkingRequest struct {
	VehicleID string `json:"vehicle_id"`
}

type GetVehicleParkingResponse struct {
	Parked     bool     `json:"parked"`               // 是否已停车
	Reserved   bool     `json:"reserved"`             // 是否持有尚未确认的预约
	Outside    bool     `json:"outside"`              // 是否停在路边
	LinkID     string   `json:"link_id,omitempty"`    // 停车路段
	Facilities []string `json:"facilities,omitempty"` // 占用的设施，按预约顺序
}

type GetStatisticsRequest struct {
	FacilityIDs []string `json:"facility_ids,omitempty"` // 为空时返回全部设施
}

type GetStatisticsResponse struct {
	Facilities    []entity.FacilityStatistics `json:"facilities"`
	TotalCapacity int                         `json:"total_capacity"`
	FreeSpaces    int                         `json:"free_spaces"`
}

type GetLinkParkingRequest struct {
	LinkID string `json:"link_id"`
}

type GetLinkParkingResponse struct {
	Capacity   int                         `json:"capacity"`
	FreeSpaces int                         `json:"free_spaces"`
	Facilities []entity.FacilityStatistics `json:"facilities"`
}

type FindNearestAvailableRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type FindNearestAvailableResponse struct {
	Found      bool    `json:"found"`
	FacilityID string  `json:"facility_id,omitempty"`
	LinkID     string  `json:"link_id,omitempty"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	FreeSpaces int     `json:"free_spaces,omitempty"`
}
