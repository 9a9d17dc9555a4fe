package entity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tsinghua-fib-lab/agentsociety-parking/clock"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	RuntimeConfig() *config.RuntimeConfig
	ParkingManager() IParkingManager
	VehicleManager() IVehicleManager
	// 监控指标注册器，为nil时不注册指标
	Registerer() prometheus.Registerer
}
