package config

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "config")

// 浮点误差容限，保证1/0.1等比例得到整数10
const sampleSizeEpsilon = 1e-9

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，以及由配置派生的常量
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置

	// 一个模拟车辆代表的真实车辆数，即每次预约需要占用的车位数
	VehiclesPerVehicle int
}

// NewRuntimeConfig 根据配置初始化全局变量
// 功能：创建运行时配置对象，进行配置验证并计算抽样放大系数
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 说明：SampleSize未设置时视为1（不抽样）；配置非法时panic
func NewRuntimeConfig(config Config) *RuntimeConfig {
	if config.Control.Parking.SampleSize == 0 {
		config.Control.Parking.SampleSize = 1
	}
	k, err := VehiclesPerVehicle(config.Control.Parking.SampleSize)
	if err != nil {
		log.Panicf("invalid parking config: %v", err)
	}
	return &RuntimeConfig{
		All:                config,
		C:                  config.Control,
		VehiclesPerVehicle: k,
	}
}

// VehiclesPerVehicle 由抽样比例计算放大系数floor(1/sampleSize)
func VehiclesPerVehicle(sampleSize float64) (int, error) {
	if math.IsNaN(sampleSize) || sampleSize <= 0 || sampleSize > 1 {
		return 0, fmt.Errorf("sample size %v out of range (0, 1]", sampleSize)
	}
	return int(math.Floor(1/sampleSize + sampleSizeEpsilon)), nil
}
