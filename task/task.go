package task

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tsinghua-fib-lab/agentsociety-parking/clock"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/parking"
	"github.com/tsinghua-fib-lab/agentsociety-parking/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-parking/output"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-parking/utils/input"
)

// waitForServerReady 等待HTTP服务就绪
// 参数：addr-健康检查地址，retryCount-重试次数，interval-重试间隔
// 返回：超过重试次数仍未就绪时返回错误
func waitForServerReady(addr string, retryCount int, interval time.Duration) error {
	client := &http.Client{
		Timeout: interval,
	}
	for range retryCount {
		resp, err := client.Get(addr)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("server `%v` did not become ready after %d retries", addr, retryCount)
}

// Context 仿真任务上下文
// 功能：包含一次停车仿真任务的所有组件和状态
// 说明：两阶段生命周期，NewContext只创建组件并注册服务，Init在第一个模拟步之前完成设施目录与空间索引的构建
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理与syncer、其他服务的交互
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}

	// 运行时配置
	runtimeConfig *config.RuntimeConfig
	// 监控指标
	registry *prometheus.Registry

	// 停车管理器
	parkingManager *parking.ParkingManager
	// 车辆管理器
	vehicleManager *vehicle.VehicleManager

	// 统计快照输出，未配置输出目录时为nil
	snapshots *output.SnapshotWriter
	// 快照时刻表，未配置时为nil
	schedule *output.Schedule
	// 监控HTTP服务，未配置地址时为nil
	server *output.Server

	// 用于初始化的输入
	initRes *input.Input
}

// NewContext 创建仿真任务上下文
// 参数：
//   - job: 任务名称
//   - c: 配置
//   - sidecar: sidecar实例
//   - startSidecarServe: 是否启动sidecar服务
//
// 算法说明：
// 1. 创建时钟、运行时配置与监控指标注册器
// 2. 加载停车设施与停车需求
// 3. 创建停车管理器与车辆管理器，注册RPC服务到sidecar
// 4. 准备统计输出与监控HTTP服务
// 5. 启动sidecar服务（如果需要）
func NewContext(
	job string,
	c config.Config,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) *Context {
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}, 1),
		registry:       prometheus.NewRegistry(),
	}
	ctx.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ctx.clock = clock.New(c.Control.Step)
	ctx.runtimeConfig = config.NewRuntimeConfig(c)

	// 加载所有模拟器启动所需的数据
	ctx.initRes = input.Init(c)

	ctx.parkingManager = parking.NewManager(ctx)
	ctx.vehicleManager = vehicle.NewManager(ctx)

	if ctx.sidecar != nil {
		ctx.clock.Register(ctx.sidecar)
		ctx.parkingManager.Register(ctx.sidecar)
	}

	ctx.initOutput(c.Output)

	// sidecar协程，用于提供RPC服务
	if startSidecarServe && ctx.sidecar != nil {
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	} else {
		ctx.sidecarCloseCh <- struct{}{}
	}
	return ctx
}

// initOutput 准备统计输出与监控服务
func (ctx *Context) initOutput(c config.Output) {
	if c.Dir != "" {
		w, err := output.NewSnapshotWriter(c.Dir)
		if err != nil {
			log.Panicf("output: %v", err)
		}
		ctx.snapshots = w
	}
	if c.Schedule != "" {
		if ctx.snapshots == nil {
			log.Warnf("output.schedule %q ignored: output.dir is empty", c.Schedule)
		} else {
			s, err := output.NewSchedule(c.Schedule, ctx.clock.T)
			if err != nil {
				log.Panicf("output: %v", err)
			}
			ctx.schedule = s
		}
	}
	if c.MetricsAddr != "" {
		ctx.server = output.NewServer(c.MetricsAddr, ctx.registry, ctx.parkingManager)
	}
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

func (ctx *Context) ParkingManager() entity.IParkingManager {
	return ctx.parkingManager
}

func (ctx *Context) VehicleManager() entity.IVehicleManager {
	return ctx.vehicleManager
}

func (ctx *Context) Registerer() prometheus.Registerer {
	return ctx.registry
}

// Init 初始化阶段
// 功能：构建设施目录与空间索引，按车辆分组停车需求，启动监控服务
// 说明：必须在第一个模拟步之前调用
func (ctx *Context) Init() {
	ctx.clock.Init()

	initRes := ctx.initRes
	log.Infof("Facility: %v", len(initRes.Facilities))
	log.Infof("Activity: %v", len(initRes.Activities))
	log.Infof("VehiclesPerVehicle: %v", ctx.runtimeConfig.VehiclesPerVehicle)

	ctx.parkingManager.Init(initRes.Facilities)
	ctx.parkingManager.Reset(0)
	ctx.vehicleManager.Init(initRes.Activities)

	if ctx.server != nil {
		ctx.server.Start()
		addr := ctx.runtimeConfig.All.Output.MetricsAddr
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		if err := waitForServerReady("http://"+addr+"/healthz", 10, 100*time.Millisecond); err != nil {
			log.Warnf("monitoring server: %v", err)
		}
	}
}

// writeSnapshot 写出统计快照，失败时只记录警告
func (ctx *Context) writeSnapshot(name string) {
	if ctx.snapshots == nil {
		return
	}
	if err := ctx.snapshots.Write(name, ctx.parkingManager); err != nil {
		log.Warnf("statistics snapshot %s: %v", name, err)
	}
}

func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	if ctx.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ctx.server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("monitoring server shutdown: %v", err)
		}
	}
	if ctx.sidecar != nil {
		ctx.sidecar.Close()
	}
	// wait for graceful stop
	<-ctx.sidecarCloseCh
	ctx.closed.Store(true)
}
