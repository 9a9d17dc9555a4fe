package task

import (
	"flag"
	"strings"
)

const (
	SelfName = "parking" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进时钟，定期输出心跳日志
func (ctx *Context) prepare() {
	ctx.clock.Tick()

	if *heartBeatInterval > 0 && ctx.clock.Step%int32(*heartBeatInterval) == 0 {
		log.Infof(
			"STEP: %d(%s) free spaces: %d, pending vehicles: %d",
			ctx.clock.Step, ctx.clock,
			ctx.parkingManager.FreeSpaces(), ctx.vehicleManager.Pending(),
		)
	}
}

// update 更新阶段，每步执行一次
// 算法说明：
// 1. 车辆管理器处理到期的到达与离开事件（车辆间并发）
// 2. 到达快照时刻时输出统计快照
func (ctx *Context) update() {
	ctx.vehicleManager.Update(ctx.clock.T)

	if ctx.schedule != nil && ctx.schedule.Due(ctx.clock.T) {
		ctx.writeSnapshot(strings.ReplaceAll(ctx.clock.String(), ":", "-"))
	}
}

// step 与syncer同步，返回是否结束
func (ctx *Context) step(last bool) bool {
	if ctx.sidecar == nil {
		return last
	}
	return ctx.sidecar.Step(last)
}

// Run 运行
func (ctx *Context) Run() {
	// 初始化
	ctx.Init()
	// init syncer
	ctx.step(false)
	for {
		ctx.prepare()
		// 通知准备阶段完成
		if ctx.sidecar != nil {
			log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.Step)
			ctx.sidecar.NotifyStepReady()
		}
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.Step)
		if ctx.step(ctx.clock.IsLastStep()) || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete at %s: %v", ctx.clock, ctx.vehicleManager.Summary())
	ctx.writeSnapshot("final")
	ctx.Close()
}
