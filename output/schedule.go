package output

import (
	"fmt"
	"math"
	"time"

	"github.com/robfig/cron/v3"
)

// simEpoch 模拟时间0点对应的日期，cron表达式中的日期字段以此为第一天
var simEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Schedule 模拟时间上的快照时刻表
// 功能：用标准cron表达式（分 时 日 月 周）描述模拟时间上的快照时刻
// 说明：两次检查之间错过多个时刻只触发一次
type Schedule struct {
	sched cron.Schedule
	next  float64 // 下一个触发时刻（秒）
}

// NewSchedule 解析cron表达式
// 参数：expr-cron表达式，例如"*/15 * * * *"表示每15分钟；start-模拟开始时间（秒），start本身可以触发
func NewSchedule(expr string, start float64) (*Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid output schedule %q: %w", expr, err)
	}
	s := &Schedule{sched: sched}
	s.next = s.after(toTime(start).Add(-time.Nanosecond))
	return s, nil
}

// Next 下一个触发时刻（秒）
func (s *Schedule) Next() float64 {
	return s.next
}

// Due 模拟时间t是否到达触发时刻，到达时推进到t之后的下一个时刻
func (s *Schedule) Due(t float64) bool {
	if t < s.next {
		return false
	}
	s.next = s.after(toTime(t))
	return true
}

func (s *Schedule) after(at time.Time) float64 {
	next := s.sched.Next(at)
	if next.IsZero() {
		return math.Inf(1)
	}
	return next.Sub(simEpoch).Seconds()
}

func toTime(t float64) time.Time {
	return simEpoch.Add(time.Duration(t * float64(time.Second)))
}
