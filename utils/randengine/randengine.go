// 随机数引擎，包装了golang.org/x/exp/rand，提供了一些常用的随机数生成方法
package randengine

import (
	"flag"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于在不修改配置的情况下调整随机数序列

	log = logrus.WithField("module", "randengine")
)

// Engine 随机数引擎（非线程安全）
type Engine struct {
	*rand.Rand
}

// New 创建随机数引擎
// 参数：seed-随机数种子，实际种子为seed+rand.seed_offset
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// DiscreteDistribution 按给定权重生成随机下标
// 功能：以weight[i]/sum(weight)的概率返回i
// 说明：权重全为0时panic
func (e *Engine) DiscreteDistribution(weight []float64) int {
	random := .0
	for _, w := range weight {
		random += w
	}
	random *= e.Float64()
	sum := 0.
	for i, w := range weight {
		sum += w
		if sum > random {
			return i
		}
	}
	log.Panicf("DiscreteDistribution: sum: %f random: %f", sum, random)
	return -1
}

// PTrue 以概率p返回true
func (e *Engine) PTrue(p float64) bool {
	return e.Float64() < p
}

// Uniform 在[low, high)内均匀采样，high<=low时返回low
func (e *Engine) Uniform(low, high float64) float64 {
	if high <= low {
		return low
	}
	return low + (high-low)*e.Float64()
}
