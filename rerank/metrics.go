package rerank

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StrategyTotal 按命中策略统计重排请求
	StrategyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunerank_rerank_strategy_total",
			Help: "Total number of rerank requests by selected scoring strategy",
		},
		[]string{"strategy"},
	)

	// StrategyFallthroughTotal 策略执行失败后降级到下一策略的次数
	StrategyFallthroughTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunerank_rerank_strategy_fallthrough_total",
			Help: "Total number of scoring strategy failures that fell through to the next strategy",
		},
		[]string{"strategy"},
	)

	// DegradedTotal 按信号来源统计降级次数（signal 拉取失败、特征库不可用等）
	DegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunerank_degraded_total",
			Help: "Total number of degraded signals by source",
		},
		[]string{"source"},
	)

	// RerankDuration 重排耗时
	RerankDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunerank_rerank_duration_seconds",
			Help:    "Duration of rerank requests",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"outcome"},
	)
)
