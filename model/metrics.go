package model

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ModelLoaded 表示序列模型是否已加载（0/1）
	ModelLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tunerank_sequential_model_loaded",
			Help: "Whether a sequential model is loaded (1) or not (0)",
		},
	)

	// ModelReloadTotal 模型热更新次数
	ModelReloadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunerank_model_reload_total",
			Help: "Total number of model reload attempts by outcome",
		},
		[]string{"outcome"},
	)
)
