package feature

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal 按结果统计特征拉取次数：ok / partial / unavailable / open
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunerank_feature_fetch_total",
			Help: "Total number of feature store fetches by outcome",
		},
		[]string{"source", "outcome"},
	)

	// FetchDuration 特征拉取耗时
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tunerank_feature_fetch_duration_seconds",
			Help:    "Duration of feature store fetches in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1},
		},
		[]string{"source"},
	)

	// CacheLookupsTotal 曲目特征缓存命中 / 未命中
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tunerank_feature_cache_lookups_total",
			Help: "Total number of track feature cache lookups by result",
		},
		[]string{"result"},
	)
)
