// Package feature 把外部特征库（Feast / 物化 KV）适配为 core.FeatureFetcher。
package feature

import (
	"context"

	"github.com/rushteam/tunerank/core"
)

var (
	// ErrFeatureStoreDisabled 表示未配置特征库
	ErrFeatureStoreDisabled = core.NewDomainError(core.ModuleFeature, core.ErrorCodeNotSupported, "feature: store not configured")

	// ErrFeatureServiceUnavailable 表示特征库不可用（超时、熔断、后端错误）
	ErrFeatureServiceUnavailable = core.NewDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, "feature: service unavailable")
)

// Source 是特征源的抽象接口，采用策略模式。
// 不同的特征源（Feast、Redis、Memory）实现此接口。
type Source interface {
	// Name 返回特征源名称（用于日志/监控）
	Name() string

	// UserFeatures 获取用户级聚合特征；用户不存在时返回空 map
	UserFeatures(ctx context.Context, userID string) (map[string]float64, error)

	// TrackFeatures 批量获取曲目特征；缺失的曲目不出现在结果中
	TrackFeatures(ctx context.Context, trackIDs []string) (map[string]map[string]float64, error)
}
