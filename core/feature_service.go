package core

import "context"

// FeatureBundle 是外部特征库物化的聚合特征。
//
//   - User：用户级滚动统计（播放 / 喜欢 / 跳过率、平均音频偏好等）
//   - Tracks：曲目级特征（音频特征、热度），key 为曲目 ID
//
// 任一部分都可能为空；Bundle 只作为可选的附加信号。
type FeatureBundle struct {
	User   map[string]float64
	Tracks map[string]map[string]float64
}

// Empty 判断 Bundle 是否不含任何特征。
func (b FeatureBundle) Empty() bool {
	return len(b.User) == 0 && len(b.Tracks) == 0
}

// Track 返回曲目特征，缺失时返回 nil。
func (b FeatureBundle) Track(id string) map[string]float64 {
	if b.Tracks == nil {
		return nil
	}
	return b.Tracks[id]
}

// FeatureResult 是外部特征拉取的结果：Ok(bundle) 或 Unavailable(err)。
type FeatureResult struct {
	Bundle FeatureBundle
	Err    error
}

// Ok 判断拉取是否成功。
func (r FeatureResult) Ok() bool {
	return r.Err == nil
}

// Fold 把 Unavailable 折叠为空 Bundle。调用方只应在这一处处理特征库失败。
func (r FeatureResult) Fold() FeatureBundle {
	if r.Err != nil {
		return FeatureBundle{}
	}
	return r.Bundle
}

// FeatureFetcher 是外部特征库的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（feature）实现
//   - 只读、请求级；不得因失败中断重排，失败体现在 FeatureResult.Err 中
type FeatureFetcher interface {
	// Fetch 拉取用户与候选曲目的外部特征
	Fetch(ctx context.Context, userID string, trackIDs []string, ictx *InteractionContext) FeatureResult

	// Enabled 返回特征库是否已配置
	Enabled() bool
}
