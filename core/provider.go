package core

import "context"

// MetadataProvider 是曲目元数据的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（signal）实现
//   - 纯查询，无业务逻辑
//   - 缺失的 ID 直接不出现在结果中，不返回错误
//
// 实现：
//   - signal.SQLRepository（关系库）
//   - signal.StoreRepository（core.KeyValueStore，如 Redis）
type MetadataProvider interface {
	// FetchTrackMetadata 批量获取元数据；存储故障时返回错误（唯一向调用方传播的下游错误）
	FetchTrackMetadata(ctx context.Context, ids []string) (map[string]*TrackMetadata, error)
}

// SignalProvider 是用户行为信号的领域接口。
type SignalProvider interface {
	// FetchRecentSequence 返回最近 limit 条 PLAY/LIKE/SKIP 交互的曲目 ID，从旧到新
	FetchRecentSequence(ctx context.Context, userID string, limit int) (RecentSequence, error)

	// FetchInterestProfile 返回兴趣画像；不存在或数据损坏时返回 (nil, nil)
	FetchInterestProfile(ctx context.Context, userID string) (*InterestProfile, error)
}

// Repository 同时提供元数据与行为信号（常见实现同时满足两者）。
type Repository interface {
	MetadataProvider
	SignalProvider
	Close() error
}
