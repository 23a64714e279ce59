// Package feast 提供 Feast Feature Store 的在线特征客户端。
package feast

import (
	"context"
	"time"
)

// Client 是 Feast Feature Store 的在线特征客户端接口。
//
// 重排只需要在线特征（Online Store / Feature Server），
// 离线特征、物化等由离线管道负责，不在此接口中。
//
// 实现：
//   - GrpcClient：官方 Go SDK（github.com/feast-dev/feast/sdk/go）
//   - HTTPClient：Feature Server JSON API（POST /get-online-features）
//
// 参考：https://github.com/feast-dev/feast
type Client interface {
	// GetOnlineFeatures 获取在线特征
	//
	// 参数：
	//   - features: 特征引用列表，例如 ["track_audio_features:energy", "track_popularity:play_count_7d"]
	//   - entityRows: 实体行，例如 [{"track_id": "t1"}]
	//
	// 返回的 FeatureVectors 与 EntityRows 一一对应。
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	// Features 特征引用列表，格式 "<feature_view>:<feature>"
	Features []string

	// EntityRows 实体行，例如 [{"user_id": "u1"}]
	EntityRows []map[string]any

	// Project 项目名称（可选，为空时使用客户端默认项目）
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应
type GetOnlineFeaturesResponse struct {
	// FeatureVectors 特征向量列表，每个元素对应一个实体行
	FeatureVectors []FeatureVector

	// Metadata 元数据
	Metadata map[string]any
}

// FeatureVector 特征向量
type FeatureVector struct {
	// Values 特征值，key 为特征引用，value 为原始值（数值 / 字符串 / nil）
	Values map[string]any

	// EntityRow 对应的实体行
	EntityRow map[string]any
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	// Endpoint 服务端点
	Endpoint string

	// Project 项目名称
	Project string

	// Timeout 单次请求超时
	Timeout time.Duration

	// UseGRPC 强制使用 gRPC（端点无 scheme 时默认也走 gRPC）
	UseGRPC bool

	// Auth 认证信息
	Auth *AuthConfig
}

// AuthConfig 认证配置
type AuthConfig struct {
	// Type 认证类型：basic, bearer, api_key, static
	// static 用于 gRPC 的静态 Token 认证
	Type string

	// Username 用户名（basic auth）
	Username string

	// Password 密码（basic auth）
	Password string

	// Token Token（bearer auth 或 static auth）
	Token string

	// APIKey API Key（api_key auth）
	APIKey string
}

// WithTimeout 配置选项：设置超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAuth 配置选项：设置认证信息
func WithAuth(auth *AuthConfig) ClientOption {
	return func(c *ClientConfig) {
		c.Auth = auth
	}
}

// WithGRPC 配置选项：使用 gRPC 客户端
func WithGRPC() ClientOption {
	return func(c *ClientConfig) {
		c.UseGRPC = true
	}
}

func newConfig(endpoint, project string, opts []ClientOption) *ClientConfig {
	cfg := &ClientConfig{
		Endpoint: endpoint,
		Project:  project,
		Timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
