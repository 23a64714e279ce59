package feast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPClient 是 Feast Feature Server 的 HTTP 客户端实现。
//
// 请求与响应使用 Feature Server 的列式格式：
//
//	POST {endpoint}/get-online-features
//	{"features": ["track_audio_features:energy"], "entities": {"track_id": ["t1", "t2"]}, "full_feature_names": true}
//
//	{"metadata": {"feature_names": ["track_id", "track_audio_features__energy"]},
//	 "results": [{"values": ["t1", "t2"], "statuses": [...]}, {"values": [0.8, null], "statuses": ["PRESENT", "NOT_FOUND"]}]}
type HTTPClient struct {
	// Endpoint 服务端点，例如 "http://localhost:6566"
	Endpoint string

	// Project 项目名称
	Project string

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
}

// NewHTTPClient 创建一个新的 Feast HTTP 客户端。
func NewHTTPClient(endpoint, project string, opts ...ClientOption) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	config := newConfig(endpoint, project, opts)
	return &HTTPClient{
		Endpoint:   strings.TrimRight(config.Endpoint, "/"),
		Project:    config.Project,
		Auth:       config.Auth,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type onlineFeaturesResponse struct {
	Metadata struct {
		FeatureNames []string `json:"feature_names"`
	} `json:"metadata"`
	Results []struct {
		Values   []any    `json:"values"`
		Statuses []string `json:"statuses"`
	} `json:"results"`
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *HTTPClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("entity rows are required")
	}

	entities, err := columnarEntities(req.EntityRows)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"features":           req.Features,
		"entities":           entities,
		"full_feature_names": true,
	}
	if req.Project != "" {
		body["project"] = req.Project
	} else if c.Project != "" {
		body["project"] = c.Project
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/get-online-features", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("feast error: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}

	var result onlineFeaturesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Metadata.FeatureNames) != len(result.Results) {
		return nil, fmt.Errorf("malformed response: %d feature names, %d result columns",
			len(result.Metadata.FeatureNames), len(result.Results))
	}

	// full_feature_names 返回 "view__feature"，映射回请求中的 "view:feature"
	refByName := make(map[string]string, len(req.Features))
	for _, ref := range req.Features {
		refByName[strings.Replace(ref, ":", "__", 1)] = ref
	}

	featureVectors := make([]FeatureVector, len(req.EntityRows))
	for i := range featureVectors {
		featureVectors[i] = FeatureVector{
			Values:    make(map[string]any, len(req.Features)),
			EntityRow: req.EntityRows[i],
		}
	}
	for j, name := range result.Metadata.FeatureNames {
		ref, ok := refByName[name]
		if !ok {
			continue // 实体列
		}
		col := result.Results[j]
		for i := 0; i < len(featureVectors) && i < len(col.Values); i++ {
			if i < len(col.Statuses) && col.Statuses[i] != "PRESENT" {
				continue
			}
			if col.Values[i] != nil {
				featureVectors[i].Values[ref] = col.Values[i]
			}
		}
	}

	return &GetOnlineFeaturesResponse{
		FeatureVectors: featureVectors,
		Metadata:       map[string]any{"transport": "http"},
	}, nil
}

// columnarEntities 将实体行转换为列式 {key: [v1, v2, ...]}，所有行必须包含相同的实体键。
func columnarEntities(rows []map[string]any) (map[string][]any, error) {
	cols := make(map[string][]any, len(rows[0]))
	for k := range rows[0] {
		cols[k] = make([]any, len(rows))
	}
	for i, row := range rows {
		if len(row) != len(cols) {
			return nil, fmt.Errorf("entity row %d has inconsistent keys", i)
		}
		for k, v := range row {
			col, ok := cols[k]
			if !ok {
				return nil, fmt.Errorf("entity row %d has unexpected key %q", i, k)
			}
			col[i] = v
		}
	}
	return cols, nil
}

// Close 关闭连接（HTTP 客户端无需显式关闭）
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// addAuth 添加认证头
func (c *HTTPClient) addAuth(req *http.Request) {
	if c.Auth == nil {
		return
	}
	switch c.Auth.Type {
	case "basic":
		req.SetBasicAuth(c.Auth.Username, c.Auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.Auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", c.Auth.APIKey)
	}
}

var _ Client = (*HTTPClient)(nil)
