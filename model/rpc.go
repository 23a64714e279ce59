package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RPCModel 是通过 HTTP 调用外部推理服务（TorchServe / 自建 SASRec 服务）的 SequentialModel 实现。
// 词表由本地 artifact 提供，远端只接收和返回下标。
type RPCModel struct {
	name     string
	Endpoint string // 例如 "http://localhost:8080/predictions/sasrec"
	Timeout  time.Duration
	Client   *http.Client
}

// NewRPCModel 创建远程模型；Client 在此初始化，PredictNext 不会修改 RPCModel。
func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if name == "" {
		name = DefaultModelName
	}
	return &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RPCModel) Name() string {
	return m.name
}

// PredictNext 调用远程模型服务预测下一曲目。
// 请求格式（JSON）：
//
//	{"sequence": [12, 7, 33], "top_k": 20}
//
// 响应格式（JSON），每项为 [下标, 概率]：
//
//	{"predictions": [[41, 0.12], [7, 0.08], ...]}
//
// 响应中的填充位与越界概率会被过滤。
func (m *RPCModel) PredictNext(ctx context.Context, seq []int, topK int) ([]Prediction, error) {
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: m.Timeout}
	}
	if len(seq) == 0 {
		return nil, fmt.Errorf("rpc model: empty sequence")
	}
	if len(seq) > DefaultWindow {
		seq = seq[len(seq)-DefaultWindow:]
	}

	jsonData, err := json.Marshal(map[string]any{
		"sequence": seq,
		"top_k":    topK,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Predictions [][2]float64 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	preds := make([]Prediction, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		idx := int(p[0])
		if idx == PaddingIndex || p[1] < 0 || p[1] > 1 {
			continue
		}
		preds = append(preds, Prediction{Index: idx, Prob: p[1]})
	}
	if topK > 0 && len(preds) > topK {
		preds = preds[:topK]
	}
	return preds, nil
}

var _ SequentialModel = (*RPCModel)(nil)
