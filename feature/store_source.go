package feature

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/tunerank/core"
	"github.com/rushteam/tunerank/pkg/conv"
)

// Layout 是物化特征在 KV 中的存储形式
type Layout string

const (
	// LayoutJSON 每个实体一个 JSON 字符串
	LayoutJSON Layout = "json"
	// LayoutHash 每个实体一个 Hash，字段为特征名，值为数字字符串
	LayoutHash Layout = "hash"
)

// KeyPrefix 定义物化特征的 key 前缀
type KeyPrefix struct {
	User  string // 用户特征前缀，默认 "user:features:"
	Track string // 曲目特征前缀，默认 "track:features:"
}

// StoreSource 是基于 core.Store 的特征源，读取离线任务物化到 KV 的特征。
//
// JSON 形式：
//
//	user:features:{user_id}   {"skip_rate_7d": 0.3, "avg_energy": 0.6}
//	track:features:{track_id} {"energy": 0.8, "popularity_score": 0.4}
//
// Hash 形式（HGETALL track:features:{track_id}）：
//
//	energy            "0.8"
//	popularity_score  "0.4"
type StoreSource struct {
	store     core.Store
	kv        core.KeyValueStore
	layout    Layout
	keyPrefix KeyPrefix
}

// NewStoreSource 创建读取 JSON 特征的 Store 特征源
func NewStoreSource(store core.Store, keyPrefix KeyPrefix) *StoreSource {
	return &StoreSource{store: store, layout: LayoutJSON, keyPrefix: keyPrefix.withDefaults()}
}

// NewHashStoreSource 创建读取 Hash 特征的特征源
func NewHashStoreSource(kv core.KeyValueStore, keyPrefix KeyPrefix) *StoreSource {
	return &StoreSource{store: kv, kv: kv, layout: LayoutHash, keyPrefix: keyPrefix.withDefaults()}
}

func (p KeyPrefix) withDefaults() KeyPrefix {
	if p.User == "" {
		p.User = "user:features:"
	}
	if p.Track == "" {
		p.Track = "track:features:"
	}
	return p
}

func (s *StoreSource) Name() string {
	return fmt.Sprintf("store.%s.%s", s.store.Name(), s.layout)
}

func (s *StoreSource) UserFeatures(ctx context.Context, userID string) (map[string]float64, error) {
	if s.layout == LayoutHash {
		return s.hashFeatures(ctx, s.keyPrefix.User+userID)
	}
	data, err := s.store.Get(ctx, s.keyPrefix.User+userID)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return map[string]float64{}, nil
		}
		return nil, err
	}
	return decodeFeatures(data)
}

func (s *StoreSource) TrackFeatures(ctx context.Context, trackIDs []string) (map[string]map[string]float64, error) {
	result := make(map[string]map[string]float64, len(trackIDs))
	if len(trackIDs) == 0 {
		return result, nil
	}
	if s.layout == LayoutHash {
		for _, id := range trackIDs {
			features, err := s.hashFeatures(ctx, s.keyPrefix.Track+id)
			if err != nil {
				return nil, err
			}
			if len(features) > 0 {
				result[id] = features
			}
		}
		return result, nil
	}

	keys := make([]string, len(trackIDs))
	keyToTrack := make(map[string]string, len(trackIDs))
	for i, id := range trackIDs {
		keys[i] = s.keyPrefix.Track + id
		keyToTrack[keys[i]] = id
	}

	dataMap, err := s.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	for key, data := range dataMap {
		features, err := decodeFeatures(data)
		if err != nil {
			continue // 跳过反序列化失败的特征
		}
		result[keyToTrack[key]] = features
	}
	return result, nil
}

// hashFeatures 读取一个实体的全部 Hash 字段，无法解析为数字的字段被丢弃
func (s *StoreSource) hashFeatures(ctx context.Context, key string) (map[string]float64, error) {
	fields, err := s.kv.HGetAll(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return map[string]float64{}, nil
		}
		return nil, err
	}
	out := make(map[string]float64, len(fields))
	for name, raw := range fields {
		if f, ok := conv.ParseFloat(string(raw)); ok {
			out[name] = f
		}
	}
	return out, nil
}

func decodeFeatures(data []byte) (map[string]float64, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return conv.MapToFloat64(raw), nil
}

var _ Source = (*StoreSource)(nil)
