package feature

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/tunerank/feast"
	"github.com/rushteam/tunerank/pkg/conv"
)

// FeatureMapping 特征映射配置
type FeatureMapping struct {
	// UserFeatures 用户特征引用，例如 ["user_listening_stats:skip_rate_7d"]
	UserFeatures []string `yaml:"user_features" koanf:"user_features"`

	// TrackFeatures 曲目特征引用，例如 ["track_audio_features:energy"]
	TrackFeatures []string `yaml:"track_features" koanf:"track_features"`

	// UserEntityKey 用户实体键名，默认 "external_user_id"
	UserEntityKey string `yaml:"user_entity_key" koanf:"user_entity_key"`

	// TrackEntityKey 曲目实体键名，默认 "track_id"
	TrackEntityKey string `yaml:"track_entity_key" koanf:"track_entity_key"`
}

// DefaultFeatureMapping 返回与离线物化任务一致的特征视图映射。
func DefaultFeatureMapping() FeatureMapping {
	return FeatureMapping{
		UserFeatures: []string{
			"user_listening_stats:play_count_7d",
			"user_listening_stats:like_count_7d",
			"user_listening_stats:skip_count_7d",
			"user_listening_stats:like_rate_7d",
			"user_listening_stats:skip_rate_7d",
			"user_audio_preferences:avg_energy",
			"user_audio_preferences:avg_valence",
			"user_audio_preferences:avg_danceability",
		},
		TrackFeatures: []string{
			"track_audio_features:energy",
			"track_audio_features:valence",
			"track_audio_features:danceability",
			"track_audio_features:acousticness",
			"track_audio_features:instrumentalness",
			"track_audio_features:speechiness",
			"track_audio_features:tempo",
			"track_audio_features:loudness",
			"track_popularity:play_count_7d",
			"track_popularity:popularity_score",
		},
		UserEntityKey:  "external_user_id",
		TrackEntityKey: "track_id",
	}
}

// FeastSource 将 feast.Client 适配为 Source。
// 特征名去掉特征视图前缀，例如 "track_audio_features:energy" -> "energy"。
type FeastSource struct {
	client  feast.Client
	mapping FeatureMapping
}

// NewFeastSource 创建 Feast 特征源；mapping 中缺省的字段使用 DefaultFeatureMapping。
func NewFeastSource(client feast.Client, mapping FeatureMapping) *FeastSource {
	def := DefaultFeatureMapping()
	if mapping.UserFeatures == nil {
		mapping.UserFeatures = def.UserFeatures
	}
	if mapping.TrackFeatures == nil {
		mapping.TrackFeatures = def.TrackFeatures
	}
	if mapping.UserEntityKey == "" {
		mapping.UserEntityKey = def.UserEntityKey
	}
	if mapping.TrackEntityKey == "" {
		mapping.TrackEntityKey = def.TrackEntityKey
	}
	return &FeastSource{client: client, mapping: mapping}
}

func (s *FeastSource) Name() string { return "feast" }

func (s *FeastSource) UserFeatures(ctx context.Context, userID string) (map[string]float64, error) {
	if len(s.mapping.UserFeatures) == 0 {
		return map[string]float64{}, nil
	}
	resp, err := s.client.GetOnlineFeatures(ctx, &feast.GetOnlineFeaturesRequest{
		Features:   s.mapping.UserFeatures,
		EntityRows: []map[string]any{{s.mapping.UserEntityKey: userID}},
	})
	if err != nil {
		return nil, fmt.Errorf("feast get user features: %w", err)
	}
	if len(resp.FeatureVectors) == 0 {
		return map[string]float64{}, nil
	}
	return shortNames(resp.FeatureVectors[0].Values), nil
}

func (s *FeastSource) TrackFeatures(ctx context.Context, trackIDs []string) (map[string]map[string]float64, error) {
	result := make(map[string]map[string]float64, len(trackIDs))
	if len(trackIDs) == 0 || len(s.mapping.TrackFeatures) == 0 {
		return result, nil
	}

	entityRows := make([]map[string]any, len(trackIDs))
	for i, id := range trackIDs {
		entityRows[i] = map[string]any{s.mapping.TrackEntityKey: id}
	}
	resp, err := s.client.GetOnlineFeatures(ctx, &feast.GetOnlineFeaturesRequest{
		Features:   s.mapping.TrackFeatures,
		EntityRows: entityRows,
	})
	if err != nil {
		return nil, fmt.Errorf("feast get track features: %w", err)
	}

	for i, fv := range resp.FeatureVectors {
		if i >= len(trackIDs) {
			break
		}
		if features := shortNames(fv.Values); len(features) > 0 {
			result[trackIDs[i]] = features
		}
	}
	return result, nil
}

// shortNames 去掉特征视图前缀并转为 float64，非数值被丢弃。
func shortNames(values map[string]any) map[string]float64 {
	out := make(map[string]float64, len(values))
	for ref, v := range values {
		f, ok := conv.ParseFloat(v)
		if !ok {
			continue
		}
		name := ref
		if i := strings.LastIndexByte(ref, ':'); i >= 0 {
			name = ref[i+1:]
		}
		out[name] = f
	}
	return out
}

var _ Source = (*FeastSource)(nil)
