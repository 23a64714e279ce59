package core

import (
	"encoding/json"

	"github.com/rushteam/tunerank/pkg/conv"
)

// 音频特征名。除 tempo（BPM）与 loudness（dB）外取值均在 [0,1]。
const (
	FeatureEnergy           = "energy"
	FeatureValence          = "valence"
	FeatureDanceability     = "danceability"
	FeatureAcousticness     = "acousticness"
	FeatureInstrumentalness = "instrumentalness"
	FeatureSpeechiness      = "speechiness"
	FeatureTempo            = "tempo"
	FeatureLoudness         = "loudness"
)

// AudioFeatureNames 是参与合并的全部音频特征名。
var AudioFeatureNames = []string{
	FeatureEnergy,
	FeatureValence,
	FeatureDanceability,
	FeatureAcousticness,
	FeatureInstrumentalness,
	FeatureSpeechiness,
	FeatureTempo,
	FeatureLoudness,
}

// TrackMetadata 是单个曲目的描述属性。
// 缺失的曲目不会出现在 map 中，调用方按"空元数据"处理，不视为错误。
type TrackMetadata struct {
	ID            string             `json:"id"`
	Title         string             `json:"title"`
	Artist        string             `json:"artist"`
	Genre         string             `json:"genre"`
	AudioFeatures map[string]float64 `json:"audio_features,omitempty"`
}

// Feature 返回音频特征值；缺失时返回 0。
func (m *TrackMetadata) Feature(name string) float64 {
	if m == nil || m.AudioFeatures == nil {
		return 0
	}
	return m.AudioFeatures[name]
}

// HasFeature 判断音频特征是否存在。
func (m *TrackMetadata) HasFeature(name string) bool {
	if m == nil || m.AudioFeatures == nil {
		return false
	}
	_, ok := m.AudioFeatures[name]
	return ok
}

// ParseAudioFeatures 宽松解析持久化的音频特征。
//
// 兼容两种存储形态：JSON 对象，或被二次编码为 JSON 字符串的对象。
// 非数值、无法解析或非有限值的字段被丢弃；整体解析失败返回空 map。
func ParseAudioFeatures(raw []byte) map[string]float64 {
	out := make(map[string]float64)
	if len(raw) == 0 {
		return out
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return out
		}
		if err := json.Unmarshal([]byte(encoded), &obj); err != nil {
			return out
		}
	}

	for k, v := range obj {
		if f, ok := conv.ParseFloat(v); ok {
			out[k] = f
		}
	}
	return out
}
