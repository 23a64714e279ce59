package feature

import "github.com/rushteam/tunerank/core"

// MergeTrackMetadata 将外部曲目音频特征合并进元数据，返回新的 map，不修改入参。
//
// 合并规则：
//   - 只合并 core.AudioFeatureNames 中的音频特征
//   - 元数据已有的特征优先，外部特征只补缺
//   - 元数据缺失但外部有音频特征的曲目，生成只含音频特征的元数据
//
// 热度、用户统计等其他特征不参与打分，由调用方作为解释标签附加。
func MergeTrackMetadata(meta map[string]*core.TrackMetadata, bundle core.FeatureBundle) map[string]*core.TrackMetadata {
	out := make(map[string]*core.TrackMetadata, len(meta)+len(bundle.Tracks))
	for id, m := range meta {
		out[id] = m
	}

	for id, external := range bundle.Tracks {
		var fill map[string]float64
		base := out[id]
		for _, name := range core.AudioFeatureNames {
			v, ok := external[name]
			if !ok || base.HasFeature(name) {
				continue
			}
			if fill == nil {
				fill = make(map[string]float64)
			}
			fill[name] = v
		}
		if fill == nil {
			continue
		}

		merged := &core.TrackMetadata{ID: id}
		if base != nil {
			*merged = *base
		}
		merged.AudioFeatures = make(map[string]float64, len(fill)+len(merged.AudioFeatures))
		if base != nil {
			for k, v := range base.AudioFeatures {
				merged.AudioFeatures[k] = v
			}
		}
		for k, v := range fill {
			merged.AudioFeatures[k] = v
		}
		out[id] = merged
	}
	return out
}
