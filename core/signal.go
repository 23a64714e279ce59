package core

import (
	"bytes"
	"encoding/json"
	"slices"
	"time"

	"github.com/rushteam/tunerank/pkg/conv"
)

// DefaultRecentSequenceCap 是最近行为序列的默认长度上限。
const DefaultRecentSequenceCap = 50

// EventType 是参与重排的交互类型。
type EventType string

const (
	EventPlay EventType = "PLAY"
	EventLike EventType = "LIKE"
	EventSkip EventType = "SKIP"
)

// TrackedEventTypes 是构建最近序列时读取的交互类型，其他类型一律忽略。
var TrackedEventTypes = []EventType{EventPlay, EventLike, EventSkip}

// Valid 判断是否为参与重排的交互类型。
func (t EventType) Valid() bool {
	return slices.Contains(TrackedEventTypes, t)
}

// InteractionEvent 是最近序列的数据来源。
type InteractionEvent struct {
	TrackID   string    `json:"track_id"`
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RecentSequence 是按时间从旧到新排列的曲目 ID 序列，最后一个元素是锚点。
type RecentSequence []string

// Anchor 返回最近一次交互的曲目；序列为空时返回 ("", false)。
func (s RecentSequence) Anchor() (string, bool) {
	if len(s) == 0 {
		return "", false
	}
	return s[len(s)-1], true
}

// Tail 返回最近的 n 个元素（保持从旧到新的顺序）。
func (s RecentSequence) Tail(n int) RecentSequence {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// InterestProfile 是预先计算的长期兴趣：艺人 / 流派 -> 权重（0-1）。
//
// JSON 形态与兴趣图生成任务一致：
//
//	{"topArtists": {"Artist": 0.8}, "topGenres": {"jazz": 0.5}}
//
// 反序列化是宽松的：权重非数值或非有限值时记为 0（key 保留），
// topArtists/topGenres 不是对象时视为空。
type InterestProfile struct {
	TopArtists map[string]float64 `json:"topArtists"`
	TopGenres  map[string]float64 `json:"topGenres"`
}

// ArtistWeight 返回艺人权重，ok 表示艺人是否出现在画像中。
func (p *InterestProfile) ArtistWeight(artist string) (float64, bool) {
	if p == nil || p.TopArtists == nil || artist == "" {
		return 0, false
	}
	w, ok := p.TopArtists[artist]
	return w, ok
}

// GenreWeight 返回流派权重，ok 表示流派是否出现在画像中。
func (p *InterestProfile) GenreWeight(genre string) (float64, bool) {
	if p == nil || p.TopGenres == nil || genre == "" {
		return 0, false
	}
	w, ok := p.TopGenres[genre]
	return w, ok
}

func (p *InterestProfile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.TopArtists = parseWeights(raw["topArtists"])
	p.TopGenres = parseWeights(raw["topGenres"])
	return nil
}

func parseWeights(raw json.RawMessage) map[string]float64 {
	out := make(map[string]float64)
	if len(raw) == 0 {
		return out
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return out
	}
	for k, v := range obj {
		w, _ := conv.ParseFloat(v)
		out[k] = w
	}
	return out
}

// ParseInterestProfile 解析持久化的兴趣图。
//
// 兼容 JSON 对象与被二次编码的 JSON 字符串；空内容或解析失败返回 (nil, false)，
// 调用方按"无画像"处理。
func ParseInterestProfile(raw []byte) (*InterestProfile, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false
	}
	var p InterestProfile
	if err := json.Unmarshal(raw, &p); err == nil {
		return &p, true
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil || encoded == "" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(encoded), &p); err != nil {
		return nil, false
	}
	return &p, true
}
