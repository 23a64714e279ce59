package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rushteam/tunerank/core"
)

// DefaultTimelineCap 是事件时间线保留的最大条数。
const DefaultTimelineCap = 500

// KeyPrefix 定义 StoreRepository 使用的 key 前缀。
type KeyPrefix struct {
	TrackMeta    string // 默认 "track:meta:"
	UserEvents   string // 默认 "user:events:"
	UserInterest string // 默认 "user:interest:"
}

// DefaultKeyPrefix 返回默认 key 前缀。
func DefaultKeyPrefix() KeyPrefix {
	return KeyPrefix{
		TrackMeta:    "track:meta:",
		UserEvents:   "user:events:",
		UserInterest: "user:interest:",
	}
}

// StoreRepository 基于 core.KeyValueStore 的 core.Repository 实现。
//
// 数据布局：
//   - track:meta:{id}      曲目元数据 JSON
//   - user:events:{id}     交互时间线（有序集合，score 为毫秒时间戳，member 为 "TYPE|track_id|ts"）
//   - user:interest:{id}   兴趣画像 JSON
type StoreRepository struct {
	store       core.KeyValueStore
	prefix      KeyPrefix
	timelineCap int64
}

// StoreOption 配置 StoreRepository。
type StoreOption func(*StoreRepository)

// WithKeyPrefix 覆盖默认 key 前缀。
func WithKeyPrefix(p KeyPrefix) StoreOption {
	return func(r *StoreRepository) { r.prefix = p }
}

// WithTimelineCap 设置事件时间线保留条数。
func WithTimelineCap(n int64) StoreOption {
	return func(r *StoreRepository) {
		if n > 0 {
			r.timelineCap = n
		}
	}
}

// NewStoreRepository 创建 KV 仓库。
func NewStoreRepository(store core.KeyValueStore, opts ...StoreOption) *StoreRepository {
	r := &StoreRepository{
		store:       store,
		prefix:      DefaultKeyPrefix(),
		timelineCap: DefaultTimelineCap,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// storedTrack 是 track:meta 的持久化形态，audio_features 允许对象或二次编码字符串。
type storedTrack struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Artist        string          `json:"artist"`
	Genre         string          `json:"genre"`
	AudioFeatures json.RawMessage `json:"audio_features"`
}

// FetchTrackMetadata 批量读取元数据；无法解析的条目按缺失处理。
func (r *StoreRepository) FetchTrackMetadata(ctx context.Context, ids []string) (map[string]*core.TrackMetadata, error) {
	result := make(map[string]*core.TrackMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefix.TrackMeta + id
	}
	values, err := r.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, unavailable("batch get track metadata", err)
	}

	for i, id := range ids {
		raw, ok := values[keys[i]]
		if !ok {
			continue
		}
		var st storedTrack
		if err := json.Unmarshal(raw, &st); err != nil {
			continue
		}
		result[id] = &core.TrackMetadata{
			ID:            id,
			Title:         st.Title,
			Artist:        st.Artist,
			Genre:         st.Genre,
			AudioFeatures: core.ParseAudioFeatures(st.AudioFeatures),
		}
	}
	return result, nil
}

// FetchRecentSequence 从时间线读取最近 limit 条 PLAY/LIKE/SKIP，返回从旧到新的曲目 id。
func (r *StoreRepository) FetchRecentSequence(ctx context.Context, userID string, limit int) (core.RecentSequence, error) {
	if limit <= 0 {
		limit = core.DefaultRecentSequenceCap
	}
	// 时间线中可能存在其他类型事件，读取全部后过滤
	members, err := r.store.ZRange(ctx, r.prefix.UserEvents+userID, 0, -1)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return core.RecentSequence{}, nil
		}
		return nil, unavailable("read event timeline", err)
	}

	newestFirst := make([]string, 0, limit)
	for _, m := range members {
		ev, ok := ParseEventMember(m)
		if !ok || !ev.Type.Valid() {
			continue
		}
		newestFirst = append(newestFirst, ev.TrackID)
		if len(newestFirst) == limit {
			break
		}
	}

	seq := make(core.RecentSequence, len(newestFirst))
	for i, id := range newestFirst {
		seq[len(newestFirst)-1-i] = id
	}
	return seq, nil
}

// FetchInterestProfile 读取兴趣画像；不存在或格式错误时返回 (nil, nil)。
func (r *StoreRepository) FetchInterestProfile(ctx context.Context, userID string) (*core.InterestProfile, error) {
	raw, err := r.store.Get(ctx, r.prefix.UserInterest+userID)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, unavailable("read interest profile", err)
	}
	profile, ok := core.ParseInterestProfile(raw)
	if !ok {
		return nil, nil
	}
	return profile, nil
}

// UpsertTrack 写入曲目元数据。
func (r *StoreRepository) UpsertTrack(ctx context.Context, meta *core.TrackMetadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode track %s: %w", meta.ID, err)
	}
	return r.store.Set(ctx, r.prefix.TrackMeta+meta.ID, b)
}

// RecordInteraction 追加交互事件并截断时间线。
func (r *StoreRepository) RecordInteraction(ctx context.Context, userID string, ev core.InteractionEvent) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	key := r.prefix.UserEvents + userID
	ms := ev.Timestamp.UnixMilli()
	if err := r.store.ZAdd(ctx, key, float64(ms), EventMember(ev)); err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	if err := r.store.ZTrim(ctx, key, r.timelineCap); err != nil && !core.IsStoreNotSupported(err) {
		return fmt.Errorf("trim timeline: %w", err)
	}
	return nil
}

// SaveInterestProfile 写入兴趣画像。
func (r *StoreRepository) SaveInterestProfile(ctx context.Context, userID string, profile *core.InterestProfile) error {
	b, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode interest profile: %w", err)
	}
	return r.store.Set(ctx, r.prefix.UserInterest+userID, b)
}

// Close 关闭底层存储。
func (r *StoreRepository) Close() error {
	return r.store.Close()
}

// EventMember 编码时间线成员："TYPE|track_id|unix_ms"。
func EventMember(ev core.InteractionEvent) string {
	return string(ev.Type) + "|" + ev.TrackID + "|" + strconv.FormatInt(ev.Timestamp.UnixMilli(), 10)
}

// ParseEventMember 解码时间线成员，track_id 中允许出现 "|"。
func ParseEventMember(member string) (core.InteractionEvent, bool) {
	first := strings.IndexByte(member, '|')
	last := strings.LastIndexByte(member, '|')
	if first < 0 || last <= first {
		return core.InteractionEvent{}, false
	}
	trackID := member[first+1 : last]
	if trackID == "" {
		return core.InteractionEvent{}, false
	}
	ms, err := strconv.ParseInt(member[last+1:], 10, 64)
	if err != nil {
		return core.InteractionEvent{}, false
	}
	return core.InteractionEvent{
		Type:      core.EventType(member[:first]),
		TrackID:   trackID,
		Timestamp: time.UnixMilli(ms),
	}, true
}

var _ core.Repository = (*StoreRepository)(nil)
