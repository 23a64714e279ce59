// Package signal 提供曲目元数据与用户行为信号的读取实现。
//
// 两种后端：
//   - SQLRepository：关系库（sqlite），tracks / interactions / user_interest_graph 三张表
//   - StoreRepository：KV 存储（Redis / 内存），元数据 JSON + 事件时间线有序集合
package signal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/rushteam/tunerank/core"
)

// SQLRepository 基于 database/sql 的 core.Repository 实现。
type SQLRepository struct {
	db *sql.DB
}

// OpenSQLite 打开 sqlite 数据库并执行建表迁移。
// path 为 ":memory:" 时限制为单连接，保证所有查询落在同一个内存库上。
func OpenSQLite(path string) (*SQLRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	repo := NewSQLRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return repo, nil
}

// NewSQLRepository 使用已有连接创建仓库，不执行迁移。
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Migrate 创建表结构（幂等）。
func (r *SQLRepository) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		artist TEXT,
		genre TEXT,
		audio_features TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_user_id TEXT NOT NULL,
		track_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interactions_user_time
		ON interactions (external_user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS user_interest_graph (
		external_user_id TEXT PRIMARY KEY,
		graph TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Close 关闭数据库连接。
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// FetchTrackMetadata 批量读取曲目元数据，未知 id 不出现在结果中。
func (r *SQLRepository) FetchTrackMetadata(ctx context.Context, ids []string) (map[string]*core.TrackMetadata, error) {
	result := make(map[string]*core.TrackMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := `SELECT id, title, artist, genre, audio_features FROM tracks WHERE id IN (` + placeholders + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("query tracks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			meta     core.TrackMetadata
			artist   sql.NullString
			genre    sql.NullString
			features sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.Title, &artist, &genre, &features); err != nil {
			return nil, unavailable("scan track", err)
		}
		meta.Artist = artist.String
		meta.Genre = genre.String
		if features.Valid {
			meta.AudioFeatures = core.ParseAudioFeatures([]byte(features.String))
		}
		result[meta.ID] = &meta
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate tracks", err)
	}
	return result, nil
}

// FetchRecentSequence 返回用户最近 limit 条 PLAY/LIKE/SKIP 交互的曲目 id，按时间从旧到新排列。
func (r *SQLRepository) FetchRecentSequence(ctx context.Context, userID string, limit int) (core.RecentSequence, error) {
	if limit <= 0 {
		limit = core.DefaultRecentSequenceCap
	}
	args := make([]any, 0, len(core.TrackedEventTypes)+2)
	args = append(args, userID)
	for _, t := range core.TrackedEventTypes {
		args = append(args, string(t))
	}
	args = append(args, limit)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(core.TrackedEventTypes)), ",")

	rows, err := r.db.QueryContext(ctx, `
		SELECT track_id
		FROM interactions
		WHERE external_user_id = ?
		  AND event_type IN (`+placeholders+`)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, unavailable("query interactions", err)
	}
	defer rows.Close()

	var newestFirst []string
	for rows.Next() {
		var trackID string
		if err := rows.Scan(&trackID); err != nil {
			return nil, unavailable("scan interaction", err)
		}
		newestFirst = append(newestFirst, trackID)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate interactions", err)
	}

	seq := make(core.RecentSequence, len(newestFirst))
	for i, id := range newestFirst {
		seq[len(newestFirst)-1-i] = id
	}
	return seq, nil
}

// FetchInterestProfile 读取用户兴趣画像；不存在或格式错误时返回 (nil, nil)。
func (r *SQLRepository) FetchInterestProfile(ctx context.Context, userID string) (*core.InterestProfile, error) {
	var graph sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT graph FROM user_interest_graph WHERE external_user_id = ?", userID,
	).Scan(&graph)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("query interest graph", err)
	}
	if !graph.Valid {
		return nil, nil
	}
	profile, ok := core.ParseInterestProfile([]byte(graph.String))
	if !ok {
		return nil, nil
	}
	return profile, nil
}

// UpsertTrack 写入或更新曲目元数据。
func (r *SQLRepository) UpsertTrack(ctx context.Context, meta *core.TrackMetadata) error {
	var features any
	if len(meta.AudioFeatures) > 0 {
		b, err := json.Marshal(meta.AudioFeatures)
		if err != nil {
			return fmt.Errorf("encode audio features: %w", err)
		}
		features = string(b)
	}
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO tracks (id, title, artist, genre, audio_features)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			artist=excluded.artist,
			genre=excluded.genre,
			audio_features=excluded.audio_features;
	`, meta.ID, meta.Title, nullable(meta.Artist), nullable(meta.Genre), features); err != nil {
		return fmt.Errorf("failed to save track %s: %w", meta.ID, err)
	}
	return nil
}

// RecordInteraction 追加一条交互事件。
func (r *SQLRepository) RecordInteraction(ctx context.Context, userID string, ev core.InteractionEvent) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO interactions (external_user_id, track_id, event_type, created_at) VALUES (?, ?, ?, ?)",
		userID, ev.TrackID, string(ev.Type), ts.UnixMilli(),
	); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}
	return nil
}

// SaveInterestProfile 写入或覆盖用户兴趣画像。
func (r *SQLRepository) SaveInterestProfile(ctx context.Context, userID string, profile *core.InterestProfile) error {
	b, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode interest profile: %w", err)
	}
	return r.SaveRawInterestProfile(ctx, userID, b)
}

// SaveRawInterestProfile 原样写入画像 JSON。
func (r *SQLRepository) SaveRawInterestProfile(ctx context.Context, userID string, raw []byte) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO user_interest_graph (external_user_id, graph, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(external_user_id) DO UPDATE SET
			graph=excluded.graph,
			updated_at=excluded.updated_at;
	`, userID, string(raw)); err != nil {
		return fmt.Errorf("failed to save interest profile: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func unavailable(op string, err error) error {
	return core.WrapDomainError(core.ModuleSignal, core.ErrorCodeUnavailable, "signal: "+op, err)
}

var _ core.Repository = (*SQLRepository)(nil)
