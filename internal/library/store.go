// Package library 保存用户主动收藏的音频，跨会话保留。
// 会话历史本身不落盘，只有显式保存的条目才会写入这里。
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"github.com/iabetor/pivoice/internal/audio"
	"github.com/iabetor/pivoice/internal/database"
	"github.com/iabetor/pivoice/internal/history"
	"github.com/iabetor/pivoice/internal/logger"
)

// ErrClipNotFound 表示库中没有该音频。
var ErrClipNotFound = errors.New("[library] 音频不存在")

// Clip 是一条已保存的音频。List 返回的 Clip 不含 WAV 数据。
type Clip struct {
	ID         string
	Text       string
	VoiceID    string
	VoiceName  string
	SampleRate int
	Size       int
	WAV        []byte
	CreatedAt  time.Time
	SavedAt    time.Time
}

// Manifest 是导出时写在 WAV 旁边的元数据。
type Manifest struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	VoiceID    string    `json:"voice_id"`
	Voice      string    `json:"voice"`
	SampleRate int       `json:"sample_rate"`
	Duration   float64   `json:"duration_seconds"`
	CreatedAt  time.Time `json:"created_at"`
	File       string    `json:"file"`
}

// Store 基于 SQLite 的音频库。
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore 在已迁移的数据库上创建音频库。
func NewStore(db *database.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Save 保存一条历史记录。重复保存同一 ID 不会产生新记录。
func (s *Store) Save(item history.Item) (*Clip, error) {
	if item.ID == "" || len(item.Blob) == 0 {
		return nil, fmt.Errorf("[library] 无效的音频条目")
	}
	created := item.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	_, err := s.db.Exec(`INSERT OR IGNORE INTO saved_clips
		(id, text, voice_id, voice_name, sample_rate, wav, created_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Text, item.VoiceID, item.Voice, item.SampleRate, item.Blob,
		created.UnixMilli(), s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("[library] 保存音频失败: %w", err)
	}

	logger.Infof("[library] 已保存 %s", item.ID)
	return s.Get(item.ID)
}

// List 按创建时间倒序列出所有音频（不含 WAV 数据）。
func (s *Store) List() ([]Clip, error) {
	rows, err := s.db.Query(`SELECT id, text, voice_id, voice_name, sample_rate, length(wav), created_at, saved_at
		FROM saved_clips ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("[library] 查询音频失败: %w", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var c Clip
		var created, saved int64
		if err := rows.Scan(&c.ID, &c.Text, &c.VoiceID, &c.VoiceName, &c.SampleRate, &c.Size, &created, &saved); err != nil {
			return nil, fmt.Errorf("[library] 读取音频失败: %w", err)
		}
		c.CreatedAt = time.UnixMilli(created)
		c.SavedAt = time.UnixMilli(saved)
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// Get 返回包含 WAV 数据的完整记录。
func (s *Store) Get(id string) (*Clip, error) {
	var c Clip
	var created, saved int64
	err := s.db.QueryRow(`SELECT id, text, voice_id, voice_name, sample_rate, wav, created_at, saved_at
		FROM saved_clips WHERE id = ?`, id).
		Scan(&c.ID, &c.Text, &c.VoiceID, &c.VoiceName, &c.SampleRate, &c.WAV, &created, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[library] 查询音频失败: %w", err)
	}
	c.Size = len(c.WAV)
	c.CreatedAt = time.UnixMilli(created)
	c.SavedAt = time.UnixMilli(saved)
	return &c, nil
}

// Delete 删除一条音频。
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM saved_clips WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("[library] 删除音频失败: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrClipNotFound
	}
	logger.Infof("[library] 已删除 %s", id)
	return nil
}

// Export 把音频写到 dir/<id>.wav，并在旁边写 <id>.json 元数据，返回 WAV 路径。
func (s *Store) Export(id, dir string) (string, error) {
	c, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("[library] 创建导出目录失败: %w", err)
	}

	wavName := c.ID + ".wav"
	wavPath := filepath.Join(dir, wavName)
	if err := os.WriteFile(wavPath, c.WAV, 0644); err != nil {
		return "", fmt.Errorf("[library] 写入 WAV 失败: %w", err)
	}

	var duration float64
	if pcm, f, err := audio.DecodeWAV(c.WAV); err == nil {
		duration = audio.Duration(len(pcm), f)
	}
	manifest := Manifest{
		ID:         c.ID,
		Text:       c.Text,
		VoiceID:    c.VoiceID,
		Voice:      c.VoiceName,
		SampleRate: c.SampleRate,
		Duration:   duration,
		CreatedAt:  c.CreatedAt.UTC(),
		File:       wavName,
	}
	data, err := sonic.ConfigStd.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", fmt.Errorf("[library] 序列化元数据失败: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, c.ID+".json"), data, 0644); err != nil {
		return "", fmt.Errorf("[library] 写入元数据失败: %w", err)
	}

	logger.Infof("[library] 已导出 %s 到 %s", id, wavPath)
	return wavPath, nil
}
