package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/pivoice/internal/logger"
	_ "modernc.org/sqlite"
)

// DB 是 PiVoice 的 SQLite 连接。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库，目录不存在时自动创建。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("数据库路径为空")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=3000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("执行 %s 失败: %w", p, err)
		}
	}

	logger.Debugf("[database] 数据库已打开: %s", dbPath)
	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 创建表和索引，可重复执行。
func (db *DB) Migrate() error {
	migrations := []string{
		// 用户主动保存的音频
		`CREATE TABLE IF NOT EXISTS saved_clips (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			voice_id TEXT NOT NULL,
			voice_name TEXT NOT NULL,
			sample_rate INTEGER NOT NULL,
			wav BLOB NOT NULL,
			created_at INTEGER NOT NULL, -- unix 毫秒
			saved_at INTEGER NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_saved_clips_created_at ON saved_clips(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_saved_clips_voice ON saved_clips(voice_id)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			logger.Warnf("[database] 创建索引失败: %v", err)
		}
	}

	logger.Debug("[database] 数据库迁移完成")
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
