package cmd

import (
	"context"
	"fmt"

	"github.com/iabetor/pivoice/internal/audio"
	"github.com/iabetor/pivoice/internal/config"
	"github.com/iabetor/pivoice/internal/database"
	"github.com/iabetor/pivoice/internal/library"
	"github.com/iabetor/pivoice/internal/session"
	"github.com/iabetor/pivoice/internal/tts"
)

// wavPlayer 是 REPL 与 speak 使用的播放接口，测试中可替换。
type wavPlayer interface {
	PlayWAV(ctx context.Context, wav []byte) error
}

// newSession 按配置创建引擎和会话。voiceID 为空时使用配置中的音色。
func newSession(c *config.Config, voiceID string) (*session.App, error) {
	engine, err := tts.New(c.TTS)
	if err != nil {
		return nil, err
	}
	if voiceID == "" {
		voiceID = c.TTS.Voice
	}
	return session.New(session.Options{Engine: engine, Voice: voiceID})
}

// openLibrary 打开并迁移数据库，返回音频库和关闭函数。
func openLibrary(c *config.Config) (*library.Store, func(), error) {
	db, err := database.Open(c.DBPath())
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return library.NewStore(db), func() { db.Close() }, nil
}

// openPlayer 初始化本地播放设备。
func openPlayer() (*audio.Player, error) {
	p, err := audio.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("音频设备不可用: %w", err)
	}
	return p, nil
}
