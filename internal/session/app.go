// Package session 保存一次交互会话的应用状态，并驱动
// 清洗 → 合成 → 解码 → 封装 → 记录 的请求流程。
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/pivoice/internal/audio"
	"github.com/iabetor/pivoice/internal/history"
	"github.com/iabetor/pivoice/internal/logger"
	"github.com/iabetor/pivoice/internal/text"
	"github.com/iabetor/pivoice/internal/tts"
	"github.com/iabetor/pivoice/internal/voice"
)

// 展示给用户的提示语。
const (
	MsgEmptyText        = "Please enter some text to generate speech."
	MsgGenerationFailed = "Failed to generate speech. Please check your API key and network connection."

	// DefaultText 是新会话输入框中的示例文本。
	DefaultText = "Hello! I am a friendly AI assistant powered by Gemini. You can type any text here to convert it into speech."
)

var (
	// ErrEmptyText 清洗后没有可合成的文本，不会发起请求。
	ErrEmptyText = errors.New("[session] 文本为空")
	// ErrBusy 已有请求在进行中。
	ErrBusy = errors.New("[session] 已有请求在进行中")
	// ErrGenerationFailed 合成失败，具体原因只记录在日志中。
	ErrGenerationFailed = errors.New("[session] 语音生成失败")
	// ErrNoCurrent 没有当前音频，无法重新生成。
	ErrNoCurrent = errors.New("[session] 没有当前音频")
	// ErrNotFound 历史中没有该条目。
	ErrNotFound = errors.New("[session] 历史记录不存在")
)

// Options 创建会话的参数。
type Options struct {
	Engine tts.Engine
	Voice  string // 初始音色，为空使用默认音色
	Dir    string // 会话临时目录的父目录，为空使用系统临时目录
}

// Snapshot 是某一时刻的会话状态，供界面渲染。
type Snapshot struct {
	State   State
	Loading bool
	Error   string
	Voice   voice.Option
	Current *history.Item
	History []history.Item
}

// App 是单个会话的应用状态。同一时间只允许一个合成请求。
type App struct {
	engine  tts.Engine
	sm      *StateMachine
	history *history.Store
	dir     string

	mu      sync.RWMutex
	voiceID string
	current *history.Item
	errMsg  string

	closeOnce sync.Once
}

// New 创建会话，并建立存放本次会话音频的临时目录。
func New(opts Options) (*App, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("[session] 未配置合成引擎")
	}
	dir, err := os.MkdirTemp(opts.Dir, "pivoice-session-")
	if err != nil {
		return nil, fmt.Errorf("[session] 创建会话目录失败: %w", err)
	}

	a := &App{
		engine:  opts.Engine,
		sm:      NewStateMachine(),
		dir:     dir,
		voiceID: voice.DefaultID,
	}
	a.history = history.NewStore(a.release)
	if opts.Voice != "" {
		a.SelectVoice(opts.Voice)
	}

	logger.Infof("[session] 会话已创建 (engine=%s, dir=%s)", opts.Engine.Name(), dir)
	return a, nil
}

// OnChange 注册状态变化回调，回调中可以调用 Snapshot。
func (a *App) OnChange(fn func(from, to State)) {
	a.sm.SetOnChange(fn)
}

// Generate 合成一段文本。成功时新条目成为当前音频并写入历史。
func (a *App) Generate(ctx context.Context, input string) (*history.Item, error) {
	cleaned := text.Clean(input)
	if cleaned == "" {
		// 请求进行中时不改动提示
		if a.sm.Current() == StateIdle {
			a.mu.Lock()
			a.errMsg = MsgEmptyText
			a.mu.Unlock()
		}
		return nil, ErrEmptyText
	}

	if !a.sm.Transition(StateRequesting) {
		return nil, ErrBusy
	}

	a.mu.Lock()
	a.errMsg = ""
	a.current = nil
	voiceID := a.voiceID
	a.mu.Unlock()

	item, err := a.synthesize(ctx, cleaned, voiceID)
	if err != nil {
		logger.Errorf("[session] 语音生成失败 (engine=%s, voice=%s): %v", a.engine.Name(), voiceID, err)
		a.mu.Lock()
		a.errMsg = MsgGenerationFailed
		a.mu.Unlock()
		a.sm.Transition(StateFailure)
		a.sm.Transition(StateIdle)
		return nil, ErrGenerationFailed
	}

	a.history.Record(*item)
	a.mu.Lock()
	a.current = item
	a.errMsg = ""
	a.mu.Unlock()
	a.sm.Transition(StateSuccess)
	a.sm.Transition(StateIdle)

	logger.Infof("[session] 已生成 %s (%d 字节, voice=%s)", item.ID, len(item.Blob), item.Voice)
	return item, nil
}

// Regenerate 用当前音频的文本和当前选中的音色重新合成，产生新的历史条目。
func (a *App) Regenerate(ctx context.Context) (*history.Item, error) {
	if a.sm.Current() != StateIdle {
		return nil, ErrBusy
	}
	a.mu.RLock()
	cur := a.current
	a.mu.RUnlock()
	if cur == nil {
		return nil, ErrNoCurrent
	}
	return a.Generate(ctx, cur.Text)
}

// SelectHistory 把历史条目设为当前音频。
func (a *App) SelectHistory(id string) (history.Item, error) {
	item, ok := a.history.Select(id)
	if !ok {
		return history.Item{}, ErrNotFound
	}
	a.mu.Lock()
	a.current = &item
	a.mu.Unlock()
	return item, nil
}

// SelectVoice 切换音色。目录外的 ID 也会被接受，由后端决定是否可用。
func (a *App) SelectVoice(id string) voice.Option {
	opt, ok := voice.Find(id)
	if !ok {
		logger.Warnf("[session] 未知音色 %s，将原样传给合成服务", id)
		opt = voice.Option{ID: id, Name: voice.UnknownName}
	}
	a.mu.Lock()
	a.voiceID = id
	a.mu.Unlock()
	return opt
}

// Snapshot 返回当前状态的副本。
func (a *App) Snapshot() Snapshot {
	state := a.sm.Current()

	a.mu.RLock()
	defer a.mu.RUnlock()

	v, ok := voice.Find(a.voiceID)
	if !ok {
		v = voice.Option{ID: a.voiceID, Name: voice.UnknownName}
	}
	var cur *history.Item
	if a.current != nil {
		c := *a.current
		cur = &c
	}
	return Snapshot{
		State:   state,
		Loading: state == StateRequesting,
		Error:   a.errMsg,
		Voice:   v,
		Current: cur,
		History: a.history.List(),
	}
}

// Dir 返回会话临时目录。
func (a *App) Dir() string { return a.dir }

// Close 释放所有音频、删除会话目录并把状态重置为 Idle。
// 仍在进行的请求会因目录已删除而失败，结果不会写入历史。
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.sm.ForceIdle()
		a.mu.Lock()
		a.current = nil
		a.mu.Unlock()
		a.history.Clear()
		err = os.RemoveAll(a.dir)
		logger.Infof("[session] 会话已关闭 (dir=%s)", a.dir)
	})
	return err
}

func (a *App) synthesize(ctx context.Context, cleaned, voiceID string) (*history.Item, error) {
	speech, err := a.engine.Synthesize(ctx, cleaned, voiceID)
	if err != nil {
		return nil, err
	}
	if speech == nil || speech.Audio == "" {
		return nil, tts.ErrNoAudio
	}

	pcm, err := audio.DecodeBase64(speech.Audio)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, tts.ErrNoAudio
	}

	sampleRate := speech.SampleRate
	if sampleRate <= 0 {
		sampleRate = audio.DefaultSampleRate
	}
	wav := audio.EncodeWAV(pcm, sampleRate)

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("[session] 生成 ID 失败: %w", err)
	}
	path := filepath.Join(a.dir, id.String()+".wav")
	if err := os.WriteFile(path, wav, 0600); err != nil {
		return nil, fmt.Errorf("[session] 写入音频文件失败: %w", err)
	}

	return &history.Item{
		ID:         id.String(),
		Text:       cleaned,
		Voice:      voice.DisplayName(voiceID),
		VoiceID:    voiceID,
		AudioURL:   fileURL(path),
		Blob:       wav,
		SampleRate: sampleRate,
		CreatedAt:  time.Now(),
	}, nil
}

// release 删除被淘汰条目的音频文件。
func (a *App) release(item history.Item) {
	path, ok := PathFromURL(item.AudioURL)
	if !ok {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("[session] 删除音频文件失败: %v", err)
		return
	}
	logger.Debugf("[session] 已释放 %s", item.ID)
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

// PathFromURL 把 file:// 形式的 AudioURL 还原为本地路径。
func PathFromURL(audioURL string) (string, bool) {
	u, err := url.Parse(audioURL)
	if err != nil || u.Scheme != "file" || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}
