package tts

import (
	"context"
	"errors"
)

// ErrNoAudio 表示服务响应中没有音频数据。
var ErrNoAudio = errors.New("[tts] 响应中没有音频数据")

// Speech 是一次合成的原始结果：base64 编码的单声道 16-bit 小端 PCM。
type Speech struct {
	Audio      string
	SampleRate int
}

// Engine 定义语音合成后端接口。
type Engine interface {
	// Synthesize 用指定音色合成文本。voiceID 为音色目录中的 ID，
	// 未知 ID 原样交给后端处理。
	Synthesize(ctx context.Context, text, voiceID string) (*Speech, error)

	// Name 返回引擎名，用于日志。
	Name() string
}
