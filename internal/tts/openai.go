package tts

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/iabetor/pivoice/internal/audio"
	"github.com/iabetor/pivoice/internal/logger"
)

// OpenAI 的 pcm 输出固定为 24kHz 单声道 16-bit 小端。
const openAISampleRate = 24000

// OpenAIConfig OpenAI 兼容语音接口配置。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // 为空使用官方地址
	Model   string
	Voice   string // 覆盖音色映射
	Speed   float64
}

// OpenAIEngine 使用 /audio/speech 接口合成语音。
type OpenAIEngine struct {
	client *openai.Client
	model  string
	voice  string
	speed  float64
}

// NewOpenAIEngine 创建 OpenAI TTS 引擎。
func NewOpenAIEngine(cfg OpenAIConfig) (*OpenAIEngine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("[tts] OpenAI TTS 需要 API Key")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1.0
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	logger.Infof("[tts] OpenAI TTS 引擎已初始化 (model=%s)", cfg.Model)

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		voice:  cfg.Voice,
		speed:  cfg.Speed,
	}, nil
}

func (e *OpenAIEngine) Name() string { return "openai" }

// Synthesize 请求 pcm 格式的音频并转为 base64。
func (e *OpenAIEngine) Synthesize(ctx context.Context, text, voiceID string) (*Speech, error) {
	v := resolveVoice(openAIVoices, e.voice, voiceID)
	logger.Debugf("[tts] OpenAI: 正在合成 %d 个字符，音色=%s", len([]rune(text)), v)

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.model),
		Input:          text,
		Voice:          openai.SpeechVoice(v),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          e.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("[tts] OpenAI 合成失败: %w", err)
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("[tts] 读取 OpenAI 音频失败: %w", err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoAudio
	}

	return &Speech{Audio: audio.EncodeBase64(pcm), SampleRate: openAISampleRate}, nil
}
