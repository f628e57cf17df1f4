package tts

import (
	"fmt"

	"github.com/iabetor/pivoice/internal/config"
)

// New 根据配置创建合成引擎。
func New(cfg config.TTSConfig) (Engine, error) {
	switch cfg.Provider {
	case "gemini", "":
		return NewGeminiEngine(GeminiConfig{
			APIKey:            cfg.Gemini.APIKey,
			Model:             cfg.Gemini.Model,
			BaseURL:           cfg.Gemini.BaseURL,
			RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
		})
	case "openai":
		return NewOpenAIEngine(OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			Voice:   cfg.OpenAI.Voice,
			Speed:   cfg.OpenAI.Speed,
		})
	case "tencent":
		return NewTencentEngine(TencentConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			Region:    cfg.Tencent.Region,
			VoiceType: cfg.Tencent.VoiceType,
			Speed:     cfg.Tencent.Speed,
		})
	case "edge":
		return NewEdgeEngine(cfg.Edge.Voice), nil
	}
	return nil, fmt.Errorf("[tts] 未知的 TTS 引擎: %s", cfg.Provider)
}
