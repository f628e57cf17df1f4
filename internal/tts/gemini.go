package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/time/rate"

	"github.com/iabetor/pivoice/internal/logger"
)

const (
	DefaultGeminiModel   = "gemini-2.5-flash-preview-tts"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// Gemini TTS 固定输出 24kHz 单声道 16-bit PCM。
	geminiSampleRate = 24000
)

// GeminiConfig Gemini TTS 配置。
type GeminiConfig struct {
	APIKey            string
	Model             string
	BaseURL           string
	RequestsPerMinute int // <=0 表示不限速
	HTTPClient        *http.Client
}

// GeminiEngine 通过 generateContent REST 接口请求音频模态的回复。
type GeminiEngine struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewGeminiEngine 创建 Gemini TTS 引擎。
func NewGeminiEngine(cfg GeminiConfig) (*GeminiEngine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("[tts] Gemini TTS 需要 API Key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		// 不设超时，交给传输层和调用方的 ctx 决定
		client = &http.Client{}
	}

	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}

	logger.Infof("[tts] Gemini TTS 引擎已初始化 (model=%s)", cfg.Model)

	return &GeminiEngine{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

func (e *GeminiEngine) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		SpeechConfig       struct {
			VoiceConfig struct {
				PrebuiltVoiceConfig struct {
					VoiceName string `json:"voiceName"`
				} `json:"prebuiltVoiceConfig"`
			} `json:"voiceConfig"`
		} `json:"speechConfig"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newGeminiRequest(text, voiceName string) geminiRequest {
	var req geminiRequest
	req.Contents = []geminiContent{{Parts: []geminiPart{{Text: text}}}}
	req.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	req.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voiceName
	return req
}

// Synthesize 发起一次 generateContent 请求，取第一个候选的第一个 part 中的音频。
func (e *GeminiEngine) Synthesize(ctx context.Context, text, voiceID string) (*Speech, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("[tts] 等待限速失败: %w", err)
	}

	body, err := sonic.Marshal(newGeminiRequest(text, voiceID))
	if err != nil {
		return nil, fmt.Errorf("[tts] 序列化请求体失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		e.baseURL, url.PathEscape(e.model), url.QueryEscape(e.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logger.Debugf("[tts] Gemini: 正在合成 %d 个字符，音色=%s", len([]rune(text)), voiceID)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[tts] Gemini 请求失败: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("[tts] 读取响应失败: %w", err)
	}

	var parsed geminiResponse
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("[tts] Gemini 返回状态码 %d: %s", resp.StatusCode, truncate(raw, 200))
		}
		return nil, fmt.Errorf("[tts] 解析响应失败: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("[tts] Gemini 返回错误 %d %s: %s",
			parsed.Error.Code, parsed.Error.Status, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("[tts] Gemini 返回状态码 %d", resp.StatusCode)
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, ErrNoAudio
	}
	inline := parsed.Candidates[0].Content.Parts[0].InlineData
	if inline == nil || inline.Data == "" {
		return nil, ErrNoAudio
	}

	return &Speech{
		Audio:      inline.Data,
		SampleRate: sampleRateFromMIME(inline.MimeType, geminiSampleRate),
	}, nil
}

// sampleRateFromMIME 从 "audio/L16;codec=pcm;rate=24000" 这类 MIME 中取采样率。
func sampleRateFromMIME(mime string, fallback int) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
