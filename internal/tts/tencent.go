package tts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	tcts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/iabetor/pivoice/internal/logger"
)

const (
	tencentEndpoint   = "tts.tencentcloudapi.com"
	tencentRegion     = "ap-guangzhou"
	tencentSampleRate = 16000
)

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	VoiceType int64 // 非零时覆盖音色映射
	Speed     float64 // -2 到 6，0 为正常语速
	Endpoint  string
}

// TencentEngine 使用腾讯云 TextToVoice 接口，直接请求 PCM 编码。
type TencentEngine struct {
	client    *tcts.Client
	voiceType int64
	speed     float64
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}
	if cfg.Region == "" {
		cfg.Region = tencentRegion
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tencentEndpoint
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = cfg.Endpoint

	client, err := tcts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 引擎已初始化 (region=%s)", cfg.Region)

	return &TencentEngine{
		client:    client,
		voiceType: cfg.VoiceType,
		speed:     cfg.Speed,
	}, nil
}

func (e *TencentEngine) Name() string { return "tencent" }

// voiceTypeFor 返回目录 ID 对应的腾讯云音色，未知 ID 使用女声。
func (e *TencentEngine) voiceTypeFor(voiceID string) int64 {
	if e.voiceType != 0 {
		return e.voiceType
	}
	if v, ok := tencentVoices[voiceID]; ok {
		return v
	}
	logger.Warnf("[tts] 腾讯云没有音色 %s 的映射，使用默认女声", voiceID)
	return tencentVoices["Kore"]
}

// Synthesize 请求 16kHz PCM，响应中的 Audio 已经是 base64。
func (e *TencentEngine) Synthesize(ctx context.Context, text, voiceID string) (*Speech, error) {
	voiceType := e.voiceTypeFor(voiceID)
	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(text)), voiceType)

	request := tcts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(voiceType)
	request.Codec = common.StringPtr("pcm")
	request.SampleRate = common.Uint64Ptr(tencentSampleRate)
	request.Speed = common.Float64Ptr(e.speed)

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}
	if response.Response == nil || response.Response.Audio == nil || *response.Response.Audio == "" {
		return nil, ErrNoAudio
	}

	return &Speech{Audio: *response.Response.Audio, SampleRate: tencentSampleRate}, nil
}
