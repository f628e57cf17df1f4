package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/pivoice/internal/audio"
	"github.com/iabetor/pivoice/internal/logger"
)

// EdgeEngine 使用微软 Edge 在线语音。服务只返回 MP3，
// 这里用 go-mp3 解码后混为单声道 PCM。
type EdgeEngine struct {
	voice string
}

// NewEdgeEngine 创建 Edge TTS 引擎，voice 非空时覆盖音色映射。
func NewEdgeEngine(voice string) *EdgeEngine {
	return &EdgeEngine{voice: voice}
}

func (e *EdgeEngine) Name() string { return "edge" }

// Synthesize 收集 MP3 音频块并解码。
func (e *EdgeEngine) Synthesize(ctx context.Context, text, voiceID string) (*Speech, error) {
	v := resolveVoice(edgeVoices, e.voice, voiceID)
	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(text)), v)

	comm, err := edge.NewCommunicate(text, edge.WithVoice(v))
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}
	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 开始流式合成失败: %w", err)
	}

	var mp3Buf bytes.Buffer
	for msg := range ch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t, _ := msg["type"].(string); t != "audio" {
			continue
		}
		if data, ok := msg["data"].([]byte); ok {
			mp3Buf.Write(data)
		}
	}
	if mp3Buf.Len() == 0 {
		return nil, ErrNoAudio
	}

	pcm, sampleRate, err := decodeMP3(mp3Buf.Bytes())
	if err != nil {
		return nil, err
	}
	logger.Debugf("[tts] edge-tts: 解码得到 %d 字节单声道 PCM，采样率 %d Hz", len(pcm), sampleRate)

	return &Speech{Audio: audio.EncodeBase64(pcm), SampleRate: sampleRate}, nil
}

// decodeMP3 把 MP3 解码为单声道 16-bit PCM。go-mp3 总是输出立体声。
func decodeMP3(data []byte) ([]byte, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] MP3 解码失败: %w", err)
	}
	stereo, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("[tts] 读取 PCM 数据失败: %w", err)
	}
	return audio.DownmixStereo(stereo), decoder.SampleRate(), nil
}
