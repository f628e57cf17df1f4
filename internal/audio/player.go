package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/iabetor/pivoice/internal/logger"
)

// ErrPlayerClosed 表示播放器已释放。
var ErrPlayerClosed = errors.New("[audio] 播放器已关闭")

// Player 通过 malgo (miniaudio) 在默认输出设备上播放 PCM。
// 同一时间只播放一段音频，新的 Play 会等待上一段结束。
type Player struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex // 串行化播放
	stateM sync.Mutex
	closed bool
}

// NewPlayer 初始化音频后端。
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("[audio] 初始化播放上下文失败: %w", err)
	}
	return &Player{ctx: ctx}, nil
}

// PlayWAV 解析 WAV 头后播放其中的 PCM。
func (p *Player) PlayWAV(ctx context.Context, wav []byte) error {
	pcm, f, err := DecodeWAV(wav)
	if err != nil {
		return err
	}
	return p.Play(ctx, pcm, f)
}

// Play 播放 16-bit PCM，阻塞直到播放完毕或 ctx 被取消。
func (p *Player) Play(ctx context.Context, pcm []byte, f Format) error {
	if f.BitsPerSample != BitsPerSample {
		return fmt.Errorf("[audio] 不支持 %d-bit 音频", f.BitsPerSample)
	}
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stateM.Lock()
	if p.closed {
		p.stateM.Unlock()
		return ErrPlayerClosed
	}
	mctx := p.ctx.Context
	p.stateM.Unlock()

	frameBytes := f.BlockAlign()
	pos := 0
	done := make(chan struct{}, 1)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(f.Channels)
	cfg.SampleRate = uint32(f.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			need := int(frameCount) * frameBytes
			if need > len(out) {
				need = len(out)
			}
			n := 0
			if pos < len(pcm) {
				n = copy(out[:need], pcm[pos:])
				pos += n
			}
			// 不足部分补静音
			clear(out[n:need])
			if pos >= len(pcm) {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	}

	device, err := malgo.InitDevice(mctx, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("[audio] 初始化播放设备失败: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("[audio] 启动播放设备失败: %w", err)
	}
	defer device.Stop()

	logger.Debugf("[audio] 开始播放 %.2fs (%d Hz)", Duration(len(pcm), f), f.SampleRate)

	select {
	case <-ctx.Done():
		logger.Info("[audio] 播放被取消")
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Close 释放音频后端，可重复调用。
func (p *Player) Close() {
	p.stateM.Lock()
	defer p.stateM.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.ctx != nil {
		_ = p.ctx.Uninit()
		p.ctx.Free()
		p.ctx = nil
	}
}
