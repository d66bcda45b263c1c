package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/iabetor/govoicevox/internal/logger"
)

// Player 使用 malgo (miniaudio) 播放合成出的单声道语音。
type Player struct {
	ctx    *malgo.AllocatedContext
	mu     sync.Mutex
	closed bool
}

// NewPlayer 创建一个新的音频播放实例。
func NewPlayer() (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debugf("[audio] %s", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("初始化播放上下文失败: %w", err)
	}
	return &Player{ctx: ctx}, nil
}

// PlaybackDevices 返回可用的播放设备名称。
func (p *Player) PlaybackDevices() ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("播放器已关闭")
	}
	infos, err := p.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("枚举播放设备失败: %w", err)
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}

// PlayWAV 解码并播放 16 位 PCM WAV。
func (p *Player) PlayWAV(ctx context.Context, wav []byte) error {
	samples, rate, err := DecodeWAV(wav)
	if err != nil {
		return err
	}
	return p.Play(ctx, samples, rate)
}

// Play 通过默认扬声器播放单声道 float32 样本。
// 阻塞直到播放完成或 ctx 被取消。
func (p *Player) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("播放器已关闭")
	}
	p.mu.Unlock()

	pcm := Float32ToPCM16(samples)
	pos := 0
	done := make(chan struct{})

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInFrames = 512
	deviceConfig.Periods = 2

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			need := int(frameCount) * 2 // 每个 int16 采样点 2 字节
			n := copy(out[:need], pcm[pos:])
			pos += n
			// 数据不够时剩余部分填静音
			clear(out[n:need])
			if n == 0 {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	}

	device, err := malgo.InitDevice(p.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("初始化播放设备失败: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("启动播放设备失败: %w", err)
	}
	defer device.Stop()

	select {
	case <-ctx.Done():
		logger.Debugf("[audio] 播放被取消")
		return ctx.Err()
	case <-done:
		logger.Debugf("[audio] 播放完成: %d 样本 @ %d Hz", len(samples), sampleRate)
		return nil
	}
}

// Close 释放所有资源。
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

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
