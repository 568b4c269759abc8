package audio

import (
	"fmt"
	"time"
)

// Settings 描述一条双工音频流的固定参数。构造后不可修改，按值传递。
type Settings struct {
	sampleRate int
	frames     int
	channels   int
}

// NewSettings 创建流配置，任何一个参数 <= 0 都会返回 ErrInvalidConfiguration
func NewSettings(sampleRate, frames, channels int) (Settings, error) {
	s := Settings{sampleRate: sampleRate, frames: frames, channels: channels}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) SampleRate() int { return s.sampleRate }
func (s Settings) Frames() int     { return s.frames }
func (s Settings) Channels() int   { return s.channels }

// BufferLen 每次回调交换的交错采样数
func (s Settings) BufferLen() int { return s.frames * s.channels }

// Validate 检查所有字段均为正数
func (s Settings) Validate() error {
	switch {
	case s.sampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfiguration, s.sampleRate)
	case s.frames <= 0:
		return fmt.Errorf("%w: frame count must be positive, got %d", ErrInvalidConfiguration, s.frames)
	case s.channels <= 0:
		return fmt.Errorf("%w: channel count must be positive, got %d", ErrInvalidConfiguration, s.channels)
	}
	return nil
}

// CheckBuffer 校验缓冲区长度等于 frames*channels
func (s Settings) CheckBuffer(n int) error {
	if n != s.BufferLen() {
		return fmt.Errorf("%w: got %d samples, want %d (%d frames x %d channels)",
			ErrBufferSizeMismatch, n, s.BufferLen(), s.frames, s.channels)
	}
	return nil
}

// Compatible 帧数和通道数一致即可在同一个图中混音
func (s Settings) Compatible(o Settings) bool {
	return s.frames == o.frames && s.channels == o.channels
}

// Period 一个缓冲区的标称时长
func (s Settings) Period() time.Duration {
	if s.sampleRate <= 0 {
		return 0
	}
	return time.Duration(s.frames) * time.Second / time.Duration(s.sampleRate)
}

func (s Settings) String() string {
	return fmt.Sprintf("%dHz/%d frames/%d ch", s.sampleRate, s.frames, s.channels)
}

// ObservedRate 根据两次回调间隔计算实际达到的采样率，仅用于诊断
func ObservedRate(s Settings, dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	return (1e9 / float64(dt.Nanoseconds())) * float64(s.frames)
}
