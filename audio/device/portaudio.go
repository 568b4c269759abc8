package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
	"github.com/lisuiheng/dspstream/audio"
)

// PortAudio 基于 PortAudio 阻塞读写的双工设备。
// 每个周期 Read 一个输入缓冲区，调度 Stream，再 Write 输出。
type PortAudio struct {
	logger *slog.Logger
}

func NewPortAudio(logger *slog.Logger) *PortAudio {
	return &PortAudio{logger: logger}
}

func (p *PortAudio) Run(ctx context.Context, s audio.Settings, stream audio.Stream) error {
	// 初始化PortAudio
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	in := make([]float32, s.BufferLen())
	out := make([]float32, s.BufferLen())

	// 打开双工流，交错缓冲区
	paStream, err := portaudio.OpenDefaultStream(
		s.Channels(),
		s.Channels(),
		float64(s.SampleRate()),
		s.Frames(),
		in,
		out,
	)
	if err != nil {
		return fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer func() {
		if err := paStream.Close(); err != nil {
			p.logger.Error("failed to close audio stream", "error", err)
		}
	}()

	if err := paStream.Start(); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer func() {
		if err := paStream.Stop(); err != nil {
			p.logger.Error("failed to stop audio stream", "error", err)
		}
	}()

	p.logger.Info("PortAudio duplex stream started", "settings", s.String())
	drv := audio.NewDriver(stream, s)

	for {
		if err := paStream.Read(); err != nil {
			if !errors.Is(err, portaudio.InputOverflowed) {
				return fmt.Errorf("failed to read audio input: %w", err)
			}
			p.logger.Warn("Audio input overflowed", "cycle", drv.Cycles())
		}

		if err := drv.Step(in, out); err != nil {
			return err
		}

		if err := paStream.Write(); err != nil {
			if !errors.Is(err, portaudio.OutputUnderflowed) {
				return fmt.Errorf("failed to write audio output: %w", err)
			}
			p.logger.Warn("Audio output underflowed", "cycle", drv.Cycles())
		}

		if drv.Exit() {
			p.logger.Info("PortAudio duplex stream stopped", "cycles", drv.Cycles())
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
