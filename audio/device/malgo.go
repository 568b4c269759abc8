package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/lisuiheng/dspstream/audio"
)

// Malgo 基于 miniaudio 回调的双工设备。周期在驱动线程的回调里执行，
// 退出或出错后回调只输出静音，并通知 Run 停止设备。
type Malgo struct {
	logger *slog.Logger
}

func NewMalgo(logger *slog.Logger) *Malgo {
	return &Malgo{logger: logger}
}

func (m *Malgo) Run(ctx context.Context, s audio.Settings, stream audio.Stream) error {
	// 初始化malgo上下文
	ctxMalgo, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		m.logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}
	defer func() {
		_ = ctxMalgo.Uninit()
		ctxMalgo.Free()
	}()

	// 创建设备配置
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Duplex)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(s.Channels())
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(s.Channels())
	deviceConfig.SampleRate = uint32(s.SampleRate())
	deviceConfig.PeriodSizeInFrames = uint32(s.Frames())

	cb := newDuplexCallback(stream, s)

	device, err := malgo.InitDevice(ctxMalgo.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: cb.data,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize audio device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start audio device: %w", err)
	}

	m.logger.Info("Malgo duplex device started", "settings", s.String())

	var runErr error
	select {
	case <-cb.done:
		runErr = cb.err
	case <-ctx.Done():
		runErr = ctx.Err()
	}

	if err := device.Stop(); err != nil {
		m.logger.Error("failed to stop audio device", "error", err)
	}
	m.logger.Info("Malgo duplex device stopped", "cycles", cb.cycles())
	return runErr
}

// duplexCallback 在 miniaudio 的回调线程上把字节缓冲区转换为浮点缓冲区并执行一个周期
type duplexCallback struct {
	drv  *audio.Driver
	in   []float32
	out  []float32
	done chan struct{}
	once sync.Once
	err  error

	mu       sync.Mutex
	finished bool
}

func newDuplexCallback(stream audio.Stream, s audio.Settings) *duplexCallback {
	return &duplexCallback{
		drv:  audio.NewDriver(stream, s),
		in:   make([]float32, s.BufferLen()),
		out:  make([]float32, s.BufferLen()),
		done: make(chan struct{}),
	}
}

func (c *duplexCallback) data(pOutput, pInput []byte, _ uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished {
		clear(pOutput)
		return
	}

	// 设备交付的字节数必须正好对应一个缓冲区
	if len(pInput) != len(c.in)*4 || len(pOutput) != len(c.out)*4 {
		c.finish(fmt.Errorf("%w: device delivered %d input / %d output bytes, want %d",
			audio.ErrBufferSizeMismatch, len(pInput), len(pOutput), len(c.in)*4))
		clear(pOutput)
		return
	}

	audio.BytesToFloat32(c.in, pInput)
	if err := c.drv.Step(c.in, c.out); err != nil {
		c.finish(err)
		clear(pOutput)
		return
	}
	audio.Float32ToBytes(pOutput, c.out)

	if c.drv.Exit() {
		c.finish(nil)
	}
}

func (c *duplexCallback) finish(err error) {
	c.finished = true
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *duplexCallback) cycles() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drv.Cycles()
}
