package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/lisuiheng/dspstream/audio"
)

// Options 启动一条流需要的全部依赖
type Options struct {
	Settings audio.Settings
	Device   audio.Device
	Mode     OutputMode
	Tap      Tap
	Logger   *slog.Logger

	// Build 在音频线程启动前向图中添加节点，root 为根节点
	Build func(g *audio.Graph, root audio.NodeID) error
}

// Session 一次运行中的流。控制方只拿到停止信号的发送端，不直接接触 Runtime。
type Session struct {
	shutdown *ShutdownSender
	done     chan struct{}
	err      error
	logger   *slog.Logger
}

// Launch 校验配置、构建运行时，并在独立的 goroutine（锁定到 OS 线程）上运行设备循环。
// 配置错误时不会启动音频线程。
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := opts.Settings.Validate(); err != nil {
		return nil, err
	}
	if opts.Device == nil {
		return nil, fmt.Errorf("%w: no audio device", audio.ErrInvalidConfiguration)
	}

	sender, receiver := NewShutdown()
	rt, err := NewRuntime(opts.Settings, receiver, opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	if err := rt.SetOutputMode(opts.Mode); err != nil {
		return nil, err
	}
	if opts.Tap != nil {
		rt.SetTap(opts.Tap)
	}
	if opts.Build != nil {
		if err := opts.Build(rt.Graph(), rt.Root()); err != nil {
			return nil, fmt.Errorf("failed to build graph: %w", err)
		}
	}

	s := &Session{
		shutdown: sender,
		done:     make(chan struct{}),
		logger:   opts.Logger,
	}
	go s.run(ctx, opts.Device, opts.Settings, rt)
	return s, nil
}

func (s *Session) run(ctx context.Context, dev audio.Device, settings audio.Settings, rt *Runtime) {
	defer close(s.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	s.logger.Info("Audio thread started", "settings", settings.String(), "mode", rt.mode)
	err := dev.Run(ctx, settings, rt)
	switch {
	case err == nil:
		s.logger.Info("Audio thread stopped")
	case errors.Is(err, context.Canceled):
		s.logger.Info("Audio thread cancelled")
	default:
		s.logger.Error("Audio thread failed", "error", err)
	}
	s.err = err
}

// Shutdown 停止信号的发送端
func (s *Session) Shutdown() *ShutdownSender { return s.shutdown }

// Stop 请求音频线程在当前周期结束后退出，不等待
func (s *Session) Stop() error {
	err := s.shutdown.Send(true)
	if errors.Is(err, ErrShutdownPending) {
		return nil
	}
	return err
}

// Done 音频线程退出后关闭
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait 等待音频线程退出，返回终止运行的错误
func (s *Session) Wait() error {
	<-s.done
	return s.err
}
