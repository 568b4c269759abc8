package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lisuiheng/dspstream/audio"
	"github.com/lisuiheng/dspstream/audio/codec"
	"github.com/lisuiheng/dspstream/audio/device"
	"github.com/lisuiheng/dspstream/core"
	"github.com/lisuiheng/dspstream/logger"
	"github.com/lisuiheng/dspstream/monitor"
	"github.com/lisuiheng/dspstream/pkg/interfaces"
	"github.com/lisuiheng/dspstream/protocols/websocket"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 定义命令行参数
	configPath := flag.String("c", "", "Path to config file (default searches ./config.yaml, ./config/config.yaml, /etc/dspstream/config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// 加载配置
	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := initLogger(cfg, *debug); err != nil {
		logger.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger.Logger()); err != nil {
		logger.Error("Stream terminated", "error", err)
		os.Exit(1)
	}
	logger.Info("Shutdown completed")
}

func run(cfg core.Config, log *slog.Logger) error {
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	dev, err := device.New(device.Config{
		Backend:   cfg.Device.Backend,
		WAVInput:  cfg.Device.WAVInput,
		WAVOutput: cfg.Device.WAVOutput,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create audio device: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var session *core.Session
	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon, err = newMonitor(cfg, settings, log, func() {
			if err := session.Stop(); err != nil {
				log.Warn("Failed to request shutdown", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to create monitor: %w", err)
		}
	}

	opts := core.Options{
		Settings: settings,
		Device:   dev,
		Mode:     core.OutputMode(cfg.Stream.OutputMode),
		Logger:   log,
		Build:    cfg.GraphBuilder(),
	}
	if mon != nil {
		opts.Tap = mon
	}

	log.Info("Launching audio stream",
		"backend", cfg.Device.Backend,
		"settings", settings.String(),
		"run_for", cfg.Stream.RunFor)
	session, err = core.Launch(ctx, opts)
	if err != nil {
		return err
	}

	var eg errgroup.Group
	if mon != nil {
		eg.Go(func() error {
			return mon.Run(ctx)
		})
	}

	// 设置信号处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var timeout <-chan time.Time
	if cfg.Stream.RunFor > 0 {
		timeout = time.After(cfg.Stream.RunFor)
	}

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", "signal", sig)
	case <-timeout:
		log.Info("Run time elapsed, shutting down")
	case <-session.Done():
	}

	if err := session.Stop(); err != nil {
		log.Warn("Failed to request shutdown", "error", err)
	}
	runErr := session.Wait()

	cancel()
	if err := eg.Wait(); err != nil {
		log.Error("Monitor failed", "error", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func newMonitor(cfg core.Config, settings audio.Settings, log *slog.Logger, onShutdown func()) (*monitor.Monitor, error) {
	var enc monitor.Encoder
	switch cfg.Monitor.Format {
	case "", "pcm":
		enc = monitor.NewPCMEncoder()
	case "opus":
		opusEnc, err := codec.NewOpusEncoder(
			settings.SampleRate(),
			settings.Channels(),
			cfg.Monitor.Bitrate,
			cfg.Monitor.FrameDuration,
			log,
		)
		if err != nil {
			return nil, err
		}
		enc = opusEnc
	default:
		return nil, fmt.Errorf("%w: unknown monitor format %q", audio.ErrInvalidConfiguration, cfg.Monitor.Format)
	}

	wsCfg := websocket.Config{
		URL:             cfg.Monitor.URL,
		AccessToken:     cfg.Monitor.AccessToken,
		ProtocolVersion: 1,
	}
	newTransport := func() (interfaces.TransportProtocol, error) {
		return websocket.NewWebSocketProtocol(wsCfg)
	}

	return monitor.New(monitor.Config{
		QueueSize:  cfg.Monitor.QueueSize,
		OnShutdown: onShutdown,
	}, settings, enc, newTransport, log)
}

// initLogger 初始化日志系统
func initLogger(cfg core.Config, debug bool) error {
	logCfg := logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: cfg.Logging.Outputs,
	}

	// 调试模式覆盖配置
	if debug {
		logCfg.Level = "debug"
		logCfg.Outputs = []string{"stdout"}
	}

	return logger.Init(logCfg)
}
