package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/lisuiheng/dspstream/audio"
	"github.com/lisuiheng/dspstream/pkg/interfaces"
	"github.com/lisuiheng/dspstream/utils"
)

// NewTransportFunc 每次（重新）连接时创建新的传输实例
type NewTransportFunc func() (interfaces.TransportProtocol, error)

type Config struct {
	QueueSize int
	Backoff   utils.ReconnectStrategy
	// OnShutdown 监听端发送 {"type":"shutdown"} 时调用
	OnShutdown func()
}

// Monitor 把每个周期交付的输出转发给远端监听者。
// Offer 在音频线程上调用，不阻塞也不分配内存；网络 I/O 在 Run 所在的 goroutine 上进行。
type Monitor struct {
	cfg          Config
	settings     audio.Settings
	encoder      Encoder
	newTransport NewTransportFunc
	logger       *slog.Logger

	frames  chan []float32
	free    chan []float32
	dropped atomic.Uint64
	sent    atomic.Uint64
}

func New(cfg Config, settings audio.Settings, enc Encoder, newTransport NewTransportFunc, log *slog.Logger) (*Monitor, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if enc == nil || newTransport == nil {
		return nil, fmt.Errorf("%w: monitor needs an encoder and a transport", audio.ErrInvalidConfiguration)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Backoff == nil {
		cfg.Backoff = utils.NewExponentialBackoff()
	}

	m := &Monitor{
		cfg:          cfg,
		settings:     settings,
		encoder:      enc,
		newTransport: newTransport,
		logger:       log,
		frames:       make(chan []float32, cfg.QueueSize),
		free:         make(chan []float32, cfg.QueueSize),
	}
	for i := 0; i < cfg.QueueSize; i++ {
		m.free <- make([]float32, settings.BufferLen())
	}
	return m, nil
}

// Offer 复制一个输出缓冲区进入发送队列，队列满时丢弃并计数
func (m *Monitor) Offer(buf []float32) bool {
	select {
	case b := <-m.free:
		copy(b, buf)
		m.frames <- b
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// Dropped 因队列满被丢弃的缓冲区数量
func (m *Monitor) Dropped() uint64 { return m.dropped.Load() }

// Sent 已发送的数据包数量
func (m *Monitor) Sent() uint64 { return m.sent.Load() }

// Run 连接监听端并持续发送，断线后按退避策略重连，ctx 取消时返回 nil
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Starting monitor", "format", m.encoder.Format())
	defer func() {
		m.logger.Info("Monitor stopped", "sent", m.Sent(), "dropped", m.Dropped())
	}()

	for {
		t, err := m.connect(ctx)
		if err != nil {
			return nil
		}

		err = m.serve(ctx, t)
		if cerr := t.Close(); cerr != nil {
			m.logger.Debug("Failed to close monitor transport", "error", cerr)
		}
		if ctx.Err() != nil {
			return nil
		}
		m.logger.Warn("Monitor connection lost", "error", err)
	}
}

func (m *Monitor) connect(ctx context.Context) (interfaces.TransportProtocol, error) {
	for {
		t, err := m.dial(ctx)
		if err == nil {
			m.cfg.Backoff.Reset()
			m.logger.Info("Monitor connected", "protocol", t.ProtocolType())
			return t, nil
		}

		delay := m.cfg.Backoff.NextDelay()
		m.logger.Warn("Monitor connect failed, retrying", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (m *Monitor) dial(ctx context.Context) (interfaces.TransportProtocol, error) {
	t, err := m.newTransport()
	if err != nil {
		return nil, err
	}
	if err := t.Connect(ctx); err != nil {
		return nil, err
	}
	if err := m.sendHello(t); err != nil {
		_ = t.Close()
		return nil, err
	}
	return t, nil
}

func (m *Monitor) sendHello(t interfaces.TransportProtocol) error {
	hello := map[string]interface{}{
		"type":    "hello",
		"version": 1,
		"audio_params": map[string]interface{}{
			"format":      m.encoder.Format(),
			"sample_rate": m.settings.SampleRate(),
			"channels":    m.settings.Channels(),
			"frames":      m.settings.Frames(),
		},
	}
	data, err := json.Marshal(hello)
	if err != nil {
		return fmt.Errorf("failed to marshal hello message: %w", err)
	}
	if err := t.Send(data, interfaces.MsgText); err != nil {
		return fmt.Errorf("failed to send hello message: %w", err)
	}
	return nil
}

func (m *Monitor) serve(ctx context.Context, t interfaces.TransportProtocol) error {
	recv := t.Receive()
	emit := func(packet []byte) error {
		if err := t.Send(packet, interfaces.MsgBinary); err != nil {
			return err
		}
		m.sent.Add(1)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-recv:
			if !ok {
				return interfaces.ErrConnectionLost
			}
			m.handleMessage(msg)
		case b := <-m.frames:
			err := m.encoder.Encode(b, emit)
			m.free <- b
			if err != nil {
				return err
			}
		}
	}
}

type controlMessage struct {
	Type string `json:"type"`
}

func (m *Monitor) handleMessage(msg interfaces.Message) {
	if msg.Type != interfaces.MsgText {
		m.logger.Debug("Ignoring non-text monitor message", "size", len(msg.Payload))
		return
	}

	var ctrl controlMessage
	if err := json.Unmarshal(msg.Payload, &ctrl); err != nil {
		m.logger.Warn("Invalid monitor control message", "error", err, "raw", string(msg.Payload))
		return
	}

	switch ctrl.Type {
	case "shutdown":
		m.logger.Info("Shutdown requested by monitor listener")
		if m.cfg.OnShutdown != nil {
			m.cfg.OnShutdown()
		}
	default:
		m.logger.Debug("Unknown monitor control message", "type", ctrl.Type)
	}
}
