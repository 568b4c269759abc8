package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lisuiheng/dspstream/audio"
)

// Tap 接收每个周期最终交付的输出，必须非阻塞
type Tap interface {
	Offer(buf []float32) bool
}

// Runtime 音频线程上的流状态机：Idle -> AudioIn -> Update -> AudioOut -> (Idle | Exit)。
// 只由音频线程访问，控制方只能通过 ShutdownSender 与它通信。
type Runtime struct {
	settings   audio.Settings
	buffer     []float32
	shutdown   *ShutdownReceiver
	shouldExit bool
	graph      *audio.Graph
	root       audio.NodeID
	replay     audio.Processor
	mode       OutputMode
	phase      Phase
	rate       float64
	tap        Tap
	logger     *slog.Logger
}

// NewRuntime 创建运行时，图中预先放置一个直通根节点
func NewRuntime(settings audio.Settings, shutdown *ShutdownReceiver, log *slog.Logger) (*Runtime, error) {
	if log == nil {
		log = slog.Default()
	}

	graph, err := audio.NewGraph(settings)
	if err != nil {
		return nil, err
	}
	root, err := graph.AddNode(settings, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create root node: %w", err)
	}

	r := &Runtime{
		settings: settings,
		buffer:   make([]float32, settings.BufferLen()),
		shutdown: shutdown,
		graph:    graph,
		root:     root,
		mode:     OutputPassthrough,
		phase:    PhaseIdle,
		logger:   log,
	}
	r.replay = audio.ProcessorFunc(r.replayInput)
	return r, nil
}

// SetOutputMode 必须在启动前调用
func (r *Runtime) SetOutputMode(mode OutputMode) error {
	switch mode {
	case OutputPassthrough, OutputGraph:
		r.mode = mode
		return nil
	case "":
		r.mode = OutputPassthrough
		return nil
	default:
		return fmt.Errorf("%w: unknown output mode %q", audio.ErrInvalidConfiguration, mode)
	}
}

// SetTap 必须在启动前调用
func (r *Runtime) SetTap(t Tap) { r.tap = t }

func (r *Runtime) Graph() *audio.Graph   { return r.graph }
func (r *Runtime) Root() audio.NodeID    { return r.root }
func (r *Runtime) Phase() Phase          { return r.phase }
func (r *Runtime) ObservedRate() float64 { return r.rate }
func (r *Runtime) Exit() bool            { return r.shouldExit }

// AudioIn 保存本周期采集到的输入
func (r *Runtime) AudioIn(in []float32, s audio.Settings) error {
	if err := r.checkBuffer(len(in), s); err != nil {
		return err
	}
	copy(r.buffer, in)
	r.phase = PhaseAudioIn
	return nil
}

// Update 记录实际采样率并非阻塞地检查停止信号。停止标志一旦置位不会复位。
func (r *Runtime) Update(s audio.Settings, dt time.Duration) {
	r.rate = audio.ObservedRate(s, dt)
	if r.logger.Enabled(context.Background(), slog.LevelDebug) {
		r.logger.Debug("Real-time sample rate", "rate", r.rate)
	}

	if r.shutdown != nil {
		if v, ok := r.shutdown.TryReceive(); ok && v && !r.shouldExit {
			r.shouldExit = true
			r.logger.Info("Shutdown requested, stopping after current cycle")
		}
	}
	r.phase = PhaseUpdate
}

// AudioOut 为本周期创建一个临时节点挂到根节点上，对整个图求值，
// 然后按输出模式交付结果。
func (r *Runtime) AudioOut(out []float32, s audio.Settings) error {
	if err := r.checkBuffer(len(out), s); err != nil {
		return err
	}
	// 求值失败时停留在 AudioOut
	r.phase = PhaseAudioOut

	id, err := r.graph.AddNode(s, r.replay)
	if err != nil {
		return fmt.Errorf("failed to create cycle node: %w", err)
	}
	err = r.graph.AddInput(r.root, id)
	if err == nil {
		err = r.graph.AudioRequested(r.root, out)
	}
	if rerr := r.graph.Remove(id); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return fmt.Errorf("graph evaluation failed: %w", err)
	}

	if r.mode == OutputPassthrough {
		copy(out, r.buffer)
	}
	if r.tap != nil {
		r.tap.Offer(out)
	}

	if r.shouldExit {
		r.phase = PhaseExit
	} else {
		r.phase = PhaseIdle
	}
	return nil
}

func (r *Runtime) checkBuffer(n int, s audio.Settings) error {
	if err := s.CheckBuffer(n); err != nil {
		return err
	}
	return r.settings.CheckBuffer(n)
}

// replayInput 临时节点的处理器：重放本周期采集到的输入
func (r *Runtime) replayInput(buf []float32, _ audio.Settings) {
	copy(buf, r.buffer)
}

var _ audio.Stream = (*Runtime)(nil)
