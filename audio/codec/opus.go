package codec

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hraban/opus"
	"github.com/lisuiheng/dspstream/audio"
)

// OpusEncoder OPUS音频编码器。运行时缓冲区的长度和 OPUS 帧长无关，
// 编码器内部攒够一帧再编码。
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameSize  int // 每帧交错采样数
	pcm        []int16
	fill       int
	packet     []byte
	logger     *slog.Logger
}

// NewOpusEncoder 创建新的OPUS编码器，frameDuration 单位毫秒
func NewOpusEncoder(sampleRate, channels, bitrate, frameDuration int, logger *slog.Logger) (*OpusEncoder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("%w: opus does not support sample rate %d", audio.ErrInvalidConfiguration, sampleRate)
	}
	switch frameDuration {
	case 10, 20, 40, 60:
	default:
		return nil, fmt.Errorf("%w: opus does not support frame duration %dms", audio.ErrInvalidConfiguration, frameDuration)
	}

	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("failed to set bitrate: %w", err)
	}

	frameSize := sampleRate * frameDuration / 1000 * channels
	logger.Debug("Opus encoder created",
		"sample_rate", sampleRate,
		"channels", channels,
		"bitrate", bitrate,
		"frame_duration_ms", frameDuration)
	return &OpusEncoder{
		encoder:    enc,
		sampleRate: sampleRate,
		channels:   channels,
		frameSize:  frameSize,
		pcm:        make([]int16, frameSize),
		packet:     make([]byte, 4000), // OPUS最大包大小
		logger:     logger,
	}, nil
}

func (e *OpusEncoder) Format() string { return "opus" }

// Encode 追加一段浮点PCM，每凑满一帧就编码并交给 emit。
// emit 收到的切片在下一次调用前有效。
func (e *OpusEncoder) Encode(buf []float32, emit func([]byte) error) error {
	if e.encoder == nil {
		return errors.New("encoder not initialized")
	}

	for len(buf) > 0 {
		n := min(len(buf), e.frameSize-e.fill)
		audio.Float32ToInt16(e.pcm[e.fill:e.fill+n], buf[:n])
		e.fill += n
		buf = buf[n:]

		if e.fill < e.frameSize {
			break
		}
		e.fill = 0

		size, err := e.encoder.Encode(e.pcm, e.packet)
		if err != nil {
			return fmt.Errorf("opus encode failed: %w", err)
		}
		if err := emit(e.packet[:size]); err != nil {
			return err
		}
	}
	return nil
}

// Close 丢弃未凑满一帧的尾部采样，之后 Encode 返回错误。可重复调用。
func (e *OpusEncoder) Close() {
	if e.encoder == nil {
		return
	}
	if e.fill > 0 {
		e.logger.Debug("Discarding partial opus frame", "samples", e.fill, "frame_size", e.frameSize)
	}
	e.encoder = nil
	e.fill = 0
}
