package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV 文件头中的整数 PCM 格式码
const wavFormatPCM = 1

// WAVDevice 离线双工设备：从 WAV 文件读取输入，把输出写入另一个 WAV 文件。
// 输入读完后结束（最后一个缓冲区补零）。
type WAVDevice struct {
	inputPath  string
	outputPath string
	logger     *slog.Logger
}

func NewWAVDevice(inputPath, outputPath string, logger *slog.Logger) *WAVDevice {
	if logger == nil {
		logger = slog.Default()
	}
	return &WAVDevice{
		inputPath:  inputPath,
		outputPath: outputPath,
		logger:     logger,
	}
}

func (d *WAVDevice) Run(ctx context.Context, s Settings, stream Stream) (err error) {
	inFile, err := os.Open(d.inputPath)
	if err != nil {
		return fmt.Errorf("failed to open wav input: %w", err)
	}
	defer inFile.Close()

	dec := wav.NewDecoder(inFile)
	if !dec.IsValidFile() {
		return fmt.Errorf("%w: %s is not a valid wav file", ErrInvalidConfiguration, d.inputPath)
	}
	if int(dec.NumChans) != s.Channels() || int(dec.SampleRate) != s.SampleRate() {
		return fmt.Errorf("%w: wav input is %dHz/%d ch, stream is %s",
			ErrInvalidConfiguration, dec.SampleRate, dec.NumChans, s)
	}
	bitDepth := int(dec.BitDepth)
	// 只支持有符号整数 PCM；8 位 WAV 是无符号的，浮点 WAV 不能按整数读取
	if dec.WavAudioFormat != wavFormatPCM || bitDepth < 16 {
		return fmt.Errorf("%w: wav input must be 16/24/32-bit integer PCM, got format %d, %d bits",
			ErrInvalidConfiguration, dec.WavAudioFormat, bitDepth)
	}

	outFile, err := os.Create(d.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create wav output: %w", err)
	}
	defer outFile.Close()

	enc := wav.NewEncoder(outFile, s.SampleRate(), bitDepth, s.Channels(), 1)
	defer func() {
		if cerr := enc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to finalize wav output: %w", cerr)
		}
	}()

	format := &goaudio.Format{NumChannels: s.Channels(), SampleRate: s.SampleRate()}
	inBuf := &goaudio.IntBuffer{Format: format, Data: make([]int, s.BufferLen()), SourceBitDepth: bitDepth}
	outBuf := &goaudio.IntBuffer{Format: format, Data: make([]int, s.BufferLen()), SourceBitDepth: bitDepth}

	in := make([]float32, s.BufferLen())
	out := make([]float32, s.BufferLen())
	scale := float32(math.Ldexp(1, bitDepth-1))
	drv := NewDriver(stream, s)

	d.logger.Info("WAV stream started",
		"input", d.inputPath,
		"output", d.outputPath,
		"bit_depth", bitDepth,
		"settings", s.String())

	for {
		n, err := dec.PCMBuffer(inBuf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read wav input: %w", err)
		}
		if n == 0 {
			d.logger.Info("WAV input exhausted", "cycles", drv.Cycles())
			return nil
		}
		for i := range in {
			if i < n {
				in[i] = float32(inBuf.Data[i]) / scale
			} else {
				in[i] = 0
			}
		}

		if err := drv.Step(in, out); err != nil {
			return err
		}

		for i, v := range out {
			outBuf.Data[i] = quantize(v, scale)
		}
		if err := enc.Write(outBuf); err != nil {
			return fmt.Errorf("failed to write wav output: %w", err)
		}

		if drv.Exit() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func quantize(v, scale float32) int {
	q := math.Round(float64(v * scale))
	if q > float64(scale-1) {
		q = float64(scale - 1)
	} else if q < float64(-scale) {
		q = float64(-scale)
	}
	return int(q)
}
