package device

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/lisuiheng/dspstream/audio"
)

var ErrUnknownBackend = errors.New("unknown audio backend")

const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendWAV       = "wav"
	BackendNull      = "null"
)

// Config 选择设备后端
type Config struct {
	Backend   string
	WAVInput  string
	WAVOutput string
}

// New 根据配置创建对应的设备实例
func New(cfg Config, logger *slog.Logger) (audio.Device, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendPortAudio, "":
		return NewPortAudio(logger), nil
	case BackendMalgo:
		return NewMalgo(logger), nil
	case BackendWAV:
		if cfg.WAVInput == "" || cfg.WAVOutput == "" {
			return nil, fmt.Errorf("%w: wav backend needs input and output paths", audio.ErrInvalidConfiguration)
		}
		return audio.NewWAVDevice(cfg.WAVInput, cfg.WAVOutput, logger), nil
	case BackendNull:
		return audio.NullDevice{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
