package source

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/lisuiheng/dspstream/audio"
)

var ErrUnsupportedFormat = errors.New("unsupported audio file format")

// Clip 完整解码到内存的音频片段，交错 float32，范围 [-1,1]
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames 片段包含的帧数
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Load 按扩展名选择解码器（.wav/.mp3/.ogg）。解码在调用方的 goroutine 上完成，
// 不应在音频线程上调用。
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var clip *Clip
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		clip, err = decodeWAV(f)
	case ".mp3":
		clip, err = decodeMP3(f)
	case ".ogg", ".oga":
		clip, err = decodeVorbis(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return clip, nil
}

func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: wav format %d is not integer PCM", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit wav", ErrUnsupportedFormat, bitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}

	// 8 位 WAV 是无符号的，以 128 为零点
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	scale := float32(math.Ldexp(1, bitDepth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v-offset) / scale
	}
	return &Clip{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    samples,
	}, nil
}

// go-mp3 总是输出 16 位小端立体声
func decodeMP3(r io.Reader) (*Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		samples[i] = float32(v) / 32768
	}
	return &Clip{
		SampleRate: dec.SampleRate(),
		Channels:   2,
		Samples:    samples,
	}, nil
}

func decodeVorbis(r io.Reader) (*Clip, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Clip{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Samples:    samples,
	}, nil
}

// Player 把片段按流参数逐缓冲区播放的源节点处理器。
// 片段播完后输出静音，loop 为 true 时从头重放。
type Player struct {
	samples []float32
	pos     int
	loop    bool
}

// NewPlayer 把片段转换为流的声道布局。采样率必须一致，不做重采样。
func NewPlayer(clip *Clip, s audio.Settings, loop bool) (*Player, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if clip == nil || clip.Channels <= 0 {
		return nil, fmt.Errorf("%w: empty clip", audio.ErrInvalidConfiguration)
	}
	if clip.SampleRate != s.SampleRate() {
		return nil, fmt.Errorf("%w: clip is %dHz, stream is %s",
			audio.ErrInvalidConfiguration, clip.SampleRate, s)
	}

	return &Player{
		samples: remap(clip, s.Channels()),
		loop:    loop,
	}, nil
}

// remap 单声道输出取各声道平均，其余情况按声道序号循环取源声道
func remap(clip *Clip, channels int) []float32 {
	if clip.Channels == channels {
		return append([]float32(nil), clip.Samples...)
	}

	frames := clip.Frames()
	out := make([]float32, frames*channels)
	for f := 0; f < frames; f++ {
		src := clip.Samples[f*clip.Channels : (f+1)*clip.Channels]
		if channels == 1 {
			var sum float32
			for _, v := range src {
				sum += v
			}
			out[f] = sum / float32(len(src))
			continue
		}
		for c := 0; c < channels; c++ {
			out[f*channels+c] = src[c%clip.Channels]
		}
	}
	return out
}

func (p *Player) Process(buf []float32, _ audio.Settings) {
	for i := range buf {
		if p.pos >= len(p.samples) {
			if !p.loop || len(p.samples) == 0 {
				clear(buf[i:])
				return
			}
			p.pos = 0
		}
		buf[i] = p.samples[p.pos]
		p.pos++
	}
}

// Done 非循环播放时片段已全部播放完
func (p *Player) Done() bool {
	return !p.loop && p.pos >= len(p.samples)
}
