package source

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/lisuiheng/dspstream/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settings(t *testing.T, rate, frames, channels int) audio.Settings {
	t.Helper()
	s, err := audio.NewSettings(rate, frames, channels)
	require.NoError(t, err)
	return s
}

func writeWAV(t *testing.T, path string, channels, bitDepth, format int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, 8000, bitDepth, channels, format)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: 8000},
		Data:           data,
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, enc.Close())
}

func TestLoad_WAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeWAV(t, path, 2, 16, 1, []int{16384, -16384, 0, 8192})

	clip, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, clip.SampleRate)
	assert.Equal(t, 2, clip.Channels)
	assert.Equal(t, 2, clip.Frames())
	assert.InDeltaSlice(t, []float32{0.5, -0.5, 0, 0.25}, clip.Samples, 1e-6)
}

func TestLoad_WAV8BitIsUnsigned(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip8.wav")
	writeWAV(t, path, 1, 8, 1, []int{128, 128, 192, 64})

	clip, err := Load(path)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0, 0.5, -0.5}, clip.Samples, 1e-6)
}

func TestLoad_WAVFloatRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.wav")
	writeWAV(t, path, 1, 32, 3, []int{0, 0, 0, 0})

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_Vorbis(t *testing.T) {
	// 44.1kHz 单声道，一秒
	clip, err := Load(filepath.Join("testdata", "tone.ogg"))
	require.NoError(t, err)
	assert.Equal(t, 44100, clip.SampleRate)
	assert.Equal(t, 1, clip.Channels)
	assert.Equal(t, 44100, clip.Frames())
	assertAudible(t, clip)
}

func TestLoad_MP3(t *testing.T) {
	// MPEG-2 Layer III 22.05kHz 单声道，解码后为立体声
	clip, err := Load(filepath.Join("testdata", "tone.mp3"))
	require.NoError(t, err)
	assert.Equal(t, 22050, clip.SampleRate)
	assert.Equal(t, 2, clip.Channels)
	assert.Positive(t, clip.Frames())
	assertAudible(t, clip)

	s := settings(t, 22050, 256, 1)
	p, err := NewPlayer(clip, s, false)
	require.NoError(t, err)
	buf := make([]float32, s.BufferLen())
	p.Process(buf, s)
}

// assertAudible 采样都在 [-1,1] 内，且不全是静音
func assertAudible(t *testing.T, clip *Clip) {
	t.Helper()

	var peak float32
	for _, v := range clip.Samples {
		require.LessOrEqual(t, v, float32(1))
		require.GreaterOrEqual(t, v, float32(-1))
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}
	assert.Greater(t, peak, float32(0.01))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.wav"))
	assert.Error(t, err)

	flac := filepath.Join(dir, "clip.flac")
	require.NoError(t, os.WriteFile(flac, []byte("fLaC"), 0o644))
	_, err = Load(flac)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	for _, name := range []string{"bad.wav", "bad.ogg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("not audio at all"), 0o644))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestPlayer_PlaysThenSilence(t *testing.T) {
	s := settings(t, 8000, 2, 1)
	p, err := NewPlayer(&Clip{SampleRate: 8000, Channels: 1, Samples: []float32{0.1, 0.2, 0.3}}, s, false)
	require.NoError(t, err)

	buf := make([]float32, 2)
	p.Process(buf, s)
	assert.Equal(t, []float32{0.1, 0.2}, buf)
	assert.False(t, p.Done())

	p.Process(buf, s)
	assert.Equal(t, []float32{0.3, 0}, buf)
	assert.True(t, p.Done())

	buf = []float32{9, 9}
	p.Process(buf, s)
	assert.Equal(t, []float32{0, 0}, buf)
}

func TestPlayer_Loop(t *testing.T) {
	s := settings(t, 8000, 4, 1)
	p, err := NewPlayer(&Clip{SampleRate: 8000, Channels: 1, Samples: []float32{1, 2, 3}}, s, true)
	require.NoError(t, err)

	buf := make([]float32, 4)
	p.Process(buf, s)
	assert.Equal(t, []float32{1, 2, 3, 1}, buf)
	p.Process(buf, s)
	assert.Equal(t, []float32{2, 3, 1, 2}, buf)
	assert.False(t, p.Done())
}

func TestPlayer_ChannelRemap(t *testing.T) {
	stereo := &Clip{SampleRate: 8000, Channels: 2, Samples: []float32{0.2, 0.4, -1, 1}}

	mono := settings(t, 8000, 2, 1)
	p, err := NewPlayer(stereo, mono, false)
	require.NoError(t, err)
	buf := make([]float32, 2)
	p.Process(buf, mono)
	assert.InDeltaSlice(t, []float32{0.3, 0}, buf, 1e-6)

	monoClip := &Clip{SampleRate: 8000, Channels: 1, Samples: []float32{0.5, -0.5}}
	st := settings(t, 8000, 2, 2)
	p, err = NewPlayer(monoClip, st, false)
	require.NoError(t, err)
	buf = make([]float32, 4)
	p.Process(buf, st)
	assert.Equal(t, []float32{0.5, 0.5, -0.5, -0.5}, buf)
}

func TestNewPlayer_InvalidConfiguration(t *testing.T) {
	s := settings(t, 44100, 4, 2)

	_, err := NewPlayer(&Clip{SampleRate: 48000, Channels: 2}, s, false)
	assert.ErrorIs(t, err, audio.ErrInvalidConfiguration)

	_, err = NewPlayer(nil, s, false)
	assert.ErrorIs(t, err, audio.ErrInvalidConfiguration)

	_, err = NewPlayer(&Clip{SampleRate: 44100, Channels: 2}, audio.Settings{}, false)
	assert.ErrorIs(t, err, audio.ErrInvalidConfiguration)
}

func TestPlayer_InGraph(t *testing.T) {
	s := settings(t, 8000, 2, 1)
	g, err := audio.NewGraph(s)
	require.NoError(t, err)

	p, err := NewPlayer(&Clip{SampleRate: 8000, Channels: 1, Samples: []float32{0.25, 0.25}}, s, true)
	require.NoError(t, err)

	root, err := g.AddNode(s, nil)
	require.NoError(t, err)
	clip, err := g.AddNode(s, p)
	require.NoError(t, err)
	dc, err := g.AddNode(s, audio.Constant(0.5))
	require.NoError(t, err)
	require.NoError(t, g.AddInput(root, clip))
	require.NoError(t, g.AddInput(root, dc))

	buf := make([]float32, 2)
	require.NoError(t, g.AudioRequested(root, buf))
	assert.Equal(t, []float32{0.75, 0.75}, buf)
}
