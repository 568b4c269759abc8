package device

import (
	"errors"
	"testing"
	"time"

	"github.com/lisuiheng/dspstream/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doublingStream 输出 = 输入 × 2，exitAfter 个周期后请求退出
type doublingStream struct {
	in        []float32
	cycles    int
	exitAfter int
	failOut   error
}

func (d *doublingStream) AudioIn(in []float32, s audio.Settings) error {
	if err := s.CheckBuffer(len(in)); err != nil {
		return err
	}
	d.in = append(d.in[:0], in...)
	return nil
}

func (d *doublingStream) Update(audio.Settings, time.Duration) {}

func (d *doublingStream) AudioOut(out []float32, s audio.Settings) error {
	if d.failOut != nil {
		return d.failOut
	}
	for i, v := range d.in {
		out[i] = v * 2
	}
	d.cycles++
	return nil
}

func (d *doublingStream) Exit() bool { return d.exitAfter > 0 && d.cycles >= d.exitAfter }

func f32Bytes(samples ...float32) []byte {
	b := make([]byte, len(samples)*4)
	audio.Float32ToBytes(b, samples)
	return b
}

func decodeF32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	audio.BytesToFloat32(out, b)
	return out
}

func filled(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 0xFF
	}
	return b
}

func isDone(cb *duplexCallback) bool {
	select {
	case <-cb.done:
		return true
	default:
		return false
	}
}

func TestDuplexCallback_ConvertsAndRunsCycle(t *testing.T) {
	s, err := audio.NewSettings(48000, 2, 2)
	require.NoError(t, err)
	stream := &doublingStream{}
	cb := newDuplexCallback(stream, s)

	out := make([]byte, 16)
	cb.data(out, f32Bytes(0.25, -0.25, 0.125, 0), 2)

	assert.Equal(t, []float32{0.5, -0.5, 0.25, 0}, decodeF32(out))
	assert.Equal(t, uint64(1), cb.cycles())
	assert.False(t, isDone(cb))
}

func TestDuplexCallback_ExitStopsAndOutputsSilence(t *testing.T) {
	s, err := audio.NewSettings(48000, 2, 1)
	require.NoError(t, err)
	stream := &doublingStream{exitAfter: 2}
	cb := newDuplexCallback(stream, s)

	out := make([]byte, 8)
	cb.data(out, f32Bytes(0.1, 0.2), 2)
	assert.False(t, isDone(cb))
	cb.data(out, f32Bytes(0.1, 0.2), 2)
	// 最后一个周期的输出照常交付
	assert.InDeltaSlice(t, []float32{0.2, 0.4}, decodeF32(out), 1e-6)
	require.True(t, isDone(cb))
	assert.NoError(t, cb.err)

	out = filled(8)
	cb.data(out, f32Bytes(0.1, 0.2), 2)
	assert.Equal(t, make([]byte, 8), out)
	assert.Equal(t, 2, stream.cycles)
}

func TestDuplexCallback_SizeMismatch(t *testing.T) {
	s, err := audio.NewSettings(48000, 4, 1)
	require.NoError(t, err)
	stream := &doublingStream{}
	cb := newDuplexCallback(stream, s)

	out := filled(16)
	cb.data(out, f32Bytes(0.5, 0.5), 2)

	assert.Equal(t, make([]byte, 16), out)
	require.True(t, isDone(cb))
	assert.ErrorIs(t, cb.err, audio.ErrBufferSizeMismatch)

	// 出错后不再调度 Stream
	out = filled(16)
	cb.data(out, f32Bytes(0.5, 0.5, 0.5, 0.5), 4)
	assert.Equal(t, make([]byte, 16), out)
	assert.Zero(t, stream.cycles)
	assert.ErrorIs(t, cb.err, audio.ErrBufferSizeMismatch)
}

func TestDuplexCallback_StreamError(t *testing.T) {
	s, err := audio.NewSettings(48000, 2, 1)
	require.NoError(t, err)
	failure := errors.New("graph failed")
	cb := newDuplexCallback(&doublingStream{failOut: failure}, s)

	out := filled(8)
	cb.data(out, f32Bytes(0.1, 0.2), 2)

	assert.Equal(t, make([]byte, 8), out)
	require.True(t, isDone(cb))
	assert.ErrorIs(t, cb.err, failure)
}
