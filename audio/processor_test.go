package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstantAndGain(t *testing.T) {
	t.Parallel()

	s := mustSettings(t, 44100, 4, 1)
	buf := make([]float32, 4)

	Constant(0.5).Process(buf, s)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, buf)

	Gain(-2).Process(buf, s)
	assert.Equal(t, []float32{-1, -1, -1, -1}, buf)
}

func TestSine_PhaseContinuesAcrossCalls(t *testing.T) {
	t.Parallel()

	short := mustSettings(t, 8000, 4, 2)
	long := mustSettings(t, 8000, 8, 2)

	split := NewSine(1000, 0.8)
	a := make([]float32, short.BufferLen())
	b := make([]float32, short.BufferLen())
	split.Process(a, short)
	split.Process(b, short)

	whole := NewSine(1000, 0.8)
	c := make([]float32, long.BufferLen())
	whole.Process(c, long)

	assert.InDeltaSlice(t, c, append(a, b...), 1e-6)
}

func TestSine_Interleaved(t *testing.T) {
	t.Parallel()

	s := mustSettings(t, 8000, 4, 2)
	buf := make([]float32, s.BufferLen())
	NewSine(2000, 1).Process(buf, s)

	for f := 0; f < s.Frames(); f++ {
		want := float32(math.Sin(2 * math.Pi * 2000 / 8000 * float64(f)))
		assert.InDelta(t, want, buf[f*2], 1e-6, "frame %d left", f)
		assert.Equal(t, buf[f*2], buf[f*2+1], "frame %d right", f)
	}
}
