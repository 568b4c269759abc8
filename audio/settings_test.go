package audio

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettings_Valid(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ rate, frames, channels int }{
		{44100, 128, 2},
		{48000, 256, 1},
		{8000, 1, 1},
		{96000, 4096, 8},
	} {
		s, err := NewSettings(tc.rate, tc.frames, tc.channels)
		require.NoError(t, err)
		assert.Equal(t, tc.rate, s.SampleRate())
		assert.Equal(t, tc.frames, s.Frames())
		assert.Equal(t, tc.channels, s.Channels())
		assert.Equal(t, tc.frames*tc.channels, s.BufferLen())
		assert.NoError(t, s.CheckBuffer(tc.frames*tc.channels))
	}
}

func TestNewSettings_Invalid(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ rate, frames, channels int }{
		{0, 128, 2},
		{-1, 128, 2},
		{44100, 0, 2},
		{44100, -128, 2},
		{44100, 128, 0},
		{44100, 128, -2},
		{0, 0, 0},
	} {
		t.Run(fmt.Sprintf("%d_%d_%d", tc.rate, tc.frames, tc.channels), func(t *testing.T) {
			_, err := NewSettings(tc.rate, tc.frames, tc.channels)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestSettings_ZeroValueInvalid(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, Settings{}.Validate(), ErrInvalidConfiguration)
}

func TestSettings_CheckBufferMismatch(t *testing.T) {
	t.Parallel()

	s, err := NewSettings(44100, 128, 2)
	require.NoError(t, err)

	for _, n := range []int{0, 1, 128, 255, 257, 512} {
		assert.ErrorIs(t, s.CheckBuffer(n), ErrBufferSizeMismatch, "len %d", n)
	}
}

func TestSettings_Compatible(t *testing.T) {
	t.Parallel()

	a, _ := NewSettings(44100, 128, 2)
	b, _ := NewSettings(48000, 128, 2)
	c, _ := NewSettings(44100, 256, 1)

	assert.True(t, a.Compatible(b))
	assert.False(t, a.Compatible(c))
}

func TestSettings_Period(t *testing.T) {
	t.Parallel()

	s, _ := NewSettings(48000, 480, 2)
	assert.Equal(t, 10*time.Millisecond, s.Period())
}

func TestObservedRate(t *testing.T) {
	t.Parallel()

	s, _ := NewSettings(44100, 128, 2)
	assert.Equal(t, 128.0, ObservedRate(s, time.Second))
	assert.Equal(t, 256.0, ObservedRate(s, 500*time.Millisecond))
	assert.Equal(t, 0.0, ObservedRate(s, 0))
	period := float64(time.Second) * 128 / 44100
	assert.InDelta(t, 44100.0, ObservedRate(s, time.Duration(period)), 1.0)
}
