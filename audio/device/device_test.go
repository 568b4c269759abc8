package device

import (
	"testing"

	"github.com/lisuiheng/dspstream/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    any
		wantErr error
	}{
		{name: "default", cfg: Config{}, want: &PortAudio{}},
		{name: "portaudio", cfg: Config{Backend: BackendPortAudio}, want: &PortAudio{}},
		{name: "malgo", cfg: Config{Backend: BackendMalgo}, want: &Malgo{}},
		{name: "null", cfg: Config{Backend: BackendNull}, want: audio.NullDevice{}},
		{name: "wav", cfg: Config{Backend: BackendWAV, WAVInput: "in.wav", WAVOutput: "out.wav"}, want: &audio.WAVDevice{}},
		{name: "wav without output", cfg: Config{Backend: BackendWAV, WAVInput: "in.wav"}, wantErr: audio.ErrInvalidConfiguration},
		{name: "unknown", cfg: Config{Backend: "alsa"}, wantErr: ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := New(tt.cfg, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, dev)
		})
	}
}
