package monitor

import (
	"encoding/binary"

	"github.com/lisuiheng/dspstream/audio"
)

// Encoder 把运行时交付的输出缓冲区编码为待发送的数据包。
// emit 收到的切片只在回调期间有效。
type Encoder interface {
	Format() string
	Encode(buf []float32, emit func([]byte) error) error
}

// PCMEncoder 16 位小端 PCM，每个缓冲区一个数据包
type PCMEncoder struct {
	pcm []int16
	out []byte
}

func NewPCMEncoder() *PCMEncoder {
	return &PCMEncoder{}
}

func (e *PCMEncoder) Format() string { return "pcm_s16le" }

func (e *PCMEncoder) Encode(buf []float32, emit func([]byte) error) error {
	if cap(e.pcm) < len(buf) {
		e.pcm = make([]int16, len(buf))
		e.out = make([]byte, len(buf)*2)
	}
	pcm := e.pcm[:len(buf)]
	out := e.out[:len(buf)*2]

	audio.Float32ToInt16(pcm, buf)
	for i, v := range pcm {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return emit(out)
}
