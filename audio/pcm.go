package audio

import (
	"encoding/binary"
	"math"
)

// Float32ToInt16 把 [-1,1] 浮点采样转换为 int16，越界截断
func Float32ToInt16(dst []int16, src []float32) {
	for i, v := range src {
		switch {
		case v >= 1:
			dst[i] = math.MaxInt16
		case v <= -1:
			dst[i] = math.MinInt16
		default:
			dst[i] = int16(v * 32768)
		}
	}
}

// BytesToFloat32 小端 f32 字节流解码到 dst，返回写入的采样数
func BytesToFloat32(dst []float32, b []byte) int {
	n := min(len(b)/4, len(dst))
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return n
}

// Float32ToBytes 把 src 编码为小端 f32，返回写入的采样数
func Float32ToBytes(b []byte, src []float32) int {
	n := min(len(b)/4, len(src))
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(src[i]))
	}
	return n
}
