package audio

import "math"

// Processor 节点自身的生成/变换逻辑，直接作用于交错缓冲区
type Processor interface {
	Process(buf []float32, s Settings)
}

// ProcessorFunc 函数适配器
type ProcessorFunc func(buf []float32, s Settings)

func (f ProcessorFunc) Process(buf []float32, s Settings) { f(buf, s) }

// Constant 用固定值填充缓冲区
type Constant float32

func (c Constant) Process(buf []float32, _ Settings) {
	for i := range buf {
		buf[i] = float32(c)
	}
}

// Gain 原地缩放
type Gain float32

func (g Gain) Process(buf []float32, _ Settings) {
	for i := range buf {
		buf[i] *= float32(g)
	}
}

// Sine 正弦发生器，相位在多次调用之间保留
type Sine struct {
	freq  float64
	amp   float32
	phase float64
}

func NewSine(freq float64, amp float32) *Sine {
	return &Sine{freq: freq, amp: amp}
}

func (o *Sine) Process(buf []float32, s Settings) {
	step := 2 * math.Pi * o.freq / float64(s.SampleRate())
	ch := s.Channels()
	for f := 0; f < s.Frames(); f++ {
		v := o.amp * float32(math.Sin(o.phase))
		for c := 0; c < ch; c++ {
			buf[f*ch+c] = v
		}
		o.phase += step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}
