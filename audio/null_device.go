package audio

import (
	"context"
	"time"
)

// NullDevice 没有硬件的双工设备：输入为静音，输出丢弃，按标称周期节拍运行。
// 用于无声卡的环境（CI、容器）。
type NullDevice struct{}

func (NullDevice) Run(ctx context.Context, s Settings, stream Stream) error {
	in := make([]float32, s.BufferLen())
	out := make([]float32, s.BufferLen())
	drv := NewDriver(stream, s)

	period := s.Period()
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		if err := drv.Step(in, out); err != nil {
			return err
		}
		if drv.Exit() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
