// audio/interface.go
package audio

import (
	"context"
	"time"
)

// Stream 每个回调周期由设备依次调用 AudioIn -> Update -> AudioOut，
// 周期结束后设备检查 Exit 决定是否继续。
type Stream interface {
	AudioIn(in []float32, s Settings) error
	Update(s Settings, dt time.Duration)
	AudioOut(out []float32, s Settings) error
	Exit() bool
}

// Device 打开一条双工流并驱动 Stream，直到 Exit 返回 true、
// ctx 被取消或发生错误。正常退出返回 nil。
type Device interface {
	Run(ctx context.Context, s Settings, stream Stream) error
}
