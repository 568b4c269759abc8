package audio

import (
	"fmt"
	"time"
)

// Driver 所有后端共用的单周期调度：AudioIn -> Update(dt) -> AudioOut。
// dt 是距离上一次投递的墙钟时间。
type Driver struct {
	stream   Stream
	settings Settings
	last     time.Time
	now      func() time.Time
	cycles   uint64
}

func NewDriver(stream Stream, s Settings) *Driver {
	d := &Driver{stream: stream, settings: s, now: time.Now}
	d.last = d.now()
	return d
}

// Step 执行一个完整周期
func (d *Driver) Step(in, out []float32) error {
	if err := d.stream.AudioIn(in, d.settings); err != nil {
		return fmt.Errorf("audio in (cycle %d): %w", d.cycles, err)
	}

	now := d.now()
	dt := now.Sub(d.last)
	d.last = now
	d.stream.Update(d.settings, dt)

	if err := d.stream.AudioOut(out, d.settings); err != nil {
		return fmt.Errorf("audio out (cycle %d): %w", d.cycles, err)
	}
	d.cycles++
	return nil
}

func (d *Driver) Exit() bool { return d.stream.Exit() }

// Cycles 已完成的周期数
func (d *Driver) Cycles() uint64 { return d.cycles }
