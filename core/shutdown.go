package core

import "sync"

// NewShutdown 创建一对单槽、非阻塞的停止信号。
// 发送端交给控制方，接收端交给音频线程上的 Runtime。
func NewShutdown() (*ShutdownSender, *ShutdownReceiver) {
	ch := make(chan bool, 1)
	return &ShutdownSender{ch: ch}, &ShutdownReceiver{ch: ch}
}

// ShutdownSender 控制方持有的发送端
type ShutdownSender struct {
	mu     sync.Mutex
	ch     chan bool
	closed bool
}

// Send 从不阻塞。槽位里还有未读消息时拒绝新值并返回 ErrShutdownPending，
// 未读消息不会被覆盖。
func (s *ShutdownSender) Send(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrShutdownClosed
	}
	select {
	case s.ch <- v:
		return nil
	default:
		return ErrShutdownPending
	}
}

// Close 相当于丢弃发送端，接收端之后只会看到“无消息”。可重复调用。
func (s *ShutdownSender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// ShutdownReceiver 音频线程持有的接收端
type ShutdownReceiver struct {
	ch chan bool
}

// TryReceive 非阻塞轮询。ok 为 false 表示没有消息（包括发送端已关闭）。
func (r *ShutdownReceiver) TryReceive() (value bool, ok bool) {
	select {
	case v, open := <-r.ch:
		if !open {
			return false, false
		}
		return v, true
	default:
		return false, false
	}
}
