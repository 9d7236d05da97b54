package clip

import (
	"sync"

	"github.com/smallnest/ringbuffer"
)

// stderrTail keeps the last bytes written to it, dropping the oldest.
type stderrTail struct {
	mu   sync.Mutex
	size int
	buf  *ringbuffer.RingBuffer
}

func newStderrTail(size int) *stderrTail {
	return &stderrTail{size: size, buf: ringbuffer.New(size)}
}

func (s *stderrTail) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(p)
	if len(p) > s.size {
		p = p[len(p)-s.size:]
	}
	if drop := len(p) - s.buf.Free(); drop > 0 {
		_, _ = s.buf.Read(make([]byte, drop))
	}
	if _, err := s.buf.Write(p); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *stderrTail) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]byte, s.buf.Length())
	if len(out) == 0 {
		return ""
	}
	n, _ := s.buf.Read(out)
	_, _ = s.buf.Write(out[:n])
	return string(out[:n])
}
