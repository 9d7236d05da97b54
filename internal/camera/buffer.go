package camera

import (
	"sync"
	"time"

	"github.com/ando01/BirdView/internal/vision"
)

// MinBufferFrames is the smallest capacity a resize will set.
const MinBufferFrames = 300

// RollingBuffer holds the most recent frames in arrival order. It owns every
// frame it stores and closes them on eviction; readers receive clones.
type RollingBuffer struct {
	mu       sync.RWMutex
	frames   []vision.Frame // ring storage, len == capacity once full
	start    int            // index of the oldest frame
	count    int
	capacity int
}

// NewRollingBuffer returns an empty buffer holding at most capacity frames.
func NewRollingBuffer(capacity int) *RollingBuffer {
	capacity = max(capacity, 1)
	return &RollingBuffer{
		frames:   make([]vision.Frame, capacity),
		capacity: capacity,
	}
}

// Append stores f, taking ownership, and evicts the oldest frame when full.
func (b *RollingBuffer) Append(f vision.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count < b.capacity {
		b.frames[(b.start+b.count)%b.capacity] = f
		b.count++
		return
	}

	evicted := b.frames[b.start]
	b.frames[b.start] = f
	b.start = (b.start + 1) % b.capacity
	evicted.Close()
}

// Resize changes the capacity, keeping the newest frames that still fit.
func (b *RollingBuffer) Resize(capacity int) {
	capacity = max(capacity, 1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if capacity == b.capacity {
		return
	}

	drop := max(b.count-capacity, 0)
	frames := make([]vision.Frame, capacity)
	for i := range b.count {
		f := b.frames[(b.start+i)%b.capacity]
		if i < drop {
			f.Close()
			continue
		}
		frames[i-drop] = f
	}

	b.frames = frames
	b.start = 0
	b.count -= drop
	b.capacity = capacity
}

// Slice returns clones of all frames with start <= Time <= end, oldest first.
// The caller owns and must close the returned frames.
func (b *RollingBuffer) Slice(start, end time.Time) []vision.Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []vision.Frame
	for i := range b.count {
		f := b.frames[(b.start+i)%b.capacity]
		if f.Time.Before(start) || f.Time.After(end) {
			continue
		}
		out = append(out, f.Clone())
	}
	return out
}

// Len returns the number of buffered frames.
func (b *RollingBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Capacity returns the maximum number of buffered frames.
func (b *RollingBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.capacity
}

// Oldest returns the timestamp of the oldest frame, zero when empty.
func (b *RollingBuffer) Oldest() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.count == 0 {
		return time.Time{}
	}
	return b.frames[b.start].Time
}

// Close releases every buffered frame.
func (b *RollingBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.count {
		f := b.frames[(b.start+i)%b.capacity]
		f.Close()
	}
	b.frames = make([]vision.Frame, b.capacity)
	b.start = 0
	b.count = 0
}

// capacityFor returns the buffer size for a stream at fps frames per second.
func capacityFor(fps float64, seconds int) int {
	return max(int(fps*float64(seconds)), MinBufferFrames)
}
