package audio

import (
	"encoding/binary"
	"sync"
)

// SampleRingBuffer keeps the most recent int16 samples of a capture so a
// level meter can read them while the recorder is still writing.
type SampleRingBuffer struct {
	mu      sync.RWMutex
	samples []int16
	head    int // next write position
	count   int // valid samples, up to capacity
}

// NewSampleRingBuffer creates a ring buffer with the given capacity.
func NewSampleRingBuffer(capacity int) *SampleRingBuffer {
	return &SampleRingBuffer{
		samples: make([]int16, max(capacity, 1)),
	}
}

// Write appends samples, overwriting the oldest once full.
func (b *SampleRingBuffer) Write(samples []int16) {
	if len(samples) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.samples)

	// only the tail can survive a write larger than the buffer
	if len(samples) > capacity {
		samples = samples[len(samples)-capacity:]
	}

	for _, s := range samples {
		b.samples[b.head] = s
		b.head = (b.head + 1) % capacity
	}

	b.count = min(b.count+len(samples), capacity)
}

// ReadSamples returns up to n of the most recent samples, oldest first.
func (b *SampleRingBuffer) ReadSamples(n int) []int16 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 || n <= 0 {
		return nil
	}

	n = min(n, b.count)
	capacity := len(b.samples)
	start := (b.head - n + capacity) % capacity

	result := make([]int16, n)
	for i := range n {
		result[i] = b.samples[(start+i)%capacity]
	}

	return result
}

// Count returns the number of valid samples in the buffer.
func (b *SampleRingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Reset discards every sample. Called when a new capture starts.
func (b *SampleRingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = 0
	b.count = 0
}

// Window exposes the latest n samples of a buffer as uictl.Levels[int16].
type Window struct {
	buf *SampleRingBuffer
	n   int
}

// NewWindow returns a Window over buf reading n samples at a time.
func NewWindow(buf *SampleRingBuffer, n int) Window {
	return Window{buf: buf, n: n}
}

func (w Window) Read() []int16 {
	return w.buf.ReadSamples(w.n)
}

// BytesToInt16 converts S16LE bytes to samples. A trailing odd byte is dropped.
func BytesToInt16(data []byte) []int16 {
	numSamples := len(data) / 2
	if numSamples == 0 {
		return nil
	}

	samples := make([]int16, numSamples)
	for i := range numSamples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}
