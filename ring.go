package termdock

import (
	"sync"
	"time"
)

// Chunk is one sequence-numbered piece of terminal output kept for replay.
type Chunk struct {
	Seq       int64
	Data      []byte
	Timestamp int64 // unix milliseconds
}

// OutputRing stores a fixed number of output chunks in FIFO order. Unlike
// the registry it carries its own lock: output arrives on backend goroutines
// while replays are served from arbitrary readers.
type OutputRing struct {
	mu      sync.RWMutex
	chunks  []Chunk
	head    int
	tail    int
	full    bool
	nextSeq int64
}

// NewOutputRing creates a ring holding up to capacity chunks.
func NewOutputRing(capacity int) *OutputRing {
	if capacity <= 0 {
		capacity = 2048
	}
	return &OutputRing{
		chunks:  make([]Chunk, capacity),
		nextSeq: 1,
	}
}

// Write copies data into the ring, overwriting the oldest chunk when full,
// and returns the sequence number assigned to it.
func (r *OutputRing) Write(data []byte) int64 {
	if len(data) == 0 {
		return 0
	}

	owned := make([]byte, len(data))
	copy(owned, data)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		r.tail = (r.tail + 1) % len(r.chunks)
	}

	seq := r.nextSeq
	r.nextSeq++
	r.chunks[r.head] = Chunk{
		Seq:       seq,
		Data:      owned,
		Timestamp: time.Now().UnixMilli(),
	}

	r.head = (r.head + 1) % len(r.chunks)
	r.full = r.head == r.tail
	return seq
}

// ChunksFrom returns copies of all chunks with Seq >= fromSeq in
// chronological order. fromSeq <= 1 returns everything retained.
func (r *OutputRing) ChunksFrom(fromSeq int64) []Chunk {
	r.mu.RLock()
	defer r.mu.RUnlock()

	used := r.usedLocked()
	out := make([]Chunk, 0, used)
	for i := 0; i < used; i++ {
		chunk := r.chunks[(r.tail+i)%len(r.chunks)]
		if chunk.Data == nil || chunk.Seq < fromSeq {
			continue
		}
		data := make([]byte, len(chunk.Data))
		copy(data, chunk.Data)
		out = append(out, Chunk{Seq: chunk.Seq, Data: data, Timestamp: chunk.Timestamp})
	}
	return out
}

// Clear drops all retained chunks. Sequence numbering restarts.
func (r *OutputRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.chunks {
		r.chunks[i] = Chunk{}
	}
	r.head, r.tail, r.full = 0, 0, false
	r.nextSeq = 1
}

// Len reports how many chunks are retained.
func (r *OutputRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usedLocked()
}

func (r *OutputRing) usedLocked() int {
	if r.full {
		return len(r.chunks)
	}
	if r.head >= r.tail {
		return r.head - r.tail
	}
	return len(r.chunks) - r.tail + r.head
}
