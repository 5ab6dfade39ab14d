// Package telemetry collects per-tick utilization snapshots for external
// consumers. The core never depends on who reads them: history is pulled
// through Recent and live samples are fanned out over subscriber channels.
package telemetry

import (
	"sync"
	"time"

	"github.com/biovisor/biovisor/internal/domain"
)

// Sample is one timestamped utilization snapshot, taken once per tick.
type Sample struct {
	Timestamp   time.Time          `json:"timestamp"`
	Tick        uint64             `json:"tick"`
	Utilization domain.Utilization `json:"utilization"`
	RunningVMs  int                `json:"running_vms"`
	Throttled   int                `json:"throttled"`
}

// Recorder keeps a fixed-capacity ring of the most recent samples.
type Recorder struct {
	mu   sync.Mutex
	buf  []Sample
	next int
	full bool

	subscribers map[chan Sample]struct{}
}

// NewRecorder creates a recorder holding up to capacity samples.
func NewRecorder(capacity int) *Recorder {
	if capacity < 1 {
		capacity = 1
	}
	return &Recorder{
		buf:         make([]Sample, capacity),
		subscribers: make(map[chan Sample]struct{}),
	}
}

// Record appends a sample, evicting the oldest once the ring is full, and
// fans it out to subscribers. Slow subscribers drop samples rather than
// block the scheduling tick.
func (r *Recorder) Record(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}

	for ch := range r.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}

// Recent returns up to n samples in chronological order. n <= 0 returns the
// whole history.
func (r *Recorder) Recent(n int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]Sample, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

// Subscribe registers a live sample channel. The returned cancel function
// removes the subscription and closes the channel.
func (r *Recorder) Subscribe() (<-chan Sample, func()) {
	ch := make(chan Sample, 16)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}
