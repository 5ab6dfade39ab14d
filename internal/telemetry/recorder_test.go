// Package telemetry provides tests for the snapshot recorder.
package telemetry

import (
	"testing"
	"time"
)

func TestRecorder_RecentOrdering(t *testing.T) {
	r := NewRecorder(8)

	for i := 1; i <= 5; i++ {
		r.Record(Sample{Tick: uint64(i)})
	}

	samples := r.Recent(0)
	if len(samples) != 5 {
		t.Fatalf("Expected 5 samples, got %d", len(samples))
	}
	for i, s := range samples {
		if s.Tick != uint64(i+1) {
			t.Errorf("Sample %d out of order: tick %d", i, s.Tick)
		}
	}

	last := r.Recent(2)
	if len(last) != 2 || last[0].Tick != 4 || last[1].Tick != 5 {
		t.Errorf("Recent(2) = %+v, want ticks 4,5", last)
	}
}

func TestRecorder_RingWrap(t *testing.T) {
	r := NewRecorder(3)

	for i := 1; i <= 7; i++ {
		r.Record(Sample{Tick: uint64(i)})
	}

	samples := r.Recent(0)
	if len(samples) != 3 {
		t.Fatalf("Expected capacity-bounded history of 3, got %d", len(samples))
	}
	for i, want := range []uint64{5, 6, 7} {
		if samples[i].Tick != want {
			t.Errorf("Sample %d: tick %d, want %d", i, samples[i].Tick, want)
		}
	}
}

func TestRecorder_Subscribe(t *testing.T) {
	r := NewRecorder(4)

	ch, cancel := r.Subscribe()
	r.Record(Sample{Tick: 1, Timestamp: time.Now()})

	select {
	case s := <-ch:
		if s.Tick != 1 {
			t.Errorf("Expected tick 1, got %d", s.Tick)
		}
	default:
		t.Fatal("Expected a live sample on the subscription channel")
	}

	cancel()
	if _, open := <-ch; open {
		t.Error("Expected channel closed after cancel")
	}

	// Recording after cancel must not panic or deliver.
	r.Record(Sample{Tick: 2})

	// Cancel is idempotent.
	cancel()
}

func TestRecorder_SlowSubscriberDoesNotBlock(t *testing.T) {
	r := NewRecorder(4)

	_, cancel := r.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer; Record must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			r.Record(Sample{Tick: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a slow subscriber")
	}
}
