package main

import (
	"testing"
	"time"
)

var detT0 = time.Unix(1000, 0)

func toneSamples(amp float64) []float64 {
	s := make([]float64, 64)
	for i := range s {
		if i%2 == 0 {
			s[i] = amp
		} else {
			s[i] = -amp
		}
	}
	return s
}

var silence = make([]float64, 64)

func TestLevel(t *testing.T) {
	tests := []struct {
		peak float64
		want int
	}{
		{0, 0},
		{0.5, 15},
		{1.0, 30},
		{1.3, 39},
		{2.0, 39}, // clamped
	}

	for _, tc := range tests {
		if got := Level(tc.peak); got != tc.want {
			t.Errorf("Level(%v) = %d, want %d", tc.peak, got, tc.want)
		}
	}
}

func TestDetectorFirstFrameSeedsState(t *testing.T) {
	d := NewToneDetector(10, 100)

	change, idle := d.Update(toneSamples(0.8), detT0)
	if change != nil || idle {
		t.Errorf("first frame emitted events: change=%v idle=%v", change, idle)
	}
	if !d.State.TonePresent {
		t.Error("tone state not adopted on first frame")
	}
}

func TestDetectorSignalChange(t *testing.T) {
	d := NewToneDetector(10, 100)

	d.Update(toneSamples(0.8), detT0)

	// Same state, no event.
	change, _ := d.Update(toneSamples(0.8), detT0.Add(50*time.Millisecond))
	if change != nil {
		t.Errorf("unexpected change: %v", change)
	}

	// Tone drops after 100ms total.
	change, _ = d.Update(silence, detT0.Add(100*time.Millisecond))
	if change == nil {
		t.Fatal("expected signal change")
	}
	if change.DurationMs != 100 || !change.WasTone {
		t.Errorf("change = %+v, want 100ms tone", change)
	}

	// Tone returns 80ms later.
	change, _ = d.Update(toneSamples(0.8), detT0.Add(180*time.Millisecond))
	if change == nil {
		t.Fatal("expected signal change")
	}
	if change.DurationMs != 80 || change.WasTone {
		t.Errorf("change = %+v, want 80ms silence", change)
	}
}

func TestDetectorThresholdBoundary(t *testing.T) {
	d := NewToneDetector(15, 100)

	// level == threshold is not a tone; present requires level > threshold.
	d.Update(toneSamples(0.5), detT0) // level 15
	if d.State.TonePresent {
		t.Error("level equal to threshold detected as tone")
	}

	d.Update(toneSamples(0.6), detT0.Add(10*time.Millisecond)) // level 18
	if !d.State.TonePresent {
		t.Error("level above threshold not detected as tone")
	}
}

func TestDetectorIdleTimeout(t *testing.T) {
	d := NewToneDetector(10, 100) // timeout at 20 dots = 2000ms

	d.Update(silence, detT0)

	_, idle := d.Update(silence, detT0.Add(2000*time.Millisecond))
	if idle {
		t.Error("idle fired at exactly the timeout, want strictly greater")
	}

	_, idle = d.Update(silence, detT0.Add(2001*time.Millisecond))
	if !idle {
		t.Fatal("idle did not fire past the timeout")
	}

	// Clock was reset; no immediate retrigger.
	_, idle = d.Update(silence, detT0.Add(2100*time.Millisecond))
	if idle {
		t.Error("idle retriggered without a new timeout elapsing")
	}
}

func TestDetectorIdleNotWhileTonePresent(t *testing.T) {
	d := NewToneDetector(10, 100)

	d.Update(toneSamples(0.8), detT0)

	_, idle := d.Update(toneSamples(0.8), detT0.Add(3000*time.Millisecond))
	if idle {
		t.Error("idle fired while tone present")
	}
}

func TestDetectorChangeAndIdleSameFrame(t *testing.T) {
	d := NewToneDetector(10, 100)

	d.Update(toneSamples(0.8), detT0)

	// A very long tone ends: the change event and the idle timeout are
	// independent triggers and both fire on this frame.
	change, idle := d.Update(silence, detT0.Add(2500*time.Millisecond))
	if change == nil || change.DurationMs != 2500 || !change.WasTone {
		t.Errorf("change = %+v, want 2500ms tone", change)
	}
	if !idle {
		t.Error("idle did not fire alongside the change")
	}
}
