package main

import (
	"math"
	"time"
)

// Peak amplitudes map onto a bounded integer scale so thresholds stay
// meaningful regardless of buffer size.
const (
	levelScale = 30
	maxLevel   = 39

	// A silence this many dots long means the sender is done.
	idleDots = 20
)

// SignalState tracks the current tone boolean and when it last flipped.
type SignalState struct {
	TonePresent bool
	LastChange  time.Time
}

// SignalChange reports a tone on/off transition: how long the previous state
// lasted and what it was.
type SignalChange struct {
	DurationMs int
	WasTone    bool
}

// ToneDetector reduces a channel's filtered samples to a tone/no-tone boolean
// once per frame and times the transitions. Threshold and DotMs may be
// adjusted between frames; the detector itself is not safe for concurrent
// Update calls.
type ToneDetector struct {
	Threshold int
	DotMs     int

	// Level is the last observed signal level, for display only.
	Level int

	State SignalState
}

func NewToneDetector(threshold, dotMs int) *ToneDetector {
	return &ToneDetector{Threshold: threshold, DotMs: dotMs}
}

// Level maps a peak amplitude to the bounded 0..39 integer scale.
func Level(peak float64) int {
	l := int(math.Round(peak * levelScale))
	if l < 0 {
		l = 0
	}
	if l > maxLevel {
		l = maxLevel
	}
	return l
}

func peakAmplitude(samples []float64) float64 {
	max := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > max {
			max = a
		}
	}
	return max
}

// Update processes one frame's samples for a channel. It returns a non-nil
// change when the tone boolean flipped, and idle=true when the line has been
// silent longer than the idle timeout. The two triggers are independent and
// can fire on the same frame.
//
// The very first frame only seeds the state: without a prior timestamp no
// duration can be computed, so no event is fabricated.
func (d *ToneDetector) Update(samples []float64, now time.Time) (change *SignalChange, idle bool) {
	d.Level = Level(peakAmplitude(samples))
	tone := d.Level > d.Threshold

	if d.State.LastChange.IsZero() {
		d.State.TonePresent = tone
		d.State.LastChange = now
		return nil, false
	}

	duration := int(now.Sub(d.State.LastChange).Milliseconds())

	if tone != d.State.TonePresent {
		change = &SignalChange{DurationMs: duration, WasTone: d.State.TonePresent}
		d.State.TonePresent = tone
		d.State.LastChange = now
	}

	if duration > idleDots*d.DotMs && !d.State.TonePresent {
		idle = true
		d.State.LastChange = now
	}

	return change, idle
}
