package main

import (
	"errors"
	"fmt"
	"math"
)

// ErrFilterConfig is returned for band-pass parameters that cannot produce a
// stable filter at the negotiated sample rate.
var ErrFilterConfig = errors.New("invalid filter configuration")

// Biquad is a single second-order IIR section with its own sample history.
type Biquad struct {
	a, b [3]float64
	x, y [2]float64
}

// NewBandpassSection designs one band-pass biquad centered on center Hz.
func NewBandpassSection(sampleRate, center, bandwidth float64) *Biquad {
	Q := center / bandwidth
	omega := 2 * math.Pi * center / sampleRate
	alpha := math.Sin(omega) / (2 * Q)
	b0 := alpha
	b1 := 0.0
	b2 := -alpha
	a0 := 1 + alpha
	a1 := -2 * math.Cos(omega)
	a2 := 1 - alpha
	return &Biquad{
		b: [3]float64{b0 / a0, b1 / a0, b2 / a0},
		a: [3]float64{1, a1 / a0, a2 / a0},
	}
}

func (f *Biquad) Process(x float64) float64 {
	y := f.b[0]*x + f.b[1]*f.x[0] + f.b[2]*f.x[1] - f.a[1]*f.y[0] - f.a[2]*f.y[1]
	f.x[1], f.x[0] = f.x[0], x
	f.y[1], f.y[0] = f.y[0], y
	return y
}

// BandpassFilter chains biquad sections to reach the requested order while
// staying numerically stable. One instance holds the state for exactly one
// audio channel; sharing it across channels corrupts the sample history of
// both. Frequency, bandwidth or rate changes require a new instance.
type BandpassFilter struct {
	sections []*Biquad
}

// NewBandpassFilter validates the design parameters and derives the section
// coefficients once. Odd orders round up to the next whole section.
func NewBandpassFilter(order int, center, bandwidth, sampleRate float64) (*BandpassFilter, error) {
	if center <= 0 || bandwidth <= 0 {
		return nil, fmt.Errorf("%w: center %.1fHz, bandwidth %.1fHz (must be positive)",
			ErrFilterConfig, center, bandwidth)
	}

	nyquist := sampleRate / 2
	low := center - bandwidth/2
	high := center + bandwidth/2
	if low <= 0 || high >= nyquist {
		return nil, fmt.Errorf("%w: passband %.1f-%.1fHz outside (0, %.1fHz)",
			ErrFilterConfig, low, high, nyquist)
	}

	stages := (order + 1) / 2
	if stages < 1 {
		stages = 1
	}

	qs := make([]float64, stages)
	for i := range qs {
		qs[i] = 1.0
	}

	// Butterworth-ish Q distribution (approx) to keep the passband flat.
	// Precomputed for small orders; fallback to Q=1.
	switch stages {
	case 1:
		qs = []float64{0.7071}
	case 2: // 4th order
		qs = []float64{0.5412, 1.3065}
	case 3: // 6th order
		qs = []float64{0.5176, 0.7071, 1.9319}
	case 4: // 8th order
		qs = []float64{0.5098, 0.6013, 0.9000, 2.5629}
	}

	sections := make([]*Biquad, 0, stages)
	for _, q := range qs {
		bw := center / q
		// Use the requested bandwidth as a minimum to avoid overly narrow
		// sections.
		if bw < bandwidth {
			bw = bandwidth
		}
		sections = append(sections, NewBandpassSection(sampleRate, center, bw))
	}

	return &BandpassFilter{sections: sections}, nil
}

// Process filters a single sample, updating the per-channel state.
func (c *BandpassFilter) Process(x float64) float64 {
	y := x
	for _, s := range c.sections {
		y = s.Process(y)
	}
	return y
}
