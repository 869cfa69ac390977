package main

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-audio/audio"
)

// stubSink records what the pipeline asked to display.
type stubSink struct {
	echoes []string
	finals []string
}

func (s *stubSink) Echo(msg string) error {
	if msg != "" {
		s.echoes = append(s.echoes, msg)
	}
	return nil
}

func (s *stubSink) Finalize(msg string) error {
	s.finals = append(s.finals, msg)
	return nil
}

const (
	testRate    = 44100
	testFrameMs = 10
)

// makeFrame synthesizes one 10ms mono frame. With tone set it carries a
// 700Hz sinusoid, phase-continuous via the frame index.
func makeFrame(index int, tone bool) *audio.FloatBuffer {
	return makeFrameMs(index, tone, testFrameMs)
}

func makeFrameMs(index int, tone bool, frameMs int) *audio.FloatBuffer {
	n := testRate * frameMs / 1000
	data := make([]float64, n)
	if tone {
		for i := range data {
			sample := index*n + i
			data[i] = 0.8 * math.Sin(2*math.Pi*700*float64(sample)/testRate)
		}
	}
	return &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: testRate},
		Data:   data,
	}
}

func TestPipelineDecodesLetter(t *testing.T) {
	sink := &stubSink{}
	pipe := NewPipeline(700, 200, 10, 100)
	pipe.Sink = sink

	t0 := time.Unix(1000, 0)

	// dot (100ms tone), element gap (100ms), dash (300ms tone), then
	// silence until the idle timeout finalizes the message.
	schedule := func(frame int) bool {
		switch {
		case frame < 10:
			return true
		case frame < 20:
			return false
		case frame < 50:
			return true
		default:
			return false
		}
	}

	for frame := 0; frame < 270; frame++ {
		buf := makeFrame(frame, schedule(frame))
		now := t0.Add(time.Duration(frame*testFrameMs) * time.Millisecond)
		if err := pipe.Process(buf, now); err != nil {
			t.Fatal(err)
		}
	}

	if len(sink.finals) != 1 || sink.finals[0] != "A" {
		t.Fatalf("finalized = %q, want [\"A\"]", sink.finals)
	}

	if !pipe.Decoder.Empty() {
		t.Error("decoder not cleared after finalize")
	}
}

func TestPipelineFileSourceTiming(t *testing.T) {
	// File sources deliver frames as fast as the read loop spins; the
	// frame clock must advance by sample count or every duration
	// collapses to near zero and a dash is indistinguishable from a dot.
	sink := &stubSink{}
	pipe := NewPipeline(700, 200, 10, 100)
	pipe.Sink = sink

	clock := newFrameClock(false)

	schedule := func(frame int) bool {
		switch {
		case frame < 10:
			return true
		case frame < 20:
			return false
		case frame < 50:
			return true
		default:
			return false
		}
	}

	for frame := 0; frame < 270; frame++ {
		buf := makeFrame(frame, schedule(frame))
		if err := pipe.Process(buf, clock.now(buf.Format, len(buf.Data))); err != nil {
			t.Fatal(err)
		}
	}

	if len(sink.finals) != 1 || sink.finals[0] != "A" {
		t.Fatalf("finalized = %q, want [\"A\"]", sink.finals)
	}
}

func TestPipelineDecodesAtDefaultBufferCadence(t *testing.T) {
	// One detector decision per buffer: at the default 20ms buffer a
	// 100ms dot spans five frames and classifies cleanly.
	frameMs := 1000 / bufferSize(20, 100)
	if frameMs > 50 {
		t.Fatalf("default buffer %dms too coarse for a 100ms dot", frameMs)
	}

	sink := &stubSink{}
	pipe := NewPipeline(700, 200, 10, 100)
	pipe.Sink = sink

	t0 := time.Unix(1000, 0)

	// dot, element gap, dash, then silence past the idle timeout.
	schedule := func(frame int) bool {
		ms := frame * frameMs
		switch {
		case ms < 100:
			return true
		case ms < 200:
			return false
		case ms < 500:
			return true
		default:
			return false
		}
	}

	frames := 2700 / frameMs
	for frame := 0; frame < frames; frame++ {
		buf := makeFrameMs(frame, schedule(frame), frameMs)
		now := t0.Add(time.Duration(frame*frameMs) * time.Millisecond)
		if err := pipe.Process(buf, now); err != nil {
			t.Fatal(err)
		}
	}

	if len(sink.finals) != 1 || sink.finals[0] != "A" {
		t.Fatalf("finalized = %q, want [\"A\"]", sink.finals)
	}
}

func TestPipelineRejectsBadFormat(t *testing.T) {
	pipe := NewPipeline(700, 200, 10, 100)

	buf := &audio.FloatBuffer{
		Format: &audio.Format{NumChannels: 0, SampleRate: testRate},
		Data:   make([]float64, 441),
	}

	err := pipe.Process(buf, time.Unix(1000, 0))
	if !errors.Is(err, ErrBadFormat) {
		t.Errorf("expected ErrBadFormat, got %v", err)
	}
}

func TestPipelineNyquistViolationAtNegotiation(t *testing.T) {
	// 700Hz tone cannot be isolated at a 1kHz sample rate.
	pipe := NewPipeline(700, 200, 10, 100)

	err := pipe.Negotiate(1000, 1)
	if !errors.Is(err, ErrFilterConfig) {
		t.Errorf("expected ErrFilterConfig, got %v", err)
	}
}

func TestPipelinePerChannelFilters(t *testing.T) {
	pipe := NewPipeline(700, 200, 10, 100)
	if err := pipe.Negotiate(testRate, 2); err != nil {
		t.Fatal(err)
	}

	if len(pipe.filters) != 2 {
		t.Fatalf("filters = %d, want one per channel", len(pipe.filters))
	}
	if pipe.filters[0] == pipe.filters[1] {
		t.Error("channels share filter state")
	}
}

func TestPipelineSkipsEmptyFrame(t *testing.T) {
	sink := &stubSink{}
	pipe := NewPipeline(700, 200, 10, 100)
	pipe.Sink = sink

	// An empty tick is an expected scheduling gap, not an error.
	if err := pipe.Process(nil, time.Unix(1000, 0)); err != nil {
		t.Errorf("nil frame: %v", err)
	}
	if err := pipe.Process(&audio.FloatBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: testRate}}, time.Unix(1000, 0)); err != nil {
		t.Errorf("empty frame: %v", err)
	}
}

func TestPipelineFlushFinalizesPending(t *testing.T) {
	sink := &stubSink{}
	pipe := NewPipeline(700, 200, 10, 100)
	pipe.Sink = sink

	// A lone dash, then the source stops before any idle timeout.
	pipe.Decoder.SignalEvent(300, true)
	pipe.Flush()

	if len(sink.finals) != 1 || sink.finals[0] != "T" {
		t.Errorf("finalized = %q, want [\"T\"]", sink.finals)
	}

	// Nothing pending: flushing again is a no-op.
	pipe.Flush()
	if len(sink.finals) != 1 {
		t.Errorf("empty flush produced output: %q", sink.finals)
	}
}
