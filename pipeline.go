package main

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/gordonklaus/portaudio"
)

// Order of the per-channel bandpass filter isolating the tone.
const filterOrder = 5

// Pipeline owns all per-run decoding state and processes one audio frame at
// a time: filter, detect, decode, render, synchronously in frame-arrival
// order. Filter state is strictly per channel; the detector and decoder are
// shared across channels as all channels carry the same transmission.
type Pipeline struct {
	Freq      float64
	Bandwidth float64

	Detector *ToneDetector
	Decoder  *MorseDecoder
	Sink     MessageSink
	Player   *AudioWriter

	Wait bool // wait for a new source instead of stopping on errors

	rate     int
	channels int
	filters  []*BandpassFilter
	scratch  []float64

	renderDown bool

	mu     sync.Mutex
	reader *AudioReader
}

func NewPipeline(freq, bandwidth float64, threshold, dotMs int) *Pipeline {
	return &Pipeline{
		Freq:      freq,
		Bandwidth: bandwidth,
		Detector:  NewToneDetector(threshold, dotMs),
		Decoder:   NewMorseDecoder(dotMs),
	}
}

// Negotiate builds one filter state per channel for the delivered format.
// Filters cannot be retuned, so a format change rebuilds them all.
func (p *Pipeline) Negotiate(rate, channels int) error {
	if rate <= 0 || channels <= 0 {
		return fmt.Errorf("%w: rate %d, channels %d", ErrBadFormat, rate, channels)
	}

	filters := make([]*BandpassFilter, channels)
	for c := range filters {
		f, err := NewBandpassFilter(filterOrder, p.Freq, p.Bandwidth, float64(rate))
		if err != nil {
			return err
		}
		filters[c] = f
	}

	p.rate = rate
	p.channels = channels
	p.filters = filters
	return nil
}

// Process runs one frame through the pipeline. The buffer is filtered in
// place, so the monitor path downstream hears the isolated tone. now is the
// frame's arrival instant.
func (p *Pipeline) Process(buf *audio.FloatBuffer, now time.Time) error {
	if buf == nil || len(buf.Data) == 0 {
		return nil
	}

	f := buf.Format
	if f == nil {
		return fmt.Errorf("%w: no format", ErrBadFormat)
	}
	if p.filters == nil || f.SampleRate != p.rate || f.NumChannels != p.channels {
		if err := p.Negotiate(f.SampleRate, f.NumChannels); err != nil {
			return err
		}
	}

	n := p.channels
	for c := 0; c < n; c++ {
		ch := p.scratch[:0]
		flt := p.filters[c]
		for i := c; i < len(buf.Data); i += n {
			y := flt.Process(buf.Data[i])
			buf.Data[i] = y
			ch = append(ch, y)
		}
		p.scratch = ch

		change, idle := p.Detector.Update(ch, now)

		if change != nil {
			p.Decoder.SignalEvent(change.DurationMs, change.WasTone)
			p.echo()
		}

		if idle {
			p.finalize()
		}
	}

	return nil
}

func (p *Pipeline) echo() {
	if p.Sink == nil || p.renderDown {
		return
	}
	if err := p.Sink.Echo(p.Decoder.Message()); err != nil {
		// Fatal for the render path only; decoding continues.
		slog.Error("render failed", "error", err)
		p.renderDown = true
	}
}

// finalize closes the in-progress message, shows and logs it, and clears the
// decoder. Nothing accumulated means the timeout only reset the clock.
func (p *Pipeline) finalize() {
	if p.Decoder.Empty() {
		return
	}

	p.Decoder.EndSignal(false)
	p.Decoder.EndSignal(true)

	msg := p.Decoder.Message()
	if msg != "" {
		if p.Sink != nil && !p.renderDown {
			if err := p.Sink.Finalize(msg); err != nil {
				slog.Error("render failed", "error", err)
				p.renderDown = true
			}
		}
		slog.Info("decoded", "message", msg)
	}

	p.Decoder.Reset()
}

// Flush force-finalizes whatever is pending, leaving no partial message
// behind when the source stops.
func (p *Pipeline) Flush() {
	p.finalize()
}

// frameClock timestamps frames as they are processed. Live capture delivers
// frames at the capture cadence, so the wall clock is the frame time. File
// sources are read much faster than realtime; their clock advances by sample
// count so tone and silence durations keep their recorded lengths.
type frameClock struct {
	realtime bool
	start    time.Time
	samples  int64
}

func newFrameClock(realtime bool) *frameClock {
	return &frameClock{realtime: realtime, start: time.Now()}
}

// now returns the arrival instant for a frame of n interleaved samples.
func (c *frameClock) now(f *audio.Format, n int) time.Time {
	if c.realtime {
		return time.Now()
	}
	c.samples += int64(n)
	return c.start.Add(time.Duration(c.samples) * time.Second / time.Duration(f.SampleRate*f.NumChannels))
}

func (p *Pipeline) SetReader(r *AudioReader) {
	p.mu.Lock()
	prev := p.reader
	p.reader = nil

	if prev != nil {
		p.mu.Unlock()
		prev.Close()
		time.Sleep(500 * time.Millisecond)
		p.mu.Lock()
	}

	p.reader = r
	p.mu.Unlock()
}

func (p *Pipeline) GetReader() *AudioReader {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reader
}

// Run reads frames until the source is exhausted (or, with Wait set, forever,
// idling until a new source is attached).
func (p *Pipeline) Run() {
	var clock *frameClock
	var clockFor *AudioReader

	for {
		reader := p.GetReader()
		if reader == nil {
			if !p.Wait {
				break
			}
			time.Sleep(300 * time.Millisecond)
			continue
		}

		if reader != clockFor {
			clock = newFrameClock(reader.Realtime())
			clockFor = reader
		}

		buf, n, err := reader.Read()
		if err == portaudio.InputOverflowed {
			// Missed tick, not an error. The next observed duration
			// absorbs the gap.
			continue
		}
		if err != nil {
			slog.Error("audio read", "device", reader.Id, "error", err)
			if p.Wait {
				p.SetReader(nil)
				continue
			}
			break
		}
		if n == 0 {
			if p.Wait {
				p.SetReader(nil)
				continue
			}
			break
		}

		if err := p.Process(buf, clock.now(buf.Format, n)); err != nil {
			slog.Error("process frame", "error", err)
			break
		}

		if p.Player != nil {
			if err := p.Player.Write(buf); err != nil {
				slog.Error("monitor write", "error", err)
				p.Player = nil
			}
		}
	}

	p.Flush()
}
