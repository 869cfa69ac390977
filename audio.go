package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
)

// ErrBadFormat is returned when a negotiated audio format cannot be used.
var ErrBadFormat = errors.New("unsupported audio format")

type AudioType int

const (
	AudioInOut AudioType = iota
	AudioIn
	AudioOut
)

func ListAudioDevices(t AudioType) ([]string, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var list []string

	for _, d := range devices {
		v := d.Name

		switch t {
		case AudioInOut:
			if d.MaxInputChannels > 0 {
				v += fmt.Sprintf(" (in:%v)", d.MaxInputChannels)
			}
			if d.MaxOutputChannels > 0 {
				v += fmt.Sprintf(" (out:%v)", d.MaxOutputChannels)
			}

		case AudioIn:
			if d.MaxInputChannels == 0 { // output
				continue
			}

		case AudioOut:
			if d.MaxOutputChannels == 0 { // input
				continue
			}
		}

		list = append(list, v)
	}

	return list, nil
}

func findDevice(dev string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}

	i, err := strconv.Atoi(dev)
	if err == nil && i > 0 && i <= len(devices) {
		return devices[i-1], nil
	}

	for _, d := range devices {
		if strings.HasPrefix(d.Name, dev) {
			return d, nil
		}
	}

	return nil, fmt.Errorf("device not found: %s", dev)
}

// AudioWriter plays the filtered audio on an output device, for monitoring.
type AudioWriter struct {
	Stream       *portaudio.Stream
	StreamBuffer audio.Float32Buffer
	Volume       float32
	mute         bool
}

func NewAudioWriter(dev string, sampleRate, ssize int) (*AudioWriter, error) {
	info, err := findDevice(dev)
	if err != nil {
		return nil, err
	}

	const numChannels = 1

	p := portaudio.HighLatencyParameters(nil, info)
	p.Input.Channels = 0
	p.Output.Channels = numChannels
	p.SampleRate = float64(sampleRate)
	p.FramesPerBuffer = sampleRate / ssize

	buf32 := audio.Float32Buffer{
		Format: &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:   make([]float32, p.FramesPerBuffer),
	}

	stream, err := portaudio.OpenStream(p, buf32.Data)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start output: %w", err)
	}

	return &AudioWriter{
		Stream:       stream,
		StreamBuffer: buf32,
		Volume:       1.0,
	}, nil
}

func (w *AudioWriter) Close() {
	if w.Stream != nil {
		w.Stream.Stop()
	}
}

func (w *AudioWriter) Mute(m bool) {
	if w.mute = m; w.mute {
		for i := range w.StreamBuffer.Data {
			w.StreamBuffer.Data[i] = 0
		}
	}
}

// Write plays one frame. The buffer is downmixed and normalized for
// monitoring; callers must be done with it.
func (w *AudioWriter) Write(b *audio.FloatBuffer) error {
	if w.mute {
		return nil
	}

	transforms.MonoDownmix(b)
	transforms.NormalizeMax(b)

	buf32 := b.AsFloat32Buffer()

	if w.Volume != 1.0 {
		for i := 0; i < len(buf32.Data); i++ {
			buf32.Data[i] *= w.Volume
		}
	}

	copy(w.StreamBuffer.Data, buf32.Data)
	return w.Stream.Write()
}

// AudioReader delivers frames from a live capture stream or a WAV file. The
// negotiated format (sample rate, channel count) is fixed per reader and
// carried on every returned buffer.
type AudioReader struct {
	Id string // device name or filename

	Stream       *portaudio.Stream
	StreamBuffer audio.Float32Buffer

	WavDecoder *wav.Decoder
	WavBuffer  audio.IntBuffer
	wavScale   float64

	SampleRate int
	Channels   int
	SampleSize int

	reading bool
}

func FromWaveFile(r io.ReadSeeker, ssize int) (*AudioReader, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrBadFormat)
	}

	var scale float64
	switch decoder.BitDepth {
	case 8, 16, 24, 32:
		scale = 1.0 / float64(int(1)<<(decoder.BitDepth-1))
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrBadFormat, decoder.BitDepth)
	}

	format := decoder.Format()
	if format.SampleRate <= 0 || format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: rate %d, channels %d", ErrBadFormat, format.SampleRate, format.NumChannels)
	}

	return &AudioReader{
		WavDecoder: decoder,
		WavBuffer:  audio.IntBuffer{Format: format, Data: make([]int, format.SampleRate*format.NumChannels/ssize)},
		wavScale:   scale,
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		SampleSize: ssize,
	}, nil
}

func FromAudioStream(dev string, ssize int) (*AudioReader, error) {
	info, err := findDevice(dev)
	if err != nil {
		return nil, err
	}

	if info.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device has no input channels: %s", info.Name)
	}

	numChannels := info.MaxInputChannels
	if numChannels > 2 {
		numChannels = 2
	}
	const sampleRate = 44100

	p := portaudio.HighLatencyParameters(info, nil)
	p.Input.Channels = numChannels
	p.Output.Channels = 0
	p.SampleRate = sampleRate
	p.FramesPerBuffer = sampleRate / ssize

	buf32 := audio.Float32Buffer{
		Format: &audio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		Data:   make([]float32, numChannels*(sampleRate/ssize)),
	}

	stream, err := portaudio.OpenStream(p, buf32.Data)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start input: %w", err)
	}

	return &AudioReader{
		Id:           info.Name,
		Stream:       stream,
		StreamBuffer: buf32,
		SampleRate:   sampleRate,
		Channels:     numChannels,
		SampleSize:   ssize,
	}, nil
}

func (r *AudioReader) Close() {
	for r.reading {
		time.Sleep(100 * time.Millisecond)
	}

	if r.Stream != nil {
		r.Stream.Stop()
		r.Stream = nil
	}
	if r.WavDecoder != nil {
		// nothing to close
		r.WavDecoder = nil
	}
}

// Realtime reports whether frames arrive at the capture cadence. File
// sources are read as fast as the loop spins and must be timed by sample
// count instead of the wall clock.
func (r *AudioReader) Realtime() bool {
	return r.Stream != nil
}

// Read returns the next frame as interleaved float64 samples in [-1, 1].
// A zero count with a nil error means the source is exhausted.
func (r *AudioReader) Read() (*audio.FloatBuffer, int, error) {
	r.reading = true
	defer func() {
		r.reading = false
	}()

	if r.Stream != nil {
		if err := r.Stream.Read(); err != nil {
			return nil, 0, err
		}

		return r.StreamBuffer.AsFloatBuffer(), len(r.StreamBuffer.Data), nil
	}

	if r.WavDecoder != nil {
		n, err := r.WavDecoder.PCMBuffer(&r.WavBuffer)
		if n == 0 {
			return nil, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}

		// PCMBuffer may return fewer samples at the end of the file.
		fb := &audio.FloatBuffer{
			Format: r.WavBuffer.Format,
			Data:   make([]float64, n),
		}
		for i := 0; i < n; i++ {
			fb.Data[i] = float64(r.WavBuffer.Data[i]) * r.wavScale
		}

		return fb, n, nil
	}

	return nil, 0, fmt.Errorf("no audio source available")
}
