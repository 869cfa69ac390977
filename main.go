package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/jroimartin/gocui"
	"github.com/lmittmann/tint"
)

// bufferSize converts the buffer length in milliseconds to the buffers-per-
// second divisor the audio readers expect. The detector emits one tone
// boolean per buffer, so timing resolution equals buffer length; buffers are
// bounded to half the dot duration so a single buffer can never swallow a
// whole dot.
func bufferSize(ms, dotMs int) int {
	if ms > dotMs/2 {
		ms = dotMs / 2
	}
	if ms < 1 {
		ms = 1
	}
	return 1000 / ms
}

// checkAudioService verifies the host audio service is usable before any
// stream is opened. Environment validation only, not part of the decoding
// core: on failure it prints a diagnostic and exits non-zero.
func checkAudioService() {
	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintln(os.Stderr, "the audio service is not available:", err)
		fmt.Fprintln(os.Stderr, "check that a sound server (PipeWire/PulseAudio/JACK) is running")
		os.Exit(1)
	}
}

func main() {
	freq := flag.Float64("freq", 700, "tone frequency (in Hz)")
	bandwidth := flag.Float64("bandwidth", 200, "bandpass filter bandwidth (in Hz)")
	threshold := flag.Int("threshold", 10, fmt.Sprintf("tone detection level (0-%d)", maxLevel))
	dot := flag.Int("dot", 100, "dot reference duration (in ms)")
	ssize := flag.Int("buffer", 20, "buffer size (in ms)")
	dev := flag.String("device", "", "input audio device (for live decoding)")
	out := flag.String("play", "", "output audio device (for monitoring)")
	list := flag.Bool("list", false, "list audio devices")
	noui := flag.Bool("noui", false, "no user interface, write to stdout")

	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.TimeOnly,
	})))

	if *threshold < 0 {
		*threshold = 0
	}
	if *threshold > maxLevel {
		*threshold = maxLevel
	}
	if *dot < 10 {
		*dot = 10
	}

	checkAudioService()
	defer portaudio.Terminate()

	if *list || (*noui && *dev == "" && flag.NArg() == 0) {
		fmt.Println()
		fmt.Printf("Usage: %v [options] [filename]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		fmt.Println()

		l, err := ListAudioDevices(AudioInOut)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println("Available audio devices")
		for i, d := range l {
			fmt.Println("", i+1, d)
		}

		din, _ := portaudio.DefaultInputDevice()
		dout, _ := portaudio.DefaultOutputDevice()

		fmt.Println()
		if din != nil {
			fmt.Println("Default input device:", din.Name)
		}
		if dout != nil {
			fmt.Println("Default output device:", dout.Name)
		}
		return
	}

	*ssize = bufferSize(*ssize, *dot)

	var reader *AudioReader
	var player *AudioWriter
	var err error

	if *dev != "" {
		reader, err = FromAudioStream(*dev, *ssize)
		if err != nil {
			slog.Error("open audio device", "device", *dev, "error", err)
			os.Exit(1)
		}
	} else if flag.NArg() >= 1 {
		inputFile := flag.Arg(0)

		f, err := os.Open(inputFile)
		if err != nil {
			slog.Error("open input file", "file", inputFile, "error", err)
			os.Exit(1)
		}

		defer f.Close()

		reader, err = FromWaveFile(f, *ssize)
		if err != nil {
			slog.Error("read wave file", "file", inputFile, "error", err)
			os.Exit(1)
		}
		reader.Id = inputFile
	} else {
		reader = guiSelectAudio(*ssize)
	}

	if reader == nil {
		slog.Error("no audio source selected")
		os.Exit(1)
	}

	if *out != "" {
		player, err = NewAudioWriter(*out, reader.SampleRate, *ssize)
		if err != nil {
			slog.Error("open monitor device", "device", *out, "error", err)
			os.Exit(1)
		}
		defer player.Close()
	}

	pipe := NewPipeline(*freq, *bandwidth, *threshold, *dot)
	pipe.Player = player
	pipe.SetReader(reader)

	// Fail on bad filter parameters before any audio is consumed, instead
	// of on the first frame.
	if err := pipe.Negotiate(reader.SampleRate, reader.Channels); err != nil {
		slog.Error("configure filter", "error", err)
		os.Exit(1)
	}

	if *noui {
		pipe.Sink = NewDisplayRenderer(os.Stdout, 80)
		pipe.Run()
		return
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Panicln(err)
	}
	defer g.Close()

	app := &App{
		Pipeline:  pipe,
		gui:       g,
		startTime: time.Now(),
	}
	pipe.Sink = app

	g.SetManagerFunc(app.Layout)
	if err := app.SetKeyBinding(); err != nil {
		log.Panicln(err)
	}

	go app.Run()

	if err := g.MainLoop(); err != nil && err != gocui.ErrQuit {
		log.Panicln(err)
	}
}
