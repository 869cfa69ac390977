package main

import "strings"

// Morse code mapping
var morseCode = map[string]string{
	// letters
	".-": "A", "-...": "B", "-.-.": "C", "-..": "D",
	".": "E", "..-.": "F", "--.": "G", "....": "H",
	"..": "I", ".---": "J", "-.-": "K", ".-..": "L",
	"--": "M", "-.": "N", "---": "O", ".--.": "P",
	"--.-": "Q", ".-.": "R", "...": "S", "-": "T",
	"..-": "U", "...-": "V", ".--": "W", "-..-": "X",
	"-.--": "Y", "--..": "Z",

	// digits
	".----": "1", "..---": "2",
	"...--": "3", "....-": "4", ".....": "5", "-....": "6",
	"--...": "7", "---..": "8", "----.": "9", "-----": "0",

	// punctuations
	".-..-.": "\"", "...-..-": "$", ".----.": "'", "-.--.-": "]",
	"--..--": ",", "-....-": "-", ".-.-.-": ".", ".-.-.-.": ".",
	"-..-.": "/", "---...": ":", "-.-.-.": ";", "..--..": "?",
	".--.-.": "@", "..--.-": "_", "-.-.--": "!", "---.": "!",

	// prosigns
	".-.-.": "<AR/+>", ".-...": "<AS>", "-...-.-": "<BK>", "...-.-": "<SK>", "-...-": "<BT/=>", "-.--.": "<KN/[>",
}

// Duration boundaries in dot units. A tone shorter than two dots is a dot,
// longer is a dash (ITU nominal 1:3). A silence shorter than two dots
// separates elements, up to five dots separates characters (nominal 3),
// beyond that separates words (nominal 7).
const (
	dashBoundary = 2.0
	wordBoundary = 5.0
)

// MorseDecoder turns tone on/off durations into symbols and characters. It
// accumulates one message at a time; after the message is finalized and read,
// Reset starts the next one from scratch.
type MorseDecoder struct {
	DotMs int

	code string // in-progress symbol, dots and dashes
	text string // decoded characters
	done bool
}

func NewMorseDecoder(dotMs int) *MorseDecoder {
	return &MorseDecoder{DotMs: dotMs}
}

// SignalEvent classifies one completed tone or silence interval. wasTone
// reports the state that just ended, durationMs how long it lasted.
func (d *MorseDecoder) SignalEvent(durationMs int, wasTone bool) {
	if d.DotMs <= 0 {
		return
	}
	units := float64(durationMs) / float64(d.DotMs)

	if wasTone {
		d.done = false
		if units < dashBoundary {
			d.code += "."
		} else {
			d.code += "-"
		}
		return
	}

	// Silence: short gaps separate elements within a symbol and need no
	// action, anything longer closes the symbol.
	if units < dashBoundary {
		return
	}
	d.closeSymbol()
	if units >= wordBoundary {
		d.text += " "
	}
}

// EndSignal closes out a message on idle timeout. It is called twice: first
// with flush=false to close any in-progress symbol without counting the
// trailing silence, then with flush=true to force-finalize the message. A
// single call cannot distinguish "mid-character" from "message over"; the
// two-call sequence resolves both deterministically. Once finalized, further
// calls in either order are no-ops.
func (d *MorseDecoder) EndSignal(flush bool) {
	if d.done {
		return
	}
	d.closeSymbol()
	if flush {
		d.done = true
	}
}

func (d *MorseDecoder) closeSymbol() {
	if d.code == "" {
		return
	}
	d.text += decode(d.code)
	d.code = ""
}

// Message returns the decoded text with whitespace runs collapsed.
func (d *MorseDecoder) Message() string {
	return CollapseWhitespace(d.text)
}

// Empty reports whether nothing has accumulated since the last Reset.
func (d *MorseDecoder) Empty() bool {
	return d.text == "" && d.code == ""
}

// Reset clears the message buffer and timing state for the next message.
func (d *MorseDecoder) Reset() {
	d.code = ""
	d.text = ""
	d.done = false
}

func decode(code string) string {
	if val, ok := morseCode[code]; ok {
		return val
	}

	// Keep unreadable groups visible instead of dropping them.
	return "(" + code + ")"
}

// CollapseWhitespace replaces every run of whitespace with a single space and
// trims the ends. Applying it twice yields the same result as once.
func CollapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			space = b.Len() > 0
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}

	return b.String()
}
