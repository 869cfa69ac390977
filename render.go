package main

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// MessageSink receives the decoder's message as it grows and when it is
// finalized.
type MessageSink interface {
	// Echo shows the live message, printing only what was appended since
	// the previous call.
	Echo(msg string) error

	// Finalize ends the current message. If the finalized text differs
	// from what was last echoed, the display is corrected.
	Finalize(msg string) error
}

// fdWriter is satisfied by *os.File; anything else gets the fallback width.
type fdWriter interface {
	Fd() uintptr
}

// DisplayRenderer writes decoded text to a terminal, echoing new characters
// as they arrive and redrawing in place when a finalized message differs
// from what was echoed. It owns the last-printed text, which always mirrors
// what currently occupies the terminal.
type DisplayRenderer struct {
	out           io.Writer
	fallbackWidth int
	last          string
}

func NewDisplayRenderer(out io.Writer, fallbackWidth int) *DisplayRenderer {
	if fallbackWidth <= 0 {
		fallbackWidth = 80
	}
	return &DisplayRenderer{out: out, fallbackWidth: fallbackWidth}
}

func (r *DisplayRenderer) Echo(msg string) error {
	if len(msg) <= len(r.last) {
		return nil
	}

	if _, err := fmt.Fprint(r.out, msg[len(r.last):]); err != nil {
		return fmt.Errorf("write to terminal: %w", err)
	}
	r.last = msg
	return nil
}

func (r *DisplayRenderer) Finalize(msg string) error {
	var err error

	if msg == r.last {
		_, err = fmt.Fprintln(r.out)
	} else {
		// Clear the echoed lines, then print the corrected text as a
		// clean line. The cursor sits on the last echoed row, so that
		// row is cleared where it stands and only the rows above it
		// need a cursor-up first.
		width := r.width()
		var b strings.Builder
		b.WriteString("\r\x1b[K")
		for i := 1; i < r.lines(width); i++ {
			b.WriteString("\x1b[1A\r\x1b[K")
		}
		b.WriteString(msg)
		b.WriteByte('\n')
		_, err = fmt.Fprint(r.out, b.String())
	}

	if err != nil {
		return fmt.Errorf("write to terminal: %w", err)
	}

	// The cursor sits on a fresh line now.
	r.last = ""
	return nil
}

// lines counts how many terminal rows the echoed text occupies, ceil-dividing
// each logical line by the column width.
func (r *DisplayRenderer) lines(width int) int {
	n := 0
	for _, line := range strings.Split(r.last, "\n") {
		n += (len(line) + width - 1) / width
	}
	return n
}

func (r *DisplayRenderer) width() int {
	if f, ok := r.out.(fdWriter); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return r.fallbackWidth
}
