package console

import (
	"io"
	"strings"
)

// DefaultMaxInput is the default maximum length of a command line.
const DefaultMaxInput = 50

// ASCII control characters handled by the editor.
const (
	asciiETX       byte = 0x03 // Ctrl-C
	asciiBackspace byte = 0x08
	asciiLF        byte = '\n'
	asciiCR        byte = '\r'
	asciiESC       byte = 0x1b
	asciiDEL       byte = 0x7f
)

// VT100 sequences written by the editor.
const (
	seqErase     = "\b \b"
	seqClearLine = "\x1b[2K\r"
	seqNewLine   = "\r\n"
	seqInterrupt = "^C\r\n"
)

const maxEscapeLen = 8

type editState int

const (
	stateInput editState = iota
	stateEscape           // ESC received, waiting for introducer
	stateCSI              // ESC [ received, collecting parameters
	stateSS3              // ESC O received, waiting for final byte
)

// Editor assembles received bytes into command lines, echoing as it goes.
// It keeps the last submitted line for up-arrow recall.
type Editor struct {
	MaxInput int
	Prompt   string

	state  editState
	line   []byte
	last   string
	esc    []byte
	lastCR bool
}

// NewEditor creates an Editor.
func NewEditor(maxInput int, prompt string) *Editor {
	if maxInput <= 0 {
		maxInput = DefaultMaxInput
	}
	return &Editor{MaxInput: maxInput, Prompt: prompt}
}

// Line returns the line being edited.
func (e *Editor) Line() string {
	return string(e.line)
}

// Last returns the history entry.
func (e *Editor) Last() string {
	return e.last
}

// Feed consumes one byte and writes the echo to w. When a line is
// submitted, it is returned with true.
func (e *Editor) Feed(b byte, w io.Writer) (string, bool) {
	lastCR := e.lastCR
	e.lastCR = false

	// Line terminators and Ctrl-C abandon a pending escape sequence.
	switch b {
	case asciiCR, asciiLF, asciiETX:
		e.state, e.esc = stateInput, e.esc[:0]
	}

	switch e.state {
	case stateEscape, stateCSI, stateSS3:
		e.feedEscape(b, w)
		return "", false
	}

	switch {
	case b == asciiCR || b == asciiLF:
		if b == asciiLF && lastCR {
			return "", false
		}
		e.lastCR = b == asciiCR
		io.WriteString(w, seqNewLine)
		line := string(e.line)
		e.line = e.line[:0]
		if strings.TrimSpace(line) != "" {
			e.last = line
		}
		return line, true
	case b == asciiBackspace || b == asciiDEL:
		if len(e.line) > 0 {
			e.line = e.line[:len(e.line)-1]
			io.WriteString(w, seqErase)
		}
	case b == asciiESC:
		e.state, e.esc = stateEscape, e.esc[:0]
	case b == asciiETX:
		e.line = e.line[:0]
		io.WriteString(w, seqInterrupt+e.Prompt)
	case b < 0x20 || b > 0x7e:
		// unsupported control or non-ASCII byte
	default:
		if len(e.line) < e.maxInput() {
			e.line = append(e.line, b)
			w.Write([]byte{b})
		}
	}
	return "", false
}

func (e *Editor) feedEscape(b byte, w io.Writer) {
	e.esc = append(e.esc, b)
	if len(e.esc) > maxEscapeLen {
		e.state = stateInput
		return
	}
	switch e.state {
	case stateEscape:
		switch b {
		case '[':
			e.state = stateCSI
		case 'O':
			e.state = stateSS3
		default:
			e.state = stateInput
		}
	case stateSS3:
		e.finishEscape(w)
	case stateCSI:
		switch {
		case b >= 0x20 && b <= 0x3f:
			// parameter and intermediate bytes
		case b >= 0x40 && b <= 0x7e:
			e.finishEscape(w)
		default:
			e.state = stateInput
		}
	}
}

func (e *Editor) finishEscape(w io.Writer) {
	e.state = stateInput
	switch string(e.esc) {
	case "[A", "OA":
		e.recall(w)
	}
}

func (e *Editor) recall(w io.Writer) {
	last := e.last
	if len(last) > e.maxInput() {
		last = last[:e.maxInput()]
	}
	e.line = append(e.line[:0], last...)
	io.WriteString(w, seqClearLine+e.Prompt+last)
}

func (e *Editor) maxInput() int {
	if e.MaxInput <= 0 {
		return DefaultMaxInput
	}
	return e.MaxInput
}
