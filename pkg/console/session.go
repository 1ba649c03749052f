// Package console runs the command console task: it reads characters from
// the serial console, edits them into lines and dispatches them to the
// command interpreter.
package console

import (
	"context"
	"io"

	"github.com/golang/glog"

	"github.com/robotalks/uartcon/pkg/cli"
)

// Defaults for Options.
const (
	DefaultWelcome = "Serial console.\r\nType help to view a list of registered commands.\r\n"
	DefaultPrompt  = "> "
)

// Terminal is the character device the session talks to.
type Terminal interface {
	io.Writer
	// ReadChar blocks until a character is received.
	ReadChar(ctx context.Context) (byte, error)
}

// Options configures a Session.
type Options struct {
	Welcome  string
	Prompt   string
	MaxInput int
}

// DefaultOptions returns the default session options.
func DefaultOptions() Options {
	return Options{
		Welcome:  DefaultWelcome,
		Prompt:   DefaultPrompt,
		MaxInput: DefaultMaxInput,
	}
}

// Session is a running console task.
type Session struct {
	Terminal    Terminal
	Interpreter *cli.Interpreter
	Editor      *Editor
	Welcome     string
}

// NewSession creates a Session.
func NewSession(term Terminal, interp *cli.Interpreter, opts Options) *Session {
	return &Session{
		Terminal:    term,
		Interpreter: interp,
		Editor:      NewEditor(opts.MaxInput, opts.Prompt),
		Welcome:     opts.Welcome,
	}
}

// Name implements framework.Named.
func (s *Session) Name() string {
	return "console"
}

// Run implements framework.Runnable.
func (s *Session) Run(ctx context.Context) error {
	if _, err := io.WriteString(s.Terminal, s.Welcome+s.Editor.Prompt); err != nil {
		return err
	}
	for {
		b, err := s.Terminal.ReadChar(ctx)
		if err != nil {
			return err
		}
		line, ok := s.Editor.Feed(b, s.Terminal)
		if !ok {
			continue
		}
		glog.V(2).Infof("console: %q", line)
		if err = s.Interpreter.Process(line, s.Terminal); err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		if _, err = io.WriteString(s.Terminal, s.Editor.Prompt); err != nil {
			return err
		}
	}
}
