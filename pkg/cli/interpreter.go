// Package cli provides the line based command interpreter of the console.
package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultMaxOutput is the default size of one output chunk, including room
// for a terminator.
const DefaultMaxOutput = 100

// VariableParams accepts any number of parameters.
const VariableParams = -1

// Func handles a command. It returns true if more output follows, in which
// case it is invoked again with Context.Call incremented.
type Func func(c *Context) (more bool)

// Command defines a registered command.
type Command struct {
	// Name is the word typed to invoke the command.
	Name string
	// Help is listed by the help command, including line endings.
	Help string
	// Params is the exact number of parameters, or VariableParams.
	Params int
	// Func handles the command.
	Func Func
}

// Interpreter dispatches command lines to registered commands.
type Interpreter struct {
	MaxOutput int

	commands []*Command
	byName   map[string]*Command
	lock     sync.RWMutex
}

// HelpCmd lists registered commands.
var HelpCmd = Command{
	Name: "help",
	Help: "help:\r\n Lists all the registered commands\r\n\r\n",
}

// New creates an Interpreter with the help command registered.
func New() *Interpreter {
	i := &Interpreter{
		MaxOutput: DefaultMaxOutput,
		byName:    make(map[string]*Command),
	}
	help := HelpCmd
	help.Func = i.help
	if err := i.Register(&help); err != nil {
		panic(err)
	}
	return i
}

// Register adds commands. Names must be unique and contain no spaces.
func (i *Interpreter) Register(cmds ...*Command) error {
	i.lock.Lock()
	defer i.lock.Unlock()
	for _, cmd := range cmds {
		if cmd.Name == "" || strings.ContainsAny(cmd.Name, " \t") {
			return ErrInvalidName
		}
		if cmd.Func == nil {
			return ErrNoFunc
		}
		if _, exists := i.byName[cmd.Name]; exists {
			return &DuplicateCommandError{Name: cmd.Name}
		}
		i.byName[cmd.Name] = cmd
		i.commands = append(i.commands, cmd)
	}
	return nil
}

// MustRegister registers commands and panics on error.
func (i *Interpreter) MustRegister(cmds ...*Command) *Interpreter {
	if err := i.Register(cmds...); err != nil {
		panic(err)
	}
	return i
}

// Commands lists commands in registration order.
func (i *Interpreter) Commands() []*Command {
	i.lock.RLock()
	defer i.lock.RUnlock()
	return append([]*Command(nil), i.commands...)
}

// Lookup finds a command by name.
func (i *Interpreter) Lookup(name string) *Command {
	i.lock.RLock()
	defer i.lock.RUnlock()
	return i.byName[name]
}

// Process runs a command line and writes all output to w.
// Only errors from w are returned; command failures are reported in the
// output.
func (i *Interpreter) Process(line string, w io.Writer) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	cmd := i.Lookup(words[0])
	if cmd == nil {
		_, err := io.WriteString(w, MsgNotRecognised)
		return err
	}
	args := words[1:]
	if cmd.Params != VariableParams && len(args) != cmd.Params {
		_, err := io.WriteString(w, MsgIncorrectParams)
		return err
	}

	limit := i.MaxOutput
	if limit <= 1 {
		limit = DefaultMaxOutput
	}
	c := &Context{
		Line:  strings.TrimSpace(line),
		Args:  args,
		limit: limit - 1,
	}
	for {
		c.reset()
		more := cmd.Func(c)
		if c.out.Len() > 0 {
			if _, err := w.Write(c.out.Bytes()); err != nil {
				return err
			}
		}
		if c.err != nil {
			_, err := fmt.Fprintf(w, "Error: %v\r\n", c.err)
			return err
		}
		if !more {
			return nil
		}
		c.Call++
	}
}

func (i *Interpreter) help(c *Context) bool {
	cmds := i.Commands()
	if c.Call >= len(cmds) {
		return false
	}
	c.Print(cmds[c.Call].Help)
	return c.Call+1 < len(cmds)
}
