package cli

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidName indicates an empty command name or one containing spaces.
	ErrInvalidName = errors.New("invalid command name")
	// ErrNoFunc indicates a command without handler.
	ErrNoFunc = errors.New("command has no handler")
)

// DuplicateCommandError is returned when registering a name twice.
type DuplicateCommandError struct {
	Name string
}

// Error implements error.
func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command %q already registered", e.Name)
}

// Replies written by the interpreter itself.
const (
	MsgNotRecognised   = "Command not recognised.  Enter 'help' to view a list of available commands.\r\n\r\n"
	MsgIncorrectParams = "Incorrect command parameter(s).  Enter \"help\" to view a list of available commands.\r\n\r\n"
)
