package serial

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates the console has been deinitialized.
	ErrClosed = errors.New("serial console closed")
)

// InvalidLogLevelError reports an unknown log level name.
type InvalidLogLevelError struct {
	Name string
}

// Error implements error.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q", e.Name)
}
