package cli

import (
	"bytes"
	"fmt"
)

// Context is passed to a command handler for one invocation.
type Context struct {
	// Line is the trimmed command line.
	Line string
	// Args are the parameters following the command name.
	Args []string
	// Call counts handler invocations for the current line, starting at 0.
	Call int
	// State is kept across invocations for the current line.
	State interface{}

	out       bytes.Buffer
	limit     int
	truncated bool
	err       error
}

// Write implements io.Writer. Output beyond the chunk limit is discarded
// without error.
func (c *Context) Write(p []byte) (int, error) {
	room := c.limit - c.out.Len()
	if room < len(p) {
		c.truncated = true
		if room > 0 {
			c.out.Write(p[:room])
		}
		return len(p), nil
	}
	return c.out.Write(p)
}

// Print writes s.
func (c *Context) Print(s string) {
	c.Write([]byte(s))
}

// Printf writes formatted output.
func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c, format, args...)
}

// Err reports a failure. No more invocations happen after it.
func (c *Context) Err(err error) {
	c.err = err
}

// Truncated indicates output of the current invocation has been cut.
func (c *Context) Truncated() bool {
	return c.truncated
}

func (c *Context) reset() {
	c.out.Reset()
	c.truncated = false
}
