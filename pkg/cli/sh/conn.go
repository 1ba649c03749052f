package sh

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/uartcon/pkg/transport"
)

// DefaultIdle is how long Exchange waits for more output.
const DefaultIdle = 500 * time.Millisecond

// ErrNotConnected indicates no console is connected.
var ErrNotConnected = errors.New("not connected")

// Conn is the host end of a console.
type Conn struct {
	URL string

	rwc    io.ReadWriteCloser
	dataCh chan []byte
	done   chan struct{}
	closed chan struct{}
	err    error

	lock      sync.Mutex
	closeOnce sync.Once
}

// Open dials the console at url.
func Open(url string) (*Conn, error) {
	rwc, err := transport.Dial(url)
	if err != nil {
		return nil, err
	}
	return NewConn(url, rwc), nil
}

// NewConn wraps an opened UART.
func NewConn(url string, rwc io.ReadWriteCloser) *Conn {
	c := &Conn{
		URL:    url,
		rwc:    rwc,
		dataCh: make(chan []byte, 64),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer close(c.done)
	buf := make([]byte, 256)
	for {
		n, err := c.rwc.Read(buf)
		if n > 0 {
			select {
			case c.dataCh <- append([]byte(nil), buf[:n]...):
			case <-c.closed:
				return
			}
		}
		if err != nil {
			c.err = err
			return
		}
	}
}

// Exchange sends data and collects the reply until it ends with prompt or
// nothing arrives for idle.
func (c *Conn) Exchange(ctx context.Context, data, prompt string, idle time.Duration) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if data != "" {
		glog.V(2).Infof("concli: send %q", data)
		if _, err := io.WriteString(c.rwc, data); err != nil {
			return "", err
		}
	}
	return c.collect(ctx, prompt, idle)
}

// Drain collects whatever the console sent unasked, e.g. the welcome.
func (c *Conn) Drain(ctx context.Context, prompt string, idle time.Duration) (string, error) {
	return c.Exchange(ctx, "", prompt, idle)
}

func (c *Conn) collect(ctx context.Context, prompt string, idle time.Duration) (string, error) {
	if idle <= 0 {
		idle = DefaultIdle
	}
	var out strings.Builder
	timer := time.NewTimer(idle)
	defer timer.Stop()
	for {
		select {
		case data := <-c.dataCh:
			out.Write(data)
			if prompt != "" && strings.HasSuffix(out.String(), prompt) {
				return out.String(), nil
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(idle)
		case <-timer.C:
			return out.String(), nil
		case <-c.done:
			for {
				select {
				case data := <-c.dataCh:
					out.Write(data)
				default:
					return out.String(), c.err
				}
			}
		case <-ctx.Done():
			return out.String(), ctx.Err()
		}
	}
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.rwc.Close()
	})
	return err
}
