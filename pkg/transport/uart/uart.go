// Package uart provides serial port UARTs backed by github.com/tarm/serial.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"
)

// DefaultBaud is the default baud rate (8N1).
const DefaultBaud = 115200

// DefaultReadTimeout bounds a single read so Close is noticed.
const DefaultReadTimeout = 100 * time.Millisecond

// ErrClosed indicates the port is closed.
var ErrClosed = errors.New("uart closed")

// ConfigFromURL parses serial:///dev/ttyUSB0?baud=115200&parity=N&stop=1&size=8.
// A bare device path is also accepted.
func ConfigFromURL(u *url.URL) (*serial.Config, error) {
	conf := &serial.Config{
		Name:        u.Host + u.Path,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
		Size:        serial.DefaultSize,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	if conf.Name == "" {
		return nil, fmt.Errorf("serial device name required")
	}
	q := u.Query()
	if val := q.Get("baud"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil || baud <= 0 {
			return nil, fmt.Errorf("invalid baud %q", val)
		}
		conf.Baud = baud
	}
	if val := q.Get("size"); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil || size < 5 || size > 8 {
			return nil, fmt.Errorf("invalid size %q", val)
		}
		conf.Size = byte(size)
	}
	if val := q.Get("parity"); val != "" {
		switch p := serial.Parity(strings.ToUpper(val)[0]); p {
		case serial.ParityNone, serial.ParityOdd, serial.ParityEven, serial.ParityMark, serial.ParitySpace:
			conf.Parity = p
		default:
			return nil, fmt.Errorf("invalid parity %q", val)
		}
	}
	switch val := q.Get("stop"); val {
	case "", "1":
	case "1.5":
		conf.StopBits = serial.Stop1Half
	case "2":
		conf.StopBits = serial.Stop2
	default:
		return nil, fmt.Errorf("invalid stop bits %q", val)
	}
	return conf, nil
}

// Port is an opened serial port.
type Port struct {
	Name string

	port      io.ReadWriteCloser
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open opens a serial port.
func Open(conf *serial.Config) (*Port, error) {
	p, err := serial.OpenPort(conf)
	if err != nil {
		return nil, err
	}
	glog.Infof("uart: opened %s at %d baud", conf.Name, conf.Baud)
	return newPort(conf.Name, p), nil
}

func newPort(name string, rw io.ReadWriteCloser) *Port {
	return &Port{Name: name, port: rw, closed: make(chan struct{})}
}

// Read implements io.Reader. Read timeouts of the underlying port are
// retried until data arrives or the port is closed.
func (p *Port) Read(b []byte) (int, error) {
	for {
		n, err := p.port.Read(b)
		if n > 0 {
			return n, nil
		}
		select {
		case <-p.closed:
			return 0, ErrClosed
		default:
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
	}
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrClosed
	default:
	}
	return p.port.Write(b)
}

// Close implements io.Closer.
func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.closeErr = p.port.Close()
		glog.Infof("uart: closed %s", p.Name)
	})
	return p.closeErr
}

// Done is closed when the port is closed.
func (p *Port) Done() <-chan struct{} {
	return p.closed
}

// Listener hands out the serial port to one session at a time.
type Listener struct {
	Config *serial.Config

	open   func(*serial.Config) (io.ReadWriteCloser, error)
	active *Port
	closed chan struct{}
	once   sync.Once
	lock   sync.Mutex
}

// NewListener creates a Listener for the port described by conf.
func NewListener(conf *serial.Config) *Listener {
	return &Listener{
		Config: conf,
		open: func(c *serial.Config) (io.ReadWriteCloser, error) {
			p, err := serial.OpenPort(c)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		closed: make(chan struct{}),
	}
}

// Accept opens the port once the previous session closed it.
func (l *Listener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	l.lock.Lock()
	active := l.active
	l.lock.Unlock()
	if active != nil {
		select {
		case <-active.Done():
		case <-l.closed:
			return nil, ErrClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case <-l.closed:
		return nil, ErrClosed
	default:
	}
	rw, err := l.open(l.Config)
	if err != nil {
		return nil, err
	}
	p := newPort(l.Config.Name, rw)
	l.lock.Lock()
	l.active = p
	l.lock.Unlock()
	return p, nil
}

// Close closes the active port, if any.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		l.lock.Lock()
		if l.active != nil {
			err = l.active.Close()
		}
		l.lock.Unlock()
	})
	return err
}
