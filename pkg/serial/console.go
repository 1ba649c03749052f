// Package serial implements the serial console: a UART decoupled from the
// console task by a receive ring, a transmit ring and a binary "data
// available" semaphore.
package serial

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/golang/glog"

	fx "github.com/robotalks/uartcon/pkg/framework"
	"github.com/robotalks/uartcon/pkg/ring"
)

// Default buffer sizes in bytes.
const (
	DefaultRxSize = 512
	DefaultTxSize = 512
)

// MaxLogMessage caps the length of a single Logf message.
const MaxLogMessage = 512

const txChunk = 64

// Options configures a Console.
type Options struct {
	RxSize int
	TxSize int
	Level  LogLevel
}

// DefaultOptions returns the options used by New when fields are zero.
func DefaultOptions() Options {
	return Options{RxSize: DefaultRxSize, TxSize: DefaultTxSize, Level: LogInfo}
}

// Stats reports buffer usage.
type Stats struct {
	RxBuffered int
	TxBuffered int
	RxDropped  uint64
	TxDropped  uint64
}

// Console is a serial console over a UART.
type Console struct {
	port io.ReadWriteCloser

	rx     *ring.Buffer
	tx     *ring.Buffer
	rxLock sync.Mutex // consumers of rx
	txLock sync.Mutex // producers of tx

	rxSem   chan struct{}
	txKick  chan struct{}
	writing atomic.Bool
	level   atomic.Int32

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New initializes a Console on port.
func New(port io.ReadWriteCloser, opts Options) *Console {
	if opts.RxSize <= 0 {
		opts.RxSize = DefaultRxSize
	}
	if opts.TxSize <= 0 {
		opts.TxSize = DefaultTxSize
	}
	c := &Console{
		port:   port,
		rx:     ring.New(opts.RxSize),
		tx:     ring.New(opts.TxSize),
		rxSem:  make(chan struct{}, 1),
		txKick: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	if !opts.Level.IsValid() {
		opts.Level = LogInfo
	}
	c.level.Store(int32(opts.Level))
	return c
}

// Name implements framework.Named.
func (c *Console) Name() string {
	return "serial"
}

// Run pumps bytes between the UART and the rings until ctx is done or the
// UART fails. The UART is closed when Run returns.
func (c *Console) Run(ctx context.Context) error {
	txCtx, stopTx := context.WithCancel(ctx)
	txDone := make(chan struct{})
	go func() {
		defer close(txDone)
		c.transmit(txCtx)
	}()
	err := fx.RunWithContextCloser(ctx, c, c.receive)
	stopTx()
	<-txDone
	return err
}

func (c *Console) receive() error {
	buf := make([]byte, 1)
	for {
		n, err := c.port.Read(buf)
		if err != nil {
			if c.isClosed() {
				return ErrClosed
			}
			return err
		}
		if n == 0 {
			continue
		}
		if !c.rx.Put(buf[0]) {
			glog.V(2).Infof("serial: rx overflow, dropped %d", c.rx.Dropped())
		}
		c.give()
	}
}

func (c *Console) give() {
	select {
	case c.rxSem <- struct{}{}:
	default:
	}
}

func (c *Console) transmit(ctx context.Context) {
	buf := make([]byte, txChunk)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.txKick:
		}
		for {
			c.writing.Store(true)
			n := c.tx.Read(buf)
			if n == 0 {
				c.writing.Store(false)
				break
			}
			if _, err := c.port.Write(buf[:n]); err != nil {
				if !c.isClosed() {
					glog.Warningf("serial: write error: %v", err)
				}
				c.tx.Reset()
				c.writing.Store(false)
				break
			}
		}
	}
}

func (c *Console) kick() {
	select {
	case c.txKick <- struct{}{}:
	default:
	}
}

// Write implements io.Writer. Bytes not fitting into the transmit ring are
// silently dropped.
func (c *Console) Write(p []byte) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	c.txLock.Lock()
	for _, b := range p {
		c.tx.Put(b)
	}
	c.txLock.Unlock()
	c.kick()
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (c *Console) WriteString(s string) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	c.txLock.Lock()
	for i := 0; i < len(s); i++ {
		c.tx.Put(s[i])
	}
	c.txLock.Unlock()
	c.kick()
	return len(s), nil
}

// ReadCharacter reads a received byte without blocking.
func (c *Console) ReadCharacter() (byte, bool) {
	c.rxLock.Lock()
	defer c.rxLock.Unlock()
	return c.rx.Get()
}

// ReadChar blocks until a byte is received, ctx is done or the console is
// closed. Bytes already received are returned before ErrClosed.
func (c *Console) ReadChar(ctx context.Context) (byte, error) {
	for {
		if b, ok := c.ReadCharacter(); ok {
			return b, nil
		}
		select {
		case <-c.rxSem:
		case <-c.closed:
			if b, ok := c.ReadCharacter(); ok {
				return b, nil
			}
			return 0, ErrClosed
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

// Flush waits until everything queued for transmission has been written to
// the UART.
func (c *Console) Flush(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		if c.tx.Empty() && !c.writing.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return ErrClosed
		case <-ticker.C:
		}
	}
}

// Level returns the current debug log level.
func (c *Console) Level() LogLevel {
	return LogLevel(c.level.Load())
}

// SetLogLevel sets the debug log level.
func (c *Console) SetLogLevel(level LogLevel) error {
	if !level.IsValid() {
		return &InvalidLogLevelError{Name: level.String()}
	}
	c.level.Store(int32(level))
	return nil
}

// Logf writes a debug message if level is enabled.
func (c *Console) Logf(level LogLevel, format string, args ...interface{}) {
	if level < c.Level() || level >= LogOff {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) > MaxLogMessage-1 {
		cut := MaxLogMessage - 1
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	c.WriteString(msg)
}

// Stats returns buffer statistics.
func (c *Console) Stats() Stats {
	return Stats{
		RxBuffered: c.rx.Len(),
		TxBuffered: c.tx.Len(),
		RxDropped:  c.rx.Dropped(),
		TxDropped:  c.tx.Dropped(),
	}
}

// Close deinitializes the console and closes the UART.
func (c *Console) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.port.Close()
	})
	return c.closeErr
}

// Done is closed once the console is closed.
func (c *Console) Done() <-chan struct{} {
	return c.closed
}

func (c *Console) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}
