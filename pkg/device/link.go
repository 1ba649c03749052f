package device

import (
	"errors"
	"io"
	"sync"
)

// ErrDetached is returned by a view after it is closed.
var ErrDetached = errors.New("uart detached")

// link keeps reading an accepted UART across device resets. Each boot
// attaches a view; closing the view leaves the UART open.
type link struct {
	rwc    io.ReadWriteCloser
	dataCh chan []byte
	done   chan struct{}
	err    error

	lock    sync.Mutex
	pending []byte

	closeOnce sync.Once
	stopped   chan struct{}
}

func newLink(rwc io.ReadWriteCloser) *link {
	l := &link{
		rwc:     rwc,
		dataCh:  make(chan []byte),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.readLoop()
	return l
}

func (l *link) readLoop() {
	defer close(l.done)
	buf := make([]byte, 64)
	for {
		n, err := l.rwc.Read(buf)
		if n > 0 {
			select {
			case l.dataCh <- append([]byte(nil), buf[:n]...):
			case <-l.stopped:
				l.err = io.EOF
				return
			}
		}
		if err != nil {
			l.err = err
			return
		}
	}
}

func (l *link) attach() *view {
	return &view{link: l, closed: make(chan struct{})}
}

// Close closes the UART and waits for the read loop.
func (l *link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopped)
		err = l.rwc.Close()
		<-l.done
	})
	return err
}

// view is the UART as seen by one boot of the device.
type view struct {
	link      *link
	closed    chan struct{}
	closeOnce sync.Once
}

func (v *view) Read(p []byte) (int, error) {
	l := v.link
	l.lock.Lock()
	defer l.lock.Unlock()
	if len(l.pending) == 0 {
		select {
		case data := <-l.dataCh:
			l.pending = data
		case <-l.done:
			return 0, l.err
		case <-v.closed:
			return 0, ErrDetached
		}
	}
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

func (v *view) Write(p []byte) (int, error) {
	select {
	case <-v.closed:
		return 0, ErrDetached
	default:
	}
	return v.link.rwc.Write(p)
}

func (v *view) Close() error {
	v.closeOnce.Do(func() { close(v.closed) })
	return nil
}
