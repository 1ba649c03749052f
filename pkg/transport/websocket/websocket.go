// Package websocket serves a console over a websocket stream.
package websocket

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// ErrClosed indicates the listener is closed.
var ErrClosed = errors.New("websocket listener closed")

// MsgBusy is sent to a peer arriving while a session is active.
const MsgBusy = "console busy\r\n"

// DefaultPath is the handler path when the URL has none.
const DefaultPath = "/console"

// Conn is one websocket session.
type Conn struct {
	*websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newConn(ws *websocket.Conn) *Conn {
	ws.PayloadType = websocket.BinaryFrame
	return &Conn{Conn: ws, done: make(chan struct{})}
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
		close(c.done)
	})
	return c.closeErr
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Listener accepts websocket peers, one session at a time.
type Listener struct {
	listener net.Listener
	server   *http.Server
	connCh   chan *Conn

	lock      sync.Mutex
	active    *Conn
	closed    chan struct{}
	closeOnce sync.Once
}

// Listen serves websocket sessions on addr at path.
func Listen(addr, path string) (*Listener, error) {
	if path == "" {
		path = DefaultPath
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{
		listener: ln,
		connCh:   make(chan *Conn),
		closed:   make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Server{Handler: l.handle})
	l.server = &http.Server{Handler: mux}
	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			glog.Errorf("websocket: serve %s: %v", ln.Addr(), err)
		}
	}()
	glog.Infof("websocket: listening on %s%s", ln.Addr(), path)
	return l, nil
}

func (l *Listener) handle(ws *websocket.Conn) {
	conn := newConn(ws)
	l.lock.Lock()
	busy := l.active != nil
	if !busy {
		l.active = conn
	}
	l.lock.Unlock()
	if busy {
		glog.V(2).Infof("websocket: %s rejected, busy", ws.Request().RemoteAddr)
		io.WriteString(ws, MsgBusy)
		return
	}
	defer l.release(conn)

	select {
	case l.connCh <- conn:
		glog.V(2).Infof("websocket: %s connected", ws.Request().RemoteAddr)
	case <-l.closed:
		return
	case <-ws.Request().Context().Done():
		return
	}
	select {
	case <-conn.Done():
	case <-l.closed:
	}
}

func (l *Listener) release(conn *Conn) {
	conn.Close()
	l.lock.Lock()
	if l.active == conn {
		l.active = nil
	}
	l.lock.Unlock()
}

// Addr returns the listening address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Accept waits for the next peer.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	select {
	case conn := <-l.connCh:
		return conn, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the server and ends the active session.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		err = l.server.Close()
	})
	return err
}

// Dial connects to a websocket console.
func Dial(url string) (*Conn, error) {
	ws, err := websocket.Dial(url, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return newConn(ws), nil
}
