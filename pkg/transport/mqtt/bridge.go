package mqtt

import (
	"errors"
	"io"
	"sync"
)

// ErrClosed indicates the bridge or listener is closed.
var ErrClosed = errors.New("mqtt bridge closed")

// Role selects which end of a console a Bridge is.
type Role int

// Bridge roles.
const (
	// RoleConsole reads the rx topic and writes the tx topic.
	RoleConsole Role = iota
	// RoleTerminal reads the tx topic and writes the rx topic.
	RoleTerminal
)

// Topics of a console relative to the topic prefix.
func rxTopic(id string) string   { return id + "/rx" }
func txTopic(id string) string   { return id + "/tx" }
func metaTopic(id string) string { return id + "/meta" }

const bridgeQueueLen = 16

// Bridge is a byte stream over a pair of topics.
type Bridge struct {
	ID string

	queue     *Queue
	ownsQueue bool
	pubTopic  string
	sub       *Subscription

	dataCh  chan []byte
	pending []byte

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewBridge subscribes to the console topics of id.
func NewBridge(q *Queue, id string, role Role) *Bridge {
	b := &Bridge{
		ID:     id,
		queue:  q,
		dataCh: make(chan []byte, bridgeQueueLen),
		closed: make(chan struct{}),
	}
	subTopic := rxTopic(id)
	b.pubTopic = txTopic(id)
	if role == RoleTerminal {
		subTopic, b.pubTopic = b.pubTopic, subTopic
	}
	b.sub = q.Sub(subTopic, b.receive)
	return b
}

func (b *Bridge) receive(_ string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	data := append([]byte(nil), payload...)
	select {
	case b.dataCh <- data:
	case <-b.closed:
	}
}

// Read implements io.Reader.
func (b *Bridge) Read(p []byte) (int, error) {
	if len(b.pending) == 0 {
		select {
		case data := <-b.dataCh:
			b.pending = data
		case <-b.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

// Write implements io.Writer. Each call is published as one message.
func (b *Bridge) Write(p []byte) (int, error) {
	select {
	case <-b.closed:
		return 0, ErrClosed
	default:
	}
	token := b.queue.Pub(b.pubTopic, append([]byte(nil), p...))
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.closeErr = b.sub.Close()
		if b.ownsQueue {
			b.queue.Close()
		}
	})
	return b.closeErr
}

// Done is closed when the bridge is closed.
func (b *Bridge) Done() <-chan struct{} {
	return b.closed
}

// Dial connects to the broker as the terminal of console id.
func Dial(brokerURL, id string) (*Bridge, error) {
	if id == "" {
		return nil, errors.New("console id required")
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	q := NewQueue(opts, topicPrefix)
	if err := q.ConnectAndWait(); err != nil {
		return nil, err
	}
	b := NewBridge(q, id, RoleTerminal)
	b.ownsQueue = true
	b.sub.Token.Wait()
	if err := b.sub.Token.Error(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}
