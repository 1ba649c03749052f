package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Meta is announced retained on the meta topic of a console while online.
type Meta struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Version     string `json:"version,omitempty"`
}

// Listener is the console side: it announces Meta and hands out one Bridge
// at a time.
type Listener struct {
	Queue *Queue
	Meta  Meta

	metaJSON  []byte
	connected bool
	active    *Bridge
	lock      sync.Mutex
	closed    chan struct{}
	closeOnce sync.Once
}

// NewListener creates a Listener for the console described by meta.
func NewListener(brokerURL string, meta Meta) (*Listener, error) {
	if meta.ID == "" {
		return nil, errors.New("console id required")
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+metaTopic(meta.ID), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("uartcon:" + meta.ID)
	}
	l := newListener(NewQueue(opts, topicPrefix), meta)
	return l, nil
}

func newListener(q *Queue, meta Meta) *Listener {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}
	l := &Listener{
		Queue:    q,
		Meta:     meta,
		metaJSON: metaJSON,
		closed:   make(chan struct{}),
	}
	q.OnConnect = func(*Queue) { l.announce() }
	return l
}

func (l *Listener) announce() {
	glog.V(2).Infof("mqtt: announce %s", l.Meta.ID)
	l.Queue.PubWith(metaTopic(l.Meta.ID), l.metaJSON, 1, true)
}

// Accept connects on first use and returns a Bridge once the previous one
// is closed.
func (l *Listener) Accept(ctx context.Context) (*Bridge, error) {
	l.lock.Lock()
	connected, active := l.connected, l.active
	l.lock.Unlock()
	if !connected {
		if err := l.Queue.ConnectAndWait(); err != nil {
			return nil, err
		}
		l.lock.Lock()
		l.connected = true
		l.lock.Unlock()
	}
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
	b := NewBridge(l.Queue, l.Meta.ID, RoleConsole)
	l.lock.Lock()
	l.active = b
	l.lock.Unlock()
	return b, nil
}

// Close withdraws the announcement and disconnects.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		l.lock.Lock()
		active, connected := l.active, l.connected
		l.lock.Unlock()
		if active != nil {
			err = active.Close()
		}
		if connected {
			token := l.Queue.PubWith(metaTopic(l.Meta.ID), nil, 1, true)
			token.WaitTimeout(time.Second)
			l.Queue.Close()
		}
	})
	return err
}

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Discover lists consoles announced under the broker URL prefix.
func Discover(ctx context.Context, brokerURL string, timeout time.Duration) ([]Meta, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if err = q.ConnectAndWait(); err != nil {
		return nil, err
	}
	defer q.Close()
	return discover(ctx, q, timeout)
}

func discover(ctx context.Context, q *Queue, timeout time.Duration) ([]Meta, error) {
	found := make(map[string]Meta)
	var lock sync.Mutex
	sub := q.Sub(metaTopic("+"), Handler(func(topic string, payload []byte) {
		if len(payload) == 0 {
			return
		}
		var meta Meta
		if err := json.Unmarshal(payload, &meta); err != nil {
			glog.Warningf("mqtt: bad meta on %q: %v", topic, err)
			return
		}
		lock.Lock()
		found[meta.ID] = meta
		lock.Unlock()
	}))
	defer sub.Close()

	if timeout <= 0 {
		timeout = DefaultDiscoverTimeout
	}
	var err error
	select {
	case <-time.After(timeout):
	case <-ctx.Done():
		err = ctx.Err()
	}

	lock.Lock()
	defer lock.Unlock()
	res := make([]Meta, 0, len(found))
	for _, meta := range found {
		res = append(res, meta)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, err
}
