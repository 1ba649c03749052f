// Package transport selects the UART provider from a URL.
//
//	serial:///dev/ttyUSB0?baud=115200   a local serial port
//	/dev/ttyUSB0                        same as above
//	mqtt://broker:1883/uartcon/?id=dev1 console topics on an MQTT broker
//	ws://0.0.0.0:8080/console           a websocket endpoint
package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/robotalks/uartcon/pkg/transport/mqtt"
	"github.com/robotalks/uartcon/pkg/transport/uart"
	"github.com/robotalks/uartcon/pkg/transport/websocket"
)

// Listener is the device side of a transport. Accept returns the next UART
// once the previous one is closed.
type Listener interface {
	Accept(ctx context.Context) (io.ReadWriteCloser, error)
	Close() error
}

// Options carries what a listener announces about the console.
type Options struct {
	ID          string
	Description string
	Version     string
}

// UnsupportedSchemeError is returned for an unknown URL scheme.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported transport scheme %q", e.Scheme)
}

// Listen creates the device side Listener for rawURL.
func Listen(rawURL string, opts Options) (Listener, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "", "serial":
		conf, err := uart.ConfigFromURL(u)
		if err != nil {
			return nil, err
		}
		return uart.NewListener(conf), nil
	case "mqtt", "tcp", "ssl", "ws+mqtt":
		id := u.Query().Get("id")
		if id == "" {
			id = opts.ID
		}
		l, err := mqtt.NewListener(brokerURL(u), mqtt.Meta{
			ID:          id,
			Description: opts.Description,
			Version:     opts.Version,
		})
		if err != nil {
			return nil, err
		}
		return &mqttListener{l}, nil
	case "ws":
		l, err := websocket.Listen(u.Host, u.Path)
		if err != nil {
			return nil, err
		}
		return &wsListener{l}, nil
	}
	return nil, &UnsupportedSchemeError{Scheme: u.Scheme}
}

// Dial opens the host side of the console at rawURL.
func Dial(rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "", "serial":
		conf, err := uart.ConfigFromURL(u)
		if err != nil {
			return nil, err
		}
		p, err := uart.Open(conf)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "mqtt", "tcp", "ssl", "ws+mqtt":
		b, err := mqtt.Dial(brokerURL(u), u.Query().Get("id"))
		if err != nil {
			return nil, err
		}
		return b, nil
	case "ws", "wss":
		c, err := websocket.Dial(rawURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, &UnsupportedSchemeError{Scheme: u.Scheme}
}

// brokerURL maps the transport URL to the broker URL paho understands.
func brokerURL(u *url.URL) string {
	b := *u
	if b.Scheme == "ws+mqtt" {
		b.Scheme = "ws"
	}
	q := b.Query()
	q.Del("id")
	b.RawQuery = q.Encode()
	return b.String()
}

type mqttListener struct {
	*mqtt.Listener
}

func (l *mqttListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	b, err := l.Listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return b, nil
}

type wsListener struct {
	*websocket.Listener
}

func (l *wsListener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	c, err := l.Listener.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}
