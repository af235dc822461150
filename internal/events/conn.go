package events

import (
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

var ErrDrainTimeout = errors.New("timed out waiting for NATS connection to close")

type drainer interface {
	Drain() error
}

// Connect dials NATS. The returned channel is closed once the connection has
// fully closed, which after Drain means every in-flight handler has replied.
func Connect(url, name string) (*nats.Conn, <-chan struct{}, error) {
	closed := make(chan struct{})
	var once sync.Once

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.ClosedHandler(func(*nats.Conn) {
			once.Do(func() { close(closed) })
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	return nc, closed, nil
}

// Drain stops new deliveries, lets in-flight ones finish and flush their
// replies, then waits for the connection to close.
func Drain(conn drainer, closed <-chan struct{}, timeout time.Duration) error {
	if err := conn.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return err
	}

	select {
	case <-closed:
		return nil
	case <-time.After(timeout):
		return ErrDrainTimeout
	}
}
