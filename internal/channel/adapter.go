package channel

import (
	"context"
	"errors"
	"sync/atomic"
)

var ErrStopNotSupported = errors.New("channel connection stop not supported")

// InboundHandler receives messages from a transport.
type InboundHandler func(ctx context.Context, msg InboundMessage) error

// Sender delivers outbound messages and chat actions.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
	Typing(ctx context.Context, chatID int64) error
}

// Receiver starts receiving messages and hands them to handler until the
// returned connection is stopped.
type Receiver interface {
	Connect(ctx context.Context, handler InboundHandler) (Connection, error)
}

// Adapter is a transport able to both send and receive.
type Adapter interface {
	Sender
	Receiver
	Name() string
}

type Connection interface {
	Name() string
	Stop(ctx context.Context) error
	Running() bool
}

type BaseConnection struct {
	name    string
	stop    func(ctx context.Context) error
	running atomic.Bool
}

func NewConnection(name string, stop func(ctx context.Context) error) *BaseConnection {
	conn := &BaseConnection{
		name: name,
		stop: stop,
	}
	conn.running.Store(true)
	return conn
}

func (c *BaseConnection) Name() string {
	return c.name
}

func (c *BaseConnection) Stop(ctx context.Context) error {
	if c.stop == nil {
		return ErrStopNotSupported
	}
	err := c.stop(ctx)
	if err == nil {
		c.running.Store(false)
	}
	return err
}

func (c *BaseConnection) Running() bool {
	return c.running.Load()
}
