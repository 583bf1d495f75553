package transport

import (
	"context"
	"net"
)

const (
	ProtoYamux  = "yamux"
	ProtoSmux   = "smux"
	ProtoFramed = "framed"

	DefaultFrameSize = 1024
)

type (
	// Dialer opens the raw socket a session runs over. The default dials
	// vsock; tests substitute in-memory pipes.
	Dialer func(ctx context.Context, cid, port uint32) (net.Conn, error)

	// Transport is the capability contract every session protocol
	// implements. One call to Send transmits one whole message or fails;
	// one call to Receive blocks until it can return one message (framed
	// protocol) or one chunk of the peer's byte stream (multiplexed
	// protocols). Disconnect is not idempotent: a second call is a caller
	// error and reports not-connected.
	Transport interface {
		Connect(ctx context.Context, cid, port uint32) error
		AcceptFrom(conn net.Conn) error
		Send(p []byte) (int, error)
		Receive() ([]byte, error)
		IsConnected() bool
		Disconnect() error
	}

	Option func(o *Options)

	Options struct {
		FrameSize   uint32
		Acknowledge bool
		Compress    bool
		Dialer      Dialer
	}
)

func NewOptions(cbs ...Option) *Options {
	opts := &Options{
		FrameSize: DefaultFrameSize,
		Dialer:    DialContext,
	}
	for _, cb := range cbs {
		cb(opts)
	}
	return opts
}

func WithFrameSize(n uint32) Option {
	return func(o *Options) {
		if n > 0 {
			o.FrameSize = n
		}
	}
}

// WithAcknowledge makes framed sends wait for the peer's acknowledgment
// before reporting success. Multiplexed protocols ignore it.
func WithAcknowledge(on bool) Option {
	return func(o *Options) {
		o.Acknowledge = on
	}
}

func WithCompress() Option {
	return func(o *Options) {
		o.Compress = true
	}
}

func WithDialer(d Dialer) Option {
	return func(o *Options) {
		if d != nil {
			o.Dialer = d
		}
	}
}
