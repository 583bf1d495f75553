// Package virgo is a byte-stream transport library for vsock. It exposes
// a uniform connect/send/receive/disconnect surface over interchangeable
// session protocols: a yamux (or smux) stream-multiplexing session
// layered on one persistent socket, or an explicit message-framing
// session directly on the socket. Facades additionally offer classic
// streaming reads over whole-message delivery, so a caller can drain one
// message through arbitrarily sized buffers.
package virgo

import (
	"github.com/vsockio/virgo/pkg/transport"
	"github.com/vsockio/virgo/pkg/transport/framed"
	"github.com/vsockio/virgo/pkg/transport/smux"
	"github.com/vsockio/virgo/pkg/transport/yamux"
)

// newTransport selects the concrete session protocol. Config validation
// rejects unknown names up front; reaching here with one is a programmer
// error.
func newTransport(proto string, cbs ...transport.Option) transport.Transport {
	switch proto {
	case transport.ProtoYamux, "":
		return yamux.New(cbs...)
	case transport.ProtoSmux:
		return smux.New(cbs...)
	case transport.ProtoFramed:
		return framed.New(cbs...)
	}
	panic("virgo: no transport protocol selected: " + proto)
}
