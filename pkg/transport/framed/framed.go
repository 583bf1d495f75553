// Package framed implements the transport contract with an explicit
// message-framing protocol directly on the socket: one send is one whole
// message on the wire, one receive is one whole message back.
package framed

import (
	"context"
	"io"
	"net"

	"github.com/rs/zerolog/log"
	"github.com/vsockio/virgo/pkg/packet"
	"github.com/vsockio/virgo/pkg/stream"
	"github.com/vsockio/virgo/pkg/transport"
)

type Session struct {
	conn  net.Conn
	rwc   io.ReadWriteCloser
	codec *packet.Codec
	opts  *transport.Options
}

func New(cbs ...transport.Option) *Session {
	return &Session{opts: transport.NewOptions(cbs...)}
}

func (sess *Session) init(conn net.Conn) {
	sess.conn = conn
	if sess.opts.Compress {
		sess.rwc = stream.New(conn, stream.WithCompress())
	} else {
		sess.rwc = conn
	}
	sess.codec = packet.NewCodec(sess.rwc, sess.opts.FrameSize, sess.opts.Acknowledge)
}

func (sess *Session) Connect(ctx context.Context, cid, port uint32) (err error) {
	var (
		conn net.Conn
	)
	if conn, err = sess.opts.Dialer(ctx, cid, port); err != nil {
		return
	}
	sess.init(conn)
	log.Debug().Uint32("cid", cid).Uint32("port", port).Msg("framed transport connected")
	return
}

func (sess *Session) AcceptFrom(conn net.Conn) (err error) {
	sess.init(conn)
	log.Debug().Stringer("remote", addrOf(conn)).Msg("framed transport accepted")
	return
}

func (sess *Session) Send(p []byte) (n int, err error) {
	if !sess.IsConnected() {
		return 0, transport.ErrNotConnected
	}
	if n, err = sess.codec.WriteMessage(p); err != nil {
		err = transport.TransportError(err, "framed send")
	}
	return
}

func (sess *Session) Receive() (p []byte, err error) {
	if !sess.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	if p, err = sess.codec.ReadMessage(); err != nil {
		err = transport.TransportError(err, "framed receive")
	}
	return
}

func (sess *Session) IsConnected() bool {
	return sess.conn != nil && sess.codec != nil
}

func (sess *Session) Disconnect() (err error) {
	if !sess.IsConnected() {
		return transport.ErrNotConnected
	}
	sess.codec = nil
	if err = sess.rwc.Close(); err != nil {
		err = transport.ConnectionError(err, "framed shutdown")
	}
	sess.conn = nil
	sess.rwc = nil
	return
}

func addrOf(conn net.Conn) net.Addr {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr
	}
	return &net.UnixAddr{Name: "unknown", Net: "unknown"}
}
