// Package smux implements the transport contract on an smux
// stream-multiplexing session. Semantics match the yamux backend: one
// logical stream per session, background driver owning the
// inbound-stream source, bounded chunk reads on receive.
package smux

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/vsockio/virgo/pkg/transport"
	"github.com/xtaci/smux"
)

const (
	driverStopTimeout = time.Second * 5
)

type Session struct {
	sess      *smux.Session
	stream    *smux.Stream
	driver    *transport.Driver
	opts      *transport.Options
	initiator bool
}

func New(cbs ...transport.Option) *Session {
	return &Session{opts: transport.NewOptions(cbs...)}
}

func (sess *Session) muxConfig() *smux.Config {
	cfg := smux.DefaultConfig()
	if n := int(sess.opts.FrameSize); n > 0 && n <= 65535 {
		cfg.MaxFrameSize = n
	}
	return cfg
}

func (sess *Session) Connect(ctx context.Context, cid, port uint32) (err error) {
	var (
		conn net.Conn
	)
	if conn, err = sess.opts.Dialer(ctx, cid, port); err != nil {
		return
	}
	if sess.sess, err = smux.Client(conn, sess.muxConfig()); err != nil {
		_ = conn.Close()
		return transport.ConnectionError(err, "create smux session")
	}
	sess.initiator = true
	if sess.stream, err = sess.sess.OpenStream(); err != nil {
		_ = sess.sess.Close()
		sess.sess = nil
		return transport.TransportError(err, "open smux stream")
	}
	sess.startDriver()
	log.Debug().Uint32("cid", cid).Uint32("port", port).Msg("smux transport connected")
	return
}

func (sess *Session) AcceptFrom(conn net.Conn) (err error) {
	if sess.sess, err = smux.Server(conn, sess.muxConfig()); err != nil {
		_ = conn.Close()
		return transport.ConnectionError(err, "create smux session")
	}
	if sess.stream, err = sess.sess.AcceptStream(); err != nil {
		_ = sess.sess.Close()
		sess.sess = nil
		return transport.TransportError(err, "accept smux stream")
	}
	sess.startDriver()
	log.Debug().Msg("smux transport accepted")
	return
}

func (sess *Session) startDriver() {
	conn := sess.sess
	sess.driver = transport.StartDriver(transport.ProtoSmux, func() (io.Closer, error) {
		return conn.AcceptStream()
	})
}

func (sess *Session) Send(p []byte) (n int, err error) {
	if !sess.IsConnected() {
		return 0, transport.ErrNotConnected
	}
	if n, err = sess.stream.Write(p); err != nil {
		err = transport.TransportError(err, "smux send")
	}
	return
}

func (sess *Session) Receive() (p []byte, err error) {
	if !sess.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	var (
		n int
	)
	buf := make([]byte, sess.opts.FrameSize)
	for n == 0 && err == nil {
		n, err = sess.stream.Read(buf)
	}
	if err != nil {
		return nil, transport.TransportError(err, "smux receive")
	}
	return buf[:n], nil
}

func (sess *Session) IsConnected() bool {
	return sess.stream != nil && sess.sess != nil && !sess.sess.IsClosed()
}

func (sess *Session) Disconnect() (err error) {
	if sess.stream == nil || sess.sess == nil {
		return transport.ErrNotConnected
	}
	if cerr := sess.stream.Close(); cerr != nil {
		err = transport.ConnectionError(cerr, "close smux stream")
	}
	if cerr := sess.sess.Close(); cerr != nil && err == nil {
		err = transport.ConnectionError(cerr, "close smux session")
	}
	if derr := sess.driver.Stop(driverStopTimeout); derr != nil {
		log.Warn().Err(derr).Msg("smux driver abandoned")
	}
	sess.stream = nil
	sess.sess = nil
	sess.driver = nil
	return
}
