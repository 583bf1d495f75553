// Package yamux implements the transport contract on a yamux
// stream-multiplexing session. Each session opens exactly one logical
// stream and keeps it for its whole lifetime; a background driver owns
// the connection's inbound-stream source so yamux housekeeping (window
// updates, pings, stream bookkeeping) keeps running while the data path
// touches only the stream.
package yamux

import (
	"context"
	"io"
	stdlog "log"
	"net"
	"time"

	"github.com/hashicorp/yamux"
	"github.com/rs/zerolog/log"
	"github.com/vsockio/virgo/pkg/transport"
)

const (
	driverStopTimeout = time.Second * 5

	maxStreamWindowSize = 512 * 1024
)

type Session struct {
	sess      *yamux.Session
	stream    *yamux.Stream
	driver    *transport.Driver
	opts      *transport.Options
	initiator bool
}

func New(cbs ...transport.Option) *Session {
	return &Session{opts: transport.NewOptions(cbs...)}
}

func muxConfig() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.MaxStreamWindowSize = maxStreamWindowSize
	cfg.Logger = stdlog.New(log.Logger, "", 0)
	cfg.LogOutput = nil
	return cfg
}

// Connect dials the peer, brings up the yamux session in client mode and
// opens the session's one outbound stream before handing the connection
// to the driver.
func (sess *Session) Connect(ctx context.Context, cid, port uint32) (err error) {
	var (
		conn net.Conn
	)
	if conn, err = sess.opts.Dialer(ctx, cid, port); err != nil {
		return
	}
	if sess.sess, err = yamux.Client(conn, muxConfig()); err != nil {
		_ = conn.Close()
		return transport.ConnectionError(err, "create yamux session")
	}
	sess.initiator = true
	if sess.stream, err = sess.sess.OpenStream(); err != nil {
		_ = sess.sess.Close()
		sess.sess = nil
		return transport.TransportError(err, "open yamux stream")
	}
	sess.startDriver()
	log.Debug().Uint32("cid", cid).Uint32("port", port).Msg("yamux transport connected")
	return
}

// AcceptFrom brings up the yamux session in server mode over an
// already-accepted socket and waits for the peer's one inbound stream.
func (sess *Session) AcceptFrom(conn net.Conn) (err error) {
	if sess.sess, err = yamux.Server(conn, muxConfig()); err != nil {
		_ = conn.Close()
		return transport.ConnectionError(err, "create yamux session")
	}
	if sess.stream, err = sess.sess.AcceptStream(); err != nil {
		_ = sess.sess.Close()
		sess.sess = nil
		return transport.TransportError(err, "accept yamux stream")
	}
	sess.startDriver()
	log.Debug().Msg("yamux transport accepted")
	return
}

// startDriver hands the inbound-stream source over to the driver. From
// here on the data path uses only sess.stream; the session handle is
// retained solely for teardown.
func (sess *Session) startDriver() {
	conn := sess.sess
	sess.driver = transport.StartDriver(transport.ProtoYamux, func() (io.Closer, error) {
		return conn.AcceptStream()
	})
}

func (sess *Session) Send(p []byte) (n int, err error) {
	if !sess.IsConnected() {
		return 0, transport.ErrNotConnected
	}
	if n, err = sess.stream.Write(p); err != nil {
		err = transport.TransportError(err, "yamux send")
	}
	return
}

// Receive returns whatever bytes are currently available on the stream,
// bounded by the frame-size hint. One application message may span
// several receives; the facade layer reassembles.
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
		return nil, transport.TransportError(err, "yamux receive")
	}
	return buf[:n], nil
}

func (sess *Session) IsConnected() bool {
	return sess.stream != nil && sess.sess != nil && !sess.sess.IsClosed()
}

// Disconnect closes the stream (the peer observes EOF), shuts the yamux
// session down to unblock the driver, then waits a bounded time for the
// driver to exit. A driver that misses the deadline is abandoned;
// teardown still completes.
func (sess *Session) Disconnect() (err error) {
	if sess.stream == nil || sess.sess == nil {
		return transport.ErrNotConnected
	}
	if cerr := sess.stream.Close(); cerr != nil {
		err = transport.ConnectionError(cerr, "close yamux stream")
	}
	if cerr := sess.sess.Close(); cerr != nil && err == nil {
		err = transport.ConnectionError(cerr, "close yamux session")
	}
	if derr := sess.driver.Stop(driverStopTimeout); derr != nil {
		log.Warn().Err(derr).Msg("yamux driver abandoned")
	}
	sess.stream = nil
	sess.sess = nil
	sess.driver = nil
	return
}
