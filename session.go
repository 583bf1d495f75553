package virgo

import (
	"fmt"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"github.com/vsockio/virgo/pkg/transport"
)

type readState uint8

const (
	readIdle readState = iota
	readBusy
)

// UnreadDataError reports a disconnect attempted while a partially
// consumed message is still buffered. The caller must drain the
// remaining bytes (or read them away explicitly) before tearing down.
type UnreadDataError struct {
	Remaining int
}

func (e *UnreadDataError) Error() string {
	return fmt.Sprintf("cannot disconnect: %d bytes of unread data remaining", e.Remaining)
}

// Session is the per-connection facade core shared by Client and Server.
// It owns one transport exclusively and reconciles the transport's
// one-call-one-message delivery with byte-buffer read semantics: a
// delivered message that does not fit the caller's buffer parks its
// remainder in an overflow buffer and is drained across subsequent
// reads.
//
// A Session is owned by a single goroutine; concurrent calls must be
// serialized by the caller.
type Session struct {
	id        string
	tr        transport.Transport
	connected bool
	state     readState
	total     int
	consumed  int
	overflow  []byte
}

func newSession(tr transport.Transport) *Session {
	return &Session{id: xid.New().String(), tr: tr}
}

func (sess *Session) ID() string {
	return sess.id
}

func (sess *Session) IsConnected() bool {
	return sess.connected && sess.tr != nil && sess.tr.IsConnected()
}

// SendMessage transmits p as one whole message, bypassing the
// read-buffering machinery.
func (sess *Session) SendMessage(p []byte) (n int, err error) {
	if !sess.connected {
		return 0, transport.ErrNotConnected
	}
	return sess.tr.Send(p)
}

// ReceiveMessage blocks until the transport delivers one message (framed
// protocol) or one chunk (multiplexed protocols) and returns it whole.
func (sess *Session) ReceiveMessage() ([]byte, error) {
	if !sess.connected {
		return nil, transport.ErrNotConnected
	}
	return sess.tr.Receive()
}

// Write transmits p as one message; no accumulation across calls.
func (sess *Session) Write(p []byte) (n int, err error) {
	if !sess.connected {
		return 0, transport.ErrNotConnected
	}
	return sess.tr.Send(p)
}

// Read fills p from the current message, fetching a new one from the
// transport when idle. A message larger than p is delivered across
// several reads; HasPendingData reports whether a remainder is still
// buffered.
func (sess *Session) Read(p []byte) (n int, err error) {
	if !sess.connected {
		return 0, transport.ErrNotConnected
	}
	if sess.state == readIdle {
		return sess.readNewMessage(p)
	}
	if len(sess.overflow) == 0 {
		// Reading with an empty overflow buffer violates the state
		// invariant; recover by resetting instead of spinning.
		sess.resetReadState()
		return 0, nil
	}
	n = copy(p, sess.overflow)
	sess.overflow = sess.overflow[n:]
	sess.consumed += n
	if sess.consumed == sess.total {
		sess.resetReadState()
	}
	return
}

func (sess *Session) readNewMessage(p []byte) (n int, err error) {
	var (
		data []byte
	)
	if data, err = sess.tr.Receive(); err != nil {
		return
	}
	n = copy(p, data)
	if n == len(data) {
		return
	}
	sess.overflow = append(sess.overflow[:0], data[n:]...)
	sess.state = readBusy
	sess.total = len(data)
	sess.consumed = n
	return
}

func (sess *Session) resetReadState() {
	sess.state = readIdle
	sess.total = 0
	sess.consumed = 0
	sess.overflow = nil
}

// HasPendingData reports whether part of a delivered message has not yet
// been read out. Callers driving a manual read loop use it to detect the
// end of a message.
func (sess *Session) HasPendingData() bool {
	return sess.state != readIdle || len(sess.overflow) > 0
}

// Disconnect releases the transport. It is refused while unread message
// bytes remain buffered; on transport failure the facade still drops to
// disconnected and the error is surfaced.
func (sess *Session) Disconnect() (err error) {
	if !sess.connected {
		return transport.ErrNotConnected
	}
	if sess.HasPendingData() {
		log.Warn().
			Str("session", sess.id).
			Int("remaining", len(sess.overflow)).
			Msg("disconnect refused: unread data in buffer")
		return &UnreadDataError{Remaining: len(sess.overflow)}
	}
	err = sess.tr.Disconnect()
	sess.connected = false
	if err != nil {
		log.Warn().Str("session", sess.id).Err(err).Msg("disconnect reported failure")
	} else {
		log.Debug().Str("session", sess.id).Msg("session disconnected")
	}
	return
}
