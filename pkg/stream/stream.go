// Package stream wraps a byte stream with an optional snappy-compressed
// block framing. Both peers must agree on wrapping the connection; blocks
// below the compression threshold travel verbatim.
package stream

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/golang/snappy"
)

const (
	Ver = 0xFB

	flagCompress = 0x80

	blockHeadLength   = 6
	minCompressLength = 512
)

type (
	Conn struct {
		opts      *Options
		rw        io.ReadWriter
		buf       bytes.Buffer
		closeFlag int32
	}

	Option func(o *Options)

	Options struct {
		Compress bool
	}
)

func (conn *Conn) tryRead() (err error) {
	var (
		n   int
		p   []byte
		dst []byte
	)
	head := make([]byte, blockHeadLength)
	if _, err = io.ReadFull(conn.rw, head); err != nil {
		return
	}
	if head[0] != Ver {
		return fmt.Errorf("invalid stream protocol version 0x%02X", head[0])
	}
	flag := head[1]
	src := make([]byte, binary.BigEndian.Uint32(head[2:]))
	if _, err = io.ReadFull(conn.rw, src); err != nil {
		return
	}
	if flag&flagCompress != 0 {
		if n, err = snappy.DecodedLen(src); err != nil {
			return
		}
		dst = make([]byte, n)
		if p, err = snappy.Decode(dst, src); err != nil {
			return
		}
	} else {
		p = src
	}
	conn.buf.Write(p)
	return
}

func (conn *Conn) Read(b []byte) (n int, err error) {
	if conn.buf.Len() == 0 {
		if err = conn.tryRead(); err != nil {
			return
		}
	}
	if n, err = conn.buf.Read(b); err != nil {
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	return
}

func (conn *Conn) Write(b []byte) (n int, err error) {
	var (
		flag uint8
		p    []byte
		nw   int64
	)
	length := len(b)
	if length <= 0 {
		return
	}
	if conn.opts.Compress && length > minCompressLength {
		flag |= flagCompress
		p = snappy.Encode(make([]byte, snappy.MaxEncodedLen(length)), b)
	} else {
		p = b
	}
	w := bytes.NewBuffer(make([]byte, 0, blockHeadLength+len(p)))
	w.WriteByte(Ver)
	w.WriteByte(flag)
	if err = binary.Write(w, binary.BigEndian, uint32(len(p))); err != nil {
		return
	}
	w.Write(p)
	if nw, err = w.WriteTo(conn.rw); err == nil {
		if nw != int64(blockHeadLength+len(p)) {
			err = io.ErrShortWrite
		}
		n = length
	}
	return
}

func (conn *Conn) Close() (err error) {
	if !atomic.CompareAndSwapInt32(&conn.closeFlag, 0, 1) {
		return
	}
	if c, ok := conn.rw.(io.Closer); ok {
		err = c.Close()
	}
	return
}

func (conn *Conn) LocalAddr() net.Addr {
	if c, ok := conn.rw.(net.Conn); ok {
		return c.LocalAddr()
	}
	return nil
}

func (conn *Conn) RemoteAddr() net.Addr {
	if c, ok := conn.rw.(net.Conn); ok {
		return c.RemoteAddr()
	}
	return nil
}

func (conn *Conn) SetDeadline(t time.Time) error {
	if c, ok := conn.rw.(net.Conn); ok {
		return c.SetDeadline(t)
	}
	return nil
}

func (conn *Conn) SetReadDeadline(t time.Time) error {
	if c, ok := conn.rw.(net.Conn); ok {
		return c.SetReadDeadline(t)
	}
	return nil
}

func (conn *Conn) SetWriteDeadline(t time.Time) error {
	if c, ok := conn.rw.(net.Conn); ok {
		return c.SetWriteDeadline(t)
	}
	return nil
}

func WithCompress() Option {
	return func(o *Options) {
		o.Compress = true
	}
}

func New(rw io.ReadWriter, cbs ...Option) *Conn {
	opts := &Options{}
	for _, cb := range cbs {
		cb(opts)
	}
	return &Conn{rw: rw, opts: opts}
}
