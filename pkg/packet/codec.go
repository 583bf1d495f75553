package packet

import (
	"fmt"
	"io"
	"math"

	"github.com/vsockio/virgo/internal/sequence"
)

// Codec runs the framed message protocol over one byte stream. It splits
// each outgoing message into data frames no larger than the configured
// frame size and reassembles incoming frames until the FlagFin one.
//
// With acknowledgments enabled the receiver answers every completed
// message with one ack frame and WriteMessage blocks for it before
// reporting success. Ack mode assumes ping-pong traffic: a peer that
// sends while its own ack is pending will be reported as a protocol
// violation.
type Codec struct {
	rw        io.ReadWriter
	frameSize int
	ack       bool
	sequence  uint16
}

func NewCodec(rw io.ReadWriter, frameSize uint32, ack bool) *Codec {
	fs := int(frameSize)
	if fs <= 0 {
		fs = 1024
	}
	return &Codec{
		rw:        rw,
		frameSize: fs,
		ack:       ack,
		sequence:  sequence.Next(),
	}
}

func (c *Codec) nextSequence() uint16 {
	if c.sequence >= math.MaxUint16 {
		c.sequence = 0
	}
	c.sequence++
	return c.sequence
}

// WriteMessage transmits p as one message. Either the whole message is
// written (and acknowledged, in ack mode) or an error is returned; there
// is no partial-message success.
func (c *Codec) WriteMessage(p []byte) (n int, err error) {
	seq := c.nextSequence()
	rest := p
	for {
		chunk := rest
		if len(chunk) > c.frameSize {
			chunk = rest[:c.frameSize]
		}
		rest = rest[len(chunk):]
		var flags uint8
		if len(rest) == 0 {
			flags = FlagFin
		}
		if err = WriteFrame(c.rw, NewFrame(TypeData, flags, seq, chunk)); err != nil {
			return
		}
		n += len(chunk)
		if len(rest) == 0 {
			break
		}
	}
	if c.ack {
		var f *Frame
		if f, err = ReadFrame(c.rw); err != nil {
			return
		}
		if f.Type != TypeAck {
			err = fmt.Errorf("expected ack frame, got type %0x", f.Type)
		} else if f.Sequence != seq {
			err = fmt.Errorf("ack sequence %d does not match %d", f.Sequence, seq)
		}
	}
	return
}

// ReadMessage blocks until one whole message has arrived and returns it.
func (c *Codec) ReadMessage() (msg []byte, err error) {
	var (
		f     *Frame
		seq   uint16
		first = true
	)
	for {
		if f, err = ReadFrame(c.rw); err != nil {
			return nil, err
		}
		if f.Type != TypeData {
			return nil, fmt.Errorf("expected data frame, got type %0x", f.Type)
		}
		if first {
			seq = f.Sequence
			first = false
		} else if f.Sequence != seq {
			return nil, fmt.Errorf("frame sequence %d does not match %d", f.Sequence, seq)
		}
		msg = append(msg, f.Buf...)
		if f.Fin() {
			break
		}
	}
	if c.ack {
		if err = WriteFrame(c.rw, NewFrame(TypeAck, 0, seq, nil)); err != nil {
			return nil, err
		}
	}
	return
}
