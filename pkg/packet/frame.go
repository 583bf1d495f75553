package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	Ver = 0xAF

	frameHeadLength = 9

	TypeData = 0x01
	TypeAck  = 0x02

	// FlagFin marks the last frame of a message.
	FlagFin = 0x01
)

// Frame is one unit on the wire: a fixed header followed by Length
// payload bytes. Messages larger than the configured frame size are
// split across several frames sharing one sequence number; the last
// carries FlagFin.
type Frame struct {
	Ver      uint8
	Type     uint8
	Flags    uint8
	Sequence uint16
	Length   uint32
	Buf      []byte
}

func (f *Frame) Fin() bool {
	return f.Flags&FlagFin != 0
}

func NewFrame(typ uint8, flags uint8, seq uint16, buf []byte) *Frame {
	return &Frame{
		Ver:      Ver,
		Type:     typ,
		Flags:    flags,
		Sequence: seq,
		Length:   uint32(len(buf)),
		Buf:      buf,
	}
}

func ReadFrame(r io.Reader) (f *Frame, err error) {
	head := make([]byte, frameHeadLength)
	if _, err = io.ReadFull(r, head); err != nil {
		return
	}
	f = &Frame{
		Ver:   head[0],
		Type:  head[1],
		Flags: head[2],
	}
	if f.Ver != Ver {
		return nil, fmt.Errorf("invalid frame ver %0x", f.Ver)
	}
	if f.Type != TypeData && f.Type != TypeAck {
		return nil, fmt.Errorf("invalid frame type %0x", f.Type)
	}
	f.Sequence = binary.BigEndian.Uint16(head[3:])
	f.Length = binary.BigEndian.Uint32(head[5:])
	if f.Length > 0 {
		f.Buf = make([]byte, f.Length)
		if _, err = io.ReadFull(r, f.Buf); err != nil {
			return nil, err
		}
	}
	return
}

func WriteFrame(w io.Writer, f *Frame) (err error) {
	var (
		nw int64
	)
	n := len(f.Buf)
	f.Length = uint32(n)
	buf := bytes.NewBuffer(make([]byte, 0, frameHeadLength+n))
	buf.WriteByte(f.Ver)
	buf.WriteByte(f.Type)
	buf.WriteByte(f.Flags)
	if err = binary.Write(buf, binary.BigEndian, f.Sequence); err != nil {
		return
	}
	if err = binary.Write(buf, binary.BigEndian, f.Length); err != nil {
		return
	}
	if f.Buf != nil {
		buf.Write(f.Buf)
	}
	if nw, err = buf.WriteTo(w); err == nil {
		if nw < int64(frameHeadLength+n) {
			err = io.ErrShortWrite
		}
	}
	return
}
