// Package wire implements the per-region UDP wire format: packet header
// framing, zero-encoding (run-length compression of zero bytes), and the
// appended-ACK tail carried on any outbound packet.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header flag bits.
const (
	FlagZerocoded    byte = 0x80
	FlagReliable     byte = 0x40
	FlagResent       byte = 0x20
	FlagAppendedAcks byte = 0x10
)

// MTU is the typical datagram budget this protocol targets. Payloads that
// would zero-encode past it fall back to raw transmission.
const MTU = 1200

// MaxZerocodedBufferBytes bounds the buffer used to decode a zerocoded
// payload into a fresh buffer.
const MaxZerocodedBufferBytes = 8 * 1024

// Header is the fixed leading framing of every datagram.
type Header struct {
	Flags    byte
	Sequence uint32
	Extra    []byte
}

// Reliable reports whether the RELIABLE bit is set.
func (h Header) Reliable() bool { return h.Flags&FlagReliable != 0 }

// Resent reports whether the RESENT bit is set.
func (h Header) Resent() bool { return h.Flags&FlagResent != 0 }

// Zerocoded reports whether the ZEROCODED bit is set.
func (h Header) Zerocoded() bool { return h.Flags&FlagZerocoded != 0 }

// AppendedAcks reports whether the APPENDED_ACKS bit is set.
func (h Header) AppendedAcks() bool { return h.Flags&FlagAppendedAcks != 0 }

// EncodeHeader writes the fixed header (flags, big-endian sequence, extra
// length + extra bytes) to the front of buf.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, 6+len(h.Extra))
	buf[0] = h.Flags
	binary.BigEndian.PutUint32(buf[1:5], h.Sequence)
	buf[5] = byte(len(h.Extra))
	copy(buf[6:], h.Extra)
	return buf
}

// DecodeHeader parses the fixed header from the front of data, returning
// the header and the offset of the first byte after it (the body).
func DecodeHeader(data []byte) (Header, int, error) {
	if len(data) < 6 {
		return Header{}, 0, errors.New("wire: datagram shorter than fixed header")
	}
	h := Header{
		Flags:    data[0],
		Sequence: binary.BigEndian.Uint32(data[1:5]),
	}
	extraLen := int(data[5])
	if 6+extraLen > len(data) {
		return Header{}, 0, errors.New("wire: extra-header length exceeds datagram")
	}
	if extraLen > 0 {
		h.Extra = append([]byte(nil), data[6:6+extraLen]...)
	}
	return h, 6 + extraLen, nil
}
