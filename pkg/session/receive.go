package session

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// OnDatagram is the receive worker's entry point: one call per UDP read. It
// validates the source address, unwraps framing, applies duplicate
// suppression, and dispatches the decoded message to Inbound() for
// application threads to consume.
func (s *Session) OnDatagram(from *net.UDPAddr, data []byte) error {
	if !sameUDPAddr(from, s.remoteAddr) {
		return wrapf(ErrProtocolViolation, "datagram from %s, expected %s", from, s.remoteAddr)
	}

	h, hdrLen, err := wire.DecodeHeader(data)
	if err != nil {
		return wrapf(ErrProtocolViolation, "header decode")
	}
	body := data[hdrLen:]

	s.stats.addRecv(len(data))
	s.touchActivity(time.Now())
	if h.Resent() {
		s.log.Debug("received resent packet", zap.Uint32("sequence", h.Sequence))
	}

	if h.Zerocoded() {
		if len(body) > wire.MaxZerocodedBufferBytes {
			return wrapf(ErrResourceExhaustion, "zerocoded body exceeds %d bytes", wire.MaxZerocodedBufferBytes)
		}
		body = wire.ZeroDecode(body)
	}

	if h.AppendedAcks() {
		remaining, acks, err := wire.StripAcks(body)
		if err != nil {
			return wrapf(ErrProtocolViolation, "appended-ack tail")
		}
		body = remaining
		s.acknowledgeOutbound(acks)
	}

	if !h.Reliable() {
		return s.dispatchBody(h, body)
	}

	s.enqueuePendingAck(h.Sequence)
	s.flushPendingAcksIfFull()

	if s.isDuplicate(h.Sequence) {
		s.stats.addDuplicate()
		s.log.Debug("dropped duplicate", zap.Uint32("sequence", h.Sequence))
		return nil
	}

	return s.dispatchBody(h, body)
}

// acknowledgeOutbound removes every acked sequence from NeedAck; if the
// acked packet was our UseCircuitCode, it signals the handshake waiter.
func (s *Session) acknowledgeOutbound(acks []uint32) {
	s.needAckMu.Lock()
	var ackedCircuit bool
	for _, seq := range acks {
		if pkt, ok := s.needAck[seq]; ok {
			if pkt.Type == wire.MessageTypeUseCircuitCode {
				ackedCircuit = true
			}
			delete(s.needAck, seq)
		}
	}
	s.needAckMu.Unlock()
	if ackedCircuit {
		s.notifyHandshake(HandshakeCircuitAcked)
	}
}

func (s *Session) enqueuePendingAck(seq uint32) {
	s.ackMu.Lock()
	s.pendingAcks = append(s.pendingAcks, seq)
	s.ackMu.Unlock()
}

// isDuplicate checks seq against the bounded FIFO archive and inserts it if
// new, evicting the oldest entry once the archive is at PacketArchiveCap.
func (s *Session) isDuplicate(seq uint32) bool {
	s.archiveMu.Lock()
	defer s.archiveMu.Unlock()
	if _, ok := s.archive[seq]; ok {
		return true
	}
	if len(s.archiveOrder) >= PacketArchiveCap {
		oldest := s.archiveOrder[0]
		s.archiveOrder = s.archiveOrder[1:]
		delete(s.archive, oldest)
	}
	s.archive[seq] = struct{}{}
	s.archiveOrder = append(s.archiveOrder, seq)
	return false
}

func (s *Session) dispatchBody(h wire.Header, body []byte) error {
	msgType, payload := classify(body)

	switch msgType {
	case wire.MessageTypePacketAck:
		ids, err := wire.DecodePacketAck(payload)
		if err != nil {
			return wrapf(ErrProtocolViolation, "PacketAck body")
		}
		s.acknowledgeOutbound(ids)
		return nil
	case wire.MessageTypeRegionHandshake:
		s.notifyHandshake(HandshakeRegionHandshakeReceived)
	}

	msg := wire.Message{Type: msgType, Reliable: h.Reliable(), Zerocoded: h.Zerocoded(), Payload: payload}
	select {
	case s.inbound <- msg:
	default:
		s.log.Warn("inbound channel full, dropping message", zap.Uint16("type", uint16(msgType)))
	}
	return nil
}

// classify recovers the message type tag this package itself writes: a
// leading 2-byte big-endian MessageType, followed by the opaque payload.
// Messages this module doesn't name a concrete format for still round-trip
// through this envelope; only their payload bytes are opaque.
func classify(body []byte) (wire.MessageType, []byte) {
	if len(body) < 2 {
		return wire.MessageTypeUnknown, body
	}
	t := wire.MessageType(uint16(body[0])<<8 | uint16(body[1]))
	return t, body[2:]
}

func sameUDPAddr(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}
