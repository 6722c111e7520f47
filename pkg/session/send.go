package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// bypassesThrottle reports whether m must go out immediately instead of
// waiting in a ThrottleCategory queue for the send pump.
func bypassesThrottle(t wire.MessageType) bool {
	return t == wire.MessageTypePacketAck
}

// Send queues (or, for bypass types, immediately transmits) m. Reliable
// messages are stamped with a sequence number and tracked in NeedAck until
// acknowledged or resend-exhausted.
func (s *Session) Send(m wire.Message, category ThrottleCategory) error {
	buf, seq, err := s.encode(m)
	if err != nil {
		return err
	}
	pkt := &OutgoingPacket{Buffer: buf, Type: m.Type, Sequence: seq}

	if m.Reliable {
		s.needAckMu.Lock()
		s.needAck[seq] = pkt
		s.needAckMu.Unlock()
	}

	if bypassesThrottle(m.Type) {
		return s.transmit(pkt)
	}

	s.throttleMu.Lock()
	s.throttle[category] = append(s.throttle[category], pkt)
	s.throttleMu.Unlock()
	return nil
}

// encode serializes m into a full datagram: header, zero-encoded (with MTU
// fallback) body, and an appended-ACK tail drained from pendingAcks.
func (s *Session) encode(m wire.Message) ([]byte, uint32, error) {
	seq := s.nextSequence()

	flags := byte(0)
	if m.Reliable {
		flags |= wire.FlagReliable
	}

	body := append([]byte{byte(m.Type >> 8), byte(m.Type)}, m.Payload...)
	if m.Zerocoded {
		encoded, used := wire.EncodeWithFallback(body, wire.MTU, 0)
		if used {
			flags |= wire.FlagZerocoded
		}
		body = encoded
	}

	pending := s.drainPendingAcks()
	if len(pending) > 0 {
		appended, used, did := wire.AppendAcks(body, pending, wire.MTU)
		if did {
			body = appended
			flags |= wire.FlagAppendedAcks
			s.returnUnusedAcks(pending, used)
		} else {
			s.returnUnusedAcks(pending, nil)
		}
	}

	h := wire.Header{Flags: flags, Sequence: seq}
	buf := append(wire.EncodeHeader(h), body...)
	return buf, seq, nil
}

func (s *Session) drainPendingAcks() []uint32 {
	s.ackMu.Lock()
	defer s.ackMu.Unlock()
	if len(s.pendingAcks) == 0 {
		return nil
	}
	out := s.pendingAcks
	s.pendingAcks = nil
	return out
}

// returnUnusedAcks re-queues any pending ACKs that didn't make it into this
// datagram's budget so a later send (or the flush path) picks them up.
func (s *Session) returnUnusedAcks(drained, used []uint32) {
	usedSet := make(map[uint32]struct{}, len(used))
	for _, a := range used {
		usedSet[a] = struct{}{}
	}
	var leftover []uint32
	for _, a := range drained {
		if _, ok := usedSet[a]; !ok {
			leftover = append(leftover, a)
		}
	}
	if len(leftover) == 0 {
		return
	}
	s.ackMu.Lock()
	s.pendingAcks = append(leftover, s.pendingAcks...)
	s.ackMu.Unlock()
}

// transmit puts pkt on the wire and updates send-side stats. The first time
// a reliable packet is actually written, its resend clock starts here;
// retransmits arrive with FirstSentTick zeroed by the resend scheduler, so
// their clock restarts here too.
func (s *Session) transmit(pkt *OutgoingPacket) error {
	n, err := s.conn.WriteToUDP(pkt.Buffer, s.remoteAddr)
	if err != nil {
		return wrapf(ErrTransientTransport, "write to %s", s.remoteAddr)
	}
	if pkt.FirstSentTick.IsZero() {
		pkt.FirstSentTick = time.Now()
	}
	s.stats.addSent(n)
	s.log.Debug("sent packet", zap.Uint32("sequence", pkt.Sequence), zap.Int("bytes", n))
	return nil
}

// PumpOnce drains one round of the throttle queues in priority order
// (resend first, then the rest), transmitting everything queued. Called by
// the session manager's send-pump goroutine.
func (s *Session) PumpOnce() {
	s.throttleMu.Lock()
	var batch []*OutgoingPacket
	for cat := ThrottleCategory(0); cat < throttleCategoryCount; cat++ {
		batch = append(batch, s.throttle[cat]...)
		s.throttle[cat] = nil
	}
	s.throttleMu.Unlock()

	for _, pkt := range batch {
		if err := s.transmit(pkt); err != nil {
			s.log.Warn("pump transmit failed", zap.Error(err), zap.Uint32("sequence", pkt.Sequence))
		}
	}
}

// flushPendingAcksIfFull forces an immediate PacketAck when the pending
// queue hits MaxPendingAcks, rather than waiting for a piggyback opportunity.
func (s *Session) flushPendingAcksIfFull() {
	s.ackMu.Lock()
	full := len(s.pendingAcks) >= MaxPendingAcks
	var ids []uint32
	if full {
		ids = s.pendingAcks
		s.pendingAcks = nil
	}
	s.ackMu.Unlock()
	if !full {
		return
	}
	_ = s.Send(wire.Message{Type: wire.MessageTypePacketAck, Payload: wire.EncodePacketAck(ids)}, ThrottleResend)
}
