package session

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// fakeTransport records every datagram written to it instead of touching a
// real socket, so the reliability state machine can be driven deterministically.
type fakeTransport struct {
	mu    sync.Mutex
	sent  [][]byte
	onLow func([]byte)
}

func (f *fakeTransport) WriteToUDP(b []byte, _ *net.UDPAddr) (int, error) {
	f.mu.Lock()
	cp := append([]byte(nil), b...)
	f.sent = append(f.sent, cp)
	f.mu.Unlock()
	if f.onLow != nil {
		f.onLow(cp)
	}
	return len(b), nil
}

func (f *fakeTransport) last() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestSession(t *testing.T, tr *fakeTransport) *Session {
	t.Helper()
	return NewSession(Config{
		Conn:         tr,
		RemoteAddr:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000},
		RegionHandle: 42,
		CircuitCode:  123,
		AgentID:      uuid.New(),
		SessionID:    uuid.New(),
	})
}

func TestSendStampsSequenceAndTransmitsBypassType(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)

	err := s.Send(wire.Message{Type: wire.MessageTypePacketAck, Payload: wire.EncodePacketAck([]uint32{1, 2})}, ThrottleResend)
	require.NoError(t, err)
	require.Equal(t, 1, tr.count())

	h, _, err := wire.DecodeHeader(tr.last())
	require.NoError(t, err)
	require.Equal(t, uint32(1), h.Sequence)
}

func TestSendNonBypassWaitsForPump(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)

	err := s.Send(wire.Message{Type: wire.MessageTypeAgentSetAppearance, Reliable: true}, ThrottleTask)
	require.NoError(t, err)
	require.Equal(t, 0, tr.count(), "queued packet must not transmit before PumpOnce")

	s.PumpOnce()
	require.Equal(t, 1, tr.count())
}

func TestOnDatagramRejectsWrongSourceAddr(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)

	other := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 1}
	pkt := wire.EncodeHeader(wire.Header{Sequence: 1})
	err := s.OnDatagram(other, pkt)
	require.Error(t, err)
}

func TestOnDatagramDuplicateSuppression(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)

	body := append([]byte{0x00, byte(wire.MessageTypeAgentSetAppearance)}, []byte("x")...)
	h := wire.Header{Flags: wire.FlagReliable, Sequence: 7}
	datagram := append(wire.EncodeHeader(h), body...)

	require.NoError(t, s.OnDatagram(s.remoteAddr, datagram))
	select {
	case <-s.Inbound():
	case <-time.After(time.Second):
		t.Fatal("expected first delivery")
	}

	require.NoError(t, s.OnDatagram(s.remoteAddr, datagram))
	select {
	case <-s.Inbound():
		t.Fatal("duplicate must not be redelivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAcknowledgeOutboundSignalsCircuitHandshake(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)

	require.NoError(t, s.Send(wire.Message{Type: wire.MessageTypeUseCircuitCode, Reliable: true}, ThrottleResend))

	s.needAckMu.Lock()
	var seq uint32
	for k := range s.needAck {
		seq = k
	}
	s.needAckMu.Unlock()
	require.NotZero(t, seq)

	s.acknowledgeOutbound([]uint32{seq})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WaitHandshake(ctx, HandshakeCircuitAcked))
}

func TestResendRestampsFirstSentTick(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)

	require.NoError(t, s.Send(wire.Message{Type: wire.MessageTypeAgentSetAppearance, Reliable: true}, ThrottleResend))

	s.needAckMu.Lock()
	var pkt *OutgoingPacket
	for _, p := range s.needAck {
		pkt = p
	}
	s.needAckMu.Unlock()
	require.NotNil(t, pkt)
	require.True(t, pkt.FirstSentTick.IsZero(), "queued but not yet transmitted")

	s.PumpOnce() // actually puts the packet on the wire and stamps FirstSentTick
	require.False(t, pkt.FirstSentTick.IsZero())

	base := time.Now()
	s.resendTick(base) // well within ResendTimeout, no resend yet
	require.Equal(t, 0, pkt.ResendCount)

	past := base.Add(ResendTimeout + time.Second)
	s.resendTick(past)
	require.Equal(t, 1, pkt.ResendCount)
	require.True(t, pkt.FirstSentTick.IsZero(), "resend zeroes FirstSentTick so transmit restamps it")

	s.PumpOnce() // re-emits the resend and restamps FirstSentTick
	require.False(t, pkt.FirstSentTick.IsZero(), "FirstSentTick restamped on re-emission")
}

func TestResendSkipsPacketsNotYetTransmitted(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)

	require.NoError(t, s.Send(wire.Message{Type: wire.MessageTypeAgentSetAppearance, Reliable: true}, ThrottleResend))

	s.needAckMu.Lock()
	var pkt *OutgoingPacket
	for _, p := range s.needAck {
		pkt = p
	}
	s.needAckMu.Unlock()
	require.NotNil(t, pkt)

	// Queued in a throttle category but never pumped: resendTick must not
	// treat scheduler observation as a transmission.
	s.resendTick(time.Now().Add(ResendTimeout + time.Second))
	require.True(t, pkt.FirstSentTick.IsZero())
	require.Equal(t, 0, pkt.ResendCount)
}

func TestResendExhaustionDropsFromNeedAck(t *testing.T) {
	tr := &fakeTransport{}
	s := newTestSession(t, tr)
	require.NoError(t, s.Send(wire.Message{Type: wire.MessageTypeAgentSetAppearance, Reliable: true}, ThrottleResend))

	s.needAckMu.Lock()
	var seq uint32
	for k := range s.needAck {
		seq = k
	}
	s.needAckMu.Unlock()

	s.PumpOnce() // transmit so FirstSentTick is stamped and resends can fire

	now := time.Now()
	s.resendTick(now)
	// MaxResends timed-out ticks resend the packet; one more drops it.
	for i := 0; i <= MaxResends; i++ {
		now = now.Add(ResendTimeout + time.Second)
		s.resendTick(now)
		s.PumpOnce() // re-emit so the resend clock restarts
	}

	s.needAckMu.Lock()
	_, stillPresent := s.needAck[seq]
	s.needAckMu.Unlock()
	require.False(t, stillPresent, "packet must be dropped once MaxResends is exceeded")
}
