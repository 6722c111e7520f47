package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// RunPingLoop sends a StartPingCheck every PingInterval and records when it
// went out. The RTT is measured when the caller passes the CompletePingCheck
// reply's ping ID to OnPong; the session does not route that reply itself.
func (s *Session) RunPingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sendPing()
		case <-stop:
			return
		case <-s.closed:
			return
		}
	}
}

func (s *Session) sendPing() {
	s.lastPingID++
	id := s.lastPingID

	var oldest uint32
	s.needAckMu.Lock()
	for seq := range s.needAck {
		if oldest == 0 || seq < oldest {
			oldest = seq
		}
	}
	s.needAckMu.Unlock()

	s.rttMu.Lock()
	s.pingSentAt = time.Now()
	s.pingSentID = id
	s.rttMu.Unlock()

	payload := wire.EncodeStartPingCheck(wire.StartPingCheck{PingID: id, OldestUnacked: oldest})
	if err := s.Send(wire.Message{Type: wire.MessageTypeStartPingCheck, Payload: payload}, ThrottleResend); err != nil {
		s.log.Warn("ping send failed", zap.Error(err))
	}
}

// OnPong records RTT for a CompletePingCheck reply carrying pingID.
func (s *Session) OnPong(pingID uint8) {
	s.rttMu.Lock()
	defer s.rttMu.Unlock()
	if pingID != s.pingSentID || s.pingSentAt.IsZero() {
		return
	}
	s.rtt = time.Since(s.pingSentAt)
	s.pingSentAt = time.Time{}
}

// RTT returns the most recently measured round-trip time.
func (s *Session) RTT() time.Duration {
	s.rttMu.Lock()
	defer s.rttMu.Unlock()
	return s.rtt
}
