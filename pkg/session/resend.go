package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// RunResendLoop drives the NetworkTick scheduler: every tick it scans
// NeedAck for packets older than ResendTimeout, requeues them with the
// RESENT flag set up to MaxResends times, and past that drops the packet
// from NeedAck and logs it.
//
// A resend zeroes the packet's FirstSentTick before requeueing it; transmit
// restamps it when the retransmit actually goes out, so ResendTimeout is
// measured from the most recent transmission, not the original. See
// TestResendRestampsFirstSentTick.
func (s *Session) RunResendLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(NetworkTick)
	defer ticker.Stop()

	var ticks int
	for {
		select {
		case now := <-ticker.C:
			ticks++
			s.resendTick(now)
			if ticks%10 == 0 {
				s.stats.tickBuckets(now)
			}
		case <-stop:
			return
		case <-s.closed:
			return
		}
	}
}

func (s *Session) resendTick(now time.Time) {
	var toResend []*OutgoingPacket
	var exhausted []uint32

	s.needAckMu.Lock()
	for seq, pkt := range s.needAck {
		if pkt.FirstSentTick.IsZero() {
			continue // queued but not yet actually transmitted
		}
		if now.Sub(pkt.FirstSentTick) < ResendTimeout {
			continue
		}
		if pkt.ResendCount >= MaxResends {
			exhausted = append(exhausted, seq)
			continue
		}
		pkt.ResendCount++
		pkt.FirstSentTick = time.Time{} // transmit restamps it on re-emission
		toResend = append(toResend, pkt)
	}
	for _, seq := range exhausted {
		delete(s.needAck, seq)
	}
	s.needAckMu.Unlock()

	for _, seq := range exhausted {
		s.log.Warn("packet exhausted resends", zap.Uint32("sequence", seq), zap.Int("max_resends", MaxResends))
	}

	for _, pkt := range toResend {
		s.markResent(pkt)
		s.throttleMu.Lock()
		s.throttle[ThrottleResend] = append(s.throttle[ThrottleResend], pkt)
		s.throttleMu.Unlock()
		s.stats.addResend()
	}
}

// markResent flips the RESENT bit in an already-encoded buffer in place,
// leaving the sequence number, body, and appended ACKs untouched.
func (s *Session) markResent(pkt *OutgoingPacket) {
	if len(pkt.Buffer) == 0 {
		return
	}
	pkt.Buffer[0] |= wire.FlagResent
}
