package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// Handshake drives the connect sequence: send UseCircuitCode, wait for it to
// be acked, wait for RegionHandshake, then send CompleteAgentMovement no
// sooner than AgentMovementDelay after the circuit was acked.
func (s *Session) Handshake(ctx context.Context) error {
	s.setState(StateHandshaking)

	payload := wire.EncodeUseCircuitCode(wire.UseCircuitCode{
		Code:      s.circuitCode,
		SessionID: s.sessionID,
		AgentID:   s.agentID,
	})
	if err := s.Send(wire.Message{Type: wire.MessageTypeUseCircuitCode, Reliable: true, Payload: payload}, ThrottleResend); err != nil {
		return wrapf(err, "send UseCircuitCode")
	}

	if err := s.WaitHandshake(ctx, HandshakeCircuitAcked); err != nil {
		return wrapf(err, "waiting for UseCircuitCode ack")
	}
	circuitAckedAt := time.Now()

	if err := s.WaitHandshake(ctx, HandshakeRegionHandshakeReceived); err != nil {
		return wrapf(err, "waiting for RegionHandshake")
	}

	if remaining := AgentMovementDelay - time.Since(circuitAckedAt); remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return ErrTransientTransport
		}
	}

	if err := s.Send(wire.Message{Type: wire.MessageTypeCompleteAgentMovement, Reliable: true}, ThrottleResend); err != nil {
		return wrapf(err, "send CompleteAgentMovement")
	}

	s.setState(StateConnected)
	s.log.Info("handshake complete", zap.Duration("circuit_ack_to_movement_wait", AgentMovementDelay))
	return nil
}
