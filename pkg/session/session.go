// Package session implements the reliable per-region UDP session: sequencing,
// selective ACKs with piggyback ACKs, resends, duplicate suppression, the
// handshake state machine, and ping/RTT tracking.
package session

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// State is the session's position in its connect/handshake/teardown
// lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Timing constants governing the session's retransmission and liveness
// cadence.
const (
	NetworkTick        = 100 * time.Millisecond
	ResendTimeout      = 4 * time.Second
	MaxResends         = 3
	MaxPendingAcks     = 5
	PingInterval       = 5 * time.Second
	AgentMovementDelay = 500 * time.Millisecond
	PacketArchiveCap   = 1000
)

// ThrottleCategory buckets outbound traffic the way the simulator's own
// bandwidth throttle does. Resent packets are queued in ThrottleResend.
// PacketAck is the only message type that bypasses the throttle queues.
type ThrottleCategory int

const (
	ThrottleResend ThrottleCategory = iota
	ThrottleLand
	ThrottleWind
	ThrottleCloud
	ThrottleTask
	ThrottleTexture
	ThrottleAsset
	throttleCategoryCount
)

// Transport is the minimal socket surface Session needs. A real *net.UDPConn
// satisfies it; tests substitute a fake to drive the protocol state machine
// without a live socket.
type Transport interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// OutgoingPacket is a reliable packet awaiting acknowledgement.
type OutgoingPacket struct {
	Buffer        []byte
	Type          wire.MessageType
	Sequence      uint32
	FirstSentTick time.Time
	ResendCount   int
}

// HandshakeEvent fires once the peer has ACKed our UseCircuitCode and again
// once RegionHandshake arrives, letting callers gate CompleteAgentMovement.
type HandshakeEvent int

const (
	HandshakeCircuitAcked HandshakeEvent = iota
	HandshakeRegionHandshakeReceived
)

// Session is one region circuit: a single reliable UDP conversation with one
// simulator, independent of every other region the viewer is connected to.
type Session struct {
	log *zap.Logger

	conn         Transport
	remoteAddr   *net.UDPAddr
	regionHandle uint64
	circuitCode  uint32
	agentID      uuid.UUID
	sessionID    uuid.UUID

	sequence uint32 // atomic, monotonically increasing outbound sequence

	mu    sync.RWMutex
	state State

	ackMu       sync.Mutex
	pendingAcks []uint32 // inbound sequence numbers awaiting outbound ACK

	needAckMu sync.Mutex
	needAck   map[uint32]*OutgoingPacket

	archiveMu      sync.Mutex
	archive        map[uint32]struct{}
	archiveOrder   []uint32

	throttleMu sync.Mutex
	throttle   [throttleCategoryCount][]*OutgoingPacket

	stats *Stats

	handshakeMu      sync.Mutex
	circuitAcked     bool
	regionHandshaked bool
	agentMovementAt  time.Time
	handshakeWaiters []chan HandshakeEvent

	inbound chan wire.Message

	lastPingID uint8
	rttMu      sync.Mutex
	rtt        time.Duration
	pingSentAt time.Time
	pingSentID uint8

	disconnectOnce sync.Once
	closed         chan struct{}

	activityMu sync.Mutex
	lastActivity time.Time
}

// Config carries everything NewSession needs to stand a circuit up.
type Config struct {
	Log          *zap.Logger
	Conn         Transport
	RemoteAddr   *net.UDPAddr
	RegionHandle uint64
	CircuitCode  uint32
	AgentID      uuid.UUID
	SessionID    uuid.UUID
}

// NewSession constructs a Session in StateConnecting.
func NewSession(cfg Config) *Session {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		log:          log.With(zap.Uint64("region_handle", cfg.RegionHandle)),
		conn:         cfg.Conn,
		remoteAddr:   cfg.RemoteAddr,
		regionHandle: cfg.RegionHandle,
		circuitCode:  cfg.CircuitCode,
		agentID:      cfg.AgentID,
		sessionID:    cfg.SessionID,
		state:        StateConnecting,
		needAck:      make(map[uint32]*OutgoingPacket),
		archive:      make(map[uint32]struct{}, PacketArchiveCap),
		inbound:      make(chan wire.Message, 256),
		closed:       make(chan struct{}),
	}
	s.stats = newStats(cfg.RegionHandle)
	return s
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.log.Debug("session state transition", zap.Stringer("from", prev), zap.Stringer("to", next))
	}
}

func (s *Session) nextSequence() uint32 {
	return atomic.AddUint32(&s.sequence, 1)
}

// RemoteAddr returns the peer this session talks to.
func (s *Session) RemoteAddr() *net.UDPAddr { return s.remoteAddr }

// RegionHandle returns the region this circuit belongs to.
func (s *Session) RegionHandle() uint64 { return s.regionHandle }

// LastActivity returns the time of the last datagram received from the
// peer, used by the session manager's disconnect sweep.
func (s *Session) LastActivity() time.Time {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.lastActivity
}

func (s *Session) touchActivity(now time.Time) {
	s.activityMu.Lock()
	s.lastActivity = now
	s.activityMu.Unlock()
}

// Inbound exposes decoded application messages to the caller, independently
// of the receive worker that produces them.
func (s *Session) Inbound() <-chan wire.Message { return s.inbound }

// Closed is signalled once the session has fully torn down.
func (s *Session) Closed() <-chan struct{} { return s.closed }

// Close marks the session disconnected and releases its channels. Safe to
// call more than once and from more than one goroutine.
func (s *Session) Close() {
	s.disconnectOnce.Do(func() {
		s.setState(StateDisconnected)
		close(s.closed)
	})
}

// WaitHandshake blocks until ev has occurred or ctx is done.
func (s *Session) WaitHandshake(ctx context.Context, ev HandshakeEvent) error {
	s.handshakeMu.Lock()
	if s.handshakeSatisfied(ev) {
		s.handshakeMu.Unlock()
		return nil
	}
	ch := make(chan HandshakeEvent, 1)
	s.handshakeWaiters = append(s.handshakeWaiters, ch)
	s.handshakeMu.Unlock()

	for {
		select {
		case got := <-ch:
			if got == ev {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return ErrTransientTransport
		}
	}
}

func (s *Session) handshakeSatisfied(ev HandshakeEvent) bool {
	switch ev {
	case HandshakeCircuitAcked:
		return s.circuitAcked
	case HandshakeRegionHandshakeReceived:
		return s.regionHandshaked
	default:
		return false
	}
}

func (s *Session) notifyHandshake(ev HandshakeEvent) {
	s.handshakeMu.Lock()
	switch ev {
	case HandshakeCircuitAcked:
		s.circuitAcked = true
	case HandshakeRegionHandshakeReceived:
		s.regionHandshaked = true
	}
	waiters := s.handshakeWaiters
	s.handshakeWaiters = nil
	s.handshakeMu.Unlock()

	for _, ch := range waiters {
		ch <- ev
	}
}
