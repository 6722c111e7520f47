// Package sessionmgr owns the set of region circuits a single viewer
// connection keeps open at once: the current/primary region, every
// neighbor the agent has a circuit into, and the background loops (receive
// dispatch, send pump, resend/ping schedulers, disconnect sweep) that keep
// them alive.
package sessionmgr

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/metaverse-go/region-session/pkg/session"
	"github.com/metaverse-go/region-session/pkg/wire"
)

// Manager tracks every region.Session the agent currently holds open,
// keyed by region handle, and owns the per-session background loops
// (resend, ping, send pump) alongside the set itself.
type Manager struct {
	log *zap.Logger
	tr  session.Transport

	mu        sync.RWMutex
	sessions  map[uint64]*session.Session
	primary   uint64
	hasPrimary bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Manager bound to a single outbound UDP transport; every
// region session it opens shares that one socket, addressed by each
// session's own RemoteAddr.
func New(log *zap.Logger, tr session.Transport) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:      log,
		tr:       tr,
		sessions: make(map[uint64]*session.Session),
		stop:     make(chan struct{}),
	}
}

// Open stands up a new region circuit, runs its handshake, and starts its
// background loops. The first session opened becomes primary.
func (m *Manager) Open(ctx context.Context, cfg session.Config) (*session.Session, error) {
	cfg.Conn = m.tr
	cfg.Log = m.log
	s := session.NewSession(cfg)

	m.mu.Lock()
	m.sessions[cfg.RegionHandle] = s
	if !m.hasPrimary {
		m.primary = cfg.RegionHandle
		m.hasPrimary = true
	}
	m.mu.Unlock()

	m.runLoops(s)

	if err := s.Handshake(ctx); err != nil {
		m.Close(cfg.RegionHandle)
		return nil, err
	}
	return s, nil
}

func (m *Manager) runLoops(s *session.Session) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.RunResendLoop(m.stop)
	}()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		s.RunPingLoop(m.stop)
	}()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.pumpLoop(s)
	}()
}

// pumpLoop drives the send pump for one session at NetworkTick cadence.
func (m *Manager) pumpLoop(s *session.Session) {
	ticker := time.NewTicker(session.NetworkTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.PumpOnce()
		case <-m.stop:
			return
		case <-s.Closed():
			return
		}
	}
}

// Dispatch routes one inbound datagram to the session owning fromAddr's
// region, keyed by region handle the caller already resolved (e.g. from
// the circuit that accepted the connection). Returns false if no open
// session claims that region.
func (m *Manager) Dispatch(regionHandle uint64, from *net.UDPAddr, data []byte) bool {
	m.mu.RLock()
	s, ok := m.sessions[regionHandle]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	if err := s.OnDatagram(from, data); err != nil {
		m.log.Debug("datagram rejected", zap.Uint64("region_handle", regionHandle), zap.Error(err))
	}
	return true
}

// Get returns the session for a region handle, if open.
func (m *Manager) Get(regionHandle uint64) (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[regionHandle]
	return s, ok
}

// Primary returns the agent's current region session.
func (m *Manager) Primary() (*session.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasPrimary {
		return nil, false
	}
	s, ok := m.sessions[m.primary]
	return s, ok
}

// SetPrimary reassigns which open session is primary (a region crossing).
func (m *Manager) SetPrimary(regionHandle uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[regionHandle]; !ok {
		return false
	}
	m.primary = regionHandle
	m.hasPrimary = true
	return true
}

// Send routes a message to a specific region's session.
func (m *Manager) Send(regionHandle uint64, msg wire.Message, cat session.ThrottleCategory) error {
	s, ok := m.Get(regionHandle)
	if !ok {
		return wireErrNoSession(regionHandle)
	}
	return s.Send(msg, cat)
}

// Close tears a single region circuit down and forgets it.
func (m *Manager) Close(regionHandle uint64) {
	m.mu.Lock()
	s, ok := m.sessions[regionHandle]
	delete(m.sessions, regionHandle)
	if m.hasPrimary && m.primary == regionHandle {
		m.hasPrimary = false
	}
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Shutdown tears down every open session and stops all background loops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	handles := make([]uint64, 0, len(m.sessions))
	for h := range m.sessions {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	close(m.stop)
	for _, h := range handles {
		m.Close(h)
	}
	m.wg.Wait()
}

// DisconnectSweep closes any session already in StateDisconnected, and any
// session whose peer has gone quiet past staleAfter (checked against the
// session's LastActivity; a session that has never received a packet is not
// considered stale). Runs on its own ticker, independent of the per-session
// background loops.
func (m *Manager) DisconnectSweep(staleAfter time.Duration) {
	now := time.Now()
	m.mu.RLock()
	stale := make([]uint64, 0)
	for h, s := range m.sessions {
		if s.State() == session.StateDisconnected {
			stale = append(stale, h)
			continue
		}
		if last := s.LastActivity(); !last.IsZero() && now.Sub(last) > staleAfter {
			stale = append(stale, h)
		}
	}
	m.mu.RUnlock()
	for _, h := range stale {
		m.log.Info("closing stale session", zap.Uint64("region_handle", h))
		m.Close(h)
	}
}
