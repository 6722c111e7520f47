package sessionmgr

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/metaverse-go/region-session/pkg/session"
)

type nopTransport struct{}

func (nopTransport) WriteToUDP(b []byte, _ *net.UDPAddr) (int, error) { return len(b), nil }

func TestPrimaryReturnsAssignedSession(t *testing.T) {
	m := New(nil, nopTransport{})
	defer m.Shutdown()

	m.mu.Lock()
	m.sessions[7] = session.NewSession(session.Config{
		Conn:         nopTransport{},
		RemoteAddr:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1},
		RegionHandle: 7,
		AgentID:      uuid.New(),
		SessionID:    uuid.New(),
	})
	m.primary = 7
	m.hasPrimary = true
	m.mu.Unlock()

	p, ok := m.Primary()
	require.True(t, ok)
	require.Equal(t, uint64(7), p.RegionHandle())
}

func TestSetPrimaryRejectsUnknownRegion(t *testing.T) {
	m := New(nil, nopTransport{})
	defer m.Shutdown()
	require.False(t, m.SetPrimary(99))
}

func TestCloseForgetsSessionAndClearsPrimary(t *testing.T) {
	m := New(nil, nopTransport{})
	defer m.Shutdown()

	s := session.NewSession(session.Config{
		Conn:         nopTransport{},
		RemoteAddr:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1},
		RegionHandle: 3,
		AgentID:      uuid.New(),
		SessionID:    uuid.New(),
	})
	m.mu.Lock()
	m.sessions[3] = s
	m.primary = 3
	m.hasPrimary = true
	m.mu.Unlock()

	m.Close(3)

	_, ok := m.Get(3)
	require.False(t, ok)
	_, ok = m.Primary()
	require.False(t, ok)
}

func TestDispatchReturnsFalseForUnknownRegion(t *testing.T) {
	m := New(nil, nopTransport{})
	defer m.Shutdown()
	ok := m.Dispatch(123, &net.UDPAddr{}, []byte{0, 0, 0, 0, 0, 0})
	require.False(t, ok)
}

func TestDisconnectSweepClosesStaleSessions(t *testing.T) {
	m := New(nil, nopTransport{})
	defer m.Shutdown()

	s := session.NewSession(session.Config{
		Conn:         nopTransport{},
		RemoteAddr:   &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 2},
		RegionHandle: 5,
		AgentID:      uuid.New(),
		SessionID:    uuid.New(),
	})
	m.mu.Lock()
	m.sessions[5] = s
	m.mu.Unlock()

	m.DisconnectSweep(time.Second)
	_, stillOpen := m.Get(5)
	require.True(t, stillOpen, "session with no activity yet is not stale")

	s.Close()
	m.DisconnectSweep(time.Second)
	_, stillOpen = m.Get(5)
	require.False(t, stillOpen)
}
