package wire

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// float32Bits is a small local alias kept next to the encode helpers that
// use it, so the wire-format functions above read as pure byte-pushing
// code without an inline math.Float32bits call breaking the flow.
func float32Bits(f float32) uint32 { return math.Float32bits(f) }

// float32FromBits is the decode-side counterpart of float32Bits.
func float32FromBits(b uint32) float32 { return math.Float32frombits(b) }

// MessageType identifies a decoded message's catalog entry. Only the
// message types named below have concrete wire layouts here; all other
// types are opaque {type, payload} pairs as far as this module is
// concerned.
type MessageType uint16

const (
	MessageTypeUnknown MessageType = iota
	MessageTypePacketAck
	MessageTypeStartPingCheck
	MessageTypeCompletePingCheck
	MessageTypeUseCircuitCode
	MessageTypeCloseCircuit
	MessageTypeRegionHandshake
	MessageTypeCompleteAgentMovement
	MessageTypeAgentCachedTexture
	MessageTypeAgentCachedTextureResponse
	MessageTypeAgentSetAppearance
	MessageTypeAgentIsNowWearing
)

// Message is a decoded (or to-be-encoded) application message, independent
// of its framing. The wire codec's job stops at {type, reliable?,
// zerocoded?, payload}; individual message bodies beyond the ones with a
// concrete layout above are opaque to this module.
type Message struct {
	Type      MessageType
	Reliable  bool
	Zerocoded bool
	Payload   []byte
}

// EncodePacketAck encodes the PacketAck body: a list of 4-byte IDs.
func EncodePacketAck(ids []uint32) []byte {
	buf := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.BigEndian.PutUint32(buf[i*4:i*4+4], id)
	}
	return buf
}

// DecodePacketAck decodes a PacketAck body into its list of IDs.
func DecodePacketAck(body []byte) ([]uint32, error) {
	if len(body)%4 != 0 {
		return nil, errors.New("wire: PacketAck body not a multiple of 4 bytes")
	}
	out := make([]uint32, len(body)/4)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(body[i*4 : i*4+4])
	}
	return out, nil
}

// StartPingCheck is {pingID: u8, oldestUnacked: u32}.
type StartPingCheck struct {
	PingID        uint8
	OldestUnacked uint32
}

func EncodeStartPingCheck(m StartPingCheck) []byte {
	buf := make([]byte, 5)
	buf[0] = m.PingID
	binary.BigEndian.PutUint32(buf[1:5], m.OldestUnacked)
	return buf
}

func DecodeStartPingCheck(body []byte) (StartPingCheck, error) {
	if len(body) < 5 {
		return StartPingCheck{}, errors.New("wire: StartPingCheck body too short")
	}
	return StartPingCheck{
		PingID:        body[0],
		OldestUnacked: binary.BigEndian.Uint32(body[1:5]),
	}, nil
}

// UseCircuitCode is {code: u32, sessionID: uuid, agentID: uuid}.
type UseCircuitCode struct {
	Code      uint32
	SessionID uuid.UUID
	AgentID   uuid.UUID
}

func EncodeUseCircuitCode(m UseCircuitCode) []byte {
	buf := make([]byte, 4+16+16)
	binary.BigEndian.PutUint32(buf[0:4], m.Code)
	copy(buf[4:20], m.SessionID[:])
	copy(buf[20:36], m.AgentID[:])
	return buf
}

func DecodeUseCircuitCode(body []byte) (UseCircuitCode, error) {
	if len(body) < 36 {
		return UseCircuitCode{}, errors.New("wire: UseCircuitCode body too short")
	}
	var m UseCircuitCode
	m.Code = binary.BigEndian.Uint32(body[0:4])
	copy(m.SessionID[:], body[4:20])
	copy(m.AgentID[:], body[20:36])
	return m, nil
}

// AgentCachedTextureEntry is one {textureIndex, id} pair.
type AgentCachedTextureEntry struct {
	TextureIndex uint8
	ID           uuid.UUID
}

// AgentCachedTexture is {agentID, sessionID, serialNum, wearableData[]}.
type AgentCachedTexture struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	SerialNum uint32
	Entries   []AgentCachedTextureEntry
}

func EncodeAgentCachedTexture(m AgentCachedTexture) []byte {
	buf := make([]byte, 0, 16+16+4+1+len(m.Entries)*17)
	buf = append(buf, m.AgentID[:]...)
	buf = append(buf, m.SessionID[:]...)
	var serial [4]byte
	binary.BigEndian.PutUint32(serial[:], m.SerialNum)
	buf = append(buf, serial[:]...)
	buf = append(buf, byte(len(m.Entries)))
	for _, e := range m.Entries {
		buf = append(buf, e.TextureIndex)
		buf = append(buf, e.ID[:]...)
	}
	return buf
}

func DecodeAgentCachedTextureResponse(body []byte) (AgentCachedTexture, error) {
	const head = 16 + 16 + 4 + 1
	if len(body) < head {
		return AgentCachedTexture{}, errors.New("wire: AgentCachedTextureResponse body too short")
	}
	var m AgentCachedTexture
	copy(m.AgentID[:], body[0:16])
	copy(m.SessionID[:], body[16:32])
	m.SerialNum = binary.BigEndian.Uint32(body[32:36])
	count := int(body[36])
	off := 37
	for i := 0; i < count; i++ {
		if off+17 > len(body) {
			return AgentCachedTexture{}, errors.New("wire: AgentCachedTextureResponse truncated entries")
		}
		var e AgentCachedTextureEntry
		e.TextureIndex = body[off]
		copy(e.ID[:], body[off+1:off+17])
		m.Entries = append(m.Entries, e)
		off += 17
	}
	return m, nil
}

// AgentSetAppearanceWearable is {bakeLayerIdx, cacheID}.
type AgentSetAppearanceWearable struct {
	BakeLayerIdx uint8
	CacheID      uuid.UUID
}

// AgentSetAppearance is {agentID, sessionID, serialNum, size, visualParam[],
// textureEntry, wearableData[6]}.
type AgentSetAppearance struct {
	AgentID       uuid.UUID
	SessionID     uuid.UUID
	SerialNum     uint32
	Size          [3]float32
	VisualParams  []byte
	TextureEntry  []byte
	WearableData  [6]AgentSetAppearanceWearable
}

func EncodeAgentSetAppearance(m AgentSetAppearance) []byte {
	buf := make([]byte, 0, 16+16+4+12+2+len(m.VisualParams)+2+len(m.TextureEntry)+6*17)
	buf = append(buf, m.AgentID[:]...)
	buf = append(buf, m.SessionID[:]...)
	var serial [4]byte
	binary.BigEndian.PutUint32(serial[:], m.SerialNum)
	buf = append(buf, serial[:]...)
	for _, f := range m.Size {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], float32Bits(f))
		buf = append(buf, b[:]...)
	}
	buf = appendUint16Prefixed(buf, m.VisualParams)
	buf = appendUint16Prefixed(buf, m.TextureEntry)
	for _, w := range m.WearableData {
		buf = append(buf, w.BakeLayerIdx)
		buf = append(buf, w.CacheID[:]...)
	}
	return buf
}

func appendUint16Prefixed(buf []byte, data []byte) []byte {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(data)))
	buf = append(buf, l[:]...)
	return append(buf, data...)
}

// AgentIsNowWearingEntry is {wearableType, itemID}.
type AgentIsNowWearingEntry struct {
	WearableType uint8
	ItemID       uuid.UUID
}

// AgentIsNowWearing is {agentID, sessionID, wearableData[16]}.
type AgentIsNowWearing struct {
	AgentID   uuid.UUID
	SessionID uuid.UUID
	Entries   [16]AgentIsNowWearingEntry
}

func EncodeAgentIsNowWearing(m AgentIsNowWearing) []byte {
	buf := make([]byte, 0, 16+16+16*17)
	buf = append(buf, m.AgentID[:]...)
	buf = append(buf, m.SessionID[:]...)
	for _, e := range m.Entries {
		buf = append(buf, e.WearableType)
		buf = append(buf, e.ItemID[:]...)
	}
	return buf
}
