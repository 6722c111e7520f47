package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := Header{
		Flags:    FlagReliable | FlagAppendedAcks,
		Sequence: 1024,
		Extra:    nil,
	}
	encoded := EncodeHeader(h)

	decoded, n, err := DecodeHeader(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.Equal(t, h.Flags, decoded.Flags)
	require.Equal(t, h.Sequence, decoded.Sequence)
	require.True(t, decoded.Reliable())
	require.True(t, decoded.AppendedAcks())
	require.False(t, decoded.Zerocoded())
	require.False(t, decoded.Resent())
}

func TestHeaderDecodeTooShort(t *testing.T) {
	_, _, err := DecodeHeader([]byte{0x40, 0x00})
	require.Error(t, err)
}

func TestHeaderExtraBytes(t *testing.T) {
	h := Header{Flags: FlagReliable, Sequence: 7, Extra: []byte{0xAB, 0xCD}}
	encoded := EncodeHeader(h)
	require.Equal(t, byte(2), encoded[5])

	decoded, n, err := DecodeHeader(encoded)
	require.NoError(t, err)
	require.Equal(t, h.Extra, decoded.Extra)
	require.Equal(t, 8, n)
}

func TestZeroEncodeAllZerosBoundary(t *testing.T) {
	for _, n := range []int{1, 254, 255, 256, 510, 511, 1000} {
		payload := make([]byte, n)
		encoded := ZeroEncode(payload)

		expectedPairs := (n + 254) / 255
		require.Equal(t, expectedPairs*2, len(encoded), "N=%d", n)

		for i := 0; i < expectedPairs; i++ {
			require.Equal(t, byte(0x00), encoded[i*2], "N=%d pair=%d", n, i)
		}
	}
}

func TestZeroEncodeDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x01, 0x02, 0x03},
		{0x00, 0x00, 0x00, 0x01, 0x00, 0x00},
		bytesN(300, 0x00),
		append(bytesN(10, 0x00), append([]byte{0x7F}, bytesN(600, 0x00)...)...),
	}
	for _, p := range payloads {
		encoded := ZeroEncode(p)
		decoded := ZeroDecode(encoded)
		require.Equal(t, p, decoded)
	}
}

func TestEncodeWithFallbackClearsZerocodedOnOverflow(t *testing.T) {
	// A payload whose zero-encoding is larger than the payload itself once
	// broken into many small non-zero runs, forced over a tiny MTU budget.
	payload := make([]byte, 0, 64)
	for i := 0; i < 32; i++ {
		payload = append(payload, 0x00, 0x01)
	}
	out, usedZero := EncodeWithFallback(payload, 10, 0)
	require.False(t, usedZero)
	require.Equal(t, payload, out)

	out2, usedZero2 := EncodeWithFallback(payload, MTU, 0)
	require.True(t, usedZero2)
	require.Equal(t, ZeroEncode(payload), out2)
}

func TestAppendAcksBudgetedByMTU(t *testing.T) {
	body := make([]byte, 0)
	pending := []uint32{1, 2, 3, 4, 5}

	// Budget for exactly 2 ACKs (2*4 + 1 = 9 bytes).
	out, appended, did := AppendAcks(body, pending, 9)
	require.True(t, did)
	require.Equal(t, []uint32{1, 2}, appended)
	require.Equal(t, byte(2), out[len(out)-1])

	remaining, acks, err := StripAcks(out)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2}, acks)
	require.Equal(t, body, remaining)
}

func TestAppendAcksNoneWhenNoBudget(t *testing.T) {
	_, appended, did := AppendAcks([]byte{0x01}, []uint32{1}, 1)
	require.False(t, did)
	require.Nil(t, appended)
}

func TestStripAcksRejectsCorruptCount(t *testing.T) {
	_, _, err := StripAcks([]byte{0xFF})
	require.Error(t, err)
}

func bytesN(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
