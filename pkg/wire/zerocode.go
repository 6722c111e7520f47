package wire

// ZeroEncode applies run-length compression to runs of zero bytes: each run
// of N zero bytes (N in 1..255) becomes the pair {0x00, N}; a run longer
// than 255 bytes emits multiple such pairs. Non-zero bytes pass through
// unchanged.
func ZeroEncode(payload []byte) []byte {
	out := make([]byte, 0, len(payload))
	i := 0
	for i < len(payload) {
		if payload[i] != 0x00 {
			out = append(out, payload[i])
			i++
			continue
		}
		run := 0
		for i < len(payload) && payload[i] == 0x00 && run < 255 {
			run++
			i++
		}
		out = append(out, 0x00, byte(run))
	}
	return out
}

// ZeroDecode inverts ZeroEncode: every {0x00, count} pair expands back into
// count zero bytes; any other byte passes through unchanged.
func ZeroDecode(encoded []byte) []byte {
	out := make([]byte, 0, len(encoded))
	i := 0
	for i < len(encoded) {
		if encoded[i] == 0x00 && i+1 < len(encoded) {
			count := int(encoded[i+1])
			for k := 0; k < count; k++ {
				out = append(out, 0x00)
			}
			i += 2
			continue
		}
		out = append(out, encoded[i])
		i++
	}
	return out
}

// EncodeWithFallback zero-encodes payload and applies the MTU fallback rule:
// if the encoded form would exceed the MTU budget, the caller must fall back
// to the raw payload and clear the ZEROCODED flag. It returns the bytes to
// transmit and whether zero-encoding was used.
func EncodeWithFallback(payload []byte, mtu int, reservedTailBytes int) ([]byte, bool) {
	encoded := ZeroEncode(payload)
	if len(encoded)+reservedTailBytes > mtu {
		return payload, false
	}
	return encoded, true
}
