package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// AckCost is the wire cost in bytes of a single appended ACK sequence number.
const AckCost = 4

// AckCountCost is the trailing 1-byte count that follows the appended ACKs.
const AckCountCost = 1

// MaxAppendedAcks returns how many ACKs fit in remaining budget bytes,
// reserving AckCountCost for the trailing count byte.
func MaxAppendedAcks(remainingBudget int) int {
	usable := remainingBudget - AckCountCost
	if usable <= 0 {
		return 0
	}
	n := usable / AckCost
	if n < 0 {
		return 0
	}
	return n
}

// AppendAcks appends up to K acks (K bounded by remaining MTU budget) to the
// tail of body, each as a 4-byte big-endian sequence number, followed by a
// 1-byte count. It returns the new body, the ACKs actually appended (in
// order, so the caller can remove them from its pending queue), and whether
// any were appended (the caller sets FlagAppendedAcks accordingly).
func AppendAcks(body []byte, pending []uint32, mtu int) (out []byte, appended []uint32, didAppend bool) {
	remaining := mtu - len(body)
	k := MaxAppendedAcks(remaining)
	if k > len(pending) {
		k = len(pending)
	}
	if k <= 0 {
		return body, nil, false
	}
	appended = pending[:k]
	out = make([]byte, len(body), len(body)+k*AckCost+AckCountCost)
	copy(out, body)
	for _, seq := range appended {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], seq)
		out = append(out, b[:]...)
	}
	out = append(out, byte(k))
	return out, appended, true
}

// StripAcks removes the appended-ACK tail from body (when FlagAppendedAcks
// is set), returning the remaining body and the extracted sequence numbers
// in the order they were appended.
func StripAcks(body []byte) (remaining []byte, acks []uint32, err error) {
	if len(body) < 1 {
		return nil, nil, errors.New("wire: body too short for appended-ack count")
	}
	count := int(body[len(body)-1])
	need := 1 + count*AckCost
	if need > len(body) {
		return nil, nil, errors.Errorf("wire: appended-ack count %d exceeds body length %d", count, len(body))
	}
	tail := body[len(body)-need : len(body)-1]
	acks = make([]uint32, count)
	for i := 0; i < count; i++ {
		acks[i] = binary.BigEndian.Uint32(tail[i*AckCost : i*AckCost+AckCost])
	}
	remaining = body[:len(body)-need]
	return remaining, acks, nil
}
