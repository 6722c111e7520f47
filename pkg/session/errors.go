package session

import "github.com/pkg/errors"

// Error taxonomy. Each sentinel is wrapped with call-site context via
// github.com/pkg/errors and compared with errors.Is at boundaries that need
// to branch on fault class.
var (
	// ErrTransientTransport covers timeouts, socket errors, and peer
	// resets that the transport recovers from via resend or teardown.
	ErrTransientTransport = errors.New("session: transient transport error")

	// ErrProtocolViolation covers malformed packets and source-address
	// mismatches: the packet is discarded and the error returned to the
	// caller. A datagram from the wrong source or with an unparseable header
	// is not counted in Stats; one rejected later (a malformed appended-ACK
	// tail or PacketAck body) has already been counted as received.
	ErrProtocolViolation = errors.New("session: protocol violation")

	// ErrResourceExhaustion covers resend-limit exhaustion and MTU
	// overflow on zero-encode.
	ErrResourceExhaustion = errors.New("session: resource exhaustion")
)

// wrapf wraps err (or a taxonomy sentinel) with formatted context, keeping
// the original cause available via errors.Cause/errors.Is.
func wrapf(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, format, args...)
}
