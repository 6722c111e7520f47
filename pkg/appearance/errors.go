package appearance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/metaverse-go/region-session/pkg/wire"
)

// Error taxonomy additions specific to the appearance pipeline.
var (
	// ErrAppearancePartial: one or more bakes failed to build/upload; the
	// pipeline completes but signals success=false.
	ErrAppearancePartial = errors.New("appearance: partial failure")

	// ErrAppearanceFatal: the own-avatar wait never succeeded; the pipeline
	// run is aborted. A replace that would leave a body part missing is
	// reported through EditResult, not this error.
	ErrAppearanceFatal = errors.New("appearance: fatal failure")

	// ErrCapabilityNack: the HTTP bake endpoint returned success=false or a
	// mismatched expected COF version after exhausting retries.
	ErrCapabilityNack = errors.New("appearance: capability nack")
)

func wrapf(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, format, args...)
}

// waitForMessage blocks on inbound until a message of type want arrives,
// ctx is done, or timeout elapses. Messages of other types received during
// the wait are consumed from inbound and dropped; no other reader of the
// channel sees them.
func waitForMessage(ctx context.Context, inbound <-chan wire.Message, want wire.MessageType, timeout time.Duration) (wire.Message, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case msg := <-inbound:
			if msg.Type == want {
				return msg, nil
			}
		case <-ctx.Done():
			return wire.Message{}, ctx.Err()
		case <-deadline.C:
			return wire.Message{}, errors.Errorf("appearance: timed out waiting for message type %d", want)
		}
	}
}
