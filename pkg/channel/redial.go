package channel

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	cperrors "github.com/binaryash/code-editor/pkg/errors"
	"github.com/binaryash/code-editor/pkg/logging"
)

// RetryPolicy bounds the redial attempts after a transport loss. The
// observed client never reconnected; this policy only runs when a caller
// opts in.
type RetryPolicy struct {
	// InitialWait seeds the exponential backoff.
	InitialWait time.Duration

	// MaxWait caps the interval between attempts.
	MaxWait time.Duration

	// MaxTries bounds the number of dial attempts.
	MaxTries int
}

// DefaultRetryPolicy returns a conservative bounded policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialWait: 500 * time.Millisecond,
		MaxWait:     30 * time.Second,
		MaxTries:    5,
	}
}

// DialWithRetry dials the session endpoint with bounded exponential backoff
// and jitter. Each successful dial yields a fresh channel, and joining anew
// means the server replays an init envelope, which is the resync.
func DialWithRetry(ctx context.Context, roomID, identity string, opts Options, policy RetryPolicy) (*Channel, error) {
	if policy.MaxTries <= 0 {
		return nil, cperrors.New(cperrors.ErrCodeInvalidInput, "retry policy needs at least one attempt")
	}

	expo := backoff.NewExponentialBackOff()
	if policy.InitialWait > 0 {
		expo.InitialInterval = policy.InitialWait
	}
	if policy.MaxWait > 0 {
		expo.MaxInterval = policy.MaxWait
	}
	expo.MaxElapsedTime = 0 // bounded by MaxTries, not wall clock

	var ch *Channel
	attempt := 0
	operation := func() error {
		attempt++
		var err error
		ch, err = Dial(ctx, roomID, identity, opts)
		if err != nil {
			opts.Logger.Warn(logging.CategoryChannel, "redial_failed", "dial attempt failed", map[string]any{
				"room":    roomID,
				"attempt": attempt,
			})
			return err
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(policy.MaxTries-1)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, cperrors.Wrap(err, cperrors.ErrCodeTransport, "redial attempts exhausted").
			WithContext("room", roomID).
			WithContext("attempts", attempt)
	}
	return ch, nil
}
