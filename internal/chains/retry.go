// internal/chains/retry.go
package chains

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
)

// ReadPolicy configures retries of read-only ledger calls. Submissions are
// never passed through here.
type ReadPolicy struct {
	Attempts uint
	Delay    time.Duration
}

func DefaultReadPolicy() ReadPolicy {
	return ReadPolicy{Attempts: 3, Delay: 500 * time.Millisecond}
}

// Read runs fn with backoff until it succeeds, permanent(err) is true, or
// ctx is done. The returned error is the last one fn produced.
func Read(ctx context.Context, policy ReadPolicy, logger *zap.Logger, op string, permanent func(error) bool, fn func() error) error {
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}

	var lastErr error
	_ = retry.Do(
		func() error {
			lastErr = fn()
			return lastErr
		},
		retry.Attempts(policy.Attempts),
		retry.Delay(policy.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			return permanent == nil || !permanent(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying ledger read",
				zap.String("op", op),
				zap.Uint("attempt", n+1),
				zap.Error(err))
		}),
	)
	return lastErr
}
