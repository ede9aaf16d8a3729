package deposit

import (
	"context"
	"errors"

	"github.com/cenkalti/backoff/v4"
)

var errPending = errors.New("transaction pending")

// checkFunc reports whether a transaction reached the wanted state. A non-nil
// error is a definitive outcome and stops polling.
type checkFunc func(ctx context.Context) (bool, error)

// waitFor polls check with exponential backoff until it reports done, returns
// an error, or the confirmation timeout elapses.
func waitFor(ctx context.Context, policy Policy, check checkFunc) error {
	ctx, cancel := context.WithTimeout(ctx, policy.ConfirmationTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.PollInterval
	b.MaxInterval = 10 * policy.PollInterval
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		done, err := check(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errPending
		}
		return nil
	}, backoff.WithContext(b, ctx))
}
