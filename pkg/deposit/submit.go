package deposit

import (
	"context"

	"github.com/rs/zerolog"

	"deposit-bridge/pkg/classify"
	"deposit-bridge/pkg/types"
)

// sendFunc submits one transaction with the given options and returns its hash
type sendFunc func(ctx context.Context, opts SendOptions) (string, error)

// submissionPlan lists the submission modes tried in order
func submissionPlan(sponsorship bool) []SendOptions {
	if sponsorship {
		return []SendOptions{{Sponsor: true}, {Sponsor: false}}
	}
	return []SendOptions{{Sponsor: false}}
}

// submit walks the submission plan. A user rejection stops immediately; any
// other failure moves on to the next mode. The last failure is returned.
func submit(ctx context.Context, purpose types.AttemptPurpose, sponsorship bool, status StatusFunc, logger zerolog.Logger, send sendFunc) (string, []types.TransactionAttempt, error) {
	plan := submissionPlan(sponsorship)
	attempts := make([]types.TransactionAttempt, 0, len(plan))

	var lastErr error
	for i, opts := range plan {
		hash, err := send(ctx, opts)
		if err == nil {
			attempts = append(attempts, types.TransactionAttempt{
				Purpose:   purpose,
				Sponsored: opts.Sponsor,
				Hash:      hash,
				Outcome:   types.AttemptPending,
			})
			return hash, attempts, nil
		}

		attempts = append(attempts, types.TransactionAttempt{
			Purpose:       purpose,
			Sponsored:     opts.Sponsor,
			Outcome:       types.AttemptFailed,
			FailureReason: err.Error(),
		})
		lastErr = err

		if classify.Classify(err) == classify.KindUserRejected {
			return "", attempts, err
		}

		if i < len(plan)-1 {
			logger.Warn().
				Err(err).
				Str("purpose", string(purpose)).
				Msg("Sponsored submission failed, retrying without sponsorship")
			notify(status, "Sponsored transaction failed, retrying without sponsorship...")
		}
	}

	return "", attempts, lastErr
}
