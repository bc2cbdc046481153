package transfer

import "time"

// maxChunkRetries bounds consecutive failed transmissions of a single chunk.
const maxChunkRetries = 3

type retryDecision struct {
	exhausted bool
	backoff   time.Duration
}

// nextRetry decides what happens after a failed chunk transmission.
// retryCount is the number of consecutive failures, including the one just
// observed. Backoff grows linearly: 1s after the first failure, 2s after the
// second.
func nextRetry(retryCount int) retryDecision {
	if retryCount >= maxChunkRetries {
		return retryDecision{exhausted: true}
	}
	return retryDecision{backoff: time.Duration(retryCount) * time.Second}
}
