package queue

import "strings"

// nonRetryableFragments are error-message fragments for which retrying cannot
// change the outcome. Matching is a case-insensitive substring check; new
// permanent-failure categories are added by extending this list.
var nonRetryableFragments = []string{
	"pr not eligible",
	"invalid webhook payload",
	"authentication failed",
	"repository not found",
	"pr not found",
}

// ShouldRetry decides whether a failed attempt should be requeued. It is a
// pure function over the error and the retry budget: the budget must not be
// exhausted and the error must not be classified as permanent. Transient
// failures (network errors, rate limits, timeouts) fall through to retry.
func ShouldRetry(err error, retryCount, maxRetries int) bool {
	if retryCount >= maxRetries {
		return false
	}
	return !isPermanent(err)
}

func isPermanent(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range nonRetryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
