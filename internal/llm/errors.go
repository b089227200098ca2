package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmbeddingUnavailable indicates the embedding backend cannot be
	// reached. Transient and locally retryable; never silently replaced
	// with a zero vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrFatalAPI marks API errors that retrying cannot fix: bad
	// credentials, exhausted quota, billing problems. Retry loops stop
	// immediately on these.
	ErrFatalAPI = errors.New("fatal API error")
)

// fatalPatterns are substrings of provider error messages that indicate a
// non-retryable account or auth problem.
var fatalPatterns = []string{
	"credit balance",
	"rate limit",
	"quota",
	"billing",
	"invalid api key",
	"authentication failed",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether err is an API error that retrying cannot
// recover from. Matching is on the message because langchaingo providers
// surface these as plain errors.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range fatalPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal API errors with ErrFatalAPI so callers can stop
// retrying via errors.Is. Non-fatal errors pass through unchanged.
func wrapFatalError(err error) error {
	if err == nil {
		return nil
	}
	if isFatalAPIError(err) {
		return fmt.Errorf("%w: %v", ErrFatalAPI, err)
	}
	return err
}
