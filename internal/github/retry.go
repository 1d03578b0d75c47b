package github

import (
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	gogithub "github.com/google/go-github/v62/github"

	"revstack.dev/revstack/internal/errors"
)

// maxAttempts bounds how often a transient remote failure is retried
// before it propagates.
const maxAttempts = 4

// retryInterval seeds the backoff policy. Tests shrink it.
var retryInterval = 500 * time.Millisecond

// withRetry runs fn under the bounded exponential backoff policy.
// Rate-limit and transient network failures are retried; everything else
// fails immediately, translated into the error taxonomy where possible.
func withRetry(fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = retryInterval
	policy.MaxInterval = 10 * time.Second

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(translate(err))
	}, backoff.WithMaxRetries(policy, maxAttempts-1))
}

// retryable reports whether an error is worth another attempt.
func retryable(err error) bool {
	var rateLimit *gogithub.RateLimitError
	var abuse *gogithub.AbuseRateLimitError
	if stderrors.As(err, &rateLimit) || stderrors.As(err, &abuse) {
		return true
	}

	var apiErr *gogithub.ErrorResponse
	if stderrors.As(err, &apiErr) && apiErr.Response != nil {
		return apiErr.Response.StatusCode >= 500
	}

	var netErr net.Error
	return stderrors.As(err, &netErr)
}

// translate maps API failures onto the error taxonomy. Authentication
// failures are fatal for the whole invocation; missing pull requests get
// their own sentinel so callers can branch on them.
func translate(err error) error {
	var apiErr *gogithub.ErrorResponse
	if stderrors.As(err, &apiErr) && apiErr.Response != nil {
		switch apiErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.ErrAuth
		case http.StatusNotFound:
			return errors.ErrPRNotFound
		}
	}
	return err
}
