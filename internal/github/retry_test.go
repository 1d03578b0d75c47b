package github

import (
	"net/http"
	"testing"
	"time"

	gogithub "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	"revstack.dev/revstack/internal/errors"
)

func TestMain(m *testing.M) {
	retryInterval = time.Millisecond
	m.Run()
}

func apiError(status int) *gogithub.ErrorResponse {
	return &gogithub.ErrorResponse{
		Response: &http.Response{
			StatusCode: status,
			Request:    &http.Request{},
		},
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("rate limited call is retried and succeeds", func(t *testing.T) {
		attempts := 0
		err := withRetry(func() error {
			attempts++
			if attempts < 3 {
				return &gogithub.RateLimitError{Response: &http.Response{StatusCode: http.StatusForbidden, Request: &http.Request{}}}
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
	})

	t.Run("server errors are retried then propagate", func(t *testing.T) {
		attempts := 0
		err := withRetry(func() error {
			attempts++
			return apiError(http.StatusBadGateway)
		})
		require.Error(t, err)
		require.Equal(t, maxAttempts, attempts)
	})

	t.Run("auth failure is immediate and mapped", func(t *testing.T) {
		attempts := 0
		err := withRetry(func() error {
			attempts++
			return apiError(http.StatusUnauthorized)
		})
		require.ErrorIs(t, err, errors.ErrAuth)
		require.Equal(t, 1, attempts)
	})

	t.Run("not found is immediate and mapped", func(t *testing.T) {
		attempts := 0
		err := withRetry(func() error {
			attempts++
			return apiError(http.StatusNotFound)
		})
		require.ErrorIs(t, err, errors.ErrPRNotFound)
		require.Equal(t, 1, attempts)
	})

	t.Run("validation error is immediate and unmapped", func(t *testing.T) {
		attempts := 0
		err := withRetry(func() error {
			attempts++
			return apiError(http.StatusUnprocessableEntity)
		})
		require.Error(t, err)
		require.NotErrorIs(t, err, errors.ErrAuth)
		require.Equal(t, 1, attempts)
	})
}
