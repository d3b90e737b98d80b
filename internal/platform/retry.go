package platform

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/felixgeelhaar/welcomer/internal/errors"
)

// RetryPolicy bounds RetryTransient.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries once after a short pause.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// RetryTransient runs op again while it fails with a transient platform
// error. Any other error stops immediately. Only use it for idempotent
// operations such as find-or-create.
func RetryTransient[T any](ctx context.Context, policy RetryPolicy, op func() (T, error), onRetry func(error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxTries),
	}
	if onRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, _ time.Duration) {
			onRetry(err)
		}))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !IsTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.HasCode(err, errors.ErrCodeTransient)
}

// IsNotFound reports whether err means the target no longer exists.
func IsNotFound(err error) bool {
	return errors.HasCode(err, errors.ErrCodeNotFound)
}

// IsPermissionDenied reports whether the bot lacks the rights for an action.
func IsPermissionDenied(err error) bool {
	return errors.HasCode(err, errors.ErrCodePermissionDenied)
}

// ClassifyStatus maps an HTTP-like status code to a coded platform error.
func ClassifyStatus(action string, status int, cause error) error {
	switch {
	case status == 401 || status == 403:
		return errors.NewPermissionDeniedError(action, cause)
	case status == 404:
		return errors.NewNotFoundError(action, cause)
	case status == 429 || status >= 500:
		return errors.NewTransientError(action, cause)
	default:
		return errors.NewPlatformError(action, cause)
	}
}
