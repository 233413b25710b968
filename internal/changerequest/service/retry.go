package service

import (
	"context"

	dErrors "crboard/pkg/domain-errors"
)

// RetryOnConflict calls fn, re-running it up to retries more times while it
// fails with CodeConflict. Each attempt must be a complete operation so it
// reloads the latest document. Callers of the service use this; the service
// itself never retries.
func RetryOnConflict[T any](ctx context.Context, retries int, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		result, err = fn()
		if err == nil || !dErrors.HasCode(err, dErrors.CodeConflict) || ctx.Err() != nil {
			return result, err
		}
	}
	return result, err
}
