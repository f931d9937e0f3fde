package service

import (
	"context"
	"errors"

	appErrors "github.com/ams-platform/attendance-api/pkg/errors"
)

// storeErr maps persistence failures to the API taxonomy. Timeouts become a
// retryable 503 instead of a terminal 500 so clients can distinguish them.
func storeErr(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
