package billing

import (
	"errors"
	"fmt"
)

// ErrNoSellerRef marks a webhook event that carries no resolvable seller
// reference. The event is recorded and skipped; the condition is reported to
// the caller instead of silently dropped.
var ErrNoSellerRef = errors.New("webhook event has no seller reference")

// ErrSubscriptionNotFound is returned when a seller has no subscription row.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ProviderError wraps a failed call to the external payment provider. Local
// operations depending on the call abort without partial writes, so the whole
// operation is safely retryable.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment provider %s failed: status=%d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err originated from the external provider.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
