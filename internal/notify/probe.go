package notify

import (
	"context"
	"errors"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

// Pinger verifies that a transport accepts its credentials.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe pings until it succeeds, the backoff gives up, or the transport
// rejects the credentials outright.
func Probe(ctx context.Context, pinger Pinger, policy backoff.BackOff) error {
	operation := func() error {
		err := pinger.Ping(ctx)
		if err == nil {
			return nil
		}
		var deliveryErr *DeliveryError
		if errors.As(err, &deliveryErr) && isPermanentCode(deliveryErr.Code) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

func isPermanentCode(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}
