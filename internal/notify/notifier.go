package notify

import (
	"context"
	"fmt"
)

// Notifier delivers a plain-text message to the configured chat.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// DeliveryError wraps a failed delivery attempt. Code carries the
// transport's error code when one was reported.
type DeliveryError struct {
	Code int
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("deliver notification (code %d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("deliver notification: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
