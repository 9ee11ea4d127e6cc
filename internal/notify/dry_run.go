package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// DryRunNotifier logs messages without sending them.
type DryRunNotifier struct {
	logger zerolog.Logger
}

// NewDryRunNotifier returns a notifier that suppresses delivery and logs instead.
func NewDryRunNotifier(logger zerolog.Logger) *DryRunNotifier {
	return &DryRunNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *DryRunNotifier) Notify(_ context.Context, message string) error {
	n.logger.Info().
		Str("message", message).
		Msg("[DRY-RUN] Would notify")
	return nil
}
