package runner

import (
	"errors"
	"fmt"

	"github.com/nholik/homework-sentinel/internal/homework"
	"github.com/nholik/homework-sentinel/internal/notify"
	"github.com/nholik/homework-sentinel/internal/practicum"
)

// Kind classifies how a cycle error is handled. None of them stop the runner.
type Kind string

const (
	// KindTransient errors are logged and retried on the next cycle.
	KindTransient Kind = "transient"
	// KindDelivery errors leave the cursor in place so the message is regenerated.
	KindDelivery Kind = "delivery"
	// KindFailure errors are reported to the chat, deduplicated.
	KindFailure Kind = "failure"
)

const (
	phaseFetch    = "fetch"
	phaseValidate = "validate"
	phaseFormat   = "format"
	phaseNotify   = "notify"
	phaseCycle    = "cycle"
)

// CycleError captures errors that should not stop the runner loop.
type CycleError struct {
	Kind  Kind
	Phase string
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

func wrapCycle(kind Kind, phase string, err error) error {
	if err == nil {
		return nil
	}
	return &CycleError{Kind: kind, Phase: phase, Err: err}
}

// classify maps a component error to its handling policy. A shape error is
// only transient when the whole response is malformed.
func classify(phase string, err error) Kind {
	var (
		fetchErr    *practicum.FetchError
		shapeErr    *homework.ShapeError
		verdictErr  *homework.UnknownVerdictError
		deliveryErr *notify.DeliveryError
	)
	switch {
	case errors.As(err, &fetchErr):
		return KindTransient
	case errors.As(err, &shapeErr) && phase == phaseValidate:
		return KindTransient
	case errors.As(err, &shapeErr), errors.As(err, &verdictErr):
		return KindFailure
	case errors.As(err, &deliveryErr):
		return KindDelivery
	default:
		return KindFailure
	}
}
