package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nholik/homework-sentinel/internal/healthcheck"
	"github.com/nholik/homework-sentinel/internal/homework"
	"github.com/nholik/homework-sentinel/internal/metrics"
	"github.com/nholik/homework-sentinel/internal/notify"
	"github.com/nholik/homework-sentinel/internal/practicum"
	"github.com/rs/zerolog"
)

// Outcome summarizes how a cycle ended.
type Outcome string

const (
	OutcomeNotified       Outcome = "notified"
	OutcomeDeduplicated   Outcome = "deduplicated"
	OutcomeTransient      Outcome = "transient"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	OutcomeFailed         Outcome = "failed"
)

const (
	notificationStatus  = "status"
	notificationFailure = "failure"
)

// Runner drives the poll-check-notify loop. It owns the poll cursor and the
// last delivered message; both are only touched from the goroutine calling
// Run or RunOnce.
type Runner struct {
	logger       zerolog.Logger
	pollInterval time.Duration
	clock        clockwork.Clock
	runOnce      func(context.Context) error
	fetcher      practicum.Fetcher
	notifier     notify.Notifier
	metrics      *metrics.Metrics
	tracker      *healthcheck.Tracker

	cursor       int64
	cursorSet    bool
	lastNotified string
}

// Option customizes runner behavior.
type Option func(*Runner)

// WithClock overrides the clock used for sleeping and the initial cursor.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) {
		r.clock = clock
	}
}

// WithRunOnce overrides the single-cycle execution step.
func WithRunOnce(runOnce func(context.Context) error) Option {
	return func(r *Runner) {
		r.runOnce = runOnce
	}
}

// WithStatusClient sets the status endpoint client used by the default RunOnce.
func WithStatusClient(fetcher practicum.Fetcher) Option {
	return func(r *Runner) {
		r.fetcher = fetcher
	}
}

// WithNotifier sets where messages are delivered.
func WithNotifier(notifier notify.Notifier) Option {
	return func(r *Runner) {
		r.notifier = notifier
	}
}

// WithCursor sets the initial from_date instead of the current time.
func WithCursor(cursor int64) Option {
	return func(r *Runner) {
		r.cursor = cursor
		r.cursorSet = true
	}
}

// WithMetrics enables Prometheus metrics for cycles and notifications.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithTracker records cycle results for the health endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(r *Runner) {
		r.tracker = tracker
	}
}

// New constructs a Runner with the given logger and poll interval.
func New(logger zerolog.Logger, pollInterval time.Duration, opts ...Option) *Runner {
	r := &Runner{
		logger:       logger,
		pollInterval: pollInterval,
		clock:        clockwork.NewRealClock(),
	}
	r.runOnce = r.defaultRunOnce

	for _, opt := range opts {
		opt(r)
	}
	if !r.cursorSet {
		r.cursor = r.clock.Now().Unix()
	}

	return r
}

// Cursor returns the from_date used by the next poll.
func (r *Runner) Cursor() int64 {
	return r.cursor
}

// LastNotified returns the last message delivered to the chat.
func (r *Runner) LastNotified() string {
	return r.lastNotified
}

// Run starts the main loop and blocks until the context is canceled.
// Each cycle completes before the poll interval starts counting.
func (r *Runner) Run(ctx context.Context) error {
	if r.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	r.logger.Info().
		Dur("poll_interval", r.pollInterval).
		Int64("cursor", r.cursor).
		Msg("runner started")

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.logCycleError(err)
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("runner stopped")
			return nil
		case <-r.clock.After(r.pollInterval):
		}
	}
}

// RunOnce executes a single cycle of the runner.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.runOnce(ctx)
}

func (r *Runner) defaultRunOnce(ctx context.Context) (err error) {
	start := r.clock.Now()
	outcome := OutcomeFailed

	defer func() {
		if recovered := recover(); recovered != nil {
			outcome = OutcomeFailed
			err = r.fail(ctx, phaseCycle, fmt.Errorf("panic: %v", recovered))
		}
		r.recordCycle(outcome, r.clock.Since(start))
	}()

	outcome, err = r.cycle(ctx)
	return err
}

func (r *Runner) cycle(ctx context.Context) (Outcome, error) {
	if r.fetcher == nil || r.notifier == nil {
		return OutcomeFailed, wrapCycle(KindFailure, phaseCycle, errors.New("status client and notifier are required"))
	}

	raw, err := r.fetcher.Fetch(ctx, r.cursor)
	if err != nil {
		return r.handle(ctx, phaseFetch, err)
	}

	response, err := homework.Validate(raw)
	if err != nil {
		return r.handle(ctx, phaseValidate, err)
	}

	message, err := r.compose(response)
	if err != nil {
		return r.handle(ctx, phaseFormat, err)
	}

	return r.deliver(ctx, message, response.CurrentDate)
}

// compose picks the first listed homework; the API returns newest first.
func (r *Runner) compose(response homework.Response) (string, error) {
	if len(response.Homeworks) == 0 {
		r.logger.Debug().Int64("current_date", response.CurrentDate).Msg("no homework in the response")
		return homework.NoHomeworksMessage, nil
	}
	return homework.ParseStatus(response.Homeworks[0])
}

func (r *Runner) deliver(ctx context.Context, message string, currentDate int64) (Outcome, error) {
	if message == r.lastNotified {
		r.logger.Debug().Str("message", message).Msg("status unchanged, notification skipped")
		r.metrics.IncDeduplicated()
		return OutcomeDeduplicated, nil
	}

	if err := r.notifier.Notify(ctx, message); err != nil {
		return r.handle(ctx, phaseNotify, err)
	}

	r.lastNotified = message
	r.metrics.IncNotifications(notificationStatus)
	r.advance(currentDate)
	return OutcomeNotified, nil
}

// handle applies the policy classify picks for an error from any phase.
func (r *Runner) handle(ctx context.Context, phase string, err error) (Outcome, error) {
	switch kind := classify(phase, err); kind {
	case KindTransient:
		var fetchErr *practicum.FetchError
		if errors.As(err, &fetchErr) {
			r.metrics.IncFetchErrors(string(fetchErr.Reason))
		} else {
			r.metrics.IncFetchErrors("shape")
		}
		return OutcomeTransient, wrapCycle(kind, phase, err)
	case KindDelivery:
		r.metrics.IncDeliveryErrors()
		return OutcomeDeliveryFailed, wrapCycle(kind, phase, err)
	default:
		return OutcomeFailed, r.fail(ctx, phase, err)
	}
}

// fail reports a cycle failure to the chat unless the same report was the
// last message sent.
func (r *Runner) fail(ctx context.Context, phase string, err error) error {
	message := homework.FailureMessage(err)
	if message == r.lastNotified {
		r.logger.Debug().Str("message", message).Msg("failure already reported, notification skipped")
		r.metrics.IncDeduplicated()
		return wrapCycle(KindFailure, phase, err)
	}

	if r.notifier == nil {
		return wrapCycle(KindFailure, phase, err)
	}
	if notifyErr := r.safeNotify(ctx, message); notifyErr != nil {
		r.metrics.IncDeliveryErrors()
		r.logger.Error().Err(notifyErr).Str("phase", phase).Msg("failure report not delivered")
		return wrapCycle(KindFailure, phase, err)
	}

	r.lastNotified = message
	r.metrics.IncNotifications(notificationFailure)
	return wrapCycle(KindFailure, phase, err)
}

// safeNotify turns a notifier panic into an error. It runs from the deferred
// recover in defaultRunOnce, where a second panic would escape the loop.
func (r *Runner) safeNotify(ctx context.Context, message string) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("notifier panic: %v", recovered)
		}
	}()
	return r.notifier.Notify(ctx, message)
}

// advance moves the cursor forward; it never moves backward.
func (r *Runner) advance(next int64) {
	if next < r.cursor {
		r.logger.Warn().
			Int64("cursor", r.cursor).
			Int64("current_date", next).
			Msg("server reported an older current_date, cursor kept")
		return
	}
	r.cursor = next
}

func (r *Runner) recordCycle(outcome Outcome, duration time.Duration) {
	r.metrics.ObserveCycle(string(outcome), duration)
	r.metrics.SetCursor(r.cursor)
	if outcome == OutcomeNotified || outcome == OutcomeDeduplicated {
		r.metrics.SetLastSuccessfulCycleTimestamp(r.clock.Now())
	}
	r.tracker.RecordCycle(duration, string(outcome), r.cursor)

	r.logger.Debug().
		Str("outcome", string(outcome)).
		Int64("cursor", r.cursor).
		Dur("duration", duration).
		Msg("cycle finished")
}

func (r *Runner) logCycleError(err error) {
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		r.logger.Error().Err(err).Msg("run cycle failed")
		return
	}

	event := r.logger.Error()
	if cycleErr.Kind == KindTransient {
		event = r.logger.Warn()
	}
	event.Err(cycleErr.Err).
		Str("kind", string(cycleErr.Kind)).
		Str("phase", cycleErr.Phase).
		Int64("cursor", r.cursor).
		Msg("run cycle failed")
}
