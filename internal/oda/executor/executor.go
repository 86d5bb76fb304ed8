// Package executor implements C7: RetryingExecutor (OdaAgent in the
// source), the per-message execution wrapper around one engine Runner.
// It owns exactly-once user-message submission, exponential retry from
// current engine state, and injection of standard retry/final-failure
// events into the forwarded stream.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
	"github.com/onedragon-agent/oda-agent/internal/oda/metrics"
)

const tracerName = "oda-agent/executor"

// DefaultMaxRetries is the default retry budget for a fresh executor.
const DefaultMaxRetries = 3

// Executor is C7: RetryingExecutor.
type Executor struct {
	triple     engine.Triple
	runner     engine.Runner
	maxRetries int
	log        *logging.Logger
	metrics    *metrics.Registry
}

// New wraps runner bound to triple with a retry budget of maxRetries
// (spec default: 3).
func New(triple engine.Triple, runner engine.Runner, maxRetries int) *Executor {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Executor{
		triple:     triple,
		runner:     runner,
		maxRetries: maxRetries,
		log:        logging.Named("executor"),
	}
}

// SetMetrics attaches a metrics registry; observations start on the
// next RunAsync call. Optional — nil is a no-op.
func (e *Executor) SetMetrics(reg *metrics.Registry) {
	e.metrics = reg
}

// Stream implements engine.RunStream-like iteration for the consumer,
// but additionally interleaves the injected retry/final-failure events
// produced by the state machine below.
type Stream struct {
	events chan engine.Event
	done   chan struct{}
	cancel context.CancelFunc
}

// Events exposes the forward-only channel of events. The channel is
// closed when the run completes or a final-failure event has been
// emitted. Callers that stop ranging over Events before closure should
// call Stop to release resources and skip any pending retry sleep.
func (s *Stream) Events() <-chan engine.Event { return s.events }

// Stop cancels the underlying run promptly, whether it is mid-attempt
// or sleeping before a retry.
func (s *Stream) Stop() {
	s.cancel()
	<-s.done
}

// RunAsync starts a new, non-restartable run for message and returns a
// stream of events. message is submitted to the engine on the first
// attempt only; every retry attempt invokes the engine with an empty
// new-message, relying on the engine having already appended it during
// attempt 1.
func (e *Executor) RunAsync(ctx context.Context, message string) *Stream {
	runCtx, cancel := context.WithCancel(ctx)
	s := &Stream{
		events: make(chan engine.Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(s.done)
		defer close(s.events)
		e.drive(runCtx, message, s.events)
	}()

	return s
}

// Run is the synchronous mirror of RunAsync: it drains the stream and
// returns the collected events in order.
func (e *Executor) Run(ctx context.Context, message string) []engine.Event {
	s := e.RunAsync(ctx, message)
	var out []engine.Event
	for ev := range s.Events() {
		out = append(out, ev)
	}
	return out
}

func (e *Executor) drive(ctx context.Context, message string, out chan<- engine.Event) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "executor.run_async",
		trace.WithAttributes(
			attribute.String("oda.app_name", e.triple.AppName),
			attribute.String("oda.user_id", e.triple.UserID),
			attribute.String("oda.session_id", e.triple.SessionID),
		))
	defer span.End()

	newMessage := message
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "cancelled")
			return
		}

		failed, permanent, err := e.runAttempt(ctx, newMessage, out)
		newMessage = "" // exactly-once: only the first attempt carries the user message

		if !failed {
			span.SetStatus(codes.Ok, "")
			e.observeAttempts(attempt + 1)
			return
		}

		if permanent || attempt >= e.maxRetries {
			if permanent {
				e.log.Warn("session %s: permanent engine failure, failing fast after %d attempt(s): %v", e.triple.SessionID, attempt+1, err)
				span.SetStatus(codes.Error, "permanent engine failure")
			} else {
				e.log.Warn("session %s: exhausted %d retries: %v", e.triple.SessionID, e.maxRetries, err)
				span.SetStatus(codes.Error, "max retries exceeded")
			}
			e.observeAttempts(attempt + 1)
			if !emit(ctx, out, finalFailureEvent(attempt)) {
				return
			}
			return
		}

		attemptNumber := attempt + 1
		e.log.Debug("session %s: attempt %d/%d failed, retrying: %v", e.triple.SessionID, attemptNumber, e.maxRetries, err)
		if e.metrics != nil {
			e.metrics.RetriesEmitted.Inc()
		}
		if !emit(ctx, out, retryEvent(attemptNumber, e.maxRetries)) {
			return
		}

		delay := time.Duration(1<<uint(attempt)) * time.Second
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (e *Executor) observeAttempts(n int) {
	if e.metrics != nil {
		e.metrics.ExecutorAttempts.Observe(float64(n))
	}
}

// runAttempt drives a single engine run to completion (or failure),
// forwarding every event it yields before the failure point unchanged.
// It returns failed=true if the attempt should count against the retry
// budget, per the classification rule in internal/oda/errkind (§9 open
// question 1): a terminal engine event is a failure iff it carries an
// error_code other than "RETRY_ATTEMPT" (always retryable); a raised
// stream error is a failure that is additionally retryable only while
// errkind.IsTransient(err) holds — a permanent raised error (auth
// failure, bad request, ...) sets permanent=true so the caller fails
// fast instead of spending the retry budget.
func (e *Executor) runAttempt(ctx context.Context, newMessage string, out chan<- engine.Event) (failed, permanent bool, err error) {
	rs, err := e.runner.RunAsync(ctx, e.triple.UserID, e.triple.SessionID, newMessage)
	if err != nil {
		return true, false, err
	}
	defer rs.Close()

	for {
		ev, ok, streamErr := rs.Next(ctx)
		if streamErr != nil {
			return true, !errkind.IsTransient(streamErr), streamErr
		}
		if !ok {
			return false, false, nil
		}
		terminalErr := ev.ErrorCode != "" && ev.ErrorCode != "RETRY_ATTEMPT"
		if !emit(ctx, out, ev) {
			return true, false, ctx.Err()
		}
		if terminalErr {
			return true, false, fmt.Errorf("engine error event: %s", ev.ErrorMessage)
		}
	}
}

// emit sends ev to out, honoring cancellation. Returns false if the
// context was cancelled before the send completed.
func emit(ctx context.Context, out chan<- engine.Event, ev engine.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func retryEvent(attemptNumber, maxRetries int) engine.Event {
	text := fmt.Sprintf("Retry attempt %d/%d for agent execution", attemptNumber, maxRetries)
	return engine.Event{
		Author:       "system",
		Content:      &engine.Content{Parts: []engine.Part{{Text: text}}},
		ErrorCode:    "RETRY_ATTEMPT",
		ErrorMessage: text,
		Actions:      map[string]any{},
	}
}

// finalFailureEvent builds the terminal failure event. retriesPerformed
// is the number of RETRY_ATTEMPT events already emitted before this
// call — equal to maxRetries when the budget was exhausted, and
// possibly 0 when a permanent engine error made the executor fail fast.
func finalFailureEvent(retriesPerformed int) engine.Event {
	return engine.Event{
		Author:       "system",
		Content:      nil,
		ErrorCode:    "MAX_RETRIES_EXCEEDED",
		ErrorMessage: fmt.Sprintf("Agent execution failed after %d retry attempts", retriesPerformed),
		Actions:      map[string]any{"escalate": true},
	}
}
