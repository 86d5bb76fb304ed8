// Package enginetest is a deterministic, goroutine-safe in-memory
// engine fake satisfying the full facade in internal/oda/engine. It
// supports scripted fault injection per agent type (fail on attempt N,
// fail every attempt, succeed) and records every appended event for
// exact-ordering assertions, standing in for a real LLM/MCP engine in
// tests and the CLI demo subcommand (§C supplemented feature 3).
package enginetest

import (
	"context"
	"errors"
	"sync"

	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
)

// AttemptOutcome scripts one RunAsync call: the events to emit, and
// how (or whether) the attempt fails once they're exhausted.
type AttemptOutcome struct {
	// Events are yielded in order before any fault. If Fail is true and
	// RaiseErr is false, the last element should normally carry a
	// non-empty ErrorCode (e.g. "SIMULATED_FAILURE") so the terminal
	// event itself signals failure, matching the engine-event failure
	// path in RetryingExecutor. If RaiseErr is true, Events are
	// emitted cleanly and the stream then raises an error from Next.
	Events   []engine.Event
	Fail     bool
	RaiseErr bool
	// Permanent marks a RaiseErr failure as errkind.IsTransient-false
	// (e.g. an auth error), so RetryingExecutor fails fast instead of
	// retrying. Ignored unless RaiseErr is set.
	Permanent bool
}

// Succeed builds a single successful attempt with the given events.
func Succeed(events ...engine.Event) AttemptOutcome {
	return AttemptOutcome{Events: events}
}

// FailWithEvent builds an attempt that fails via a terminal error event.
func FailWithEvent(errorCode, message string, events ...engine.Event) AttemptOutcome {
	term := engine.Event{Author: "engine", ErrorCode: errorCode, ErrorMessage: message}
	return AttemptOutcome{Events: append(append([]engine.Event{}, events...), term), Fail: true}
}

// FailWithRaisedError builds an attempt that emits events then raises a
// stream error instead of a terminal event. The error text is crafted
// to classify as errkind.IsTransient-true (a connection reset), so
// this outcome is retryable — use FailWithPermanentError for a
// fail-fast scenario.
func FailWithRaisedError(events ...engine.Event) AttemptOutcome {
	return AttemptOutcome{Events: events, Fail: true, RaiseErr: true}
}

// FailWithPermanentError builds an attempt that raises a stream error
// errkind.IsTransient classifies as permanent (an auth failure), so
// RetryingExecutor fails fast instead of consuming its retry budget.
func FailWithPermanentError(events ...engine.Event) AttemptOutcome {
	return AttemptOutcome{Events: events, Fail: true, RaiseErr: true, Permanent: true}
}

// AppendedEvent is one entry in the fake's replay log.
type AppendedEvent struct {
	UserID    string
	SessionID string
	Event     engine.Event
}

// Engine is the in-memory fake. It implements engine.SessionStore,
// engine.AgentBuilder, and engine.RunnerBuilder simultaneously; pass
// the same instance for all three roles when wiring Context.
type Engine struct {
	mu          sync.Mutex
	sessions    map[engine.Triple]struct{}
	plans       map[string][]AttemptOutcome
	createCount map[string]int
	replay      []AppendedEvent
	messages    []string
}

// New constructs an empty fake with no scripted plans.
func New() *Engine {
	return &Engine{
		sessions:    make(map[engine.Triple]struct{}),
		plans:       make(map[string][]AttemptOutcome),
		createCount: make(map[string]int),
	}
}

// SetPlan scripts the sequence of attempt outcomes for every Runner
// built against agentType. Attempts beyond the scripted length default
// to an immediate clean success with no events.
func (e *Engine) SetPlan(agentType string, outcomes ...AttemptOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plans[agentType] = outcomes
}

// CreateCount reports how many times BuildAgent was called for
// agentType, for asserting the lazy-create-once invariant (S1).
func (e *Engine) CreateCount(agentType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createCount[agentType]
}

// Replay returns a snapshot of every event appended so far, in order.
func (e *Engine) Replay() []AppendedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]AppendedEvent, len(e.replay))
	copy(out, e.replay)
	return out
}

// Messages returns, in call order, the new_message argument every
// RunAsync invocation received across every runner built from this
// engine. Used to assert exactly-once user-message submission (spec
// §4.7): the first attempt's entry should be the caller's message and
// every retry attempt's entry should be empty.
func (e *Engine) Messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.messages))
	copy(out, e.messages)
	return out
}

func (e *Engine) recordMessage(msg string) {
	e.mu.Lock()
	e.messages = append(e.messages, msg)
	e.mu.Unlock()
}

// --- engine.SessionStore ---

func (e *Engine) Create(_ context.Context, t engine.Triple, _ map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[t] = struct{}{}
	return nil
}

func (e *Engine) Get(_ context.Context, t engine.Triple) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[t]
	return ok, nil
}

func (e *Engine) Delete(_ context.Context, t engine.Triple) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, t)
	return nil
}

func (e *Engine) List(_ context.Context, appName, userID string) ([]engine.Triple, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []engine.Triple
	for t := range e.sessions {
		if t.AppName == appName && t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (e *Engine) AppendEvent(_ context.Context, t engine.Triple, ev engine.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replay = append(e.replay, AppendedEvent{UserID: t.UserID, SessionID: t.SessionID, Event: ev})
	return nil
}

// --- engine.AgentBuilder ---

type fakeAgent struct{ name string }

func (a *fakeAgent) Name() string { return a.name }

// BuildAgent ignores the resolved model/tools/toolsets/instruction —
// the fake only needs agentType to select the scripted plan.
func (e *Engine) BuildAgent(_ context.Context, agentType string, _ engine.ModelDescriptor, _ []engine.ToolHandle, _ []engine.ToolsetHandle, _ string) (engine.Agent, error) {
	e.mu.Lock()
	e.createCount[agentType]++
	e.mu.Unlock()
	return &fakeAgent{name: agentType}, nil
}

// --- engine.RunnerBuilder ---

func (e *Engine) BuildRunner(_ context.Context, agent engine.Agent, sessions engine.SessionStore, _ engine.ArtifactStore, _ engine.MemoryStore) (engine.Runner, error) {
	e.mu.Lock()
	outcomes := append([]AttemptOutcome{}, e.plans[agent.Name()]...)
	e.mu.Unlock()
	return &fakeRunner{eng: e, sessions: sessions, outcomes: outcomes}, nil
}

// --- engine.Runner / engine.RunStream ---

type fakeRunner struct {
	eng      *Engine
	sessions engine.SessionStore
	mu       sync.Mutex
	attempt  int
	outcomes []AttemptOutcome
}

func (r *fakeRunner) RunAsync(ctx context.Context, userID, sessionID, newMessage string) (engine.RunStream, error) {
	r.mu.Lock()
	idx := r.attempt
	r.attempt++
	r.mu.Unlock()

	r.eng.recordMessage(newMessage)

	var outcome AttemptOutcome
	if idx < len(r.outcomes) {
		outcome = r.outcomes[idx]
	}

	for _, ev := range outcome.Events {
		if err := r.eng.AppendEvent(ctx, engine.Triple{UserID: userID, SessionID: sessionID}, ev); err != nil {
			return nil, err
		}
	}

	return &fakeRunStream{events: outcome.Events, fail: outcome.Fail, raiseErr: outcome.RaiseErr, permanent: outcome.Permanent}, nil
}

type fakeRunStream struct {
	events    []engine.Event
	idx       int
	fail      bool
	raiseErr  bool
	permanent bool
	closed    bool
}

func (s *fakeRunStream) Next(ctx context.Context) (engine.Event, bool, error) {
	if ctx.Err() != nil {
		return engine.Event{}, false, ctx.Err()
	}
	if s.idx < len(s.events) {
		ev := s.events[s.idx]
		s.idx++
		return ev, true, nil
	}
	if s.fail && s.raiseErr {
		if s.permanent {
			return engine.Event{}, false, errors.New("enginetest: simulated permanent failure (401 unauthorized)")
		}
		return engine.Event{}, false, errors.New("enginetest: simulated transient failure (connection reset)")
	}
	return engine.Event{}, false, nil
}

func (s *fakeRunStream) Close() {
	s.closed = true
}
