// Package engine defines the facade this runtime requires from the
// external LLM execution engine. The runtime never implements an LLM,
// an MCP transport, or a persistence backend itself — those concerns
// live behind these interfaces, consumed by the core components.
package engine

import "context"

// Triple identifies a session: all three fields are required.
type Triple struct {
	AppName   string
	UserID    string
	SessionID string
}

// Event is the single element of a run's event stream. The core only
// inspects these fields; everything else the engine attaches is opaque
// and forwarded unchanged.
type Event struct {
	Author       string
	Content      *Content
	Actions      map[string]any
	ErrorCode    string
	ErrorMessage string
}

// Content holds the textual parts of an event.
type Content struct {
	Parts []Part
}

// Part is one piece of event content.
type Part struct {
	Text string
}

// ModelDescriptor is the resolved model binding passed to Agent construction.
type ModelDescriptor struct {
	BaseURL string
	APIKey  string
	Model   string
}

// ToolHandle is an opaque, engine-compatible reference to a single tool.
type ToolHandle interface {
	ToolID() string
}

// ToolsetHandle is an opaque reference to a bundle of tools produced
// from one MCP config, consumed when constructing an Agent.
type ToolsetHandle interface {
	McpID() string
}

// Agent is a per-instance engine agent bound to a resolved model, its
// tool handles, MCP toolsets, and an instruction string.
type Agent interface {
	Name() string
}

// AgentBuilder constructs an Agent from resolved dependencies. Supplied
// by the engine; called once per AgentFactory.create_agent invocation.
type AgentBuilder interface {
	BuildAgent(ctx context.Context, agentType string, model ModelDescriptor, tools []ToolHandle, toolsets []ToolsetHandle, instruction string) (Agent, error)
}

// RunStream is the forward-only, cancelable event stream produced by a
// single Runner.RunAsync call.
type RunStream interface {
	// Next blocks until the next event is available, the stream ends
	// (ok == false, err == nil), or the stream fails (err != nil).
	Next(ctx context.Context) (ev Event, ok bool, err error)
	// Close releases resources backing the stream and stops any
	// in-flight work promptly. Safe to call multiple times.
	Close()
}

// Runner executes one Agent against one session, appending to the
// session's history as it streams events.
type Runner interface {
	// RunAsync starts (or resumes) a run. newMessage is empty on every
	// retry attempt after the first, per the exactly-once submission
	// contract in spec §4.7.
	RunAsync(ctx context.Context, userID, sessionID, newMessage string) (RunStream, error)
}

// RunnerBuilder constructs a Runner bound to one Agent and the shared
// session/artifact/memory services.
type RunnerBuilder interface {
	BuildRunner(ctx context.Context, agent Agent, sessions SessionStore, artifacts ArtifactStore, memory MemoryStore) (Runner, error)
}

// SessionStore is the engine's own session history store, distinct
// from this runtime's Session/SessionManager which only track agent
// pools. Session history is engine state, never duplicated here.
type SessionStore interface {
	Create(ctx context.Context, t Triple, initialState map[string]any) error
	Get(ctx context.Context, t Triple) (exists bool, err error)
	Delete(ctx context.Context, t Triple) error
	List(ctx context.Context, appName, userID string) ([]Triple, error)
	AppendEvent(ctx context.Context, t Triple, ev Event) error
}

// ArtifactStore and MemoryStore are opaque to the core; the host
// supplies them once and Context threads them through to every Runner.
type ArtifactStore interface{}
type MemoryStore interface{}
