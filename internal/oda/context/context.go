// Package context implements C10: Context (OdaContext), the root
// object that constructs C1-C9 in dependency order and orchestrates
// their lifetime. It does not implement an engine itself — the engine
// facade (session/artifact/memory services, agent/runner builders) is
// supplied by the host at construction time, per spec §6.
package context

import (
	"context"
	"fmt"
	"sync"

	"github.com/onedragon-agent/oda-agent/internal/oda/agentconfig"
	"github.com/onedragon-agent/oda-agent/internal/oda/agentfactory"
	"github.com/onedragon-agent/oda-agent/internal/oda/configstore"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
	"github.com/onedragon-agent/oda-agent/internal/oda/mcp"
	"github.com/onedragon-agent/oda-agent/internal/oda/metrics"
	"github.com/onedragon-agent/oda-agent/internal/oda/model"
	"github.com/onedragon-agent/oda-agent/internal/oda/sessionmanager"
	"github.com/onedragon-agent/oda-agent/internal/oda/toolregistry"
)

// StorageKind selects the ConfigStore backend used for every config
// kind (spec §6 bootstrap configuration: "storage").
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageSQL    StorageKind = "sql"
)

// Engine bundles the engine-facade collaborators this runtime consumes
// (spec §6). The host constructs these against its own LLM/MCP/
// persistence stack; Context only threads them through to AgentFactory.
type Engine struct {
	Sessions     engine.SessionStore
	Artifacts    engine.ArtifactStore
	Memory       engine.MemoryStore
	AgentBuilder engine.AgentBuilder
	RunnerBuild  engine.RunnerBuilder
}

// Config is the bootstrap configuration consumed at start (spec §6).
type Config struct {
	Storage    StorageKind
	SQLitePath string // used when Storage == StorageSQL; ":memory:" is valid

	DefaultLLMBaseURL string
	DefaultLLMAPIKey  string
	DefaultLLMModel   string

	ToolCacheSize int
	MaxRetries    int
	SessionLimit  int

	EnableMetrics bool

	Engine Engine
}

// Context is C10: the root object.
type Context struct {
	mu      sync.Mutex
	started bool
	cfg     Config
	log     *logging.Logger

	modelStore configstore.Store[model.Config]
	mcpStore   configstore.Store[mcp.Config]
	agentStore configstore.Store[agentconfig.Config]
	closers    []func() error

	models   *model.Manager
	mcps     *mcp.Manager
	tools    *toolregistry.Manager
	agents   *agentconfig.Manager
	factory  *agentfactory.Factory
	sessions *sessionmanager.Manager
	metrics  *metrics.Registry
}

// New constructs an unstarted Context bound to cfg.
func New(cfg Config) *Context {
	return &Context{cfg: cfg, log: logging.Named("context")}
}

// Start constructs components in dependency order: engine services
// (supplied, validated non-nil here) -> config stores -> ToolManager ->
// McpManager -> ModelConfigManager (with bootstrap defaults) ->
// AgentConfigManager -> AgentFactory -> SessionManager. A second Start
// without an intervening Stop fails InvalidState, per spec §4.10.
func (c *Context) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errkind.Wrap(errkind.ErrInvalidState, "context already started")
	}

	eng := c.cfg.Engine
	if eng.Sessions == nil || eng.AgentBuilder == nil || eng.RunnerBuild == nil {
		return errkind.Wrap(errkind.ErrInvalidState, "context requires Engine.Sessions, Engine.AgentBuilder, and Engine.RunnerBuild")
	}

	modelStore, closeModel, err := newStore[model.Config](c.cfg.Storage, c.cfg.SQLitePath, "model_configs")
	if err != nil {
		return err
	}
	mcpStore, closeMcp, err := newStore[mcp.Config](c.cfg.Storage, c.cfg.SQLitePath, "mcp_configs")
	if err != nil {
		return err
	}
	agentStore, closeAgent, err := newStore[agentconfig.Config](c.cfg.Storage, c.cfg.SQLitePath, "agent_configs")
	if err != nil {
		return err
	}

	tools := toolregistry.New(c.cfg.ToolCacheSize)
	mcps := mcp.New(mcpStore)
	models := model.New(modelStore, model.Bootstrap{
		BaseURL: c.cfg.DefaultLLMBaseURL,
		APIKey:  c.cfg.DefaultLLMAPIKey,
		Model:   c.cfg.DefaultLLMModel,
	})
	agents := agentconfig.New(agentStore, models, mcps, tools)

	factory := agentfactory.New(agentfactory.Config{
		AgentConfigs: agents,
		Models:       models,
		Toolsets:     mcps,
		Tools:        tools,
		AgentBuilder: eng.AgentBuilder,
		RunnerBuild:  eng.RunnerBuild,
		Sessions:     eng.Sessions,
		Artifacts:    eng.Artifacts,
		Memory:       eng.Memory,
		MaxRetries:   c.cfg.MaxRetries,
	})

	sessions := sessionmanager.New(factory, eng.Sessions)
	if c.cfg.SessionLimit > 0 {
		sessions.SetConcurrentLimit(c.cfg.SessionLimit)
	}

	var reg *metrics.Registry
	if c.cfg.EnableMetrics {
		reg = metrics.New()
		sessions.SetMetrics(reg)
		factory.SetMetrics(reg)
	}

	c.modelStore, c.mcpStore, c.agentStore = modelStore, mcpStore, agentStore
	c.closers = []func() error{closeModel, closeMcp, closeAgent}
	c.tools, c.mcps, c.models, c.agents = tools, mcps, models, agents
	c.factory, c.sessions, c.metrics = factory, sessions, reg
	c.started = true

	c.log.Info("context started (storage=%s, metrics=%v)", c.cfg.Storage, c.cfg.EnableMetrics)
	return nil
}

// Stop tears down in reverse order: drain and dispose all Sessions via
// SessionManager, then release manager references, then release the
// engine services (owned by the host, never closed here). Safe to call
// more than once; a second call is a no-op.
func (c *Context) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}

	c.sessions.Stop()
	c.sessions.DrainAll()

	c.sessions = nil
	c.factory = nil
	c.agents = nil
	c.mcps = nil
	c.tools = nil
	c.models = nil
	c.metrics = nil

	for _, closeFn := range c.closers {
		if closeFn == nil {
			continue
		}
		if err := closeFn(); err != nil {
			c.log.Warn("context stop: store close error: %v", err)
		}
	}
	c.closers = nil
	c.modelStore, c.mcpStore, c.agentStore = nil, nil, nil

	c.started = false
	c.log.Info("context stopped")
	return nil
}

// Started reports whether Start has run without a subsequent Stop.
func (c *Context) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Models returns the ModelConfigManager, or nil before Start/after Stop.
func (c *Context) Models() *model.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.models
}

// Mcps returns the McpManager, or nil before Start/after Stop.
func (c *Context) Mcps() *mcp.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mcps
}

// Tools returns the ToolManager, or nil before Start/after Stop.
func (c *Context) Tools() *toolregistry.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tools
}

// AgentConfigs returns the AgentConfigManager, or nil before Start/after Stop.
func (c *Context) AgentConfigs() *agentconfig.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agents
}

// AgentFactory returns the AgentFactory, or nil before Start/after Stop.
func (c *Context) AgentFactory() *agentfactory.Factory {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.factory
}

// Sessions returns the SessionManager, or nil before Start/after Stop.
func (c *Context) Sessions() *sessionmanager.Manager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions
}

// Metrics returns the prometheus registry, or nil if metrics were not
// enabled, before Start, or after Stop (§C supplemented feature 1).
func (c *Context) Metrics() *metrics.Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

func newStore[T any](kind StorageKind, sqlitePath, table string) (configstore.Store[T], func() error, error) {
	if kind == StorageSQL {
		s, err := configstore.OpenSQLiteStore[T](sqlitePath, table)
		if err != nil {
			return nil, nil, fmt.Errorf("open sql store %s: %w", table, err)
		}
		return s, s.Close, nil
	}
	return configstore.NewMemoryStore[T](), func() error { return nil }, nil
}
