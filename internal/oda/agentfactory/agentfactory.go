// Package agentfactory implements C6: AgentFactory (AgentManager in
// the source). It resolves an AgentConfig, its model and tool
// references, materializes an engine Agent and Runner, and wraps the
// result in a RetryingExecutor.
package agentfactory

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/onedragon-agent/oda-agent/internal/oda/agentconfig"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/executor"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
	"github.com/onedragon-agent/oda-agent/internal/oda/metrics"
	"github.com/onedragon-agent/oda-agent/internal/oda/model"
)

// AgentConfigs is the subset of AgentConfigManager this package needs.
type AgentConfigs interface {
	Get(ctx context.Context, appName, agentName string) (agentconfig.Config, error)
}

// Models is the subset of ModelConfigManager this package needs.
type Models interface {
	Get(ctx context.Context, appName, modelID string) (model.Config, error)
}

// Toolsets is the subset of McpManager this package needs.
type Toolsets interface {
	CreateToolset(ctx context.Context, appName, mcpID string) (engine.ToolsetHandle, error)
}

// Tools is the subset of ToolManager this package needs.
type Tools interface {
	Get(appName, toolID string) (engine.ToolHandle, bool)
}

// Factory is C6: AgentFactory. Stateless beyond its held service
// references; each CreateAgent call produces a fresh executor with its
// own engine state handle.
type Factory struct {
	agentConfigs AgentConfigs
	models       Models
	toolsets     Toolsets
	tools        Tools
	agentBuilder engine.AgentBuilder
	runnerBuild  engine.RunnerBuilder
	sessions     engine.SessionStore
	artifacts    engine.ArtifactStore
	memory       engine.MemoryStore
	maxRetries   int
	log          *logging.Logger
	metrics      *metrics.Registry
}

// SetMetrics attaches a metrics registry; every executor created from
// this point on reports into it. Optional — nil is a no-op.
func (f *Factory) SetMetrics(reg *metrics.Registry) {
	f.metrics = reg
}

// Config bundles the Factory's engine-facing collaborators.
type Config struct {
	AgentConfigs AgentConfigs
	Models       Models
	Toolsets     Toolsets
	Tools        Tools
	AgentBuilder engine.AgentBuilder
	RunnerBuild  engine.RunnerBuilder
	Sessions     engine.SessionStore
	Artifacts    engine.ArtifactStore
	Memory       engine.MemoryStore
	MaxRetries   int
}

// New constructs a Factory. MaxRetries <= 0 uses executor.DefaultMaxRetries.
func New(cfg Config) *Factory {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = executor.DefaultMaxRetries
	}
	return &Factory{
		agentConfigs: cfg.AgentConfigs,
		models:       cfg.Models,
		toolsets:     cfg.Toolsets,
		tools:        cfg.Tools,
		agentBuilder: cfg.AgentBuilder,
		runnerBuild:  cfg.RunnerBuild,
		sessions:     cfg.Sessions,
		artifacts:    cfg.Artifacts,
		memory:       cfg.Memory,
		maxRetries:   maxRetries,
		log:          logging.Named("agentfactory"),
	}
}

// CreateAgent implements spec §4.6 steps 1–6.
func (f *Factory) CreateAgent(ctx context.Context, agentName string, triple engine.Triple) (*executor.Executor, error) {
	cfg, err := f.agentConfigs.Get(ctx, triple.AppName, agentName)
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrNotFound, "agent %q: %v", agentName, err)
	}

	modelCfg, err := f.models.Get(ctx, triple.AppName, cfg.ModelConfigID)
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrInvalidReference, "agent %q: model_config_id %q: %v", agentName, cfg.ModelConfigID, err)
	}

	toolsets, tools, err := f.resolveDependencies(ctx, triple.AppName, cfg)
	if err != nil {
		return nil, err
	}

	agent, err := f.agentBuilder.BuildAgent(ctx, cfg.AgentType, engine.ModelDescriptor{
		BaseURL: modelCfg.BaseURL,
		APIKey:  modelCfg.APIKey,
		Model:   modelCfg.Model,
	}, tools, toolsets, cfg.Instruction)
	if err != nil {
		return nil, fmt.Errorf("build agent %q: %w", agentName, err)
	}

	runner, err := f.runnerBuild.BuildRunner(ctx, agent, f.sessions, f.artifacts, f.memory)
	if err != nil {
		return nil, fmt.Errorf("build runner for agent %q: %w", agentName, err)
	}

	f.log.Debug("created agent %q for session %s", agentName, triple.SessionID)
	exec := executor.New(triple, runner, f.maxRetries)
	if f.metrics != nil {
		exec.SetMetrics(f.metrics)
	}
	return exec, nil
}

// resolveDependencies resolves MCP toolsets and tool handles
// concurrently: each mcp_id materializes a fresh toolset (never cached
// by McpManager) and each tool_id is a synchronous registry lookup, so
// an errgroup fans both out without the sequencing the spec's
// step-by-step description otherwise implies.
func (f *Factory) resolveDependencies(ctx context.Context, appName string, cfg agentconfig.Config) ([]engine.ToolsetHandle, []engine.ToolHandle, error) {
	toolsets := make([]engine.ToolsetHandle, len(cfg.McpIDs))
	tools := make([]engine.ToolHandle, len(cfg.ToolIDs))

	g, gctx := errgroup.WithContext(ctx)

	for i, mcpID := range cfg.McpIDs {
		i, mcpID := i, mcpID
		g.Go(func() error {
			handle, err := f.toolsets.CreateToolset(gctx, appName, mcpID)
			if err != nil {
				return errkind.Wrap(errkind.ErrInvalidReference, "agent %s: mcp_id %q: %v", cfg.AgentName, mcpID, err)
			}
			toolsets[i] = handle
			return nil
		})
	}

	for i, toolID := range cfg.ToolIDs {
		i, toolID := i, toolID
		g.Go(func() error {
			handle, ok := f.tools.Get(appName, toolID)
			if !ok {
				return errkind.Wrap(errkind.ErrInvalidReference, "agent %s: tool_id %q does not resolve", cfg.AgentName, toolID)
			}
			tools[i] = handle
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return toolsets, tools, nil
}
