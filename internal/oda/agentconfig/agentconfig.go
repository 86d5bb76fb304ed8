// Package agentconfig implements C5: AgentConfigManager. Agent configs
// cross-reference model and MCP configs; every write validates those
// references before persisting.
package agentconfig

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/onedragon-agent/oda-agent/internal/oda/configstore"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
)

// ModelValidator is the subset of ModelConfigManager this package needs.
type ModelValidator interface {
	Validate(ctx context.Context, appName, modelID string) bool
}

// Config is an agent config: model/MCP/tool references plus sub-agent names.
type Config struct {
	AppName       string   `json:"app_name" yaml:"app_name"`
	AgentName     string   `json:"agent_name" yaml:"agent_name"`
	AgentType     string   `json:"agent_type" yaml:"agent_type"`
	Description   string   `json:"description" yaml:"description"`
	Instruction   string   `json:"instruction" yaml:"instruction"`
	ModelConfigID string   `json:"model_config_id" yaml:"model_config_id"`
	ToolIDs       []string `json:"tool_ids" yaml:"tool_ids"`
	McpIDs        []string `json:"mcp_ids" yaml:"mcp_ids"`
	SubAgentNames []string `json:"sub_agent_names" yaml:"sub_agent_names"`
}

// Manager is C5: AgentConfigManager.
type Manager struct {
	store   configstore.Store[Config]
	models  ModelValidator
	mcps    mcpResolver
	tools   toolResolver
	log     *logging.Logger
	builtin Config
}

// mcpResolver and toolResolver avoid importing concrete manager types
// (and their engine.ToolHandle/ToolsetHandle generics) into this
// package; callers adapt their managers to these narrow shapes.
type mcpResolver interface {
	Resolves(ctx context.Context, appName, mcpID string) bool
}

type toolResolver interface {
	Resolves(appName, toolID string) bool
}

// New constructs a Manager. The built-in "default" agent config is
// cached with model_config_id equal to the reserved default model id.
func New(store configstore.Store[Config], models ModelValidator, mcps mcpResolver, tools toolResolver) *Manager {
	return &Manager{
		store:  store,
		models: models,
		mcps:   mcps,
		tools:  tools,
		log:    logging.Named("agentconfig"),
		builtin: Config{
			AppName:       errkind.DefaultAppName,
			AgentName:     errkind.DefaultAgent,
			AgentType:     "default",
			Description:   "built-in default agent",
			ModelConfigID: errkind.DefaultModelID,
		},
	}
}

func (m *Manager) validateReferences(ctx context.Context, c Config) error {
	if !m.models.Validate(ctx, c.AppName, c.ModelConfigID) {
		return errkind.Wrap(errkind.ErrInvalidReference, "agent %s: model_config_id %q does not resolve", c.AgentName, c.ModelConfigID)
	}
	for _, mcpID := range c.McpIDs {
		if !m.mcps.Resolves(ctx, c.AppName, mcpID) {
			return errkind.Wrap(errkind.ErrInvalidReference, "agent %s: mcp_id %q does not resolve", c.AgentName, mcpID)
		}
	}
	for _, toolID := range c.ToolIDs {
		if !m.tools.Resolves(c.AppName, toolID) {
			return errkind.Wrap(errkind.ErrInvalidReference, "agent %s: tool_id %q does not resolve", c.AgentName, toolID)
		}
	}
	return nil
}

// Create validates cross-references, rejects the reserved name, and persists.
func (m *Manager) Create(ctx context.Context, c Config) error {
	if c.AgentName == errkind.DefaultAgent {
		return errkind.Wrap(errkind.ErrReservedID, "agent_name %q is reserved", c.AgentName)
	}
	if err := m.validateReferences(ctx, c); err != nil {
		return err
	}
	return m.store.Create(ctx, configstore.Key{AppName: c.AppName, InnerID: c.AgentName}, c)
}

// Update validates cross-references, rejects the reserved name, and persists.
func (m *Manager) Update(ctx context.Context, c Config) error {
	if c.AgentName == errkind.DefaultAgent {
		return errkind.Wrap(errkind.ErrReservedID, "agent_name %q is reserved", c.AgentName)
	}
	if err := m.validateReferences(ctx, c); err != nil {
		return err
	}
	return m.store.Update(ctx, configstore.Key{AppName: c.AppName, InnerID: c.AgentName}, c)
}

// Get consults the built-in cache for "default", else delegates to the store.
func (m *Manager) Get(ctx context.Context, appName, agentName string) (Config, error) {
	if agentName == errkind.DefaultAgent {
		return m.builtin, nil
	}
	return m.store.Get(ctx, configstore.Key{AppName: appName, InnerID: agentName})
}

// Delete rejects the reserved name and otherwise delegates.
func (m *Manager) Delete(ctx context.Context, appName, agentName string) error {
	if agentName == errkind.DefaultAgent {
		return errkind.Wrap(errkind.ErrReservedID, "agent_name %q is reserved", agentName)
	}
	return m.store.Delete(ctx, configstore.Key{AppName: appName, InnerID: agentName})
}

// List returns only store-backed records; the built-in is surfaced
// exclusively via Get, per spec §4.5 / §9 open question 3.
func (m *Manager) List(ctx context.Context) ([]Config, error) {
	return m.store.List(ctx)
}

// IsBuiltin reports whether agentName names the built-in default.
func (m *Manager) IsBuiltin(agentName string) bool {
	return agentName == errkind.DefaultAgent
}

// ExportCustom YAML-encodes every store-backed agent config; the
// built-in default is excluded since it is never persisted.
func (m *Manager) ExportCustom(ctx context.Context) ([]byte, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal agent configs: %w", err)
	}
	return out, nil
}

// ImportCustom decodes a YAML document of agent configs and creates
// each via Create, stopping at the first failure.
func (m *Manager) ImportCustom(ctx context.Context, data []byte) error {
	var records []Config
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("unmarshal agent configs: %w", err)
	}
	for _, c := range records {
		if err := m.Create(ctx, c); err != nil {
			return fmt.Errorf("import agent config %s/%s: %w", c.AppName, c.AgentName, err)
		}
	}
	return nil
}
