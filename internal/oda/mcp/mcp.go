// Package mcp implements C3: McpManager. Configs live in two disjoint
// tiers — an in-memory, immutable built-in tier and a persisted,
// mutable custom tier — matching the teacher's "never encode a tier as
// a boolean on one table" convention.
package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/onedragon-agent/oda-agent/internal/oda/configstore"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
)

// ServerType selects the MCP transport, mirroring the subset of
// transports the modelcontextprotocol Go SDK exposes.
type ServerType string

const (
	ServerTypeStdio ServerType = "stdio"
	ServerTypeSSE   ServerType = "sse"
	ServerTypeHTTP  ServerType = "http"
)

// Config is one MCP server binding.
type Config struct {
	McpID       string            `json:"mcp_id" yaml:"mcp_id"`
	AppName     string            `json:"app_name" yaml:"app_name"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	ServerType  ServerType        `json:"server_type" yaml:"server_type"`
	Command     string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args        []string          `json:"args,omitempty" yaml:"args,omitempty"`
	URL         string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	ToolFilter  []string          `json:"tool_filter,omitempty" yaml:"tool_filter,omitempty"`
	TimeoutSec  int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RetryCount  int               `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
}

func validate(c Config) error {
	switch c.ServerType {
	case ServerTypeStdio:
		if c.Command == "" {
			return errkind.Wrap(errkind.ErrValidation, "mcp %s: server_type stdio requires command", c.McpID)
		}
	case ServerTypeSSE, ServerTypeHTTP:
		if c.URL == "" {
			return errkind.Wrap(errkind.ErrValidation, "mcp %s: server_type %s requires url", c.McpID, c.ServerType)
		}
	default:
		return errkind.Wrap(errkind.ErrValidation, "mcp %s: unknown server_type %q", c.McpID, c.ServerType)
	}
	return nil
}

// Manager is C3: McpManager.
type Manager struct {
	mu      sync.RWMutex
	builtin map[configstore.Key]Config
	custom  configstore.Store[Config]
	log     *logging.Logger
}

// New constructs a Manager backed by custom (a persisted ConfigStore
// for the custom tier).
func New(custom configstore.Store[Config]) *Manager {
	return &Manager{
		builtin: make(map[configstore.Key]Config),
		custom:  custom,
		log:     logging.Named("mcp"),
	}
}

// RegisterBuiltin adds a permanent, memory-only config. Validates the
// server-type invariants from spec §3.
func (m *Manager) RegisterBuiltin(c Config) error {
	if err := validate(c); err != nil {
		return err
	}
	key := configstore.Key{AppName: c.AppName, InnerID: c.McpID}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.builtin[key]; exists {
		return errkind.Wrap(errkind.ErrAlreadyExists, "built-in mcp %s/%s already exists", c.AppName, c.McpID)
	}
	m.builtin[key] = c
	return nil
}

// UnregisterBuiltin always fails: built-ins are permanent.
func (m *Manager) UnregisterBuiltin(appName, mcpID string) error {
	return errkind.Wrap(errkind.ErrNotPermitted, "built-in mcp %s/%s cannot be removed", appName, mcpID)
}

// RegisterCustom creates a persisted, mutable config.
func (m *Manager) RegisterCustom(ctx context.Context, c Config) error {
	if err := validate(c); err != nil {
		return err
	}
	return m.custom.Create(ctx, configstore.Key{AppName: c.AppName, InnerID: c.McpID}, c)
}

// UpdateCustom updates a persisted config in place.
func (m *Manager) UpdateCustom(ctx context.Context, appName, mcpID string, c Config) error {
	if err := validate(c); err != nil {
		return err
	}
	return m.custom.Update(ctx, configstore.Key{AppName: appName, InnerID: mcpID}, c)
}

// UnregisterCustom deletes a persisted config. Idempotent.
func (m *Manager) UnregisterCustom(ctx context.Context, appName, mcpID string) error {
	return m.custom.Delete(ctx, configstore.Key{AppName: appName, InnerID: mcpID})
}

// Resolves reports whether mcpID resolves for appName in either tier.
func (m *Manager) Resolves(ctx context.Context, appName, mcpID string) bool {
	_, err := m.Get(ctx, appName, mcpID)
	return err == nil
}

// Get consults the built-in tier first, then the custom tier.
func (m *Manager) Get(ctx context.Context, appName, mcpID string) (Config, error) {
	key := configstore.Key{AppName: appName, InnerID: mcpID}
	m.mu.RLock()
	c, ok := m.builtin[key]
	m.mu.RUnlock()
	if ok {
		return c, nil
	}
	return m.custom.Get(ctx, key)
}

// ListEntry pairs a resolved config with its display key, matching the
// "app_name:mcp_id" format spec §6 mandates for list output.
type ListEntry struct {
	Key    string
	Config Config
}

// List returns the union of both tiers for appName, keyed by "app_name:mcp_id".
func (m *Manager) List(ctx context.Context, appName string) ([]ListEntry, error) {
	var out []ListEntry

	m.mu.RLock()
	for key, c := range m.builtin {
		if key.AppName == appName {
			out = append(out, ListEntry{Key: fmt.Sprintf("%s:%s", key.AppName, key.InnerID), Config: c})
		}
	}
	m.mu.RUnlock()

	custom, err := m.custom.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range custom {
		if c.AppName == appName {
			out = append(out, ListEntry{Key: fmt.Sprintf("%s:%s", c.AppName, c.McpID), Config: c})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// toolsetHandle is the ToolsetHandle produced from one resolved Config.
type toolsetHandle struct {
	mcpID string
}

func (h *toolsetHandle) McpID() string { return h.mcpID }

// CreateToolset resolves the config at (appName, mcpID) and returns a
// fresh handle; handles are never cached here, matching spec §4.3.
func (m *Manager) CreateToolset(ctx context.Context, appName, mcpID string) (engine.ToolsetHandle, error) {
	c, err := m.Get(ctx, appName, mcpID)
	if err != nil {
		return nil, err
	}
	m.log.Debug("materializing toolset for mcp %s/%s (%s)", appName, c.McpID, c.ServerType)
	return &toolsetHandle{mcpID: c.McpID}, nil
}

// ExportCustom YAML-encodes every custom-tier record for appName;
// built-ins are excluded since they are never persisted.
func (m *Manager) ExportCustom(ctx context.Context, appName string) ([]byte, error) {
	records, err := m.custom.List(ctx)
	if err != nil {
		return nil, err
	}
	filtered := records[:0]
	for _, c := range records {
		if c.AppName == appName {
			filtered = append(filtered, c)
		}
	}
	out, err := yaml.Marshal(filtered)
	if err != nil {
		return nil, fmt.Errorf("marshal mcp configs: %w", err)
	}
	return out, nil
}

// ImportCustom decodes a YAML document of MCP configs and registers
// each into the custom tier via RegisterCustom.
func (m *Manager) ImportCustom(ctx context.Context, data []byte) error {
	var records []Config
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("unmarshal mcp configs: %w", err)
	}
	for _, c := range records {
		if err := m.RegisterCustom(ctx, c); err != nil {
			return fmt.Errorf("import mcp config %s/%s: %w", c.AppName, c.McpID, err)
		}
	}
	return nil
}
