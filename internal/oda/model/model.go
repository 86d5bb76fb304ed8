// Package model implements C2: CRUD for model configs, plus the single
// built-in default bound to the reserved model id.
package model

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/onedragon-agent/oda-agent/internal/oda/configstore"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
)

// Config is a model binding: base URL, API key, and model name for one
// (app_name, model_id) pair.
type Config struct {
	AppName string `json:"app_name" yaml:"app_name"`
	ModelID string `json:"model_id" yaml:"model_id"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
}

// Bootstrap carries the optional default-LLM fields read from host
// environment. When all three are set, a built-in default is cached.
type Bootstrap struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Manager is C2: ModelConfigManager.
type Manager struct {
	store   configstore.Store[Config]
	log     *logging.Logger
	builtin *Config // nil if bootstrap fields were incomplete
}

// New constructs a Manager. If bootstrap carries all three fields, a
// built-in ModelConfig is cached under the reserved id and a synthetic
// app name, per spec §4.2.
func New(store configstore.Store[Config], bootstrap Bootstrap) *Manager {
	m := &Manager{store: store, log: logging.Named("model")}
	if bootstrap.BaseURL != "" && bootstrap.APIKey != "" && bootstrap.Model != "" {
		m.builtin = &Config{
			AppName: errkind.DefaultAppName,
			ModelID: errkind.DefaultModelID,
			BaseURL: bootstrap.BaseURL,
			APIKey:  bootstrap.APIKey,
			Model:   bootstrap.Model,
		}
		m.log.Info("cached built-in default model config")
	}
	return m
}

// Create persists a new model config. The reserved default id is rejected.
func (m *Manager) Create(ctx context.Context, c Config) error {
	if c.ModelID == errkind.DefaultModelID {
		return errkind.Wrap(errkind.ErrReservedID, "model_id %q is reserved", c.ModelID)
	}
	return m.store.Create(ctx, configstore.Key{AppName: c.AppName, InnerID: c.ModelID}, c)
}

// Get resolves a model config by id. The reserved default id resolves
// to the cached built-in (or ErrNotFound if bootstrap was incomplete);
// all other ids delegate to the store, scoped by appName.
func (m *Manager) Get(ctx context.Context, appName, modelID string) (Config, error) {
	if modelID == errkind.DefaultModelID {
		if m.builtin == nil {
			return Config{}, errkind.Wrap(errkind.ErrNotFound, "default model config not configured")
		}
		return *m.builtin, nil
	}
	return m.store.Get(ctx, configstore.Key{AppName: appName, InnerID: modelID})
}

// Update rejects mutation of the reserved default and otherwise delegates.
func (m *Manager) Update(ctx context.Context, c Config) error {
	if c.ModelID == errkind.DefaultModelID {
		return errkind.Wrap(errkind.ErrReservedID, "model_id %q is reserved", c.ModelID)
	}
	return m.store.Update(ctx, configstore.Key{AppName: c.AppName, InnerID: c.ModelID}, c)
}

// Delete rejects deletion of the reserved default and otherwise delegates.
func (m *Manager) Delete(ctx context.Context, appName, modelID string) error {
	if modelID == errkind.DefaultModelID {
		return errkind.Wrap(errkind.ErrReservedID, "model_id %q is reserved", modelID)
	}
	return m.store.Delete(ctx, configstore.Key{AppName: appName, InnerID: modelID})
}

// List returns every store-backed config followed by the cached
// default (if any); the default always sorts last.
func (m *Manager) List(ctx context.Context) ([]Config, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if m.builtin != nil {
		records = append(records, *m.builtin)
	}
	return records, nil
}

// Validate reports whether modelID resolves for appName.
func (m *Manager) Validate(ctx context.Context, appName, modelID string) bool {
	_, err := m.Get(ctx, appName, modelID)
	return err == nil
}

// ExportCustom YAML-encodes every store-backed record (the cached
// default, if any, is excluded — it is derived from bootstrap, not a
// custom record).
func (m *Manager) ExportCustom(ctx context.Context) ([]byte, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("marshal model configs: %w", err)
	}
	return out, nil
}

// ImportCustom decodes a YAML document of model configs and creates
// each via Create, stopping at the first failure.
func (m *Manager) ImportCustom(ctx context.Context, data []byte) error {
	var records []Config
	if err := yaml.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("unmarshal model configs: %w", err)
	}
	for _, c := range records {
		if err := m.Create(ctx, c); err != nil {
			return fmt.Errorf("import model config %s/%s: %w", c.AppName, c.ModelID, err)
		}
	}
	return nil
}
