// Package bootstrap loads the host-environment configuration consumed
// by Context at start (spec §6): storage backend selection and the
// optional default-LLM bootstrap fields, layered from an optional
// oda-agent.yaml file and ODA_-prefixed environment variables via
// viper, matching the teacher's cobra+viper CLI bootstrap pattern.
package bootstrap

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	odacontext "github.com/onedragon-agent/oda-agent/internal/oda/context"
)

// Settings is the flat view of bootstrap configuration handed to
// odacontext.Config. Values are passed through without validation.
type Settings struct {
	Storage    string `mapstructure:"storage"`
	SQLitePath string `mapstructure:"sqlite_path"`

	DefaultLLMBaseURL string `mapstructure:"default_llm_base_url"`
	DefaultLLMAPIKey  string `mapstructure:"default_llm_api_key"`
	DefaultLLMModel   string `mapstructure:"default_llm_model"`

	ToolCacheSize int  `mapstructure:"tool_cache_size"`
	MaxRetries    int  `mapstructure:"max_retries"`
	SessionLimit  int  `mapstructure:"session_limit"`
	EnableMetrics bool `mapstructure:"enable_metrics"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("storage", "memory")
	v.SetDefault("sqlite_path", "oda-agent.db")
	v.SetDefault("tool_cache_size", 1024)
	v.SetDefault("max_retries", 3)
	v.SetDefault("session_limit", 0)
	v.SetDefault("enable_metrics", true)
	// Unmarshal only sees keys viper knows about, so the optional
	// default-LLM fields are registered too for ODA_* overrides to apply.
	v.SetDefault("default_llm_base_url", "")
	v.SetDefault("default_llm_api_key", "")
	v.SetDefault("default_llm_model", "")
}

// Load reads oda-agent.yaml (if present, from "." or "$HOME") layered
// under ODA_-prefixed environment overrides, e.g. ODA_STORAGE=sql.
func Load() (Settings, error) {
	v := viper.New()
	defaults(v)

	v.SetConfigName("oda-agent")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")

	v.SetEnvPrefix("ODA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Settings{}, fmt.Errorf("read oda-agent.yaml: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal bootstrap settings: %w", err)
	}
	return s, nil
}

// StorageKind maps the storage string onto odacontext's enum; any value
// other than "sql" selects memory.
func (s Settings) StorageKind() odacontext.StorageKind {
	if s.Storage == string(odacontext.StorageSQL) {
		return odacontext.StorageSQL
	}
	return odacontext.StorageMemory
}

// ToContextConfig builds the bulk of an odacontext.Config from these
// settings; callers still must attach the Engine facade themselves.
func (s Settings) ToContextConfig() odacontext.Config {
	return odacontext.Config{
		Storage:           s.StorageKind(),
		SQLitePath:        s.SQLitePath,
		DefaultLLMBaseURL: s.DefaultLLMBaseURL,
		DefaultLLMAPIKey:  s.DefaultLLMAPIKey,
		DefaultLLMModel:   s.DefaultLLMModel,
		ToolCacheSize:     s.ToolCacheSize,
		MaxRetries:        s.MaxRetries,
		SessionLimit:      s.SessionLimit,
		EnableMetrics:     s.EnableMetrics,
	}
}
