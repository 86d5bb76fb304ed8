package mcp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onedragon-agent/oda-agent/internal/oda/configstore"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/mcp"
)

func newManager() *mcp.Manager {
	return mcp.New(configstore.NewMemoryStore[mcp.Config]())
}

func TestServerTypeValidation(t *testing.T) {
	m := newManager()
	err := m.RegisterBuiltin(mcp.Config{AppName: "app", McpID: "missing-command", ServerType: mcp.ServerTypeStdio})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrValidation))

	err = m.RegisterBuiltin(mcp.Config{AppName: "app", McpID: "missing-url", ServerType: mcp.ServerTypeSSE})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrValidation))
}

// TestTierImmutability is boundary scenario S7: built-in and custom
// tiers are disjoint namespaces, so unregistering a built-in is always
// NotPermitted and updating a custom record at a built-in-only key
// fails NotFound rather than silently mutating the built-in.
func TestTierImmutability(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	cfg := mcp.Config{AppName: "app", McpID: "fs", ServerType: mcp.ServerTypeStdio, Command: "fs-server"}

	require.NoError(t, m.RegisterBuiltin(cfg))

	err := m.UnregisterBuiltin("app", "fs")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrNotPermitted))

	err = m.UpdateCustom(ctx, "app", "fs", cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrNotFound))
}

func TestGetConsultsBuiltinFirst(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	builtin := mcp.Config{AppName: "app", McpID: "shared", ServerType: mcp.ServerTypeStdio, Command: "builtin-cmd"}
	require.NoError(t, m.RegisterBuiltin(builtin))

	got, err := m.Get(ctx, "app", "shared")
	require.NoError(t, err)
	assert.Equal(t, "builtin-cmd", got.Command)
	assert.True(t, m.Resolves(ctx, "app", "shared"))
}

func TestListUnionBothTiers(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	require.NoError(t, m.RegisterBuiltin(mcp.Config{AppName: "app", McpID: "builtin1", ServerType: mcp.ServerTypeStdio, Command: "c"}))
	require.NoError(t, m.RegisterCustom(ctx, mcp.Config{AppName: "app", McpID: "custom1", ServerType: mcp.ServerTypeHTTP, URL: "http://x"}))
	require.NoError(t, m.RegisterCustom(ctx, mcp.Config{AppName: "other-app", McpID: "ignored", ServerType: mcp.ServerTypeHTTP, URL: "http://y"}))

	entries, err := m.List(ctx, "app")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "app:builtin1", entries[0].Key)
	assert.Equal(t, "app:custom1", entries[1].Key)
}

func TestCreateToolsetResolvesConfig(t *testing.T) {
	m := newManager()
	ctx := context.Background()
	require.NoError(t, m.RegisterCustom(ctx, mcp.Config{AppName: "app", McpID: "tools", ServerType: mcp.ServerTypeHTTP, URL: "http://x"}))

	handle, err := m.CreateToolset(ctx, "app", "tools")
	require.NoError(t, err)
	assert.Equal(t, "tools", handle.McpID())

	_, err = m.CreateToolset(ctx, "app", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrNotFound))
}
