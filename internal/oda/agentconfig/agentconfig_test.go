package agentconfig_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onedragon-agent/oda-agent/internal/oda/agentconfig"
	"github.com/onedragon-agent/oda-agent/internal/oda/configstore"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/mcp"
	"github.com/onedragon-agent/oda-agent/internal/oda/model"
	"github.com/onedragon-agent/oda-agent/internal/oda/toolregistry"
)

func newManager(t *testing.T) (*agentconfig.Manager, *model.Manager, *mcp.Manager, *toolregistry.Manager) {
	t.Helper()
	models := model.New(configstore.NewMemoryStore[model.Config](), model.Bootstrap{})
	mcps := mcp.New(configstore.NewMemoryStore[mcp.Config]())
	tools := toolregistry.New(0)
	agents := agentconfig.New(configstore.NewMemoryStore[agentconfig.Config](), models, mcps, tools)
	return agents, models, mcps, tools
}

// TestCrossReferenceValidation is boundary scenario S5.
func TestCrossReferenceValidation(t *testing.T) {
	agents, models, _, _ := newManager(t)
	ctx := context.Background()
	cfg := agentconfig.Config{AppName: "app", AgentName: "a1", ModelConfigID: "nope"}

	err := agents.Create(ctx, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrInvalidReference))

	require.NoError(t, models.Create(ctx, model.Config{AppName: "app", ModelID: "nope", BaseURL: "u", APIKey: "k", Model: "m"}))
	require.NoError(t, agents.Create(ctx, cfg))
}

func TestMcpAndToolReferencesValidated(t *testing.T) {
	agents, models, mcps, tools := newManager(t)
	ctx := context.Background()
	require.NoError(t, models.Create(ctx, model.Config{AppName: "app", ModelID: "m1", BaseURL: "u", APIKey: "k", Model: "m"}))

	cfg := agentconfig.Config{AppName: "app", AgentName: "a1", ModelConfigID: "m1", McpIDs: []string{"mcp1"}}
	err := agents.Create(ctx, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrInvalidReference))

	require.NoError(t, mcps.RegisterCustom(ctx, mcp.Config{AppName: "app", McpID: "mcp1", ServerType: mcp.ServerTypeHTTP, URL: "http://x"}))
	cfg.ToolIDs = []string{"tool1"}
	err = agents.Create(ctx, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrInvalidReference))

	require.NoError(t, tools.RegisterFunction(func(ctx context.Context, args string) (string, error) { return args, nil }, "app", "tool1"))
	require.NoError(t, agents.Create(ctx, cfg))
}

func TestReservedAgentNameRejected(t *testing.T) {
	agents, _, _, _ := newManager(t)
	ctx := context.Background()
	reserved := agentconfig.Config{AppName: "app", AgentName: errkind.DefaultAgent, ModelConfigID: errkind.DefaultModelID}

	assert.True(t, errors.Is(agents.Create(ctx, reserved), errkind.ErrReservedID))
	assert.True(t, errors.Is(agents.Update(ctx, reserved), errkind.ErrReservedID))
	assert.True(t, errors.Is(agents.Delete(ctx, "app", errkind.DefaultAgent), errkind.ErrReservedID))
}

func TestGetSurfacesBuiltinDefault(t *testing.T) {
	agents, _, _, _ := newManager(t)
	ctx := context.Background()

	cfg, err := agents.Get(ctx, "anything", errkind.DefaultAgent)
	require.NoError(t, err)
	assert.Equal(t, errkind.DefaultModelID, cfg.ModelConfigID)
	assert.True(t, agents.IsBuiltin(errkind.DefaultAgent))
}

// TestListExcludesBuiltin matches §9 open question 3: List surfaces
// only store-backed records; the built-in is reachable exclusively
// through Get.
func TestListExcludesBuiltin(t *testing.T) {
	agents, models, _, _ := newManager(t)
	ctx := context.Background()
	require.NoError(t, models.Create(ctx, model.Config{AppName: "app", ModelID: "m1", BaseURL: "u", APIKey: "k", Model: "m"}))
	require.NoError(t, agents.Create(ctx, agentconfig.Config{AppName: "app", AgentName: "custom", ModelConfigID: "m1"}))

	records, err := agents.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "custom", records[0].AgentName)
}
