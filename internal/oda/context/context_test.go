package context_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	odacontext "github.com/onedragon-agent/oda-agent/internal/oda/context"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine/enginetest"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
)

func newCfg(eng *enginetest.Engine) odacontext.Config {
	return odacontext.Config{
		Storage: odacontext.StorageMemory,
		Engine: odacontext.Engine{
			Sessions:     eng,
			AgentBuilder: eng,
			RunnerBuild:  eng,
		},
	}
}

func TestStartPopulatesAccessors(t *testing.T) {
	eng := enginetest.New()
	oc := odacontext.New(newCfg(eng))

	assert.False(t, oc.Started())
	assert.Nil(t, oc.Models())

	require.NoError(t, oc.Start(context.Background()))
	assert.True(t, oc.Started())
	assert.NotNil(t, oc.Models())
	assert.NotNil(t, oc.Mcps())
	assert.NotNil(t, oc.Tools())
	assert.NotNil(t, oc.AgentConfigs())
	assert.NotNil(t, oc.AgentFactory())
	assert.NotNil(t, oc.Sessions())

	require.NoError(t, oc.Stop(context.Background()))
	assert.False(t, oc.Started())
	assert.Nil(t, oc.Models())
	assert.Nil(t, oc.Sessions())
}

func TestDoubleStartFailsInvalidState(t *testing.T) {
	eng := enginetest.New()
	oc := odacontext.New(newCfg(eng))
	require.NoError(t, oc.Start(context.Background()))

	err := oc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrInvalidState))

	require.NoError(t, oc.Stop(context.Background()))
}

func TestStopIsIdempotent(t *testing.T) {
	eng := enginetest.New()
	oc := odacontext.New(newCfg(eng))
	require.NoError(t, oc.Start(context.Background()))

	require.NoError(t, oc.Stop(context.Background()))
	require.NoError(t, oc.Stop(context.Background()))
}

func TestStartRequiresEngineCollaborators(t *testing.T) {
	oc := odacontext.New(odacontext.Config{Storage: odacontext.StorageMemory})
	err := oc.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrInvalidState))
}

func TestMetricsNilUnlessEnabled(t *testing.T) {
	eng := enginetest.New()
	cfg := newCfg(eng)
	oc := odacontext.New(cfg)
	require.NoError(t, oc.Start(context.Background()))
	assert.Nil(t, oc.Metrics())
	require.NoError(t, oc.Stop(context.Background()))

	cfg.EnableMetrics = true
	oc2 := odacontext.New(cfg)
	require.NoError(t, oc2.Start(context.Background()))
	assert.NotNil(t, oc2.Metrics())
	require.NoError(t, oc2.Stop(context.Background()))
}

// TestDefaultDependentAgentRejectedWithoutBootstrapModel is boundary
// scenario S4: if no default LLM config was supplied at bootstrap, an
// agent referencing the reserved default model is rejected with
// InvalidReference rather than silently resolving to zero values.
func TestDefaultDependentAgentRejectedWithoutBootstrapModel(t *testing.T) {
	eng := enginetest.New()
	oc := odacontext.New(newCfg(eng))
	require.NoError(t, oc.Start(context.Background()))
	defer oc.Stop(context.Background())

	_, err := oc.AgentFactory().CreateAgent(context.Background(), errkind.DefaultAgent, engine.Triple{AppName: "app", UserID: "u", SessionID: "s"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrInvalidReference))
}
