package sessionmanager_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/engine/enginetest"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/executor"
	"github.com/onedragon-agent/oda-agent/internal/oda/sessionmanager"
)

type stubFactory struct{}

func (stubFactory) CreateAgent(ctx context.Context, agentName string, triple engine.Triple) (*executor.Executor, error) {
	return nil, errors.New("unused in these tests")
}

// TestConcurrentSessionCap is boundary scenario S6: once the configured
// limit is reached, further CreateSession calls fail Overloaded, while
// existing sessions remain usable.
func TestConcurrentSessionCap(t *testing.T) {
	eng := enginetest.New()
	mgr := sessionmanager.New(stubFactory{}, eng)
	mgr.SetConcurrentLimit(2)
	ctx := context.Background()

	s1, err := mgr.CreateSession(ctx, "app", "u", "s1")
	require.NoError(t, err)
	require.NotNil(t, s1)

	_, err = mgr.CreateSession(ctx, "app", "u", "s2")
	require.NoError(t, err)

	_, err = mgr.CreateSession(ctx, "app", "u", "s3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errkind.ErrOverloaded))

	// Re-requesting an existing triple is idempotent and doesn't count
	// against the cap.
	again, err := mgr.CreateSession(ctx, "app", "u", "s1")
	require.NoError(t, err)
	assert.Same(t, s1, again)
}

func TestDeleteSessionIsIdempotent(t *testing.T) {
	eng := enginetest.New()
	mgr := sessionmanager.New(stubFactory{}, eng)
	ctx := context.Background()

	_, err := mgr.CreateSession(ctx, "app", "u", "s1")
	require.NoError(t, err)

	require.NoError(t, mgr.DeleteSession(ctx, "app", "u", "s1"))
	require.NoError(t, mgr.DeleteSession(ctx, "app", "u", "s1"))

	got, err := mgr.GetSession(ctx, "app", "u", "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetSessionMaterializesFromEngineOnMiss(t *testing.T) {
	eng := enginetest.New()
	require.NoError(t, eng.Create(context.Background(), engine.Triple{AppName: "app", UserID: "u", SessionID: "s1"}, nil))
	mgr := sessionmanager.New(stubFactory{}, eng)

	got, err := mgr.GetSession(context.Background(), "app", "u", "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	missing, err := mgr.GetSession(context.Background(), "app", "u", "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCleanupInactiveSessionsReapsStaleOnly(t *testing.T) {
	eng := enginetest.New()
	mgr := sessionmanager.New(stubFactory{}, eng)
	ctx := context.Background()

	_, err := mgr.CreateSession(ctx, "app", "u", "old")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = mgr.CreateSession(ctx, "app", "u", "fresh")
	require.NoError(t, err)

	mgr.CleanupInactiveSessions(ctx, 3*time.Millisecond)

	old, err := mgr.GetSession(ctx, "app", "u", "old")
	require.NoError(t, err)
	assert.Nil(t, old)

	fresh, err := mgr.GetSession(ctx, "app", "u", "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

func TestDrainAllEmptiesPool(t *testing.T) {
	eng := enginetest.New()
	mgr := sessionmanager.New(stubFactory{}, eng)
	ctx := context.Background()

	_, err := mgr.CreateSession(ctx, "app", "u", "s1")
	require.NoError(t, err)
	_, err = mgr.CreateSession(ctx, "app", "u2", "s2")
	require.NoError(t, err)

	mgr.DrainAll()

	assert.Empty(t, mgr.ListSessions("app", "u"))
	assert.Empty(t, mgr.ListSessions("app", "u2"))
}
