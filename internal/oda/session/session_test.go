package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/executor"
	"github.com/onedragon-agent/oda-agent/internal/oda/session"
)

type countingFactory struct {
	mu    sync.Mutex
	calls int
}

func (f *countingFactory) CreateAgent(ctx context.Context, agentName string, triple engine.Triple) (*executor.Executor, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return executor.New(triple, noopRunner{}, 0), nil
}

// noopRunner only exercises executor construction and agent-pool reuse
// here; it doesn't script attempts or retries, so it has no new_message
// semantics to capture. That invariant is covered end-to-end against
// enginetest.Engine in internal/oda/executor.
type noopRunner struct{}

func (noopRunner) RunAsync(_ context.Context, _, _, _ string) (engine.RunStream, error) {
	return &closedStream{}, nil
}

type closedStream struct{}

func (s *closedStream) Next(ctx context.Context) (engine.Event, bool, error) { return engine.Event{}, false, nil }
func (s *closedStream) Close()                                              {}

// TestLazyCreationAndReuse is boundary scenario S1: the first
// ProcessMessage call triggers exactly one CreateAgent call for a
// given agent name; a second call reuses the same executor.
func TestLazyCreationAndReuse(t *testing.T) {
	factory := &countingFactory{}
	triple := engine.Triple{AppName: "app", UserID: "u", SessionID: "s"}
	sess := session.New(triple, factory)

	stream1, err := sess.ProcessMessage(context.Background(), "hi", "A")
	require.NoError(t, err)
	for range stream1.Events() {
	}

	stream2, err := sess.ProcessMessage(context.Background(), "hi again", "A")
	require.NoError(t, err)
	for range stream2.Events() {
	}

	assert.Equal(t, 1, factory.calls)
	assert.Equal(t, 1, sess.PoolSize())
}

func TestConcurrentCreateAgentCoalesces(t *testing.T) {
	factory := &countingFactory{}
	triple := engine.Triple{AppName: "app", UserID: "u", SessionID: "s"}
	sess := session.New(triple, factory)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream, err := sess.ProcessMessage(context.Background(), "hi", "A")
			if err != nil {
				return
			}
			for range stream.Events() {
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, factory.calls)
}

func TestDefaultAgentNameWhenEmpty(t *testing.T) {
	factory := &countingFactory{}
	triple := engine.Triple{AppName: "app", UserID: "u", SessionID: "s"}
	sess := session.New(triple, factory)

	_, err := sess.ProcessMessage(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.PoolSize())
}

func TestCleanupEmptiesPool(t *testing.T) {
	factory := &countingFactory{}
	triple := engine.Triple{AppName: "app", UserID: "u", SessionID: "s"}
	sess := session.New(triple, factory)

	_, err := sess.ProcessMessage(context.Background(), "hi", "A")
	require.NoError(t, err)
	require.Equal(t, 1, sess.PoolSize())

	sess.Cleanup()
	assert.Equal(t, 0, sess.PoolSize())
}
