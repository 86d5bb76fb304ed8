// Package session implements C8: Session (OdaSession), a per-session
// pool of RetryingExecutors keyed by agent name.
package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/executor"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
)

// Factory is the subset of AgentFactory (C6) this package needs.
type Factory interface {
	CreateAgent(ctx context.Context, agentName string, triple engine.Triple) (*executor.Executor, error)
}

// Session is C8.
type Session struct {
	Triple engine.Triple

	mu      sync.Mutex
	pool    map[string]*executor.Executor
	factory Factory
	group   singleflight.Group // coalesces concurrent create_agent calls per agent_name

	lastAccessMu sync.RWMutex
	lastAccess   time.Time

	log *logging.Logger
}

// New constructs an empty Session bound to triple; executors are
// created lazily on first use via factory.
func New(triple engine.Triple, factory Factory) *Session {
	return &Session{
		Triple:     triple,
		pool:       make(map[string]*executor.Executor),
		factory:    factory,
		lastAccess: time.Now(),
		log:        logging.Named("session"),
	}
}

// LastAccess returns the timestamp of the most recent ProcessMessage call.
func (s *Session) LastAccess() time.Time {
	s.lastAccessMu.RLock()
	defer s.lastAccessMu.RUnlock()
	return s.lastAccess
}

func (s *Session) touch() {
	s.lastAccessMu.Lock()
	s.lastAccess = time.Now()
	s.lastAccessMu.Unlock()
}

// ProcessMessage resolves (creating on first use) the executor for
// agentName and returns the stream from executor.RunAsync(message).
// Concurrent calls for the same agentName collapse into at most one
// AgentFactory.CreateAgent invocation (spec §8 invariant 3), via
// singleflight.
func (s *Session) ProcessMessage(ctx context.Context, message, agentName string) (*executor.Stream, error) {
	exec, err := s.resolveExecutor(ctx, agentName)
	if err != nil {
		return nil, err
	}
	return exec.RunAsync(ctx, message), nil
}

func (s *Session) resolveExecutor(ctx context.Context, agentName string) (*executor.Executor, error) {
	s.touch()
	if agentName == "" {
		agentName = errkind.DefaultAgent
	}

	s.mu.Lock()
	exec, ok := s.pool[agentName]
	s.mu.Unlock()
	if ok {
		return exec, nil
	}

	result, err, _ := s.group.Do(agentName, func() (any, error) {
		s.mu.Lock()
		if exec, ok := s.pool[agentName]; ok {
			s.mu.Unlock()
			return exec, nil
		}
		s.mu.Unlock()

		exec, err := s.factory.CreateAgent(ctx, agentName, s.Triple)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.pool[agentName] = exec
		s.mu.Unlock()
		s.log.Debug("session %s: created executor for agent %q", s.Triple.SessionID, agentName)
		return exec, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*executor.Executor), nil
}

// Cleanup disposes every executor in the pool and empties it. Session
// holds no engine state directly; per-conversation history lives in
// the engine's own session service.
func (s *Session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.pool {
		delete(s.pool, name)
	}
	s.log.Debug("session %s: cleaned up agent pool", s.Triple.SessionID)
}

// PoolSize reports the number of materialized executors, for tests.
func (s *Session) PoolSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool)
}
