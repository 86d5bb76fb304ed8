// Package toolregistry implements C4: ToolManager, a flat in-process
// registry mapping (app_name, tool_id) to opaque engine tool handles.
package toolregistry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/onedragon-agent/oda-agent/internal/oda/engine"
	"github.com/onedragon-agent/oda-agent/internal/oda/errkind"
	"github.com/onedragon-agent/oda-agent/internal/oda/logging"
)

// Key is the registry key shared with the other config-like managers.
type Key struct {
	AppName string
	ToolID  string
}

func (k Key) String() string { return fmt.Sprintf("%s:%s", k.AppName, k.ToolID) }

// Func is a caller-supplied tool implementation. It may run
// synchronously or asynchronously; ToolManager does not care which —
// it only wraps fn into an engine.ToolHandle.
type Func func(ctx context.Context, args string) (string, error)

type funcHandle struct {
	id string
	fn Func
}

func (h *funcHandle) ToolID() string { return h.id }

// Manager is C4: ToolManager. Lookups go through an LRU handle cache in
// front of the registry map. Eviction drops entries from the cache only:
// the map keeps every registration, so the LRU bounds only its own size.
type Manager struct {
	mu      sync.RWMutex
	handles map[Key]engine.ToolHandle
	cache   *lru.Cache[Key, engine.ToolHandle]
	log     *logging.Logger
}

// New constructs a Manager with an LRU handle cache of the given size.
// cacheSize <= 0 disables the cache (every lookup hits the registry map).
func New(cacheSize int) *Manager {
	m := &Manager{
		handles: make(map[Key]engine.ToolHandle),
		log:     logging.Named("toolregistry"),
	}
	if cacheSize > 0 {
		c, err := lru.New[Key, engine.ToolHandle](cacheSize)
		if err == nil {
			m.cache = c
		}
	}
	return m
}

// RegisterTool stores a pre-built engine-compatible handle.
func (m *Manager) RegisterTool(handle engine.ToolHandle, appName, toolID string) error {
	return m.register(Key{AppName: appName, ToolID: toolID}, handle)
}

// RegisterFunction wraps fn into an engine-compatible handle and stores it.
func (m *Manager) RegisterFunction(fn Func, appName, toolID string) error {
	return m.register(Key{AppName: appName, ToolID: toolID}, &funcHandle{id: toolID, fn: fn})
}

func (m *Manager) register(key Key, handle engine.ToolHandle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handles[key]; exists {
		return errkind.Wrap(errkind.ErrAlreadyExists, "tool %s already registered", key)
	}
	m.handles[key] = handle
	if m.cache != nil {
		m.cache.Add(key, handle)
	}
	m.log.Debug("registered tool %s (%s)", key, reflect.TypeOf(handle))
	return nil
}

// Get resolves a handle by key, consulting the cache before the
// authoritative registry map.
func (m *Manager) Get(appName, toolID string) (engine.ToolHandle, bool) {
	key := Key{AppName: appName, ToolID: toolID}
	if m.cache != nil {
		if h, ok := m.cache.Get(key); ok {
			return h, true
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[key]
	if ok && m.cache != nil {
		m.cache.Add(key, h)
	}
	return h, ok
}

// Resolves reports whether toolID is registered for appName.
func (m *Manager) Resolves(appName, toolID string) bool {
	_, ok := m.Get(appName, toolID)
	return ok
}

// List returns every registered key for appName, or every key if
// appName is empty.
func (m *Manager) List(appName string) []Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Key, 0, len(m.handles))
	for k := range m.handles {
		if appName == "" || k.AppName == appName {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// GlobalID returns the canonical "app_name:tool_id" identifier.
func GlobalID(appName, toolID string) string {
	return fmt.Sprintf("%s:%s", appName, toolID)
}
