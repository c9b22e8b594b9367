package scripting

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrHookNotDefined is returned by Call when no script defines the hook.
var ErrHookNotDefined = errors.New("scripting: hook not defined")

// Manager owns one sandboxed LState loaded with every *.lua file of a
// directory and dispatches named hooks into it.
//
// An LState is single-threaded; Manager serializes all access with mu.
type Manager struct {
	mu        sync.Mutex
	L         *lua.LState
	instLimit int
	logger    *zap.Logger
}

// NewManager creates a Manager with an empty sandbox.
//
// Precondition: logger must be non-nil; instLimit <= 0 selects DefaultInstructionLimit.
// Postcondition: Returns a Manager whose VM has the knight module registered.
func NewManager(instLimit int, logger *zap.Logger) *Manager {
	if instLimit <= 0 {
		instLimit = DefaultInstructionLimit
	}
	L := NewSandboxedState()
	RegisterModules(L)
	return &Manager{L: L, instLimit: instLimit, logger: logger}
}

// LoadDir executes every *.lua file in dir in lexicographic order.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the number of files loaded, or an error naming the failing file.
func (m *Manager) LoadDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, path := range luaFiles {
		err := withBudget(ctx, m.L, m.instLimit, func() error { return m.L.DoFile(path) })
		if err != nil {
			return 0, fmt.Errorf("scripting: loading %q: %w", path, err)
		}
	}
	m.logger.Info("narration scripts loaded",
		zap.String("dir", dir),
		zap.Int("files", len(luaFiles)),
	)
	return len(luaFiles), nil
}

// LoadString executes src in the sandbox. Used by tests and inline hooks.
func (m *Manager) LoadString(ctx context.Context, src string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return withBudget(ctx, m.L, m.instLimit, func() error { return m.L.DoString(src) })
}

// Defined reports whether a global function named hook exists.
func (m *Manager) Defined(hook string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.L.GetGlobal(hook).(*lua.LFunction)
	return ok
}

// Call invokes the global Lua function hook with args under the instruction
// budget and returns its first result.
//
// Postcondition: Returns ErrHookNotDefined when the hook is missing; a Lua
// runtime error (including budget exhaustion) is logged and returned wrapped.
func (m *Manager) Call(ctx context.Context, hook string, args ...lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn, ok := m.L.GetGlobal(hook).(*lua.LFunction)
	if !ok {
		return lua.LNil, ErrHookNotDefined
	}

	err := withBudget(ctx, m.L, m.instLimit, func() error {
		return m.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...)
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: calling %s: %w", hook, err)
	}

	ret := m.L.Get(-1)
	m.L.Pop(1)
	return ret, nil
}

// Close releases the VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.L.Close()
}
