package script

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/pulsebus/pulse"
	"github.com/pulsebus/pulse/provider"
)

// Module exposes a provider's event operations to a Lua state.
type Module struct {
	provider *provider.Provider
	name     string
	L        *lua.LState

	mu         sync.Mutex
	subs       map[string]*moduleSub
	handlerTbl *lua.LTable // pins handler functions against the Lua GC
	handlerKey string      // global key for the handler table
	nextID     uint64
}

// moduleSub tracks one scripted subscription.
type moduleSub struct {
	key    string
	cancel func()
}

// NewModule creates a scripting module that installs its functions
// under the global table named name.
func NewModule(p *provider.Provider, name string) *Module {
	return &Module{
		provider:   p,
		name:       name,
		subs:       make(map[string]*moduleSub),
		handlerKey: "_pulse_handlers_" + name,
	}
}

// Register installs the module into the Lua state.
func (m *Module) Register(L *lua.LState) error {
	m.mu.Lock()
	m.L = L
	m.handlerTbl = L.NewTable()
	m.mu.Unlock()
	L.SetGlobal(m.handlerKey, m.handlerTbl)

	mod := L.NewTable()
	L.SetField(mod, "on", L.NewFunction(m.on))
	L.SetField(mod, "off", L.NewFunction(m.off))
	L.SetField(mod, "once", L.NewFunction(m.once))
	L.SetField(mod, "emit", L.NewFunction(m.emit))
	L.SetGlobal(m.name, mod)
	return nil
}

// Cleanup unsubscribes every scripted listener and releases all
// handler references. Call it when the owning script is unloaded.
func (m *Module) Cleanup() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*moduleSub)
	L := m.L
	m.L = nil
	m.handlerTbl = nil
	m.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
	}
	if L != nil {
		L.SetGlobal(m.handlerKey, lua.LNil)
	}
}

// nextLocalID generates a module-unique subscription ID.
func (m *Module) nextLocalID() string {
	id := atomic.AddUint64(&m.nextID, 1)
	return fmt.Sprintf("%s_%d", m.name, id)
}

// on(key, handler) -> subscriptionID
func (m *Module) on(L *lua.LState) int {
	return m.subscribe(L, false)
}

// once(key, handler) -> subscriptionID
// The handler is unsubscribed after its first delivery.
func (m *Module) once(L *lua.LState) int {
	return m.subscribe(L, true)
}

func (m *Module) subscribe(L *lua.LState, once bool) int {
	key := L.CheckString(1)
	handler := L.CheckFunction(2)
	if key == "" {
		L.ArgError(1, "event key cannot be empty")
		return 0
	}

	localID := m.nextLocalID()

	m.mu.Lock()
	if m.handlerTbl != nil {
		m.handlerTbl.RawSetString(localID, handler)
	}
	m.mu.Unlock()

	callback := m.callback(localID)
	if once {
		callback = m.onceCallback(localID, callback)
	}

	// Scripted callbacks share a Go function literal; the local ID
	// keeps each subscription distinct in the registry.
	cancel, err := m.provider.Subscribe(key, callback, provider.WithIdentity(localID))
	if err != nil {
		m.mu.Lock()
		if m.handlerTbl != nil {
			m.handlerTbl.RawSetString(localID, lua.LNil)
		}
		m.mu.Unlock()
		L.RaiseError("on: %v", err)
		return 0
	}

	m.mu.Lock()
	m.subs[localID] = &moduleSub{key: key, cancel: cancel}
	m.mu.Unlock()

	L.Push(lua.LString(localID))
	return 1
}

// off(subscriptionID) -> bool
func (m *Module) off(L *lua.LState) int {
	localID := L.CheckString(1)
	if localID == "" {
		L.ArgError(1, "subscription ID cannot be empty")
		return 0
	}
	L.Push(lua.LBool(m.remove(localID)))
	return 1
}

// emit(key, data?) triggers the key with an optional table payload.
func (m *Module) emit(L *lua.LState) int {
	key := L.CheckString(1)
	if key == "" {
		L.ArgError(1, "event key cannot be empty")
		return 0
	}

	var args []any
	if L.GetTop() >= 2 {
		if tbl := L.OptTable(2, nil); tbl != nil {
			args = append(args, tableToMap(tbl))
		}
	}

	if _, err := m.provider.Trigger(context.Background(), key, args...); err != nil {
		L.RaiseError("emit: %v", err)
		return 0
	}
	return 0
}

// callback builds the Go listener that invokes the pinned Lua handler.
func (m *Module) callback(localID string) pulse.HandlerFunc {
	return func(_ context.Context, args ...any) error {
		m.mu.Lock()
		L := m.L
		tbl := m.handlerTbl
		m.mu.Unlock()
		if L == nil || tbl == nil {
			return nil // module was cleaned up
		}

		handler := L.GetField(tbl, localID)
		if handler.Type() != lua.LTFunction {
			return nil // handler was removed
		}

		L.Push(handler)
		for _, arg := range args {
			L.Push(toLValue(L, arg))
		}
		// A Lua error here surfaces as an isolated listener failure.
		return L.PCall(len(args), 0, nil)
	}
}

// onceCallback wraps a callback to unsubscribe after the first delivery.
func (m *Module) onceCallback(localID string, base pulse.HandlerFunc) pulse.HandlerFunc {
	var once sync.Once
	return func(ctx context.Context, args ...any) error {
		var err error
		fired := false
		once.Do(func() {
			fired = true
			err = base(ctx, args...)
		})
		if fired {
			m.remove(localID)
		}
		return err
	}
}

// remove drops a scripted subscription and its pinned handler.
func (m *Module) remove(localID string) bool {
	m.mu.Lock()
	sub, ok := m.subs[localID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.subs, localID)
	if m.handlerTbl != nil {
		m.handlerTbl.RawSetString(localID, lua.LNil)
	}
	m.mu.Unlock()

	sub.cancel()
	return true
}
