package script

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/pulsebus/pulse"
	"github.com/pulsebus/pulse/provider"
)

func newTestModule(t *testing.T) (*Module, *provider.Provider, *lua.LState) {
	t.Helper()
	prov := provider.New(pulse.New())
	m := NewModule(prov, "events")

	L := lua.NewState()
	t.Cleanup(L.Close)
	require.NoError(t, m.Register(L))
	return m, prov, L
}

func TestModule_OnReceivesTriggeredEvent(t *testing.T) {
	_, prov, L := newTestModule(t)

	require.NoError(t, L.DoString(`
		subID = events.on("greet", function(data)
			lastMsg = data.msg
		end)
	`))
	require.Equal(t, 1, prov.ListenerCount("greet"))

	res, err := prov.Trigger(context.Background(), "greet", map[string]any{"msg": "hi"})
	require.NoError(t, err)
	require.NoError(t, res.Wait(context.Background()))

	assert.Equal(t, "hi", lua.LVAsString(L.GetGlobal("lastMsg")))
}

func TestModule_OffRemovesSubscription(t *testing.T) {
	_, prov, L := newTestModule(t)

	require.NoError(t, L.DoString(`
		subID = events.on("greet", function(data) end)
		removed = events.off(subID)
		removedAgain = events.off(subID)
	`))

	assert.Equal(t, lua.LTrue, L.GetGlobal("removed"))
	assert.Equal(t, lua.LFalse, L.GetGlobal("removedAgain"))
	assert.Equal(t, 0, prov.ListenerCount("greet"))
}

func TestModule_OnceUnsubscribesAfterFirstDelivery(t *testing.T) {
	_, prov, L := newTestModule(t)

	require.NoError(t, L.DoString(`
		hits = 0
		events.once("tick", function()
			hits = hits + 1
		end)
	`))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := prov.Trigger(ctx, "tick")
		require.NoError(t, err)
	}

	assert.Equal(t, float64(1), float64(lua.LVAsNumber(L.GetGlobal("hits"))))
	assert.Equal(t, 0, prov.ListenerCount("tick"))
}

func TestModule_EmitReachesGoListeners(t *testing.T) {
	_, prov, L := newTestModule(t)

	var got atomic.Value
	_, err := prov.Subscribe("ping", func(_ context.Context, args ...any) error {
		if len(args) > 0 {
			got.Store(args[0])
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, L.DoString(`events.emit("ping", { value = 42 })`))

	payload, ok := got.Load().(map[string]any)
	require.True(t, ok, "lua table payload should arrive as a map")
	assert.Equal(t, float64(42), payload["value"])
}

func TestModule_EmitInvalidKeyRaises(t *testing.T) {
	_, _, L := newTestModule(t)

	err := L.DoString(`events.emit("")`)
	require.Error(t, err)
}

func TestModule_LuaErrorIsIsolated(t *testing.T) {
	_, prov, L := newTestModule(t)

	require.NoError(t, L.DoString(`
		events.on("boom", function() error("scripted failure") end)
	`))

	res, err := prov.Trigger(context.Background(), "boom")
	require.NoError(t, err, "a failing lua handler must not fail the trigger")
	require.NoError(t, res.Wait(context.Background()))
	assert.Error(t, res.Err(), "the failure is still visible as a diagnostic")
}

func TestModule_CleanupReleasesEverything(t *testing.T) {
	m, prov, L := newTestModule(t)

	require.NoError(t, L.DoString(`
		events.on("a", function() end)
		events.on("b", function() end)
	`))
	require.Equal(t, 1, prov.ListenerCount("a"))
	require.Equal(t, 1, prov.ListenerCount("b"))

	m.Cleanup()

	assert.Equal(t, 0, prov.ListenerCount("a"))
	assert.Equal(t, 0, prov.ListenerCount("b"))
	assert.Equal(t, lua.LNil, L.GetGlobal("_pulse_handlers_events"))
}

func TestModule_ArgsConvertToLuaValues(t *testing.T) {
	_, prov, L := newTestModule(t)

	require.NoError(t, L.DoString(`
		events.on("multi", function(n, s, b, list)
			gotN, gotS, gotB = n, s, b
			gotFirst = list[1]
		end)
	`))

	_, err := prov.Trigger(context.Background(), "multi",
		7, "text", true, []any{"head", "tail"})
	require.NoError(t, err)

	assert.Equal(t, float64(7), float64(lua.LVAsNumber(L.GetGlobal("gotN"))))
	assert.Equal(t, "text", lua.LVAsString(L.GetGlobal("gotS")))
	assert.Equal(t, lua.LTrue, L.GetGlobal("gotB"))
	assert.Equal(t, "head", lua.LVAsString(L.GetGlobal("gotFirst")))
}
