package engine

import (
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/kestrel/engine/core"
	"github.com/spaghettifunk/kestrel/engine/renderer"
	"github.com/spaghettifunk/kestrel/engine/renderer/vulkan"
)

type resizeRecorder struct {
	calls [][2]uint32
}

func newTestEngine(t *testing.T, rec *resizeRecorder) *Engine {
	t.Helper()
	g := &Game{
		ApplicationConfig: &ApplicationConfig{
			ConfigPath: filepath.Join(t.TempDir(), "missing.toml"),
			Name:       "test",
		},
		FnInitialize: func(renderer.Graphics, vulkan.ResourceFactory) error { return nil },
		FnUpdate:     func(float64) error { return nil },
		FnRender:     func(renderer.Graphics, float64) error { return nil },
		FnOnResize: func(w, h uint32) error {
			rec.calls = append(rec.calls, [2]uint32{w, h})
			return nil
		},
	}
	e, err := New(g)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNewRequiresCallbacks(t *testing.T) {
	if _, err := New(&Game{ApplicationConfig: &ApplicationConfig{}}); err == nil {
		t.Error("New() without callbacks succeeded")
	}
}

func TestNewUsesDefaultsAndName(t *testing.T) {
	e := newTestEngine(t, &resizeRecorder{})
	if e.config.Window.Name != "test" {
		t.Errorf("window name = %q, want the application name", e.config.Window.Name)
	}
	if w, h := e.GetFramebufferSize(); w != core.DefaultWidth || h != core.DefaultHeight {
		t.Errorf("GetFramebufferSize() = %d, %d", w, h)
	}
}

func TestQueueConfigKeepsNewest(t *testing.T) {
	e := newTestEngine(t, &resizeRecorder{})
	first, second := core.DefaultConfig(), core.DefaultConfig()
	second.Graphics.VSync = false

	e.queueConfig(first)
	e.queueConfig(second)
	select {
	case got := <-e.configUpdates:
		if got != second {
			t.Error("queued config is not the newest")
		}
	default:
		t.Fatal("no config queued")
	}
	select {
	case <-e.configUpdates:
		t.Error("stale config left in the queue")
	default:
	}
}

func TestOnResizedSuspendsWhenMinimized(t *testing.T) {
	rec := &resizeRecorder{}
	e := newTestEngine(t, rec)

	resize := func(w, h uint32) {
		e.onResized(core.EVENT_CODE_RESIZED, nil, e, core.EventContext{U32: [4]uint32{w, h}})
	}
	resize(e.width, e.height)
	if len(rec.calls) != 0 {
		t.Errorf("same size triggered a resize: %v", rec.calls)
	}

	resize(0, 0)
	if !e.isSuspended || len(rec.calls) != 0 {
		t.Errorf("minimize suspended=%v calls=%v", e.isSuspended, rec.calls)
	}

	resize(800, 600)
	if e.isSuspended {
		t.Error("restore left the engine suspended")
	}
	if len(rec.calls) != 1 || rec.calls[0] != [2]uint32{800, 600} {
		t.Errorf("resize calls = %v, want [800 600]", rec.calls)
	}
}

func TestOnConfigReloaded(t *testing.T) {
	e := newTestEngine(t, &resizeRecorder{})
	cfg := core.DefaultConfig()
	cfg.Graphics.TripleBuffer = true
	cfg.Graphics.DescriptorBindMode = core.DescriptorBindRebindAll

	e.onConfigReloaded(core.EVENT_CODE_CONFIG_RELOADED, nil, e, core.EventContext{Data: cfg})
	if !e.config.Graphics.TripleBuffer || e.config.Graphics.DescriptorBindMode != core.DescriptorBindRebindAll {
		t.Errorf("graphics config not applied: %+v", e.config.Graphics)
	}

	before := e.config.Graphics
	e.onConfigReloaded(core.EVENT_CODE_CONFIG_RELOADED, nil, e, core.EventContext{Data: "bogus"})
	if e.config.Graphics != before {
		t.Error("bad payload changed the config")
	}
}

func TestQuitEventStops(t *testing.T) {
	e := newTestEngine(t, &resizeRecorder{})
	e.isRunning.Store(true)
	if !e.onEvent(core.EVENT_CODE_APPLICATION_QUIT, nil, e, core.EventContext{}) {
		t.Error("quit event not handled")
	}
	if e.isRunning.Load() {
		t.Error("engine still running after quit")
	}
}
