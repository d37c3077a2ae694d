package engine

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/kestrel/engine/core"
	"github.com/spaghettifunk/kestrel/engine/platform"
	"github.com/spaghettifunk/kestrel/engine/renderer"
	"github.com/spaghettifunk/kestrel/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    atomic.Bool
	isSuspended  bool
	config       *core.Config
	platform     *platform.Platform
	graphics     renderer.Graphics
	factory      vulkan.ResourceFactory
	width        uint32
	height       uint32
	clock        *core.Clock
	lastTime     float64

	configUpdates chan *core.Config
	stopWatch     context.CancelFunc
}

func New(g *Game) (*Engine, error) {
	if g.FnInitialize == nil || g.FnUpdate == nil || g.FnRender == nil || g.FnOnResize == nil {
		return nil, errors.New("game is missing one of the required callbacks")
	}
	cfg, err := core.LoadConfig(g.ApplicationConfig.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.ApplicationConfig.Name != "" {
		cfg.Window.Name = g.ApplicationConfig.Name
	}
	core.SetLogLevel(cfg.Graphics.LogLevel)

	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		config:        cfg,
		clock:         core.NewClock(),
		platform:      platform.New(),
		width:         cfg.Window.Width,
		height:        cfg.Window.Height,
		configUpdates: make(chan *core.Config, 1),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if err := core.InputInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_CONFIG_RELOADED, e, e.onConfigReloaded)

	w := e.config.Window
	if err := e.platform.Startup(w.Name, w.PosX, w.PosY, w.Width, w.Height); err != nil {
		return err
	}

	g, factory, err := renderer.New(e.platform, e.config)
	if err != nil {
		return errors.Wrap(err, "initializing renderer")
	}
	e.graphics = g
	e.factory = factory

	if e.gameInstance.ApplicationConfig.WatchConfig && e.gameInstance.ApplicationConfig.ConfigPath != "" {
		ctx, cancel := context.WithCancel(context.Background())
		e.stopWatch = cancel
		go func() {
			if err := core.WatchConfig(ctx, e.gameInstance.ApplicationConfig.ConfigPath, e.queueConfig); err != nil {
				core.LogError("config watch stopped: %s", err)
			}
		}()
	}

	if err := e.gameInstance.FnInitialize(e.graphics, e.factory); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// queueConfig runs on the watcher goroutine; the newest config replaces any
// pending one and is applied on the render thread.
func (e *Engine) queueConfig(cfg *core.Config) {
	for {
		select {
		case e.configUpdates <- cfg:
			return
		default:
			select {
			case <-e.configUpdates:
			default:
			}
		}
	}
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		if !e.platform.PumpMessages() {
			e.isRunning.Store(false)
			break
		}

		select {
		case cfg := <-e.configUpdates:
			core.EventFire(core.EVENT_CODE_CONFIG_RELOADED, e, core.EventContext{Data: cfg})
		default:
		}

		if e.isSuspended {
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			e.isRunning.Store(false)
			break
		}

		// A skipped frame is recovered on the next iteration.
		if e.graphics.BeginFrame() {
			if err := e.gameInstance.FnRender(e.graphics, delta); err != nil {
				core.LogError("Game render failed, shutting down: %s", err)
				e.isRunning.Store(false)
				break
			}
			e.graphics.EndFrame()
			core.MetricsUpdate(platform.GetAbsoluteTime()-frameStartTime, e.graphics.NumBatches(), e.graphics.NumPrimitives())
		}

		// NOTE: Input update/state copying should always be handled
		// after any input should be recorded; I.E. before this line.
		core.InputUpdate(delta)
		e.lastTime = currentTime
	}
	return nil
}

// Stop asks the main loop to exit. It is safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	if e.stopWatch != nil {
		e.stopWatch()
	}
	var err error
	if e.graphics != nil {
		e.graphics.WaitIdle()
	}
	if e.gameInstance.FnShutdown != nil {
		err = e.gameInstance.FnShutdown()
	}
	if e.graphics != nil {
		e.graphics.Close()
		e.graphics = nil
	}
	core.EventShutdown()
	if ierr := core.InputShutdown(); ierr != nil {
		err = errors.CombineErrors(err, ierr)
	}
	if perr := e.platform.Shutdown(); perr != nil {
		err = errors.CombineErrors(err, perr)
	}
	fps, frameMS := core.MetricsFPS(), core.MetricsFrameTime()
	core.LogInfo("engine stopped (last %.0f fps, %.2f ms/frame)", fps, frameMS)
	return err
}

// GetFramebufferSize returns the width and height (in this order)
// of the application Framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onEvent(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning.Store(false)
		return true
	}
	return false
}

func (e *Engine) onKey(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
	switch core.KeyCode(ctx.U32[0]) {
	case core.KEY_ESCAPE:
		// NOTE: Technically firing an event to itself, but there may be other listeners.
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
		return true
	case core.KEY_F1:
		batches, primitives := core.MetricsDraws()
		core.LogInfo("%.0f fps, %.2f ms/frame, %d batches, %d primitives",
			core.MetricsFPS(), core.MetricsFrameTime(), batches, primitives)
		return true
	}
	return false
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
	width, height := ctx.U32[0], ctx.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return false
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	if e.graphics != nil {
		e.graphics.OnWindowResized()
	}
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError("game resize failed: %s", err)
	}
	return false
}

func (e *Engine) onConfigReloaded(code core.SystemEventCode, sender, listener interface{}, ctx core.EventContext) bool {
	cfg, ok := ctx.Data.(*core.Config)
	if !ok {
		core.LogError("wrong payload for event %d", code)
		return false
	}
	core.SetLogLevel(cfg.Graphics.LogLevel)
	if e.graphics != nil {
		e.graphics.ApplyConfig(cfg)
	}
	e.config.Graphics = cfg.Graphics
	return false
}
