package engine

import (
	"github.com/spaghettifunk/kestrel/engine/renderer"
	"github.com/spaghettifunk/kestrel/engine/renderer/vulkan"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

// Initialize receives the graphics facade and the factory that creates the
// buffers handed to it. Both stay valid until Shutdown.
type Initialize func(g renderer.Graphics, factory vulkan.ResourceFactory) error
type Update func(deltaTime float64) error

// Render is called between BeginFrame and EndFrame, only for frames that
// could be acquired.
type Render func(g renderer.Graphics, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
