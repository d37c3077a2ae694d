package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrSurfaceLost        = errors.New("window surface lost")
	ErrZeroExtent         = errors.New("swapchain extent is zero")
	ErrNoSurfaceFormat    = errors.New("no usable surface format")
	ErrNoDepthFormat      = errors.New("no usable depth format")
	ErrFenceTimeout       = errors.New("timed out waiting for fence")
	ErrDeviceLost         = errors.New("device lost")
	ErrPipelineBuild      = errors.New("pipeline build failed")
	ErrShaderNotReady     = errors.New("shader bytecode not ready")
	ErrNoFrame            = errors.New("no current frame")
	ErrUnknown            = errors.New("unknown")
)
