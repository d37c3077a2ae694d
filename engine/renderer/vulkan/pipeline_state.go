package vulkan

import (
	"fmt"
	"math"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

// PipelineState names one axis of the packed pipeline state bitmask.
type PipelineState int

const (
	PipelineStateBlendMode PipelineState = iota
	PipelineStatePrimitive
	PipelineStateColorMask
	PipelineStateFillMode
	PipelineStateCullMode
	PipelineStateDepthTest
	PipelineStateDepthWrite
	PipelineStateStencilTest
	PipelineStateStencilMode
	PipelineStateSamples
	PipelineStateLineWidth
	PipelineStateMax
)

// offset and mask of each axis
var pipelineStateMaskBits = [PipelineStateMax][2]uint32{
	{0, 0xF},        // blend mode
	{4, 0xF << 4},   // primitive
	{8, 0xF << 8},   // color mask
	{12, 0x3 << 12}, // fill mode
	{14, 0x3 << 14}, // cull mode
	{16, 0x7 << 16}, // depth test
	{19, 0x1 << 19}, // depth write
	{20, 0x1 << 20}, // stencil test
	{21, 0xF << 21}, // stencil mode
	{25, 0x7 << 25}, // samples, log2
	{28, 0x3 << 28}, // line width bucket
}

var pipelineStateNames = [PipelineStateMax]string{
	"BLEN", "PRIM", "CMSK", "FILL", "CULL", "ZTEST", "ZWRIT", "STEST", "SMODE", "SAMPL", "LINEW",
}

// Line widths selectable through the line-width bucket axis.
var LineWidthValues = [...]float32{1.0, 2.5, 5.0}

// ColorMaskAll enables writes to every channel.
const ColorMaskAll uint32 = 0xF

// SetPipelineState replaces one axis of states and reports whether it changed.
func SetPipelineState(states *uint32, state PipelineState, value uint32) bool {
	bits := pipelineStateMaskBits[state]
	next := ((value << bits[0]) & bits[1]) | (*states &^ bits[1])
	if next == *states {
		return false
	}
	*states = next
	return true
}

// GetPipelineState extracts one axis of states.
func GetPipelineState(states uint32, state PipelineState) uint32 {
	bits := pipelineStateMaskBits[state]
	return (states & bits[1]) >> bits[0]
}

// GetPipelineStateVariation returns states with one axis replaced, leaving states untouched.
func GetPipelineStateVariation(states uint32, state PipelineState, value uint32) uint32 {
	SetPipelineState(&states, state, value)
	return states
}

// DumpPipelineStates renders every axis for logs.
func DumpPipelineStates(states uint32) string {
	var b strings.Builder
	for i := PipelineState(0); i < PipelineStateMax; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%d", pipelineStateNames[i], GetPipelineState(states, i))
	}
	return b.String()
}

// LineWidthIndex returns the bucket nearest to width.
func LineWidthIndex(width float32) uint32 {
	best := uint32(0)
	bestDelta := float32(math.MaxFloat32)
	for i, v := range LineWidthValues {
		d := width - v
		if d < 0 {
			d = -d
		}
		if d < bestDelta {
			best, bestDelta = uint32(i), d
		}
	}
	return best
}

// SampleCountIndex encodes a sample count as log2, the samples axis value.
func SampleCountIndex(samples uint32) uint32 {
	idx := uint32(0)
	for s := samples; s > 1 && idx < 6; s >>= 1 {
		idx++
	}
	return idx
}

type stencilModeDesc struct {
	compare           metadata.CompareMode
	pass, fail, zFail metadata.StencilOp
}

var stencilModes = [...]stencilModeDesc{
	{metadata.CompareAlways, metadata.StencilOpRef, metadata.StencilOpKeep, metadata.StencilOpKeep},
	{metadata.CompareEqual, metadata.StencilOpKeep, metadata.StencilOpKeep, metadata.StencilOpKeep},
}

// StencilMode maps a stencil configuration to its axis value. Combinations
// without an entry fall back to mode 0 and report false.
func StencilMode(compare metadata.CompareMode, pass, fail, zFail metadata.StencilOp) (uint32, bool) {
	for i, m := range stencilModes {
		if m.compare == compare && m.pass == pass && m.fail == fail && m.zFail == zFail {
			return uint32(i), true
		}
	}
	return 0, false
}

var primitiveTopologies = [metadata.MaxPrimitiveTypes]vk.PrimitiveTopology{
	vk.PrimitiveTopologyTriangleList,
	vk.PrimitiveTopologyLineList,
	vk.PrimitiveTopologyPointList,
	vk.PrimitiveTopologyTriangleStrip,
	vk.PrimitiveTopologyLineStrip,
	vk.PrimitiveTopologyTriangleFan,
}

var polygonModes = [...]vk.PolygonMode{
	vk.PolygonModeFill,
	vk.PolygonModeLine,
	vk.PolygonModePoint,
}

var cullModes = [metadata.MaxCullModes]vk.CullModeFlagBits{
	vk.CullModeNone,
	vk.CullModeBackBit,
	vk.CullModeFrontBit,
}

var compareOps = [metadata.MaxCompareModes]vk.CompareOp{
	vk.CompareOpAlways,
	vk.CompareOpEqual,
	vk.CompareOpNotEqual,
	vk.CompareOpLess,
	vk.CompareOpLessOrEqual,
	vk.CompareOpGreater,
	vk.CompareOpGreaterOrEqual,
}

var stencilOps = [...]vk.StencilOp{
	vk.StencilOpKeep,
	vk.StencilOpZero,
	vk.StencilOpReplace,
	vk.StencilOpIncrementAndClamp,
	vk.StencilOpDecrementAndClamp,
}

var sampleCounts = [...]vk.SampleCountFlagBits{
	vk.SampleCount1Bit,
	vk.SampleCount2Bit,
	vk.SampleCount4Bit,
	vk.SampleCount8Bit,
	vk.SampleCount16Bit,
	vk.SampleCount32Bit,
	vk.SampleCount64Bit,
}

type blendDesc struct {
	enable             bool
	srcColor, dstColor vk.BlendFactor
	colorOp            vk.BlendOp
	srcAlpha, dstAlpha vk.BlendFactor
	alphaOp            vk.BlendOp
}

var blendModes = [metadata.MaxBlendModes]blendDesc{
	// replace
	{false, vk.BlendFactorOne, vk.BlendFactorZero, vk.BlendOpAdd, vk.BlendFactorOne, vk.BlendFactorZero, vk.BlendOpAdd},
	// add
	{true, vk.BlendFactorOne, vk.BlendFactorOne, vk.BlendOpAdd, vk.BlendFactorOne, vk.BlendFactorOne, vk.BlendOpAdd},
	// multiply
	{true, vk.BlendFactorDstColor, vk.BlendFactorZero, vk.BlendOpAdd, vk.BlendFactorDstAlpha, vk.BlendFactorZero, vk.BlendOpAdd},
	// alpha
	{true, vk.BlendFactorSrcAlpha, vk.BlendFactorOneMinusSrcAlpha, vk.BlendOpAdd, vk.BlendFactorOne, vk.BlendFactorOneMinusSrcAlpha, vk.BlendOpAdd},
	// add alpha
	{true, vk.BlendFactorSrcAlpha, vk.BlendFactorOne, vk.BlendOpAdd, vk.BlendFactorOne, vk.BlendFactorOne, vk.BlendOpAdd},
	// premultiplied alpha
	{true, vk.BlendFactorOne, vk.BlendFactorOneMinusSrcAlpha, vk.BlendOpAdd, vk.BlendFactorOne, vk.BlendFactorOneMinusSrcAlpha, vk.BlendOpAdd},
	// inverse destination alpha
	{true, vk.BlendFactorOneMinusDstAlpha, vk.BlendFactorDstAlpha, vk.BlendOpAdd, vk.BlendFactorOne, vk.BlendFactorOne, vk.BlendOpAdd},
	// subtract
	{true, vk.BlendFactorOne, vk.BlendFactorOne, vk.BlendOpReverseSubtract, vk.BlendFactorOne, vk.BlendFactorOne, vk.BlendOpReverseSubtract},
	// subtract alpha
	{true, vk.BlendFactorSrcAlpha, vk.BlendFactorOne, vk.BlendOpReverseSubtract, vk.BlendFactorOne, vk.BlendFactorOne, vk.BlendOpReverseSubtract},
}
