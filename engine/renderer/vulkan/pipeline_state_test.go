package vulkan

import (
	"strings"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

func TestSetPipelineState(t *testing.T) {
	tests := []struct {
		state PipelineState
		value uint32
	}{
		{PipelineStateBlendMode, uint32(metadata.BlendAlpha)},
		{PipelineStatePrimitive, uint32(metadata.LineStrip)},
		{PipelineStateColorMask, 0x5},
		{PipelineStateFillMode, uint32(metadata.FillWireframe)},
		{PipelineStateCullMode, uint32(metadata.CullCW)},
		{PipelineStateDepthTest, uint32(metadata.CompareGreaterEqual)},
		{PipelineStateDepthWrite, 1},
		{PipelineStateStencilTest, 1},
		{PipelineStateStencilMode, 1},
		{PipelineStateSamples, 3},
		{PipelineStateLineWidth, 2},
	}
	var states uint32
	for _, tt := range tests {
		if !SetPipelineState(&states, tt.state, tt.value) {
			t.Errorf("SetPipelineState(%s) reported no change", pipelineStateNames[tt.state])
		}
		if SetPipelineState(&states, tt.state, tt.value) {
			t.Errorf("SetPipelineState(%s) with same value reported a change", pipelineStateNames[tt.state])
		}
	}
	// every axis keeps its own value
	for _, tt := range tests {
		if got := GetPipelineState(states, tt.state); got != tt.value {
			t.Errorf("GetPipelineState(%s) = %d, want %d", pipelineStateNames[tt.state], got, tt.value)
		}
	}

	// values wider than the axis are masked
	var s uint32
	SetPipelineState(&s, PipelineStateDepthWrite, 3)
	if got := GetPipelineState(s, PipelineStateDepthWrite); got != 1 {
		t.Errorf("GetPipelineState(depth write) = %d, want 1", got)
	}
	if GetPipelineState(s, PipelineStateStencilTest) != 0 {
		t.Error("masked value leaked into the next axis")
	}
}

func TestGetPipelineStateVariation(t *testing.T) {
	var states uint32
	SetPipelineState(&states, PipelineStateCullMode, uint32(metadata.CullCCW))
	v := GetPipelineStateVariation(states, PipelineStateCullMode, uint32(metadata.CullNone))
	if GetPipelineState(states, PipelineStateCullMode) != uint32(metadata.CullCCW) {
		t.Error("GetPipelineStateVariation() modified its input")
	}
	if GetPipelineState(v, PipelineStateCullMode) != uint32(metadata.CullNone) {
		t.Errorf("variation cull = %d, want none", GetPipelineState(v, PipelineStateCullMode))
	}
}

func TestDumpPipelineStates(t *testing.T) {
	var states uint32
	SetPipelineState(&states, PipelineStateDepthTest, 4)
	got := DumpPipelineStates(states)
	if !strings.Contains(got, "ZTEST=4") || !strings.HasPrefix(got, "BLEN=0") {
		t.Errorf("DumpPipelineStates() = %q", got)
	}
}

func TestLineWidthIndex(t *testing.T) {
	tests := []struct {
		width float32
		want  uint32
	}{{0.5, 0}, {1, 0}, {2, 1}, {2.5, 1}, {4, 2}, {10, 2}}
	for _, tt := range tests {
		if got := LineWidthIndex(tt.width); got != tt.want {
			t.Errorf("LineWidthIndex(%v) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestSampleCountIndex(t *testing.T) {
	tests := []struct{ samples, want uint32 }{{0, 0}, {1, 0}, {2, 1}, {4, 2}, {8, 3}, {64, 6}, {128, 6}}
	for _, tt := range tests {
		if got := SampleCountIndex(tt.samples); got != tt.want {
			t.Errorf("SampleCountIndex(%d) = %d, want %d", tt.samples, got, tt.want)
		}
	}
}

func TestStencilMode(t *testing.T) {
	mode, ok := StencilMode(metadata.CompareEqual, metadata.StencilOpKeep, metadata.StencilOpKeep, metadata.StencilOpKeep)
	if !ok || mode != 1 {
		t.Errorf("StencilMode(equal) = %d, %v, want 1", mode, ok)
	}
	mode, ok = StencilMode(metadata.CompareLess, metadata.StencilOpIncr, metadata.StencilOpKeep, metadata.StencilOpKeep)
	if ok || mode != 0 {
		t.Errorf("StencilMode(unmapped) = %d, %v, want 0 false", mode, ok)
	}
}

func TestPipelineBuilderApplyStates(t *testing.T) {
	var states uint32
	SetPipelineState(&states, PipelineStateBlendMode, uint32(metadata.BlendAlpha))
	SetPipelineState(&states, PipelineStateColorMask, ColorMaskAll)
	SetPipelineState(&states, PipelineStatePrimitive, uint32(metadata.LineList))
	SetPipelineState(&states, PipelineStateCullMode, uint32(metadata.CullCCW))
	SetPipelineState(&states, PipelineStateDepthTest, uint32(metadata.CompareLess))
	SetPipelineState(&states, PipelineStateStencilTest, 1)
	SetPipelineState(&states, PipelineStateStencilMode, 1)
	SetPipelineState(&states, PipelineStateSamples, 2)
	SetPipelineState(&states, PipelineStateLineWidth, 1)

	pass := &RenderPassInfo{
		Attachments: []Attachment{{Slot: SlotTarget1}, {Slot: SlotTarget2}, {Slot: SlotDepth}},
		Subpasses:   []Subpass{{Colors: []uint32{0, 1}, Depth: 2}},
	}
	b := NewPipelineBuilder()
	b.ApplyStates(states, 7, pass, 0)
	desc := b.Desc(1, 2, 0)

	if desc.InputAssembly.Topology != vk.PrimitiveTopologyLineList {
		t.Errorf("topology = %v, want line list", desc.InputAssembly.Topology)
	}
	if desc.Rasterization.CullMode != vk.CullModeFlags(vk.CullModeBackBit) {
		t.Errorf("cull = %v, want back", desc.Rasterization.CullMode)
	}
	if desc.Rasterization.LineWidth != 2.5 {
		t.Errorf("line width = %v, want 2.5", desc.Rasterization.LineWidth)
	}
	if desc.DepthStencil.DepthCompareOp != vk.CompareOpLess || desc.DepthStencil.DepthTestEnable != vk.True ||
		desc.DepthStencil.DepthWriteEnable != vk.False {
		t.Errorf("depth = %+v", desc.DepthStencil)
	}
	if desc.DepthStencil.StencilTestEnable != vk.True || desc.DepthStencil.Front.Reference != 7 ||
		desc.DepthStencil.Front.CompareOp != vk.CompareOpEqual {
		t.Errorf("stencil front = %+v", desc.DepthStencil.Front)
	}
	if desc.Multisample.RasterizationSamples != vk.SampleCount4Bit {
		t.Errorf("samples = %v, want 4", desc.Multisample.RasterizationSamples)
	}
	if len(desc.ColorBlendAttachments) != 2 {
		t.Fatalf("blend attachments = %d, want one per colour attachment", len(desc.ColorBlendAttachments))
	}
	if a := desc.ColorBlendAttachments[0]; a.BlendEnable != vk.True || a.SrcColorBlendFactor != vk.BlendFactorSrcAlpha {
		t.Errorf("blend = %+v", a)
	}
	if len(desc.DynamicStates) != 2 {
		t.Errorf("dynamic states = %v, want viewport and scissor", desc.DynamicStates)
	}
	if desc.Layout != 1 || desc.RenderPass != 2 {
		t.Errorf("Desc() layout=%v pass=%v", desc.Layout, desc.RenderPass)
	}
}

func TestPipelineBuilderDepthAlwaysWithoutWrite(t *testing.T) {
	b := NewPipelineBuilder()
	b.SetDepthTest(metadata.CompareAlways, false)
	desc := b.Desc(0, 0, 0)
	if desc.DepthStencil.DepthTestEnable != vk.False {
		t.Error("depth test enabled for always without writes")
	}
}

func TestPipelineBuilderLimits(t *testing.T) {
	b := NewPipelineBuilder()
	if b.AddShaderStage(&fakeShader{name: "empty", stage: metadata.VertexShader}) {
		t.Error("AddShaderStage() accepted a shader without bytecode")
	}
	if !b.AddShaderStage(newVS("vs", nil)) || !b.AddShaderStage(newPS("ps", nil)) {
		t.Fatal("AddShaderStage() rejected a ready shader")
	}
	if b.AddShaderStage(newPS("extra", nil)) {
		t.Error("AddShaderStage() accepted a third stage")
	}

	layout := VertexBindingLayout{
		Stride: 20,
		Elements: []metadata.VertexElement{
			{Type: metadata.TypeVector3, Semantic: metadata.SemPosition},
			{Type: metadata.TypeVector2, Offset: 12},
		},
	}
	for i := 0; i < maxVertexBindings; i++ {
		if !b.AddVertexBinding(layout) {
			t.Fatalf("AddVertexBinding() %d rejected", i)
		}
	}
	if b.AddVertexBinding(layout) {
		t.Error("AddVertexBinding() accepted one binding too many")
	}
	desc := b.Desc(0, 0, 0)
	if len(desc.VertexAttributes) != 2*maxVertexBindings {
		t.Fatalf("attributes = %d, want %d", len(desc.VertexAttributes), 2*maxVertexBindings)
	}
	last := desc.VertexAttributes[len(desc.VertexAttributes)-1]
	if last.Location != 7 || last.Binding != 3 || last.Offset != 12 || last.Format != vk.FormatR32g32Sfloat {
		t.Errorf("last attribute = %+v", last)
	}
	if desc.Stages[1].Stage != vk.ShaderStageFragmentBit {
		t.Errorf("second stage = %v, want fragment", desc.Stages[1].Stage)
	}

	for i := 0; i < maxColorAttachments+1; i++ {
		b.AddColorBlendAttachment(metadata.BlendReplace, ColorMaskAll)
	}
	if got := len(b.Desc(0, 0, 0).ColorBlendAttachments); got != maxColorAttachments {
		t.Errorf("blend attachments = %d, want %d", got, maxColorAttachments)
	}

	b.AddDynamicState(vk.DynamicStateViewport)
	b.AddDynamicState(vk.DynamicStateViewport)
	if got := len(b.Desc(0, 0, 0).DynamicStates); got != 1 {
		t.Errorf("dynamic states = %d, want 1", got)
	}

	b.Reset()
	if d := b.Desc(0, 0, 0); len(d.Stages) != 0 || len(d.VertexBindings) != 0 || len(d.ColorBlendAttachments) != 0 {
		t.Errorf("Reset() left state behind: %+v", d)
	}
}
