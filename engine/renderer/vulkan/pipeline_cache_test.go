package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

var (
	uboVS  = metadata.ShaderBind{ID: 0, Type: vk.DescriptorTypeUniformBuffer, StageFlag: vk.ShaderStageVertexBit, UnitStart: 0}
	texPS  = metadata.ShaderBind{ID: 0, Type: vk.DescriptorTypeCombinedImageSampler, StageFlag: vk.ShaderStageFragmentBit, UnitStart: 0, UnitRange: 1}
	dynVS  = metadata.ShaderBind{ID: 1, Type: vk.DescriptorTypeUniformBufferDynamic, StageFlag: vk.ShaderStageVertexBit, UnitStart: 1}
	inAtt1 = metadata.ShaderBind{ID: 0, Type: vk.DescriptorTypeInputAttachment, StageFlag: vk.ShaderStageFragmentBit, UnitStart: 1}
)

func builtPass(t *testing.T, dev *fakeDriver) (*RenderPassRegistry, *RenderPassInfo) {
	t.Helper()
	r := NewRenderPassRegistry()
	if err := r.Build(dev, AttachmentFormats{Color: vk.FormatB8g8r8a8Unorm, Target: vk.FormatR8g8b8a8Unorm, Depth: vk.FormatD24UnormS8Uint}); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	id, _ := r.Lookup(MainPassName)
	return r, r.Get(id)
}

func TestPipelineCacheHit(t *testing.T) {
	dev := newFakeDriver()
	_, pass := builtPass(t, dev)
	c := NewPipelineCache(NewDescriptorLayoutCache())

	req := &PipelineRequest{
		RenderPass: pass,
		VS:         newVS("basic", metadata.DescriptorStructure{0: {uboVS}}),
		PS:         newPS("basic", metadata.DescriptorStructure{1: {texPS}}),
	}
	a := c.RegisterPipelineInfo(dev, req)
	if a.Handle.IsNull() || a.BuildFailed {
		t.Fatalf("RegisterPipelineInfo() handle=%v failed=%v", a.Handle, a.BuildFailed)
	}
	b := c.RegisterPipelineInfo(dev, req)
	if a != b || dev.count("CreateGraphicsPipeline") != 1 {
		t.Errorf("second RegisterPipelineInfo() built again: %d builds", dev.count("CreateGraphicsPipeline"))
	}
	if got := c.GetPipelineInfo(req.Key()); got != a {
		t.Errorf("GetPipelineInfo() = %v, want %v", got, a)
	}
	if c.Get(a.ID) != a || c.Get(5) != nil || c.Get(NullPipeline) != nil {
		t.Error("Get() by id mismatch")
	}
	if len(a.SetLayouts) != 2 || len(a.Groups) != 2 {
		t.Errorf("SetLayouts=%d Groups=%d, want 2 and 2", len(a.SetLayouts), len(a.Groups))
	}

	// states and subpass are part of the key
	other := *req
	SetPipelineState(&other.States, PipelineStateCullMode, uint32(metadata.CullCW))
	if c.RegisterPipelineInfo(dev, &other) == a {
		t.Error("different states returned the same pipeline")
	}
	sub := *req
	sub.Subpass = 1
	if sub.Key() == req.Key() {
		t.Error("Key() ignores the subpass")
	}
	// passes whose config hashes collide still get their own pipelines
	twin := *req
	twin.RenderPass = &RenderPassInfo{ID: req.RenderPass.ID + 1, Key: req.RenderPass.Key}
	if twin.Key() == req.Key() {
		t.Error("Key() merges different passes with one hash")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Destroy(dev)
	if c.Len() != 0 || dev.liveCount("pipeline") != 0 || dev.liveCount("pipeline layout") != 0 {
		t.Errorf("Destroy() left %d entries, %d pipelines, %d layouts",
			c.Len(), dev.liveCount("pipeline"), dev.liveCount("pipeline layout"))
	}
}

func TestPipelineCacheFailedBuildIsCached(t *testing.T) {
	dev := newFakeDriver()
	_, pass := builtPass(t, dev)
	c := NewPipelineCache(NewDescriptorLayoutCache())

	tests := []struct {
		name string
		req  PipelineRequest
	}{
		{"shader not ready", PipelineRequest{RenderPass: pass, VS: &fakeShader{name: "loading"}, PS: newPS("ps", nil)}},
		{"pass not built", PipelineRequest{RenderPass: &RenderPassInfo{Key: 42}, VS: newVS("vs", nil), PS: newPS("ps", nil)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := c.RegisterPipelineInfo(dev, &tt.req)
			if !info.Handle.IsNull() || !info.BuildFailed {
				t.Fatalf("RegisterPipelineInfo() handle=%v failed=%v, want null and failed", info.Handle, info.BuildFailed)
			}
			if again := c.RegisterPipelineInfo(dev, &tt.req); again != info {
				t.Error("failed pipeline was not cached")
			}
		})
	}

	dev.failPipelines = true
	req := &PipelineRequest{RenderPass: pass, VS: newVS("vs", nil), PS: newPS("ps", nil)}
	if info := c.RegisterPipelineInfo(dev, req); !info.Handle.IsNull() || !info.BuildFailed {
		t.Errorf("driver failure gave handle=%v failed=%v", info.Handle, info.BuildFailed)
	}
}

func TestGetMaxCompatibleDescriptorSets(t *testing.T) {
	h := func(v ...containers.Handle) *PipelineInfo { return &PipelineInfo{SetLayouts: v} }
	tests := []struct {
		name string
		a, b *PipelineInfo
		want int
	}{
		{"nil", nil, h(1), -1},
		{"first differs", h(1, 2), h(3, 2), -1},
		{"shared prefix", h(1, 2, 3), h(1, 2, 4), 1},
		{"identical", h(1, 2), h(1, 2), 1},
		{"shorter", h(1), h(1, 2, 3), 0},
		{"no sets", h(), h(1), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetMaxCompatibleDescriptorSets(tt.a, tt.b); got != tt.want {
				t.Errorf("GetMaxCompatibleDescriptorSets() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestVertexLayoutKey(t *testing.T) {
	vec3 := metadata.VertexElement{Type: metadata.TypeVector3}
	pos := VertexBindingLayout{Stride: 12, Elements: []metadata.VertexElement{vec3}}
	inst := VertexBindingLayout{Stride: 12, PerInstance: true, Elements: []metadata.VertexElement{vec3}}
	both := VertexBindingLayout{Stride: 12, Elements: []metadata.VertexElement{vec3, vec3}}
	empty := VertexBindingLayout{Stride: 12}

	tests := []struct {
		name string
		a, b []VertexBindingLayout
		same bool
	}{
		{"stable", []VertexBindingLayout{pos}, []VertexBindingLayout{pos}, true},
		{"step rate", []VertexBindingLayout{pos}, []VertexBindingLayout{inst}, false},
		{"stream order", []VertexBindingLayout{pos, inst}, []VertexBindingLayout{inst, pos}, false},
		{"stream boundaries", []VertexBindingLayout{both, empty}, []VertexBindingLayout{pos, pos}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VertexLayoutKey(tt.a) == VertexLayoutKey(tt.b); got != tt.same {
				t.Errorf("keys equal = %v, want %v", got, tt.same)
			}
		})
	}
}
