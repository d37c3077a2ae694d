package vulkan

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

type PipelineID int

const NullPipeline PipelineID = -1

// VertexBindingLayout is the element table of one bound vertex stream.
type VertexBindingLayout struct {
	Stride      uint32
	PerInstance bool
	Elements    []metadata.VertexElement
}

// VertexLayoutKey encodes a list of vertex streams by their element tables.
// Equal keys mean equal layouts.
func VertexLayoutKey(layouts []VertexBindingLayout) string {
	var b []byte
	for _, l := range layouts {
		b = binary.LittleEndian.AppendUint32(b, l.Stride)
		if l.PerInstance {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
		b = binary.LittleEndian.AppendUint32(b, uint32(len(l.Elements)))
		for _, e := range l.Elements {
			b = append(b, byte(e.Type), byte(e.Semantic), e.Index)
			b = binary.LittleEndian.AppendUint32(b, e.Offset)
		}
	}
	return string(b)
}

// PipelineKey identifies a pipeline. Pipelines are built against one subpass
// of a render pass, so the subpass is part of the key.
type PipelineKey struct {
	RenderPass   int
	Subpass      uint32
	VSName       string
	VSHash       uint32
	PSName       string
	PSHash       uint32
	States       uint32
	StencilValue uint32
	VertexLayout string
}

// PipelineInfo is immutable after it has been built and is only looked up by key.
type PipelineInfo struct {
	ID             PipelineID
	Key            PipelineKey
	RenderPass     *RenderPassInfo
	Subpass        uint32
	VS             metadata.ShaderVariation
	PS             metadata.ShaderVariation
	States         uint32
	StencilValue   uint32
	VertexBindings []VertexBindingLayout

	Layout     containers.Handle
	Handle     containers.Handle
	SetLayouts []containers.Handle
	Groups     []*DescriptorsGroup

	BuildFailed bool
}

// PipelineRequest is what the resolver knows at draw time.
type PipelineRequest struct {
	RenderPass     *RenderPassInfo
	Subpass        uint32
	VS             metadata.ShaderVariation
	PS             metadata.ShaderVariation
	States         uint32
	StencilValue   uint32
	VertexBindings []VertexBindingLayout
}

func (r *PipelineRequest) Key() PipelineKey {
	k := PipelineKey{
		Subpass:      r.Subpass,
		States:       r.States,
		StencilValue: r.StencilValue,
		VertexLayout: VertexLayoutKey(r.VertexBindings),
		RenderPass:   -1,
	}
	if r.RenderPass != nil {
		k.RenderPass = r.RenderPass.ID
	}
	if r.VS != nil {
		k.VSName, k.VSHash = r.VS.Name(), r.VS.VariationHash()
	}
	if r.PS != nil {
		k.PSName, k.PSHash = r.PS.Name(), r.PS.VariationHash()
	}
	return k
}

// PipelineCache owns every PipelineInfo of the device. Entries are appended,
// never mutated after build, and dropped only by Destroy.
type PipelineCache struct {
	pipelines []*PipelineInfo
	ids       map[PipelineKey]PipelineID
	builder   *PipelineBuilder
	layouts   *DescriptorLayoutCache
}

func NewPipelineCache(layouts *DescriptorLayoutCache) *PipelineCache {
	return &PipelineCache{
		ids:     make(map[PipelineKey]PipelineID),
		builder: NewPipelineBuilder(),
		layouts: layouts,
	}
}

// GetPipelineInfo returns the cached pipeline for key, or nil.
func (c *PipelineCache) GetPipelineInfo(key PipelineKey) *PipelineInfo {
	if id, ok := c.ids[key]; ok {
		return c.pipelines[id]
	}
	return nil
}

func (c *PipelineCache) Get(id PipelineID) *PipelineInfo {
	if id < 0 || int(id) >= len(c.pipelines) {
		return nil
	}
	return c.pipelines[id]
}

func (c *PipelineCache) Len() int { return len(c.pipelines) }

// RegisterPipelineInfo returns the pipeline for req, building it on a miss.
// A failed build is cached too, with a null handle, so it is not retried
// every draw.
func (c *PipelineCache) RegisterPipelineInfo(dev Device, req *PipelineRequest) *PipelineInfo {
	key := req.Key()
	if info := c.GetPipelineInfo(key); info != nil {
		return info
	}
	info := &PipelineInfo{
		ID:             PipelineID(len(c.pipelines)),
		Key:            key,
		RenderPass:     req.RenderPass,
		Subpass:        req.Subpass,
		VS:             req.VS,
		PS:             req.PS,
		States:         req.States,
		StencilValue:   req.StencilValue,
		VertexBindings: append([]VertexBindingLayout(nil), req.VertexBindings...),
	}
	if err := c.build(dev, info); err != nil {
		info.BuildFailed = true
		core.LogError("pipeline %s/%s [%s] failed: %v", key.VSName, key.PSName, DumpPipelineStates(key.States), err)
	} else {
		core.LogDebug("pipeline %d built: %s/%s pass=%d:%d [%s]", info.ID, key.VSName, key.PSName,
			key.RenderPass, key.Subpass, DumpPipelineStates(key.States))
	}
	c.pipelines = append(c.pipelines, info)
	c.ids[key] = info.ID
	return info
}

func (c *PipelineCache) build(dev Device, info *PipelineInfo) error {
	switch {
	case info.RenderPass == nil || info.RenderPass.Handle.IsNull():
		return errors.Wrap(core.ErrPipelineBuild, "render pass not built")
	case info.VS == nil || len(info.VS.ByteCode()) == 0:
		return errors.Wrap(core.ErrShaderNotReady, "vertex shader")
	case info.PS == nil || len(info.PS.ByteCode()) == 0:
		return errors.Wrap(core.ErrShaderNotReady, "pixel shader")
	}
	if err := c.builder.CreatePipeline(dev, c.layouts, info); err != nil {
		return errors.Mark(err, core.ErrPipelineBuild)
	}
	return nil
}

// Destroy releases every pipeline, layout and descriptor pool. The cache is
// empty afterwards.
func (c *PipelineCache) Destroy(dev Device) {
	for _, info := range c.pipelines {
		if !info.Handle.IsNull() {
			dev.DestroyPipeline(info.Handle)
		}
		if !info.Layout.IsNull() {
			dev.DestroyPipelineLayout(info.Layout)
		}
		for _, g := range info.Groups {
			g.Destroy(dev)
		}
	}
	c.pipelines = nil
	c.ids = make(map[PipelineKey]PipelineID)
}

// GetMaxCompatibleDescriptorSets returns the highest set number up to which a
// and b share identical set layouts, or -1 when even set 0 differs.
func GetMaxCompatibleDescriptorSets(a, b *PipelineInfo) int {
	if a == nil || b == nil {
		return -1
	}
	n := min(len(a.SetLayouts), len(b.SetLayouts))
	i := 0
	for i < n && a.SetLayouts[i] == b.SetLayouts[i] {
		i++
	}
	return i - 1
}
