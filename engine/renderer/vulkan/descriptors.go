package vulkan

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

// DescriptorLayoutCache shares one native set layout between every group
// with the same binding list. Pipelines whose first sets use the same
// bindings therefore report identical layout handles for them.
type DescriptorLayoutCache struct {
	layouts map[string]containers.Handle
	empty   containers.Handle
}

func NewDescriptorLayoutCache() *DescriptorLayoutCache {
	return &DescriptorLayoutCache{layouts: make(map[string]containers.Handle)}
}

func bindingSignature(binds []metadata.ShaderBind) string {
	var b strings.Builder
	for _, bind := range binds {
		fmt.Fprintf(&b, "%d:%d:%d:%d;", bind.ID, bind.Type, bind.StageFlag, max(bind.UnitRange, 1))
	}
	return b.String()
}

// Get returns the layout for binds, creating it on first use.
func (c *DescriptorLayoutCache) Get(dev Device, binds []metadata.ShaderBind) (containers.Handle, error) {
	sig := bindingSignature(binds)
	if h, ok := c.layouts[sig]; ok {
		return h, nil
	}
	bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(binds))
	for _, bind := range binds {
		bindings = append(bindings, vk.DescriptorSetLayoutBinding{
			Binding:         bind.ID,
			DescriptorType:  bind.Type,
			DescriptorCount: max(bind.UnitRange, 1),
			StageFlags:      vk.ShaderStageFlags(bind.StageFlag),
		})
	}
	h, err := dev.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return 0, errors.Wrapf(err, "descriptor set layout %q", sig)
	}
	c.layouts[sig] = h
	return h, nil
}

// Empty returns the layout used to pad set numbers no shader declares.
func (c *DescriptorLayoutCache) Empty(dev Device) (containers.Handle, error) {
	if !c.empty.IsNull() {
		return c.empty, nil
	}
	h, err := dev.CreateDescriptorSetLayout(nil)
	if err != nil {
		return 0, errors.Wrap(err, "empty descriptor set layout")
	}
	c.empty = h
	return h, nil
}

func (c *DescriptorLayoutCache) Len() int { return len(c.layouts) }

func (c *DescriptorLayoutCache) Destroy(dev Device) {
	for _, h := range c.layouts {
		dev.DestroyDescriptorSetLayout(h)
	}
	if !c.empty.IsNull() {
		dev.DestroyDescriptorSetLayout(c.empty)
	}
	c.layouts = make(map[string]containers.Handle)
	c.empty = 0
}

// DescriptorsGroup is one descriptor set slot of a pipeline. It owns one
// allocation per frame slot.
type DescriptorsGroup struct {
	ID         uint32
	Bindings   []metadata.ShaderBind
	Layout     containers.Handle
	HasDynamic bool

	allocations []*DescriptorsGroupAllocation
}

// DescriptorsGroupAllocation is a pool with a fixed ring of pre-allocated
// sets. Index is the set last written, -1 before the first write.
type DescriptorsGroupAllocation struct {
	Pool  containers.Handle
	Sets  []containers.Handle
	Index int

	frameNumber uint64
	usedInFrame int
	signature   []uint64
}

// Current returns the set at Index, null before the first Advance.
func (a *DescriptorsGroupAllocation) Current() containers.Handle {
	if a.Index < 0 {
		return 0
	}
	return a.Sets[a.Index]
}

// Advance moves Index to the next set of the ring for frameNumber. It reports
// true when the ring wrapped onto a set already written during that frame.
func (a *DescriptorsGroupAllocation) Advance(frameNumber uint64) bool {
	if a.frameNumber != frameNumber {
		a.frameNumber = frameNumber
		a.usedInFrame = 0
		a.signature = a.signature[:0]
	}
	a.Index = (a.Index + 1) % len(a.Sets)
	a.usedInFrame++
	return a.usedInFrame > len(a.Sets)
}

// Matches reports whether the current set was written during frameNumber
// with content sig.
func (a *DescriptorsGroupAllocation) Matches(frameNumber uint64, sig []uint64) bool {
	return a.Index >= 0 && a.frameNumber == frameNumber && a.usedInFrame > 0 && equalSignature(a.signature, sig)
}

func (a *DescriptorsGroupAllocation) record(sig []uint64) {
	a.signature = append(a.signature[:0], sig...)
}

func (g *DescriptorsGroup) poolSizes(maxSets uint32) []vk.DescriptorPoolSize {
	counts := map[vk.DescriptorType]uint32{}
	for _, b := range g.Bindings {
		counts[b.Type] += max(b.UnitRange, 1)
	}
	types := slices.Sorted(maps.Keys(counts))
	sizes := make([]vk.DescriptorPoolSize, 0, len(types))
	for _, t := range types {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: counts[t] * maxSets})
	}
	return sizes
}

// Allocation returns the allocation of frame slot, creating the pool and its
// sets on first use.
func (g *DescriptorsGroup) Allocation(dev Device, frame int, maxSets uint32) (*DescriptorsGroupAllocation, error) {
	for len(g.allocations) <= frame {
		g.allocations = append(g.allocations, nil)
	}
	if a := g.allocations[frame]; a != nil {
		return a, nil
	}
	pool, err := dev.CreateDescriptorPool(g.poolSizes(maxSets), maxSets)
	if err != nil {
		return nil, errors.Wrapf(err, "descriptor pool for set %d", g.ID)
	}
	sets, err := dev.AllocateDescriptorSets(pool, g.Layout, maxSets)
	if err != nil {
		dev.DestroyDescriptorPool(pool)
		return nil, errors.Wrapf(err, "allocating %d descriptor sets for set %d", maxSets, g.ID)
	}
	a := &DescriptorsGroupAllocation{Pool: pool, Sets: sets, Index: -1}
	g.allocations[frame] = a
	return a, nil
}

func (g *DescriptorsGroup) Destroy(dev Device) {
	for _, a := range g.allocations {
		if a != nil {
			dev.DestroyDescriptorPool(a.Pool)
		}
	}
	g.allocations = nil
}

// mergeDescriptorStructures combines the reflected bindings of both stages.
// A binding declared by both with the same shape becomes visible to both;
// conflicting declarations keep the first one.
func mergeDescriptorStructures(structures ...metadata.DescriptorStructure) map[uint32][]metadata.ShaderBind {
	merged := map[uint32][]metadata.ShaderBind{}
	for _, structure := range structures {
		for set, binds := range structure {
		next:
			for _, bind := range binds {
				for i, have := range merged[set] {
					if have.ID != bind.ID {
						continue
					}
					if have.Type == bind.Type && have.UnitStart == bind.UnitStart && have.UnitRange == bind.UnitRange {
						merged[set][i].StageFlag |= bind.StageFlag
					} else {
						core.LogWarn("descriptor set %d binding %d declared twice with different shapes, keeping the first", set, bind.ID)
					}
					continue next
				}
				merged[set] = append(merged[set], bind)
			}
		}
	}
	for _, binds := range merged {
		sort.Slice(binds, func(i, j int) bool { return binds[i].ID < binds[j].ID })
	}
	return merged
}

// CreateDescriptors derives the descriptor groups and set layouts of info from
// the reflected bindings of its shaders.
func CreateDescriptors(dev Device, layouts *DescriptorLayoutCache, info *PipelineInfo) error {
	var structures []metadata.DescriptorStructure
	for _, s := range []metadata.ShaderVariation{info.VS, info.PS} {
		if s != nil {
			structures = append(structures, s.DescriptorStructure())
		}
	}
	merged := mergeDescriptorStructures(structures...)
	if len(merged) == 0 {
		return nil
	}
	sets := slices.Sorted(maps.Keys(merged))

	info.SetLayouts = make([]containers.Handle, sets[len(sets)-1]+1)
	for s := range info.SetLayouts {
		binds, ok := merged[uint32(s)]
		if !ok {
			h, err := layouts.Empty(dev)
			if err != nil {
				return err
			}
			info.SetLayouts[s] = h
			continue
		}
		h, err := layouts.Get(dev, binds)
		if err != nil {
			return err
		}
		info.SetLayouts[s] = h
		g := &DescriptorsGroup{ID: uint32(s), Bindings: binds, Layout: h}
		for _, b := range binds {
			if b.Type == vk.DescriptorTypeUniformBufferDynamic {
				g.HasDynamic = true
			}
		}
		info.Groups = append(info.Groups, g)
	}
	return nil
}

func equalSignature(a, b []uint64) bool {
	return slices.Equal(a, b)
}
