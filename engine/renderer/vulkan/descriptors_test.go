package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

func TestDescriptorsGroupAllocationAdvance(t *testing.T) {
	a := &DescriptorsGroupAllocation{Sets: []containers.Handle{10, 11, 12}, Index: -1}
	if !a.Current().IsNull() {
		t.Fatalf("Current() before Advance = %v, want null", a.Current())
	}
	tests := []struct {
		frame   uint64
		want    containers.Handle
		wrapped bool
	}{
		{1, 10, false},
		{1, 11, false},
		{1, 12, false},
		{1, 10, true},
		{2, 11, false},
		{2, 12, false},
	}
	for i, tt := range tests {
		wrapped := a.Advance(tt.frame)
		if wrapped != tt.wrapped || a.Current() != tt.want {
			t.Errorf("step %d: Advance(%d) = %v, Current() = %v, want %v, %v", i, tt.frame, wrapped, a.Current(), tt.wrapped, tt.want)
		}
	}
}

func TestDescriptorsGroupAllocationMatches(t *testing.T) {
	a := &DescriptorsGroupAllocation{Sets: []containers.Handle{10, 11}, Index: -1}
	sig := []uint64{1, 2}
	if a.Matches(1, sig) {
		t.Error("Matches() before any write")
	}
	a.Advance(1)
	a.record(sig)
	if !a.Matches(1, sig) {
		t.Error("Matches() false for the recorded signature")
	}
	if a.Matches(1, []uint64{1, 3}) {
		t.Error("Matches() true for another signature")
	}
	if a.Matches(2, sig) {
		t.Error("Matches() true in a later frame")
	}
}

func TestMergeDescriptorStructures(t *testing.T) {
	sharedVS := metadata.ShaderBind{ID: 0, Type: vk.DescriptorTypeUniformBuffer, StageFlag: vk.ShaderStageVertexBit}
	sharedPS := metadata.ShaderBind{ID: 0, Type: vk.DescriptorTypeUniformBuffer, StageFlag: vk.ShaderStageFragmentBit}
	conflict := metadata.ShaderBind{ID: 2, Type: vk.DescriptorTypeCombinedImageSampler, StageFlag: vk.ShaderStageFragmentBit, UnitRange: 4}
	first := metadata.ShaderBind{ID: 2, Type: vk.DescriptorTypeUniformBuffer, StageFlag: vk.ShaderStageVertexBit}

	merged := mergeDescriptorStructures(
		metadata.DescriptorStructure{0: {first, sharedVS}},
		metadata.DescriptorStructure{0: {sharedPS, conflict}, 2: {texPS}},
	)
	if len(merged) != 2 {
		t.Fatalf("merged sets = %d, want 2", len(merged))
	}
	set0 := merged[0]
	if len(set0) != 2 || set0[0].ID != 0 || set0[1].ID != 2 {
		t.Fatalf("set 0 = %+v, want bindings 0 and 2 sorted", set0)
	}
	if set0[0].StageFlag != vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit {
		t.Errorf("shared binding stages = %v, want vertex|fragment", set0[0].StageFlag)
	}
	if set0[1] != first {
		t.Errorf("conflicting binding = %+v, want the first declaration", set0[1])
	}
}

func TestCreateDescriptorsPadsAndShares(t *testing.T) {
	dev := newFakeDriver()
	layouts := NewDescriptorLayoutCache()

	a := &PipelineInfo{
		VS: newVS("a", metadata.DescriptorStructure{0: {uboVS}}),
		PS: newPS("a", metadata.DescriptorStructure{2: {texPS}}),
	}
	if err := CreateDescriptors(dev, layouts, a); err != nil {
		t.Fatalf("CreateDescriptors() error = %v", err)
	}
	if len(a.SetLayouts) != 3 || len(a.Groups) != 2 {
		t.Fatalf("SetLayouts=%d Groups=%d, want 3 and 2", len(a.SetLayouts), len(a.Groups))
	}
	empty, _ := layouts.Empty(dev)
	if a.SetLayouts[1] != empty {
		t.Errorf("set 1 = %v, want the empty layout %v", a.SetLayouts[1], empty)
	}

	b := &PipelineInfo{
		VS: newVS("b", metadata.DescriptorStructure{0: {uboVS, dynVS}}),
		PS: newPS("b", metadata.DescriptorStructure{0: {}}),
	}
	if err := CreateDescriptors(dev, layouts, b); err != nil {
		t.Fatalf("CreateDescriptors() error = %v", err)
	}
	if !b.Groups[0].HasDynamic {
		t.Error("group with a dynamic uniform buffer has HasDynamic false")
	}
	if b.SetLayouts[0] == a.SetLayouts[0] {
		t.Error("different bindings share a layout")
	}

	c := &PipelineInfo{
		VS: newVS("c", metadata.DescriptorStructure{0: {uboVS}}),
		PS: newPS("c", metadata.DescriptorStructure{1: {inAtt1}}),
	}
	if err := CreateDescriptors(dev, layouts, c); err != nil {
		t.Fatalf("CreateDescriptors() error = %v", err)
	}
	if c.SetLayouts[0] != a.SetLayouts[0] {
		t.Errorf("same bindings got layouts %v and %v", c.SetLayouts[0], a.SetLayouts[0])
	}
	if got := GetMaxCompatibleDescriptorSets(a, c); got != 0 {
		t.Errorf("GetMaxCompatibleDescriptorSets() = %d, want 0", got)
	}
	// ubo, ubo+dyn, input attachment, tex, plus the empty layout
	if layouts.Len() != 4 || dev.liveCount("set layout") != 5 {
		t.Errorf("layouts cached=%d live=%d, want 4 and 5", layouts.Len(), dev.liveCount("set layout"))
	}

	layouts.Destroy(dev)
	if dev.liveCount("set layout") != 0 {
		t.Errorf("set layouts leaked: %d", dev.liveCount("set layout"))
	}
}

func TestDescriptorsGroupAllocation(t *testing.T) {
	dev := newFakeDriver()
	g := &DescriptorsGroup{
		ID:       0,
		Bindings: []metadata.ShaderBind{uboVS, {ID: 1, Type: vk.DescriptorTypeCombinedImageSampler, UnitRange: 3}},
		Layout:   1,
	}
	a, err := g.Allocation(dev, 1, 5)
	if err != nil {
		t.Fatalf("Allocation() error = %v", err)
	}
	if len(a.Sets) != 5 || a.Index != -1 {
		t.Errorf("Allocation() sets=%d index=%d, want 5 and -1", len(a.Sets), a.Index)
	}
	if again, _ := g.Allocation(dev, 1, 5); again != a {
		t.Error("Allocation() for the same frame created a new pool")
	}
	if other, _ := g.Allocation(dev, 0, 5); other == a {
		t.Error("frames share an allocation")
	}

	sizes := g.poolSizes(5)
	want := map[vk.DescriptorType]uint32{vk.DescriptorTypeUniformBuffer: 5, vk.DescriptorTypeCombinedImageSampler: 15}
	if len(sizes) != len(want) {
		t.Fatalf("poolSizes() = %+v", sizes)
	}
	for _, s := range sizes {
		if want[s.Type] != s.DescriptorCount {
			t.Errorf("poolSizes() %v = %d, want %d", s.Type, s.DescriptorCount, want[s.Type])
		}
	}

	g.Destroy(dev)
	if dev.liveCount("descriptor pool") != 0 {
		t.Errorf("descriptor pools leaked: %d", dev.liveCount("descriptor pool"))
	}
}
