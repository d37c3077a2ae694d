package vulkan

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
)

type RenderPassType uint8

const (
	PassClear RenderPassType = 1 << iota
	PassView
	PassCopy
	PassPresent
)

func (t RenderPassType) String() string {
	var parts []string
	for _, p := range []struct {
		t    RenderPassType
		name string
	}{{PassClear, "CLEAR"}, {PassView, "VIEW"}, {PassCopy, "COPY"}, {PassPresent, "PRESENT"}} {
		if t&p.t != 0 {
			parts = append(parts, p.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

type RenderSlot uint8

const (
	SlotPresent RenderSlot = iota
	SlotTarget1
	SlotTarget2
	SlotDepth
	SlotNone
)

var renderSlotNames = [...]string{"P", "T1", "T2", "D", "-"}

type Attachment struct {
	Slot  RenderSlot
	Clear bool
}

// Subpass references attachments by their index in the pass. Depth is -1 when unused.
type Subpass struct {
	Colors []uint32
	Depth  int
	Inputs []uint32
}

type RenderPassConfig struct {
	Name        string
	Type        RenderPassType
	Attachments []Attachment
	Subpasses   []Subpass
}

// String is the canonical form the registry identifies passes by. The name is
// not part of it.
func (c *RenderPassConfig) String() string {
	var b strings.Builder
	b.WriteString(c.Type.String())
	b.WriteByte('|')
	for i, a := range c.Attachments {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(renderSlotNames[a.Slot])
		if a.Clear {
			b.WriteByte('c')
		}
	}
	b.WriteByte('|')
	for i, s := range c.Subpasses {
		if i > 0 {
			b.WriteByte(';')
		}
		for _, c := range s.Colors {
			fmt.Fprintf(&b, "c%d", c)
		}
		if s.Depth >= 0 {
			fmt.Fprintf(&b, "d%d", s.Depth)
		}
		for _, in := range s.Inputs {
			fmt.Fprintf(&b, "i%d", in)
		}
	}
	return b.String()
}

// Key is a short hash of String for logs and pipeline names.
func (c *RenderPassConfig) Key() uint32 {
	h := fnv.New32a()
	h.Write([]byte(c.String()))
	return h.Sum32()
}

func (c *RenderPassConfig) validate() error {
	if len(c.Attachments) == 0 {
		return errors.Newf("render pass %q has no attachment", c.Name)
	}
	if len(c.Subpasses) == 0 {
		return errors.Newf("render pass %q has no subpass", c.Name)
	}
	seen := map[RenderSlot]bool{}
	colors := 0
	for _, a := range c.Attachments {
		if a.Slot >= SlotNone {
			return errors.Newf("render pass %q uses an invalid slot", c.Name)
		}
		if seen[a.Slot] {
			return errors.Newf("render pass %q uses slot %s twice", c.Name, renderSlotNames[a.Slot])
		}
		seen[a.Slot] = true
		if a.Slot != SlotDepth {
			colors++
		}
	}
	if colors > maxColorAttachments {
		return errors.Newf("render pass %q has %d colour attachments, max %d", c.Name, colors, maxColorAttachments)
	}
	n := uint32(len(c.Attachments))
	for i, s := range c.Subpasses {
		for _, ref := range s.Colors {
			if ref >= n || c.Attachments[ref].Slot == SlotDepth {
				return errors.Newf("render pass %q subpass %d: bad colour reference %d", c.Name, i, ref)
			}
		}
		if s.Depth >= 0 && (s.Depth >= int(n) || c.Attachments[s.Depth].Slot != SlotDepth) {
			return errors.Newf("render pass %q subpass %d: bad depth reference %d", c.Name, i, s.Depth)
		}
		for _, ref := range s.Inputs {
			if ref >= n || c.Attachments[ref].Slot == SlotPresent {
				return errors.Newf("render pass %q subpass %d: bad input reference %d", c.Name, i, ref)
			}
		}
	}
	return nil
}

// passSamples is the sample count of every pass attachment. The present slot
// aliases swapchain images, which are single-sampled.
const passSamples = vk.SampleCount1Bit

// RenderPassInfo is immutable once registered, except for the native handle
// which is filled the first time the pass is built.
type RenderPassInfo struct {
	ID          int
	Key         uint32
	Name        string
	Type        RenderPassType
	Attachments []Attachment
	Subpasses   []Subpass
	Samples     vk.SampleCountFlagBits
	Handle      containers.Handle

	config string
}

func (r *RenderPassInfo) SubpassCount() int { return len(r.Subpasses) }

// AttachmentIndex returns the index of slot in the pass, or -1.
func (r *RenderPassInfo) AttachmentIndex(slot RenderSlot) int {
	for i, a := range r.Attachments {
		if a.Slot == slot {
			return i
		}
	}
	return -1
}

// ScreenSized reports whether the pass renders at swapchain size regardless of viewport.
func (r *RenderPassInfo) ScreenSized() bool {
	return r.Type&(PassClear|PassPresent) != 0
}

// AttachmentFormats are the formats render passes are built with.
type AttachmentFormats struct {
	Color  vk.Format
	Target vk.Format
	Depth  vk.Format
}

const (
	ClearPassName = "clear"
	MainPassName  = "main"
)

var builtinRenderPasses = []RenderPassConfig{
	{
		Name:        ClearPassName,
		Type:        PassClear,
		Attachments: []Attachment{{Slot: SlotPresent, Clear: true}},
		Subpasses:   []Subpass{{Colors: []uint32{0}, Depth: -1}},
	},
	{
		Name:        MainPassName,
		Type:        PassPresent,
		Attachments: []Attachment{{Slot: SlotPresent}, {Slot: SlotDepth, Clear: true}},
		Subpasses:   []Subpass{{Colors: []uint32{0}, Depth: 1}},
	},
}

// RenderPassRegistry maps attachment configurations to RenderPassInfo. It is
// append-only until Destroy.
type RenderPassRegistry struct {
	infos    []*RenderPassInfo
	byConfig map[string]int
	byName   map[string]int
	formats  AttachmentFormats
}

func NewRenderPassRegistry() *RenderPassRegistry {
	r := &RenderPassRegistry{
		byConfig: make(map[string]int),
		byName:   make(map[string]int),
	}
	for _, cfg := range builtinRenderPasses {
		if _, err := r.Register(cfg); err != nil {
			panic(err)
		}
	}
	return r
}

// Register returns the id of cfg, adding it on first sight. Registering an
// equal configuration again returns the same id; a new name becomes an alias.
func (r *RenderPassRegistry) Register(cfg RenderPassConfig) (int, error) {
	if err := cfg.validate(); err != nil {
		return -1, err
	}
	config := cfg.String()
	if id, ok := r.byName[cfg.Name]; ok && cfg.Name != "" && r.infos[id].config != config {
		return -1, errors.Newf("render pass name %q already registered with another configuration", cfg.Name)
	}
	if id, ok := r.byConfig[config]; ok {
		if cfg.Name != "" {
			r.byName[cfg.Name] = id
		}
		return id, nil
	}
	info := &RenderPassInfo{
		ID:          len(r.infos),
		Key:         cfg.Key(),
		Name:        cfg.Name,
		Type:        cfg.Type,
		Attachments: append([]Attachment(nil), cfg.Attachments...),
		Subpasses:   make([]Subpass, len(cfg.Subpasses)),
		Samples:     passSamples,
		config:      config,
	}
	for i, s := range cfg.Subpasses {
		info.Subpasses[i] = Subpass{
			Colors: append([]uint32(nil), s.Colors...),
			Depth:  s.Depth,
			Inputs: append([]uint32(nil), s.Inputs...),
		}
	}
	r.infos = append(r.infos, info)
	r.byConfig[config] = info.ID
	if cfg.Name != "" {
		r.byName[cfg.Name] = info.ID
	}
	core.LogDebug("render pass %d registered: %s key=%08x (%s)", info.ID, cfg.Name, info.Key, cfg.String())
	return info.ID, nil
}

// Get returns the pass with id, or nil.
func (r *RenderPassRegistry) Get(id int) *RenderPassInfo {
	if id < 0 || id >= len(r.infos) {
		return nil
	}
	return r.infos[id]
}

// GetByConfig returns the pass registered with cfg's attachments and
// subpasses, whatever its name.
func (r *RenderPassRegistry) GetByConfig(cfg *RenderPassConfig) *RenderPassInfo {
	if id, ok := r.byConfig[cfg.String()]; ok {
		return r.infos[id]
	}
	return nil
}

func (r *RenderPassRegistry) Lookup(name string) (int, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// SubpassCount returns the number of subpasses of id, zero for unknown ids.
func (r *RenderPassRegistry) SubpassCount(id int) int {
	if info := r.Get(id); info != nil {
		return info.SubpassCount()
	}
	return 0
}

func (r *RenderPassRegistry) Len() int { return len(r.infos) }

// Build creates the native pass for every entry that has none yet. Entries
// built with different formats are rebuilt.
func (r *RenderPassRegistry) Build(dev Device, formats AttachmentFormats) error {
	if formats != r.formats {
		r.release(dev)
		r.formats = formats
	}
	for _, info := range r.infos {
		if !info.Handle.IsNull() {
			continue
		}
		h, err := dev.CreateRenderPass(buildRenderPassDesc(info, formats))
		if err != nil {
			return errors.Wrapf(err, "building render pass %q", info.Name)
		}
		info.Handle = h
	}
	return nil
}

// Ensure builds a single entry on demand.
func (r *RenderPassRegistry) Ensure(dev Device, info *RenderPassInfo) error {
	if !info.Handle.IsNull() {
		return nil
	}
	h, err := dev.CreateRenderPass(buildRenderPassDesc(info, r.formats))
	if err != nil {
		return errors.Wrapf(err, "building render pass %q", info.Name)
	}
	info.Handle = h
	return nil
}

func (r *RenderPassRegistry) release(dev Device) {
	for _, info := range r.infos {
		if !info.Handle.IsNull() {
			dev.DestroyRenderPass(info.Handle)
			info.Handle = 0
		}
	}
}

// Destroy releases every native pass. Entries stay registered.
func (r *RenderPassRegistry) Destroy(dev Device) {
	r.release(dev)
	r.formats = AttachmentFormats{}
}

func slotLayout(slot RenderSlot) vk.ImageLayout {
	switch slot {
	case SlotPresent:
		return vk.ImageLayoutPresentSrc
	case SlotDepth:
		return vk.ImageLayoutDepthStencilAttachmentOptimal
	default:
		return vk.ImageLayoutShaderReadOnlyOptimal
	}
}

func buildRenderPassDesc(info *RenderPassInfo, formats AttachmentFormats) *RenderPassDesc {
	desc := &RenderPassDesc{}
	for _, a := range info.Attachments {
		ad := vk.AttachmentDescription{
			Samples:        info.Samples,
			LoadOp:         vk.AttachmentLoadOpLoad,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  slotLayout(a.Slot),
			FinalLayout:    slotLayout(a.Slot),
		}
		switch a.Slot {
		case SlotPresent:
			ad.Format = formats.Color
		case SlotDepth:
			ad.Format = formats.Depth
			ad.StencilLoadOp = vk.AttachmentLoadOpLoad
			ad.StencilStoreOp = vk.AttachmentStoreOpStore
		default:
			ad.Format = formats.Target
		}
		if a.Clear {
			ad.LoadOp = vk.AttachmentLoadOpClear
			ad.InitialLayout = vk.ImageLayoutUndefined
			if a.Slot == SlotDepth {
				ad.StencilLoadOp = vk.AttachmentLoadOpClear
			}
		}
		desc.Attachments = append(desc.Attachments, ad)
	}

	used := make([][]bool, len(info.Subpasses))
	for i, s := range info.Subpasses {
		used[i] = make([]bool, len(info.Attachments))
		sd := SubpassDesc{}
		for _, c := range s.Colors {
			sd.Colors = append(sd.Colors, vk.AttachmentReference{Attachment: c, Layout: vk.ImageLayoutColorAttachmentOptimal})
			used[i][c] = true
		}
		if s.Depth >= 0 {
			sd.Depth = &vk.AttachmentReference{Attachment: uint32(s.Depth), Layout: vk.ImageLayoutDepthStencilAttachmentOptimal}
			used[i][s.Depth] = true
		}
		for _, in := range s.Inputs {
			layout := vk.ImageLayoutShaderReadOnlyOptimal
			if info.Attachments[in].Slot == SlotDepth {
				layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
			}
			sd.Inputs = append(sd.Inputs, vk.AttachmentReference{Attachment: in, Layout: layout})
			used[i][in] = true
		}
		desc.Subpasses = append(desc.Subpasses, sd)
	}
	// attachments written before and read after a subpass must survive it
	for i := range info.Subpasses {
		for a := range info.Attachments {
			if used[i][a] {
				continue
			}
			before, after := false, false
			for j := 0; j < i; j++ {
				before = before || used[j][a]
			}
			for j := i + 1; j < len(info.Subpasses); j++ {
				after = after || used[j][a]
			}
			if before && after {
				desc.Subpasses[i].Preserve = append(desc.Subpasses[i].Preserve, uint32(a))
			}
		}
	}

	attachmentWrites := vk.AccessFlags(vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit)
	outputStages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageLateFragmentTestsBit)
	last := uint32(len(info.Subpasses) - 1)
	desc.Dependencies = append(desc.Dependencies, vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  outputStages | vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageFragmentShaderBit),
		SrcAccessMask: attachmentWrites,
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit|vk.AccessDepthStencilAttachmentReadBit|vk.AccessShaderReadBit) | attachmentWrites,
	})
	for i := uint32(1); i <= last; i++ {
		desc.Dependencies = append(desc.Dependencies, vk.SubpassDependency{
			SrcSubpass:      i - 1,
			DstSubpass:      i,
			SrcStageMask:    outputStages,
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit|vk.PipelineStageEarlyFragmentTestsBit) | outputStages,
			SrcAccessMask:   attachmentWrites,
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit|vk.AccessColorAttachmentReadBit|vk.AccessDepthStencilAttachmentReadBit) | attachmentWrites,
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		})
	}
	desc.Dependencies = append(desc.Dependencies, vk.SubpassDependency{
		SrcSubpass:    last,
		DstSubpass:    vk.SubpassExternal,
		SrcStageMask:  outputStages,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit | vk.PipelineStageBottomOfPipeBit),
		SrcAccessMask: attachmentWrites,
		DstAccessMask: vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessMemoryReadBit),
	})
	return desc
}

// RenderPassConfigFromCore converts a [[renderpass]] entry of the config file.
func RenderPassConfigFromCore(c core.RenderPassConfig) (RenderPassConfig, error) {
	cfg := RenderPassConfig{Name: c.Name}
	switch strings.ToLower(c.Type) {
	case "clear":
		cfg.Type = PassClear
	case "view", "":
		cfg.Type = PassView
	case "copy":
		cfg.Type = PassCopy
	case "present":
		cfg.Type = PassPresent
	default:
		return cfg, errors.Newf("render pass %q: unknown type %q", c.Name, c.Type)
	}
	for _, a := range c.Attachments {
		var slot RenderSlot
		switch strings.ToLower(a.Slot) {
		case "present":
			slot = SlotPresent
		case "target1":
			slot = SlotTarget1
		case "target2":
			slot = SlotTarget2
		case "depth":
			slot = SlotDepth
		default:
			return cfg, errors.Newf("render pass %q: unknown slot %q", c.Name, a.Slot)
		}
		cfg.Attachments = append(cfg.Attachments, Attachment{Slot: slot, Clear: a.Clear})
	}
	for _, s := range c.Subpasses {
		sp := Subpass{Depth: -1}
		for _, ci := range s.Colors {
			if ci < 0 {
				return cfg, errors.Newf("render pass %q: negative colour reference", c.Name)
			}
			sp.Colors = append(sp.Colors, uint32(ci))
		}
		if s.Depth != nil {
			sp.Depth = *s.Depth
		}
		for _, ii := range s.Inputs {
			if ii < 0 {
				return cfg, errors.Newf("render pass %q: negative input reference", c.Name)
			}
			sp.Inputs = append(sp.Inputs, uint32(ii))
		}
		cfg.Subpasses = append(cfg.Subpasses, sp)
	}
	// a pass without explicit subpasses writes every attachment in one subpass
	if len(cfg.Subpasses) == 0 {
		sp := Subpass{Depth: -1}
		for i, a := range cfg.Attachments {
			if a.Slot == SlotDepth {
				sp.Depth = i
			} else {
				sp.Colors = append(sp.Colors, uint32(i))
			}
		}
		cfg.Subpasses = []Subpass{sp}
	}
	return cfg, nil
}
