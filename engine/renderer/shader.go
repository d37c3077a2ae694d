package renderer

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

/**
 * @brief One reflected binding as written in a shader description file.
 * Type is uniform, uniform_dynamic, sampler or input; Unit is the parameter
 * group, texture unit or attachment index depending on Type.
 */
type ShaderBindingConfig struct {
	Set     uint32 `toml:"set"`
	Binding uint32 `toml:"binding"`
	Type    string `toml:"type"`
	Unit    uint32 `toml:"unit"`
	Count   uint32 `toml:"count"`
}

type ShaderParameterConfig struct {
	Name   string `toml:"name"`
	Group  int    `toml:"group"`
	Offset uint32 `toml:"offset"`
}

type ShaderBufferConfig struct {
	Group int    `toml:"group"`
	Size  uint32 `toml:"size"`
}

/**
 * @brief Shader description loaded next to the SPIR-V binary. It carries the
 * reflection data the graphics core needs. Path is relative to the
 * description file.
 */
type ShaderConfig struct {
	Name       string                  `toml:"name"`
	Stage      string                  `toml:"stage"`
	Path       string                  `toml:"path"`
	Entry      string                  `toml:"entry"`
	Defines    []string                `toml:"defines"`
	Bindings   []ShaderBindingConfig   `toml:"bindings"`
	Buffers    []ShaderBufferConfig    `toml:"buffers"`
	Parameters []ShaderParameterConfig `toml:"parameters"`
}

var shaderBindingTypes = map[string]vk.DescriptorType{
	"uniform":         vk.DescriptorTypeUniformBuffer,
	"uniform_dynamic": vk.DescriptorTypeUniformBufferDynamic,
	"sampler":         vk.DescriptorTypeCombinedImageSampler,
	"input":           vk.DescriptorTypeInputAttachment,
}

type shaderParameter struct {
	group  int
	offset uint32
}

// ShaderVariation is a compiled shader stage loaded from disk.
type ShaderVariation struct {
	name       string
	hash       uint32
	stage      metadata.ShaderType
	entry      string
	code       []uint32
	sizes      [metadata.MaxShaderParameterGroups]uint32
	structure  metadata.DescriptorStructure
	parameters map[string]shaderParameter
}

var _ metadata.ShaderVariation = (*ShaderVariation)(nil)

// LoadShaderVariation reads a TOML shader description and the SPIR-V binary
// it points to.
func LoadShaderVariation(path string) (*ShaderVariation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading shader description %s", path)
	}
	var cfg ShaderConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing shader description %s", path)
	}
	code, err := os.ReadFile(filepath.Join(filepath.Dir(path), cfg.Path))
	if err != nil {
		return nil, errors.Wrapf(err, "reading SPIR-V for %s", cfg.Name)
	}
	return NewShaderVariation(&cfg, code)
}

// NewShaderVariation builds a variation from a description and raw SPIR-V bytes.
func NewShaderVariation(cfg *ShaderConfig, spirv []byte) (*ShaderVariation, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, errors.Newf("shader %s: SPIR-V size %d is not a multiple of 4", cfg.Name, len(spirv))
	}
	s := &ShaderVariation{
		name:       cfg.Name,
		entry:      cfg.Entry,
		code:       bytesToBytecode(spirv),
		structure:  metadata.DescriptorStructure{},
		parameters: make(map[string]shaderParameter, len(cfg.Parameters)),
	}
	if s.entry == "" {
		s.entry = "main"
	}

	var stageFlag vk.ShaderStageFlagBits
	switch cfg.Stage {
	case "vertex":
		s.stage, stageFlag = metadata.VertexShader, vk.ShaderStageVertexBit
	case "pixel", "fragment":
		s.stage, stageFlag = metadata.PixelShader, vk.ShaderStageFragmentBit
	default:
		return nil, errors.Newf("shader %s: unknown stage %q", cfg.Name, cfg.Stage)
	}

	for _, b := range cfg.Bindings {
		t, ok := shaderBindingTypes[b.Type]
		if !ok {
			return nil, errors.Newf("shader %s: unknown binding type %q", cfg.Name, b.Type)
		}
		count := b.Count
		if count == 0 {
			count = 1
		}
		s.structure[b.Set] = append(s.structure[b.Set], metadata.ShaderBind{
			ID:        b.Binding,
			Type:      t,
			StageFlag: stageFlag,
			UnitStart: b.Unit,
			UnitRange: count,
		})
	}
	for _, b := range cfg.Buffers {
		if b.Group < 0 || b.Group >= metadata.MaxShaderParameterGroups {
			return nil, errors.Newf("shader %s: parameter group %d out of range", cfg.Name, b.Group)
		}
		s.sizes[b.Group] = b.Size
	}
	for _, p := range cfg.Parameters {
		s.parameters[p.Name] = shaderParameter{group: p.Group, offset: p.Offset}
	}

	// variations of one shader differ by their sorted define list
	defines := append([]string(nil), cfg.Defines...)
	sort.Strings(defines)
	h := fnv.New32a()
	for _, d := range defines {
		h.Write([]byte(d))
		h.Write([]byte{0})
	}
	s.hash = h.Sum32()
	return s, nil
}

func (s *ShaderVariation) Name() string              { return s.name }
func (s *ShaderVariation) VariationHash() uint32     { return s.hash }
func (s *ShaderVariation) Type() metadata.ShaderType { return s.stage }
func (s *ShaderVariation) ByteCode() []uint32        { return s.code }
func (s *ShaderVariation) EntryPoint() string        { return s.entry }
func (s *ShaderVariation) ConstantBufferSizes() [metadata.MaxShaderParameterGroups]uint32 {
	return s.sizes
}

func (s *ShaderVariation) DescriptorStructure() metadata.DescriptorStructure { return s.structure }

func (s *ShaderVariation) ParameterOffset(name string) (int, uint32, bool) {
	p, ok := s.parameters[name]
	return p.group, p.offset, ok
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}
	return byteCode
}
