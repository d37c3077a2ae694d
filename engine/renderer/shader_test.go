package renderer

import (
	"os"
	"path/filepath"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
)

const basicVertexDescription = `
name = "basic"
stage = "vertex"
path = "basic.vert.spv"
defines = ["SKINNED", "FOG"]

[[bindings]]
set = 0
binding = 0
type = "uniform"
unit = 0

[[bindings]]
set = 1
binding = 0
type = "uniform_dynamic"
unit = 1

[[buffers]]
group = 0
size = 64

[[buffers]]
group = 1
size = 80

[[parameters]]
name = "ViewProj"
group = 0
offset = 0
`

func TestLoadShaderVariation(t *testing.T) {
	dir := t.TempDir()
	desc := filepath.Join(dir, "basic.vert.toml")
	if err := os.WriteFile(desc, []byte(basicVertexDescription), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "basic.vert.spv"), []byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadShaderVariation(desc)
	if err != nil {
		t.Fatalf("LoadShaderVariation() error = %v", err)
	}
	if code := s.ByteCode(); len(code) != 2 || code[0] != 0x07230203 || code[1] != 1 {
		t.Errorf("ByteCode() = %#x", code)
	}
	if s.Type() != metadata.VertexShader || s.EntryPoint() != "main" || s.Name() != "basic" {
		t.Errorf("stage=%v entry=%q name=%q", s.Type(), s.EntryPoint(), s.Name())
	}
	st := s.DescriptorStructure()
	if len(st[0]) != 1 || st[0][0].Type != vk.DescriptorTypeUniformBuffer || st[0][0].StageFlag != vk.ShaderStageVertexBit {
		t.Errorf("set 0 = %+v", st[0])
	}
	if len(st[1]) != 1 || st[1][0].Type != vk.DescriptorTypeUniformBufferDynamic || st[1][0].UnitStart != 1 || st[1][0].UnitRange != 1 {
		t.Errorf("set 1 = %+v", st[1])
	}
	if sizes := s.ConstantBufferSizes(); sizes[0] != 64 || sizes[1] != 80 {
		t.Errorf("ConstantBufferSizes() = %v", sizes)
	}
	if group, offset, ok := s.ParameterOffset("ViewProj"); !ok || group != 0 || offset != 0 {
		t.Errorf("ParameterOffset(ViewProj) = %d, %d, %v", group, offset, ok)
	}
	if _, _, ok := s.ParameterOffset("Missing"); ok {
		t.Error("ParameterOffset(Missing) found")
	}
}

func TestShaderVariationHash(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07}
	build := func(defines ...string) uint32 {
		s, err := NewShaderVariation(&ShaderConfig{Name: "v", Stage: "pixel", Defines: defines}, code)
		if err != nil {
			t.Fatalf("NewShaderVariation() error = %v", err)
		}
		return s.VariationHash()
	}
	if build("A", "B") != build("B", "A") {
		t.Error("define order changes the variation hash")
	}
	if build("A") == build("A", "B") {
		t.Error("different defines share a variation hash")
	}
}

func TestNewShaderVariationErrors(t *testing.T) {
	code := []byte{0x03, 0x02, 0x23, 0x07}
	tests := []struct {
		name string
		cfg  ShaderConfig
		code []byte
	}{
		{"empty code", ShaderConfig{Stage: "vertex"}, nil},
		{"truncated code", ShaderConfig{Stage: "vertex"}, code[:3]},
		{"unknown stage", ShaderConfig{Stage: "geometry"}, code},
		{"unknown binding", ShaderConfig{Stage: "vertex", Bindings: []ShaderBindingConfig{{Type: "storage"}}}, code},
		{"group out of range", ShaderConfig{Stage: "vertex", Buffers: []ShaderBufferConfig{{Group: metadata.MaxShaderParameterGroups, Size: 4}}}, code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewShaderVariation(&tt.cfg, tt.code); err == nil {
				t.Error("NewShaderVariation() error = nil")
			}
		})
	}
}
