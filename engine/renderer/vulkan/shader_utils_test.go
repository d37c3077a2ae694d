package vulkan

import "testing"

func TestShaderModuleCreateInfo(t *testing.T) {
	tests := []struct {
		name string
		code []uint32
		want uint64
	}{
		{"empty", nil, 0},
		{"one word", []uint32{0x07230203}, 4},
		{"header", []uint32{0x07230203, 0x00010000, 0, 8, 0}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := shaderModuleCreateInfo(tt.code)
			var size uint64 = info.CodeSize
			if size != tt.want {
				t.Errorf("CodeSize = %d, want %d bytes", size, tt.want)
			}
			if len(info.PCode) != len(tt.code) {
				t.Errorf("PCode has %d words, want %d", len(info.PCode), len(tt.code))
			}
		})
	}
}
