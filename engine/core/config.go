package core

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultWidth             uint32 = 1280
	DefaultHeight            uint32 = 720
	DefaultMaxDescriptorSets uint32 = 25
	DefaultFenceTimeoutMs    uint32 = 1000
)

type DescriptorBindMode string

const (
	// Only sets whose content changed or fell outside the compatible layout prefix are rebound.
	DescriptorBindIncremental DescriptorBindMode = "incremental"
	// Every set of the pipeline is rebound on every draw.
	DescriptorBindRebindAll DescriptorBindMode = "rebind_all"
)

type WindowConfig struct {
	Name   string `toml:"name"`
	PosX   uint32 `toml:"posX"`
	PosY   uint32 `toml:"posY"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type GraphicsConfig struct {
	SRGB               bool               `toml:"srgb"`
	VSync              bool               `toml:"vsync"`
	TripleBuffer       bool               `toml:"tripleBuffer"`
	MaxDescriptorSets  uint32             `toml:"maxDescriptorSets"`
	FenceTimeoutMs     uint32             `toml:"fenceTimeoutMs"`
	DescriptorBindMode DescriptorBindMode `toml:"descriptorBindMode"`
	Validation         bool               `toml:"validation"`
	LogLevel           string             `toml:"logLevel"`
}

type AttachmentConfig struct {
	Slot  string `toml:"slot"`
	Clear bool   `toml:"clear"`
}

type SubpassConfig struct {
	Colors []int `toml:"colors"`
	// Depth is an attachment index, omitted for none.
	Depth  *int  `toml:"depth"`
	Inputs []int `toml:"inputs"`
}

type RenderPassConfig struct {
	Name        string             `toml:"name"`
	Type        string             `toml:"type"`
	Attachments []AttachmentConfig `toml:"attachments"`
	Subpasses   []SubpassConfig    `toml:"subpasses"`
}

type Config struct {
	Window       WindowConfig       `toml:"window"`
	Graphics     GraphicsConfig     `toml:"graphics"`
	RenderPasses []RenderPassConfig `toml:"renderpass"`
}

func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Name:   "Kestrel",
			PosX:   100,
			PosY:   100,
			Width:  DefaultWidth,
			Height: DefaultHeight,
		},
		Graphics: GraphicsConfig{
			VSync:              true,
			MaxDescriptorSets:  DefaultMaxDescriptorSets,
			FenceTimeoutMs:     DefaultFenceTimeoutMs,
			DescriptorBindMode: DescriptorBindIncremental,
			LogLevel:           "info",
		},
	}
}

// LoadConfig reads a TOML file over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogInfo("config %s not found, using defaults", path)
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

// ParseConfig decodes data into cfg and normalizes out-of-range values.
func ParseConfig(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.normalize()
	return nil
}

func (c *Config) normalize() {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		c.Window.Width, c.Window.Height = DefaultWidth, DefaultHeight
	}
	g := &c.Graphics
	if g.MaxDescriptorSets == 0 {
		g.MaxDescriptorSets = DefaultMaxDescriptorSets
	} else if g.MaxDescriptorSets < 2 {
		g.MaxDescriptorSets = 2
	}
	if g.FenceTimeoutMs == 0 {
		g.FenceTimeoutMs = DefaultFenceTimeoutMs
	}
	switch g.DescriptorBindMode {
	case DescriptorBindIncremental, DescriptorBindRebindAll:
	default:
		LogWarn("unknown descriptorBindMode %q, using %q", g.DescriptorBindMode, DescriptorBindIncremental)
		g.DescriptorBindMode = DescriptorBindIncremental
	}
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
}
