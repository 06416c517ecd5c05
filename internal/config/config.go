// Package config handles build configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultFPS is the frame rate used when neither fps nor a time step is set.
const DefaultFPS = 24

// Config holds all build settings.
type Config struct {
	Input      InputConfig      `yaml:"input" json:"input" toml:"input"`
	Time       TimeConfig       `yaml:"time" json:"time" toml:"time"`
	Attributes AttributesConfig `yaml:"attributes" json:"attributes" toml:"attributes"`
	Animation  AnimationConfig  `yaml:"animation" json:"animation" toml:"animation"`
	Sparse     SparseConfig     `yaml:"sparse" json:"sparse" toml:"sparse"`
	Materials  []MaterialConfig `yaml:"materials" json:"materials" toml:"materials"`
	Textures   TexturesConfig   `yaml:"textures" json:"textures" toml:"textures"`
	Output     OutputConfig     `yaml:"output" json:"output" toml:"output"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging" toml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics" toml:"metrics"`
}

// InputConfig selects the frame files.
type InputConfig struct {
	Pattern    string `yaml:"pattern" json:"pattern" toml:"pattern"`             // glob with # frame placeholder
	Root       string `yaml:"root" json:"root" toml:"root"`                      // directory patterns are relative to
	Static     bool   `yaml:"static" json:"static" toml:"static"`                // accept a pattern without #
	Step       int    `yaml:"step" json:"step" toml:"step"`                      // keep every Nth frame
	Reverse    bool   `yaml:"reverse" json:"reverse" toml:"reverse"`             // flip face winding
	InvertTets bool   `yaml:"invert_tets" json:"invert_tets" toml:"invert_tets"` // flip tetrahedron faces
	Workers    int    `yaml:"workers" json:"workers" toml:"workers"`
}

// TimeConfig sets keyframe timing. FPS wins when both are set.
type TimeConfig struct {
	FPS      float64 `yaml:"fps" json:"fps" toml:"fps"`
	TimeStep float64 `yaml:"time_step" json:"time_step" toml:"time_step"`
}

// CustomAttribute declares an application-specific attribute to export.
type CustomAttribute struct {
	Name string `yaml:"name" json:"name" toml:"name"`
	Type string `yaml:"type" json:"type" toml:"type"` // f32, u8, vec3(f32), ...
}

// AttributesConfig maps mesh attributes to glTF semantics.
type AttributesConfig struct {
	MaterialAttribute string            `yaml:"material_attribute" json:"material_attribute" toml:"material_attribute"`
	Texcoords         []string          `yaml:"texcoords" json:"texcoords" toml:"texcoords"`
	Colors            []string          `yaml:"colors" json:"colors" toml:"colors"`
	Custom            []CustomAttribute `yaml:"custom" json:"custom" toml:"custom"`
}

// AnimationConfig selects animated attributes besides position.
type AnimationConfig struct {
	Normals  bool `yaml:"normals" json:"normals" toml:"normals"`
	Tangents bool `yaml:"tangents" json:"tangents" toml:"tangents"`
}

// SparseConfig controls sparse morph target storage.
type SparseConfig struct {
	Threshold float64 `yaml:"threshold" json:"threshold" toml:"threshold"`
	Reference string  `yaml:"reference" json:"reference" toml:"reference"` // previous | base
}

// TextureRefConfig binds a material slot to an image table entry.
type TextureRefConfig struct {
	Index    int `yaml:"index" json:"index" toml:"index"`
	Texcoord int `yaml:"texcoord" json:"texcoord" toml:"texcoord"`
}

// MaterialConfig is one material table entry. Unset factors take defaults.
type MaterialConfig struct {
	ID                       *uint32           `yaml:"id,omitempty" json:"id,omitempty" toml:"id,omitempty"`
	Name                     string            `yaml:"name" json:"name" toml:"name"`
	BaseColor                *[4]float32       `yaml:"base_color,omitempty" json:"base_color,omitempty" toml:"base_color,omitempty"`
	Metallic                 *float32          `yaml:"metallic,omitempty" json:"metallic,omitempty" toml:"metallic,omitempty"`
	Roughness                *float32          `yaml:"roughness,omitempty" json:"roughness,omitempty" toml:"roughness,omitempty"`
	Emissive                 *[3]float32       `yaml:"emissive,omitempty" json:"emissive,omitempty" toml:"emissive,omitempty"`
	BaseTexture              *TextureRefConfig `yaml:"base_texture,omitempty" json:"base_texture,omitempty" toml:"base_texture,omitempty"`
	MetallicRoughnessTexture *TextureRefConfig `yaml:"metallic_roughness_texture,omitempty" json:"metallic_roughness_texture,omitempty" toml:"metallic_roughness_texture,omitempty"`
	EmissiveTexture          *TextureRefConfig `yaml:"emissive_texture,omitempty" json:"emissive_texture,omitempty" toml:"emissive_texture,omitempty"`
}

// ImageConfig is one texture image with its sampler settings.
type ImageConfig struct {
	Image     string `yaml:"image" json:"image" toml:"image"`
	WrapS     string `yaml:"wrap_s,omitempty" json:"wrap_s,omitempty" toml:"wrap_s,omitempty"`
	WrapT     string `yaml:"wrap_t,omitempty" json:"wrap_t,omitempty" toml:"wrap_t,omitempty"`
	MagFilter string `yaml:"mag_filter,omitempty" json:"mag_filter,omitempty" toml:"mag_filter,omitempty"`
	MinFilter string `yaml:"min_filter,omitempty" json:"min_filter,omitempty" toml:"min_filter,omitempty"`
}

// TexturesConfig holds the image table.
type TexturesConfig struct {
	Root   string        `yaml:"root" json:"root" toml:"root"`
	Mode   string        `yaml:"mode" json:"mode" toml:"mode"` // embed | reference | auto
	Images []ImageConfig `yaml:"images" json:"images" toml:"images"`
}

// OutputConfig selects the output artifact.
type OutputConfig struct {
	Path       string `yaml:"path" json:"path" toml:"path"`       // .glb, .gltf or s3://bucket/key
	Buffer     string `yaml:"buffer" json:"buffer" toml:"buffer"` // external | embedded
	S3Region   string `yaml:"s3_region" json:"s3_region" toml:"s3_region"`
	S3Endpoint string `yaml:"s3_endpoint" json:"s3_endpoint" toml:"s3_endpoint"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level" toml:"level"`
	LogFile string `yaml:"log_file" json:"log_file" toml:"log_file"`
}

// MetricsConfig holds the metrics textfile location.
type MetricsConfig struct {
	File string `yaml:"file" json:"file" toml:"file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Root:    ".",
			Step:    1,
			Workers: runtime.NumCPU(),
		},
		Attributes: AttributesConfig{
			MaterialAttribute: "mtl_id",
			Texcoords:         []string{"uv"},
		},
		Animation: AnimationConfig{
			Normals: true,
		},
		Sparse: SparseConfig{
			Reference: "previous",
		},
		Textures: TexturesConfig{
			Mode: "auto",
		},
		Output: OutputConfig{
			Path:   "output.glb",
			Buffer: "external",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// FrameRate returns the effective frames per second, or 0 when a time step
// is in effect.
func (c *Config) FrameRate() float64 {
	switch {
	case c.Time.FPS > 0:
		return c.Time.FPS
	case c.Time.TimeStep > 0:
		return 0
	}
	return DefaultFPS
}

// TimeStep returns the duration of one frame in seconds.
func (c *Config) TimeStep() float64 {
	if fps := c.FrameRate(); fps > 0 {
		return 1 / fps
	}
	return c.Time.TimeStep
}

// TextureMode resolves "auto" against the output container.
func (c *Config) TextureMode() string {
	if c.Textures.Mode != "auto" && c.Textures.Mode != "" {
		return c.Textures.Mode
	}
	if strings.HasSuffix(strings.ToLower(c.Output.Path), ".gltf") {
		return "reference"
	}
	return "embed"
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q (want one of %s)", ErrInvalid, field, value, strings.Join(allowed, ", "))
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	switch {
	case c.Input.Pattern == "":
		return fmt.Errorf("%w: input pattern is required", ErrInvalid)
	case c.Input.Step < 1:
		return fmt.Errorf("%w: step must be at least 1, got %d", ErrInvalid, c.Input.Step)
	case c.Input.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalid, c.Input.Workers)
	case c.Time.FPS < 0 || c.Time.TimeStep < 0:
		return fmt.Errorf("%w: fps and time step must not be negative", ErrInvalid)
	case c.Sparse.Threshold < 0 || c.Sparse.Threshold >= 1:
		return fmt.Errorf("%w: sparse threshold must be in [0, 1), got %g", ErrInvalid, c.Sparse.Threshold)
	}
	if err := oneOf("sparse reference", c.Sparse.Reference, "previous", "base"); err != nil {
		return err
	}
	if err := oneOf("texture mode", c.Textures.Mode, "embed", "reference", "auto"); err != nil {
		return err
	}
	if err := oneOf("output buffer", c.Output.Buffer, "external", "embedded"); err != nil {
		return err
	}
	if err := oneOf("log level", c.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	ext := strings.ToLower(c.Output.Path)
	if !strings.HasSuffix(ext, ".glb") && !strings.HasSuffix(ext, ".gltf") {
		return fmt.Errorf("%w: output %q must end in .glb or .gltf", ErrInvalid, c.Output.Path)
	}
	for i, m := range c.Materials {
		for _, ref := range []*TextureRefConfig{m.BaseTexture, m.MetallicRoughnessTexture, m.EmissiveTexture} {
			if ref != nil && (ref.Index < 0 || ref.Index >= len(c.Textures.Images)) {
				return fmt.Errorf("%w: material %d references image %d of %d", ErrInvalid, i, ref.Index, len(c.Textures.Images))
			}
		}
	}
	return nil
}
