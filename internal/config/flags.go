package config

import (
	"flag"
	"fmt"
	"strings"
)

// Flags binds command line overrides to a FlagSet. Only flags given
// explicitly replace file or default values.
type Flags struct {
	fs *flag.FlagSet

	config     string
	output     string
	root       string
	static     bool
	step       int
	reverse    bool
	invertTets bool
	workers    int

	fps      float64
	timeStep float64

	materialAttr string
	texcoords    string
	colors       string
	custom       listFlag

	normals  bool
	tangents bool

	sparseThreshold float64
	sparseReference string

	textureRoot string
	textureMode string

	buffer     string
	s3Region   string
	s3Endpoint string

	verbose     bool
	quiet       bool
	logFile     string
	metricsFile string
}

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// RegisterFlags defines the build overrides on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.config, "config", "", "Path to config file (yaml, toml or json)")
	fs.StringVar(&f.output, "o", "", "Output file (.glb or .gltf)")
	fs.StringVar(&f.output, "output", "", "Output file (.glb or .gltf)")
	fs.StringVar(&f.root, "root", "", "Directory the pattern is relative to")
	fs.BoolVar(&f.static, "static", false, "Accept a pattern without a # placeholder")
	fs.IntVar(&f.step, "step", 0, "Keep every Nth frame")
	fs.BoolVar(&f.reverse, "reverse", false, "Reverse face winding")
	fs.BoolVar(&f.invertTets, "invert-tets", false, "Flip tetrahedron orientation")
	fs.IntVar(&f.workers, "workers", 0, "Parallel frame parsers")

	fs.Float64Var(&f.fps, "fps", 0, "Frames per second (default 24)")
	fs.Float64Var(&f.timeStep, "time-step", 0, "Seconds between frames, used when --fps is not set")

	fs.StringVar(&f.materialAttr, "material-attribute", "", "Attribute holding material ids")
	fs.StringVar(&f.texcoords, "uv", "", "Comma separated texture coordinate attributes")
	fs.StringVar(&f.colors, "color", "", "Comma separated color attributes")
	fs.Var(&f.custom, "attr", "Custom attribute as name:type, repeatable")

	fs.BoolVar(&f.normals, "normals", false, "Animate normals")
	fs.BoolVar(&f.tangents, "tangents", false, "Animate tangents")

	fs.Float64Var(&f.sparseThreshold, "sparse-threshold", 0, "Store targets sparse below this changed fraction")
	fs.StringVar(&f.sparseReference, "sparse-reference", "", "Sparse base: previous or base")

	fs.StringVar(&f.textureRoot, "texture-root", "", "Directory texture paths are relative to")
	fs.StringVar(&f.textureMode, "texture-mode", "", "embed, reference or auto")

	fs.StringVar(&f.buffer, "buffer", "", "glTF buffer placement: external or embedded")
	fs.StringVar(&f.s3Region, "s3-region", "", "Region for s3:// outputs")
	fs.StringVar(&f.s3Endpoint, "s3-endpoint", "", "Endpoint override for s3:// outputs")

	fs.BoolVar(&f.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&f.quiet, "quiet", false, "Only log errors")
	fs.StringVar(&f.logFile, "log-file", "", "Also write JSON logs to this file")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	return f
}

// ConfigPath returns the explicit config path if provided via --config.
func (f *Flags) ConfigPath() string {
	return f.config
}

// apply copies every explicitly set flag into cfg.
func (f *Flags) apply(cfg *Config) error {
	var err error
	f.fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "o", "output":
			cfg.Output.Path = f.output
		case "root":
			cfg.Input.Root = f.root
		case "static":
			cfg.Input.Static = f.static
		case "step":
			cfg.Input.Step = f.step
		case "reverse":
			cfg.Input.Reverse = f.reverse
		case "invert-tets":
			cfg.Input.InvertTets = f.invertTets
		case "workers":
			cfg.Input.Workers = f.workers
		case "fps":
			cfg.Time.FPS = f.fps
		case "time-step":
			cfg.Time.TimeStep = f.timeStep
		case "material-attribute":
			cfg.Attributes.MaterialAttribute = f.materialAttr
		case "uv":
			cfg.Attributes.Texcoords = splitList(f.texcoords)
		case "color":
			cfg.Attributes.Colors = splitList(f.colors)
		case "attr":
			cfg.Attributes.Custom = cfg.Attributes.Custom[:0]
			for _, spec := range f.custom {
				name, typ, ok := strings.Cut(spec, ":")
				if !ok || name == "" {
					err = fmt.Errorf("%w: --attr %q must be name:type", ErrInvalid, spec)
					return
				}
				cfg.Attributes.Custom = append(cfg.Attributes.Custom, CustomAttribute{Name: name, Type: typ})
			}
		case "normals":
			cfg.Animation.Normals = f.normals
		case "tangents":
			cfg.Animation.Tangents = f.tangents
		case "sparse-threshold":
			cfg.Sparse.Threshold = f.sparseThreshold
		case "sparse-reference":
			cfg.Sparse.Reference = f.sparseReference
		case "texture-root":
			cfg.Textures.Root = f.textureRoot
		case "texture-mode":
			cfg.Textures.Mode = f.textureMode
		case "buffer":
			cfg.Output.Buffer = f.buffer
		case "s3-region":
			cfg.Output.S3Region = f.s3Region
		case "s3-endpoint":
			cfg.Output.S3Endpoint = f.s3Endpoint
		case "verbose":
			if f.verbose {
				cfg.Logging.Level = "debug"
			}
		case "quiet":
			if f.quiet {
				cfg.Logging.Level = "error"
			}
		case "log-file":
			cfg.Logging.LogFile = f.logFile
		case "metrics-file":
			cfg.Metrics.File = f.metricsFile
		}
	})
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
