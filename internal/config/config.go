// Package config loads the analysis settings from a TOML file.
package config

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"arbor-tracer/internal/logging"
	"arbor-tracer/internal/pipeline"

	"github.com/BurntSushi/toml"
)

// Config is the whole settings file. Every section is optional; missing
// keys keep their Default value.
type Config struct {
	Preprocess Preprocess     `toml:"preprocess"`
	Root       Root           `toml:"root"`
	Fit        Fit            `toml:"fit"`
	Measure    Measure        `toml:"measure"`
	Pipeline   Pipeline       `toml:"pipeline"`
	Logging    logging.Config `toml:"logging"`
	Display    Display        `toml:"display"`
}

// Preprocess controls how a micrograph becomes a mask and a skeleton.
type Preprocess struct {
	Resize     int  `toml:"resize"`      // square side in pixels, 0 keeps the size
	BlurKernel int  `toml:"blur_kernel"` // odd Gaussian kernel size, 0 disables
	Threshold  int  `toml:"threshold"`   // foreground is strictly brighter
	Simplify   bool `toml:"simplify"`
}

// Root locates the soma.
type Root struct {
	Radius      int `toml:"radius"`       // soma disk cut out of the skeleton
	MaxDistance int `toml:"max_distance"` // root to the nearest junction or branch end, without a disk
}

// Fit sets the polynomial degree range.
type Fit struct {
	Degree    int `toml:"degree"`
	MinDegree int `toml:"min_degree"`
}

// Measure sets the curve sample counts.
type Measure struct {
	ThicknessSamples int `toml:"thickness_samples"`
	LengthSamples    int `toml:"length_samples"`
	CurveSamples     int `toml:"curve_samples"` // for drawing
}

// Pipeline tunes the worker pool.
type Pipeline struct {
	Workers int    `toml:"workers"` // 0 means one per CPU
	Policy  string `toml:"policy"`  // failfast or skip
}

// Display selects what the overlay draws.
type Display struct {
	DrawSkeleton  bool `toml:"draw_skeleton"`
	DrawJunctions bool `toml:"draw_junctions"`
	DrawCurves    bool `toml:"draw_curves"`
	DrawRootLinks bool `toml:"draw_root_links"`
	DrawMainPath  bool `toml:"draw_main_path"`
}

// Default returns the built-in settings.
func Default() Config {
	opts := pipeline.DefaultOptions()
	return Config{
		Preprocess: Preprocess{Resize: 500, BlurKernel: 11, Threshold: 70, Simplify: true},
		Root:       Root{Radius: 0, MaxDistance: opts.MaxRootDistance},
		Fit:        Fit{Degree: opts.Degree, MinDegree: opts.MinDegree},
		Measure: Measure{
			ThicknessSamples: opts.ThicknessSamples,
			LengthSamples:    opts.LengthSamples,
			CurveSamples:     1000,
		},
		Pipeline: Pipeline{Policy: opts.Policy.String()},
		Logging:  logging.Config{Level: "info", MaxSize: 100, MaxAge: 30},
		Display: Display{
			DrawSkeleton:  true,
			DrawJunctions: true,
			DrawCurves:    true,
			DrawRootLinks: true,
			DrawMainPath:  true,
		},
	}
}

// Load reads a TOML file over the defaults. A relative logfile is taken
// relative to the file's directory. Unknown keys are an error so that typos
// do not go unnoticed.
func Load(path string) (Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, fmt.Errorf("could not decode TOML config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return c, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	if c.Logging.Logfile != "" && !filepath.IsAbs(c.Logging.Logfile) {
		c.Logging.Logfile = filepath.Join(filepath.Dir(path), c.Logging.Logfile)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Preprocess.Resize < 0:
		return fmt.Errorf("preprocess.resize must not be negative")
	case c.Preprocess.BlurKernel < 0 || (c.Preprocess.BlurKernel > 0 && c.Preprocess.BlurKernel%2 == 0):
		return fmt.Errorf("preprocess.blur_kernel must be 0 or odd, got %d", c.Preprocess.BlurKernel)
	case c.Preprocess.Threshold < 0 || c.Preprocess.Threshold > 255:
		return fmt.Errorf("preprocess.threshold must be in [0,255], got %d", c.Preprocess.Threshold)
	case c.Root.Radius < 0:
		return fmt.Errorf("root.radius must not be negative")
	case c.Fit.MinDegree < 0 || c.Fit.MinDegree > c.Fit.Degree:
		return fmt.Errorf("fit.min_degree must be in [0,%d], got %d", c.Fit.Degree, c.Fit.MinDegree)
	case c.Measure.ThicknessSamples < 3:
		return fmt.Errorf("measure.thickness_samples must be at least 3")
	case c.Measure.LengthSamples < 2:
		return fmt.Errorf("measure.length_samples must be at least 2")
	case c.Pipeline.Workers < 0:
		return fmt.Errorf("pipeline.workers must not be negative")
	}
	if _, err := pipeline.ParsePolicy(c.Pipeline.Policy); err != nil {
		return fmt.Errorf("pipeline.policy: %w", err)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// Options converts the settings into pipeline options. Call Validate first.
func (c Config) Options() pipeline.Options {
	policy, _ := pipeline.ParsePolicy(c.Pipeline.Policy)
	workers := c.Pipeline.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return pipeline.Options{
		Simplify:         c.Preprocess.Simplify,
		Degree:           c.Fit.Degree,
		MinDegree:        c.Fit.MinDegree,
		ThicknessSamples: c.Measure.ThicknessSamples,
		LengthSamples:    c.Measure.LengthSamples,
		MaxRootDistance:  c.Root.MaxDistance,
		Workers:          workers,
		Policy:           policy,
	}
}
