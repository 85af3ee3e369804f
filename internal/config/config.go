// Package config handles meshtool configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"slices"
)

// Schemes lists the subdivision scheme names the configuration accepts.
var Schemes = []string{"catmull-clark", "loop", "butterfly"}

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid value")

// Config holds all settings.
type Config struct {
	Mesh        MeshConfig        `yaml:"mesh"`
	Subdivision SubdivisionConfig `yaml:"subdivision"`
	GPU         GPUConfig         `yaml:"gpu"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// MeshConfig sets up freshly created meshes.
type MeshConfig struct {
	InitialCapacity int `yaml:"initial_capacity"` // Records reserved per table
	UVLayers        int `yaml:"uv_layers"`
}

// SubdivisionConfig holds the defaults of the subdivide command.
type SubdivisionConfig struct {
	Scheme    string `yaml:"scheme"`
	Levels    int    `yaml:"levels"`
	Parallel  bool   `yaml:"parallel"`
	Workers   int    `yaml:"workers"`    // 0 = GOMAXPROCS
	ChunkSize int    `yaml:"chunk_size"` // Elements per worker message
}

// GPUConfig holds the hidden window used for uploads.
type GPUConfig struct {
	Enabled bool `yaml:"enabled"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			InitialCapacity: 64,
			UVLayers:        1,
		},
		Subdivision: SubdivisionConfig{
			Scheme:    "catmull-clark",
			Levels:    1,
			Parallel:  false,
			Workers:   0,
			ChunkSize: 1024,
		},
		GPU: GPUConfig{
			Enabled: true,
			Width:   64,
			Height:  64,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports the first setting no command can work with.
func (c *Config) Validate() error {
	switch {
	case c.Mesh.InitialCapacity < 0:
		return fmt.Errorf("%w: mesh.initial_capacity %d", ErrInvalid, c.Mesh.InitialCapacity)
	case c.Mesh.UVLayers < 1:
		return fmt.Errorf("%w: mesh.uv_layers %d", ErrInvalid, c.Mesh.UVLayers)
	case !slices.Contains(Schemes, c.Subdivision.Scheme):
		return fmt.Errorf("%w: subdivision.scheme %q", ErrInvalid, c.Subdivision.Scheme)
	case c.Subdivision.Levels < 0:
		return fmt.Errorf("%w: subdivision.levels %d", ErrInvalid, c.Subdivision.Levels)
	case c.Subdivision.Workers < 0:
		return fmt.Errorf("%w: subdivision.workers %d", ErrInvalid, c.Subdivision.Workers)
	case c.Subdivision.ChunkSize <= 0:
		return fmt.Errorf("%w: subdivision.chunk_size %d", ErrInvalid, c.Subdivision.ChunkSize)
	case c.GPU.Width <= 0 || c.GPU.Height <= 0:
		return fmt.Errorf("%w: gpu size %dx%d", ErrInvalid, c.GPU.Width, c.GPU.Height)
	}
	return nil
}
