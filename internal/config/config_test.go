package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test mesh defaults
	if cfg.Mesh.InitialCapacity != 64 {
		t.Errorf("expected initial capacity 64, got %d", cfg.Mesh.InitialCapacity)
	}
	if cfg.Mesh.UVLayers != 1 {
		t.Errorf("expected 1 uv layer, got %d", cfg.Mesh.UVLayers)
	}

	// Test subdivision defaults
	if cfg.Subdivision.Scheme != "catmull-clark" {
		t.Errorf("expected scheme catmull-clark, got %s", cfg.Subdivision.Scheme)
	}
	if cfg.Subdivision.Levels != 1 {
		t.Errorf("expected 1 level, got %d", cfg.Subdivision.Levels)
	}
	if cfg.Subdivision.Parallel {
		t.Error("expected parallel to be false by default")
	}
	if cfg.Subdivision.ChunkSize != 1024 {
		t.Errorf("expected chunk size 1024, got %d", cfg.Subdivision.ChunkSize)
	}

	// Test gpu defaults
	if !cfg.GPU.Enabled {
		t.Error("expected gpu to be enabled by default")
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
mesh:
  initial_capacity: 4096
  uv_layers: 2

subdivision:
  scheme: "loop"
  levels: 3
  parallel: true
  workers: 8
  chunk_size: 256

gpu:
  enabled: false

logging:
  level: "debug"
  log_file: "mesh.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Mesh.InitialCapacity != 4096 {
		t.Errorf("expected initial capacity 4096, got %d", cfg.Mesh.InitialCapacity)
	}
	if cfg.Mesh.UVLayers != 2 {
		t.Errorf("expected 2 uv layers, got %d", cfg.Mesh.UVLayers)
	}
	if cfg.Subdivision.Scheme != "loop" {
		t.Errorf("expected scheme loop, got %s", cfg.Subdivision.Scheme)
	}
	if cfg.Subdivision.Levels != 3 {
		t.Errorf("expected 3 levels, got %d", cfg.Subdivision.Levels)
	}
	if !cfg.Subdivision.Parallel {
		t.Error("expected parallel to be true")
	}
	if cfg.Subdivision.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Subdivision.Workers)
	}
	if cfg.Subdivision.ChunkSize != 256 {
		t.Errorf("expected chunk size 256, got %d", cfg.Subdivision.ChunkSize)
	}
	if cfg.GPU.Enabled {
		t.Error("expected gpu to be disabled")
	}
	// untouched by the file
	if cfg.GPU.Width != 64 {
		t.Errorf("expected gpu width 64 from defaults, got %d", cfg.GPU.Width)
	}
	if cfg.Logging.LogFile != "mesh.log" {
		t.Errorf("expected log file 'mesh.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
subdivision:
  levels: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFromFile(cfg, "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestLoadFrom(t *testing.T) {
	tmpDir := t.TempDir()
	good := filepath.Join(tmpDir, "good.yaml")
	bad := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(good, []byte("subdivision:\n  scheme: butterfly\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("subdivision:\n  scheme: sqrt3\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(good)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Subdivision.Scheme != "butterfly" {
		t.Errorf("expected scheme butterfly, got %s", cfg.Subdivision.Scheme)
	}

	if _, err := LoadFrom(bad); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown scheme, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"zero levels", func(c *Config) { c.Subdivision.Levels = 0 }, true},
		{"negative levels", func(c *Config) { c.Subdivision.Levels = -1 }, false},
		{"unknown scheme", func(c *Config) { c.Subdivision.Scheme = "doo-sabin" }, false},
		{"negative workers", func(c *Config) { c.Subdivision.Workers = -2 }, false},
		{"zero chunk size", func(c *Config) { c.Subdivision.ChunkSize = 0 }, false},
		{"no uv layer", func(c *Config) { c.Mesh.UVLayers = 0 }, false},
		{"negative capacity", func(c *Config) { c.Mesh.InitialCapacity = -1 }, false},
		{"empty window", func(c *Config) { c.GPU.Width = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	os.Chdir(tmpDir)

	// No config file exists - should return empty
	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("subdivision:\n  levels: 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Subdivision.Scheme = "loop"
	cfg.Subdivision.Levels = 4
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("failed to reload config: %v", err)
	}
	if loaded.Subdivision != cfg.Subdivision {
		t.Errorf("expected %+v, got %+v", cfg.Subdivision, loaded.Subdivision)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name: "scheme and levels flags",
			setup: func() {
				*flagScheme = "butterfly"
				*flagLevels = 0
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Subdivision.Scheme != "butterfly" {
					t.Errorf("expected scheme butterfly, got %s", cfg.Subdivision.Scheme)
				}
				if cfg.Subdivision.Levels != 0 {
					t.Errorf("expected 0 levels, got %d", cfg.Subdivision.Levels)
				}
			},
			teardown: func() {
				*flagScheme = ""
				*flagLevels = -1
			},
		},
		{
			name: "parallel flags",
			setup: func() {
				*flagParallel = true
				*flagWorkers = 3
			},
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Subdivision.Parallel {
					t.Error("expected parallel to be enabled")
				}
				if cfg.Subdivision.Workers != 3 {
					t.Errorf("expected 3 workers, got %d", cfg.Subdivision.Workers)
				}
			},
			teardown: func() {
				*flagParallel = false
				*flagWorkers = 0
			},
		},
		{
			name:  "no-gpu flag",
			setup: func() { *flagNoGPU = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.GPU.Enabled {
					t.Error("expected gpu to be disabled")
				}
			},
			teardown: func() { *flagNoGPU = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
subdivision:
  scheme: loop
  levels: 2
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagLevels = 5
	defer func() {
		*flagConfig = ""
		*flagLevels = -1
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Levels should be from flag (5), not file (2)
	if cfg.Subdivision.Levels != 5 {
		t.Errorf("expected 5 levels from flag, got %d", cfg.Subdivision.Levels)
	}
	// Scheme should be from file since no flag override
	if cfg.Subdivision.Scheme != "loop" {
		t.Errorf("expected scheme loop from file, got %s", cfg.Subdivision.Scheme)
	}
}
