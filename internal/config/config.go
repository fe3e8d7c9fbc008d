package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DSNEnv overrides database.dsn when set.
const DSNEnv = "PLACECRAFT_DATABASE_DSN"

const (
	DefaultCatalog = "catalog.yaml"
	DefaultDSN     = "sqlite://placecraft.db"
)

type ProjectConfig struct {
	Project  string         `yaml:"project"`
	Version  int            `yaml:"version"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  string         `yaml:"catalog"`
	Layers   []Layer        `yaml:"layers"`
	Exclude  []string       `yaml:"exclude"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Log      LogConfig      `yaml:"log"`

	// Dir is the directory the config file was loaded from.
	Dir string `yaml:"-"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type TrackerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Layer struct {
	Name      string   `yaml:"name"`
	Paths     []string `yaml:"paths"`
	Canonical bool     `yaml:"canonical"`
	DependsOn []string `yaml:"depends_on"`
}

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	cfg.Dir = filepath.Dir(path)
	if env := strings.TrimSpace(os.Getenv(DSNEnv)); env != "" {
		cfg.Database.DSN = env
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		cfg.Database.DSN = DefaultDSN
	}
	if strings.TrimSpace(cfg.Catalog) == "" {
		cfg.Catalog = DefaultCatalog
	}

	return &cfg, nil
}

// CatalogPath resolves the catalog file relative to the config directory.
func (c *ProjectConfig) CatalogPath() string {
	return c.Resolve(c.Catalog)
}

// Resolve makes path absolute relative to the config directory.
func (c *ProjectConfig) Resolve(path string) string {
	if filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// Layer returns the named layer, case-insensitively.
func (c *ProjectConfig) Layer(name string) (*Layer, bool) {
	for i := range c.Layers {
		if strings.EqualFold(c.Layers[i].Name, name) {
			return &c.Layers[i], true
		}
	}
	return nil, false
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if len(cfg.Layers) == 0 {
		return fmt.Errorf("at least one layer is required")
	}

	seen := make(map[string]struct{})
	for i, layer := range cfg.Layers {
		if strings.TrimSpace(layer.Name) == "" {
			return fmt.Errorf("layer %d name is required", i)
		}
		if len(layer.Paths) == 0 {
			return fmt.Errorf("layer %d paths are required", i)
		}
		key := strings.ToLower(layer.Name)
		if _, exists := seen[key]; exists {
			return fmt.Errorf("duplicate layer name: %s", layer.Name)
		}
		seen[key] = struct{}{}
	}

	for _, layer := range cfg.Layers {
		for _, dep := range layer.DependsOn {
			if _, ok := seen[strings.ToLower(dep)]; !ok {
				return fmt.Errorf("layer %s depends on unknown layer: %s", layer.Name, dep)
			}
		}
	}

	return nil
}
