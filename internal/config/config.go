// Package config manages persisted decima settings and their location.
//
// The default root is ~/.decima and holds config.yaml. DECIMA_HOME overrides
// the root directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// HomeEnv names the environment variable that overrides the root directory.
const HomeEnv = "DECIMA_HOME"

// DefaultExtension is the container file extension scanned in a data
// directory.
const DefaultExtension = ".bin"

// Paths contains the filesystem locations used by decima.
type Paths struct {
	// Root is the base directory for decima data (default: ~/.decima).
	Root string

	// Config is the path to the config file.
	Config string
}

// DefaultPaths returns the default paths, honouring DECIMA_HOME.
func DefaultPaths() (*Paths, error) {
	root := os.Getenv(HomeEnv)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".decima")
	}
	return &Paths{
		Root:   root,
		Config: filepath.Join(root, "config.yaml"),
	}, nil
}

// Config is the persisted user configuration.
type Config struct {
	// DataDir is the last opened directory of containers.
	DataDir string `yaml:"data_dir,omitempty"`

	// Extension selects container files in DataDir (default: ".bin").
	Extension string `yaml:"extension,omitempty"`

	// Exclude lists container stems that are never loaded.
	Exclude []string `yaml:"exclude,omitempty"`

	// PatchPrefix marks containers that load after all others
	// (default: "Patch").
	PatchPrefix string `yaml:"patch_prefix,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Extension:   DefaultExtension,
		PatchPrefix: "Patch",
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Extension == "" {
		c.Extension = d.Extension
	}
	if c.PatchPrefix == "" {
		c.PatchPrefix = d.PatchPrefix
	}
}

// Excluded reports whether a container stem is excluded.
func (c *Config) Excluded(stem string) bool {
	return slices.Contains(c.Exclude, stem)
}

// Load reads the config file at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from DefaultPaths or a flag
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory. The file is
// replaced atomically.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()        //nolint:errcheck // we're cleaning up
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
