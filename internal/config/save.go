package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Save writes the config to the user's config directory.
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(ConfigDir(), "config.yaml"))
}

// SaveTo writes the config to a specific path. The format follows the
// extension.
func (c *Config) SaveTo(path string) error {
	data, err := c.Marshal(filepath.Ext(path))
	if err != nil {
		return err
	}

	// Create parent directory if needed
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal encodes the config for a file extension such as ".toml".
func (c *Config) Marshal(ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", "":
		return yaml.Marshal(c)
	case ".toml":
		return toml.Marshal(c)
	case ".json":
		return json.MarshalIndent(c, "", "  ")
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, ext)
}
