// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "CATQQ_"

// Config stores everything the process needs at startup
type Config struct {
	// Bots is the allow-list of bot accounts, empty for all
	Bots    []int64 `yaml:"bots"`
	Debug   bool    `yaml:"debug" env:"DEBUG"`
	HTTP    string  `yaml:"http" env:"HTTP"`
	Runtime string  `yaml:"runtime" env:"RUNTIME"`
	// Plugins maps instance names to their settings
	Plugins map[string]PluginConfig `yaml:"plugins"`
}

// PluginConfig is one plugins entry
type PluginConfig struct {
	// Plugin is the plugin type
	Plugin string `yaml:"plugin"`
	// Config is handed to the plugin undecoded
	Config  yaml.Node `yaml:"config,omitempty"`
	Bot     []int64   `yaml:"bot,omitempty"`
	Service []string  `yaml:"service,omitempty"`
}

// Parse reads a config document and applies environment overrides
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if c.Plugins == nil {
		c.Plugins = map[string]PluginConfig{}
	}
	for name, pc := range c.Plugins {
		if pc.Plugin == "" {
			pc.Plugin = name
			c.Plugins[name] = pc
		}
	}
	return c, nil
}

// Read loads the config at path, writing a commented default there first when the
// file does not exist.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Msg("no config found, writing the default")
		if data, err = DefaultYAML(); err != nil {
			return nil, err
		}
		if err = os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("plugins", len(c.Plugins)).Msg("config loaded")
	return c, nil
}
