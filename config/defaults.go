package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

var comments = map[string]string{
	"bots":    "bot accounts this process serves, leave empty to serve every account",
	"debug":   "log every dispatch and command",
	"http":    "address of the web surface and the cli connector",
	"runtime": "plugin data lives in runtime/<plugin name>",
	"plugins": "plugin name: {plugin: type, config: {...}, bot: [accounts], service: [U123, G123, C1/2]}",
}

// Default is the config written on first start
func Default() *Config {
	return &Config{
		Bots:    []int64{},
		HTTP:    "127.0.0.1:1337",
		Runtime: "runtime",
		Plugins: map[string]PluginConfig{
			"basic": {Plugin: "basic"},
			"admin": {Plugin: "admin"},
			"help":  {Plugin: "help"},
		},
	}
}

// DefaultYAML renders Default with a comment above every top level key
func DefaultYAML() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(Default()); err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		key.HeadComment = comments[key.Value]
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	return out, nil
}
