package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-spider/pkg/utils"
)

// Load reads a config file; .toml files are decoded with go-toml, anything else as YAML
// The result is not validated
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read config: %w", utils.ErrFilesystem, err)
	}

	var cfg AppConfig
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = unmarshalTOML(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse config %s: %w", utils.ErrParsing, path, err)
	}
	return &cfg, nil
}

// unmarshalTOML decodes TOML into a generic tree and re-encodes it as YAML,
// so one set of yaml tags (and yaml.v3's duration parsing) serves both formats
func unmarshalTOML(data []byte, cfg *AppConfig) error {
	var tree map[string]interface{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return err
	}
	bridged, err := yaml.Marshal(tree)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bridged, cfg)
}

// LoadAndValidate loads path and validates the app config and every site
// Warnings are returned for the caller to log
func LoadAndValidate(path string) (*AppConfig, []string, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, warnings, err
	}
	for key, site := range cfg.Sites {
		siteWarnings, err := site.Validate()
		for _, w := range siteWarnings {
			warnings = append(warnings, fmt.Sprintf("site %s: %s", key, w))
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("site %s: %w", key, err)
		}
		cfg.Sites[key] = site
	}
	return cfg, warnings, nil
}
