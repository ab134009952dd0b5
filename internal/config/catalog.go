package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/ai-translator/internal/domain"
)

// ProviderCatalog is the on-disk override of provider endpoints and default models.
//
//	providers:
//	  groq:
//	    base_url: https://api.groq.com/openai/v1
//	    default_model: llama-3.1-8b-instant
type ProviderCatalog struct {
	Providers map[string]CatalogEntry `yaml:"providers"`
}

// CatalogEntry overrides one provider; empty fields keep the built-in value.
type CatalogEntry struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// LoadCatalog reads and validates a provider catalog YAML file.
func LoadCatalog(path string) (*ProviderCatalog, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("catalog file not found: %s", absPath)
	}
	// #nosec G304 -- operator supplied configuration path
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	var cat ProviderCatalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for name := range cat.Providers {
		if _, err := domain.ParseProviderID(name); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
	}
	return &cat, nil
}

// ApplyCatalog overlays catalog entries on the config.
func (c *Config) ApplyCatalog(cat *ProviderCatalog) {
	if cat == nil {
		return
	}
	for name, entry := range cat.Providers {
		p, err := domain.ParseProviderID(name)
		if err != nil {
			continue
		}
		if u := strings.TrimSpace(entry.BaseURL); u != "" {
			c.setBaseURL(p, strings.TrimRight(u, "/"))
		}
		if m := strings.TrimSpace(entry.DefaultModel); m != "" {
			if c.ModelDefaults == nil {
				c.ModelDefaults = map[domain.ProviderID]string{}
			}
			c.ModelDefaults[p] = m
		}
	}
}
