package sources

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fitidea/internal/domain"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// SourceConfig is the data half of a source: where to discover items and how
// listing links look. The parsing half is bound by ID in the registry.
type SourceConfig struct {
	ID           string      `yaml:"id"`
	Kind         domain.Kind `yaml:"kind"`
	Brand        string      `yaml:"brand,omitempty"`
	ListingURL   string      `yaml:"listing_url,omitempty"`
	Homepage     string      `yaml:"homepage,omitempty"`
	LinkSelector string      `yaml:"link_selector,omitempty"`
}

type sourcesFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadConfig reads the source list from path, or the embedded default when path is empty.
// Environment variables in the file are expanded.
func LoadConfig(path string) ([]SourceConfig, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	var f sourcesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	for i := range f.Sources {
		s := &f.Sources[i]
		s.ID = strings.ToLower(strings.TrimSpace(s.ID))
		if s.ID == "" {
			return nil, fmt.Errorf("source #%d has no id", i)
		}
		if s.Kind != domain.KindGym && s.Kind != domain.KindProduct {
			return nil, fmt.Errorf("source %s: unknown kind %q", s.ID, s.Kind)
		}
		if s.ListingURL != "" && s.LinkSelector == "" {
			return nil, fmt.Errorf("source %s: listing_url without link_selector", s.ID)
		}
	}
	return f.Sources, nil
}
