package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jayfoss/go-aslan/aslan"
)

// ServerSettings configures the HTTP listener and the ASLAN parser
// constructed per connection. It is loaded from a YAML file so an
// operator can tune prefix/strictness/rate limits without a rebuild.
type ServerSettings struct {
	Addr                 string `yaml:"addr"`
	Prefix               string `yaml:"prefix"`
	DefaultFieldName     string `yaml:"default_field_name"`
	StrictStart          bool   `yaml:"strict_start"`
	StrictEnd            bool   `yaml:"strict_end"`
	MultiDocumentOutput  bool   `yaml:"multi_document_output"`
	FeedRatePerSecond    int    `yaml:"feed_rate_per_second"`
	FeedBurst            int    `yaml:"feed_burst"`
}

// DefaultServerSettings returns sane defaults for a local demo instance.
func DefaultServerSettings() ServerSettings {
	return ServerSettings{
		Addr:                ":8765",
		Prefix:              "aslan",
		DefaultFieldName:    "_default",
		FeedRatePerSecond:   4096,
		FeedBurst:           8192,
	}
}

// LoadServerSettings reads YAML settings from path, falling back to
// DefaultServerSettings for any field the file leaves unset.
func LoadServerSettings(path string) (ServerSettings, error) {
	settings := DefaultServerSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, err
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, err
	}
	return settings, nil
}

func (s ServerSettings) parserOptions() []aslan.Option {
	return []aslan.Option{
		aslan.WithPrefix(s.Prefix),
		aslan.WithDefaultFieldName(s.DefaultFieldName),
		aslan.WithStrictStart(s.StrictStart),
		aslan.WithStrictEnd(s.StrictEnd),
		aslan.WithMultiDocumentOutput(s.MultiDocumentOutput),
	}
}
