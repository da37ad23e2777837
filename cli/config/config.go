package config

import (
	"fmt"
	"time"
)

// Config represents a stainfetch.yaml configuration file.
// All values are optional and act as defaults for stainfetch fetch
// flags. CLI flags always override config values.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Output   OutputConfig   `yaml:"output"`
	Download DownloadConfig `yaml:"download"`
	Atlas    AtlasConfig    `yaml:"atlas"`
	S3       S3Config       `yaml:"s3"`
}

// SourceConfig holds image source defaults from the config file.
type SourceConfig struct {
	BaseURL        string   `yaml:"base_url"`
	LocalDir       string   `yaml:"local_dir"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// OutputConfig holds destination defaults from the config file.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	ImageSuffix string `yaml:"image_suffix"`
	Report      string `yaml:"report"`
	Journal     string `yaml:"journal"`
}

// DownloadConfig holds orchestrator defaults from the config file.
type DownloadConfig struct {
	PoolSize     int      `yaml:"pool_size"`
	SkipExisting bool     `yaml:"skip_existing"`
	SkipFailed   bool     `yaml:"skip_failed"`
	FakeImages   bool     `yaml:"fake_images"`
	RetryCeiling int      `yaml:"retry_ceiling"`
	BackoffBase  Duration `yaml:"backoff_base"`
	BackoffCap   Duration `yaml:"backoff_cap"`
}

// AtlasConfig holds the metadata dump location used for alternate-URL
// resolution.
type AtlasConfig struct {
	Dump string `yaml:"dump"`
}

// S3Config holds object storage defaults for s3:// locators.
type S3Config struct {
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
