package config

import (
	"fmt"
	"sort"
	"time"
)

// Config represents the user-level configuration file at
// ~/.formward/config.yaml. All values are optional and act as defaults
// for run flags. CLI flags always override config values.
type Config struct {
	// CurrentEnvironment names the active entry in Environments.
	CurrentEnvironment string `yaml:"current_environment,omitempty"`
	// Environments are the named server environments.
	Environments map[string]Environment `yaml:"environments,omitempty"`
	// Workspace overrides the artifact cache base directory.
	Workspace string `yaml:"workspace,omitempty"`
	// Adapter configures downstream test-completion notifications.
	Adapter AdapterConfig `yaml:"adapter,omitempty"`
	// Mirror configures the shared S3 artifact mirror.
	Mirror MirrorConfig `yaml:"mirror,omitempty"`
}

// Environment is one named server environment. The API key lives in the
// separate credentials file, never here.
type Environment struct {
	URL      string `yaml:"url"`
	Domain   string `yaml:"domain,omitempty"`
	Username string `yaml:"username,omitempty"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"` // "webhook" or "redis"
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// MirrorConfig holds S3 mirror defaults from the config file.
type MirrorConfig struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// Credentials maps environment name to API key. Stored separately from
// the config file with restrictive permissions.
type Credentials map[string]string

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

// MarshalYAML renders the duration back as a string.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.Duration.String(), nil
}

// EnvironmentNames returns the environment names sorted for
// deterministic listing.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Current returns the active environment, or nil when none is selected.
func (c *Config) Current() (string, *Environment) {
	if c.CurrentEnvironment == "" {
		return "", nil
	}
	env, ok := c.Environments[c.CurrentEnvironment]
	if !ok {
		return "", nil
	}
	return c.CurrentEnvironment, &env
}
