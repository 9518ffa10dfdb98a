package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DirName is the configuration directory under the user's home.
const DirName = ".formward"

const (
	configFile      = "config.yaml"
	credentialsFile = "credentials.yaml"
)

// Manager reads and writes the config and credentials files.
type Manager struct {
	dir string
}

// NewManager creates a manager rooted at dir. Empty dir resolves to
// ~/.formward.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the configuration directory.
func (m *Manager) Dir() string { return m.dir }

// Load reads the config file, expanding environment variables.
// A missing file is an empty config, not an error.
func (m *Manager) Load() (*Config, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", configFile, err)
	}
	return &cfg, nil
}

// Save writes the config file, creating the directory if needed.
func (m *Manager) Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return m.write(configFile, data, 0o644)
}

// LoadCredentials reads the credentials file.
// A missing file is an empty map, not an error.
func (m *Manager) LoadCredentials() (Credentials, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, credentialsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return nil, fmt.Errorf("cannot read credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", credentialsFile, err)
	}
	if creds == nil {
		creds = Credentials{}
	}
	return creds, nil
}

// SaveCredentials writes the credentials file with owner-only
// permissions. The file holds API keys; mode 0600 is enforced on every
// save, not just creation.
func (m *Manager) SaveCredentials(creds Credentials) error {
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	path := filepath.Join(m.dir, credentialsFile)
	if err := m.write(credentialsFile, data, 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

func (m *Manager) write(name string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, name), data, mode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// AddEnvironment records a named environment and its API key.
func (m *Manager) AddEnvironment(name string, env Environment, apiKey string) error {
	cfg, err := m.Load()
	if err != nil {
		return err
	}
	if cfg.Environments == nil {
		cfg.Environments = map[string]Environment{}
	}
	cfg.Environments[name] = env
	if cfg.CurrentEnvironment == "" {
		cfg.CurrentEnvironment = name
	}
	if err := m.Save(cfg); err != nil {
		return err
	}

	if apiKey == "" {
		return nil
	}
	creds, err := m.LoadCredentials()
	if err != nil {
		return err
	}
	creds[name] = apiKey
	return m.SaveCredentials(creds)
}

// RemoveEnvironment deletes a named environment and its API key.
func (m *Manager) RemoveEnvironment(name string) error {
	cfg, err := m.Load()
	if err != nil {
		return err
	}
	if _, ok := cfg.Environments[name]; !ok {
		return fmt.Errorf("environment %q does not exist", name)
	}
	delete(cfg.Environments, name)
	if cfg.CurrentEnvironment == name {
		cfg.CurrentEnvironment = ""
	}
	if err := m.Save(cfg); err != nil {
		return err
	}

	creds, err := m.LoadCredentials()
	if err != nil {
		return err
	}
	delete(creds, name)
	return m.SaveCredentials(creds)
}

// UseEnvironment marks a named environment as current.
func (m *Manager) UseEnvironment(name string) error {
	cfg, err := m.Load()
	if err != nil {
		return err
	}
	if _, ok := cfg.Environments[name]; !ok {
		return fmt.Errorf("environment %q does not exist", name)
	}
	cfg.CurrentEnvironment = name
	return m.Save(cfg)
}

// ResolveCurrent returns the active environment and its API key.
func (m *Manager) ResolveCurrent() (name string, env *Environment, apiKey string, err error) {
	cfg, err := m.Load()
	if err != nil {
		return "", nil, "", err
	}
	name, env = cfg.Current()
	if env == nil {
		return "", nil, "", nil
	}
	creds, err := m.LoadCredentials()
	if err != nil {
		return "", nil, "", err
	}
	return name, env, creds[name], nil
}
