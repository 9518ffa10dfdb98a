// Package formplayer generates a Docker Compose stack for running a
// local formplayer instance: the formplayer service plus the postgres
// and redis backends it requires, on an isolated bridge network.
package formplayer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Container images.
const (
	FormplayerImage = "docker.io/dimagi/formplayer"
	PostgresImage   = "docker.io/postgres:15"
	RedisImage      = "docker.io/redis:7"
)

// Container and network names, prefixed for easy identification.
const (
	ContainerPrefix     = "cc-formplayer"
	FormplayerContainer = ContainerPrefix + "-app"
	PostgresContainer   = ContainerPrefix + "-postgres"
	RedisContainer      = ContainerPrefix + "-redis"
	NetworkName         = ContainerPrefix + "-network"
)

// Default host ports. Postgres and redis are shifted off their usual
// ports to avoid colliding with local installs.
const (
	DefaultFormplayerPort = 8080
	DefaultDebugPort      = 8081
	DefaultPostgresPort   = 5433
	DefaultRedisPort      = 6380
)

// DefaultAuthKey is the formplayer auth key for local development.
const DefaultAuthKey = "localdevkey"

const externalRequestMode = "replace-host"

// ComposeConfig configures the generated stack.
type ComposeConfig struct {
	// CommCareHost is the HQ URL formplayer talks to (required).
	CommCareHost string
	// DataDir holds the persistent volumes and the compose file.
	DataDir string
	// FormplayerPort is the host port for formplayer (default 8080).
	FormplayerPort int
	// DebugPort is the host port for the management endpoint (default 8081).
	DebugPort int
	// PostgresPort is the host port for postgres (default 5433).
	PostgresPort int
	// RedisPort is the host port for redis (default 6380).
	RedisPort int
	// AuthKey is the formplayer auth key (default "localdevkey").
	AuthKey string
	// AlternateOrigins are extra allowed CORS origins.
	AlternateOrigins []string
}

func (c *ComposeConfig) withDefaults() ComposeConfig {
	out := *c
	out.CommCareHost = strings.TrimRight(out.CommCareHost, "/")
	if out.DataDir == "" {
		out.DataDir = filepath.Join(".cc", "formplayer")
	}
	if out.FormplayerPort == 0 {
		out.FormplayerPort = DefaultFormplayerPort
	}
	if out.DebugPort == 0 {
		out.DebugPort = DefaultDebugPort
	}
	if out.PostgresPort == 0 {
		out.PostgresPort = DefaultPostgresPort
	}
	if out.RedisPort == 0 {
		out.RedisPort = DefaultRedisPort
	}
	if out.AuthKey == "" {
		out.AuthKey = DefaultAuthKey
	}
	if len(out.AlternateOrigins) == 0 {
		out.AlternateOrigins = []string{"http://localhost:8000", "http://127.0.0.1:8000"}
	}
	return out
}

// Compose is the typed document model marshaled to docker-compose.yml.
type Compose struct {
	Services map[string]Service `yaml:"services"`
	Networks map[string]Network `yaml:"networks"`
}

// Service is one compose service entry.
type Service struct {
	Image         string               `yaml:"image"`
	ContainerName string               `yaml:"container_name"`
	Environment   map[string]string    `yaml:"environment,omitempty"`
	Ports         []string             `yaml:"ports,omitempty"`
	Volumes       []string             `yaml:"volumes,omitempty"`
	DependsOn     map[string]DependsOn `yaml:"depends_on,omitempty"`
	Healthcheck   *Healthcheck         `yaml:"healthcheck,omitempty"`
	Networks      []string             `yaml:"networks"`
	Restart       string               `yaml:"restart"`
}

// DependsOn expresses a startup-order condition.
type DependsOn struct {
	Condition string `yaml:"condition"`
}

// Healthcheck is a compose healthcheck block.
type Healthcheck struct {
	Test     []string `yaml:"test"`
	Interval string   `yaml:"interval"`
	Timeout  string   `yaml:"timeout"`
	Retries  int      `yaml:"retries"`
}

// Generate builds the compose document for the given config.
func Generate(cfg ComposeConfig) (*Compose, error) {
	if cfg.CommCareHost == "" {
		return nil, fmt.Errorf("compose config requires a CommCare host URL")
	}
	c := cfg.withDefaults()

	return &Compose{
		Services: map[string]Service{
			"formplayer": {
				Image:         FormplayerImage,
				ContainerName: FormplayerContainer,
				Environment: map[string]string{
					"COMMCARE_HOST":              c.CommCareHost,
					"COMMCARE_ALTERNATE_ORIGINS": strings.Join(c.AlternateOrigins, ","),
					"AUTH_KEY":                   c.AuthKey,
					"EXTERNAL_REQUEST_MODE":      externalRequestMode,
					"POSTGRES_HOST":              "postgres",
					"POSTGRES_PORT":              "5432",
					"POSTGRES_USER":              "formplayer",
					"POSTGRES_PASSWORD":          "formplayer",
					"POSTGRES_DB":                "formplayer",
					"REDIS_HOST":                 "redis",
					"REDIS_PORT":                 "6379",
				},
				Ports: []string{
					fmt.Sprintf("%d:8080", c.FormplayerPort),
					fmt.Sprintf("%d:8081", c.DebugPort),
				},
				DependsOn: map[string]DependsOn{
					"postgres": {Condition: "service_healthy"},
					"redis":    {Condition: "service_healthy"},
				},
				Networks: []string{NetworkName},
				Restart:  "unless-stopped",
			},
			"postgres": {
				Image:         PostgresImage,
				ContainerName: PostgresContainer,
				Environment: map[string]string{
					"POSTGRES_USER":     "formplayer",
					"POSTGRES_PASSWORD": "formplayer",
					"POSTGRES_DB":       "formplayer",
				},
				Ports:   []string{fmt.Sprintf("%d:5432", c.PostgresPort)},
				Volumes: []string{filepath.ToSlash(filepath.Join(c.DataDir, "postgres")) + ":/var/lib/postgresql/data"},
				Healthcheck: &Healthcheck{
					Test:     []string{"CMD-SHELL", "pg_isready -U formplayer"},
					Interval: "10s",
					Timeout:  "5s",
					Retries:  5,
				},
				Networks: []string{NetworkName},
				Restart:  "unless-stopped",
			},
			"redis": {
				Image:         RedisImage,
				ContainerName: RedisContainer,
				Ports:         []string{fmt.Sprintf("%d:6379", c.RedisPort)},
				Volumes:       []string{filepath.ToSlash(filepath.Join(c.DataDir, "redis")) + ":/data"},
				Healthcheck: &Healthcheck{
					Test:     []string{"CMD", "redis-cli", "ping"},
					Interval: "10s",
					Timeout:  "5s",
					Retries:  5,
				},
				Networks: []string{NetworkName},
				Restart:  "unless-stopped",
			},
		},
		Networks: map[string]Network{
			NetworkName: {Driver: "bridge"},
		},
	}, nil
}

// Network is a compose network entry.
type Network struct {
	Driver string `yaml:"driver"`
}

// Marshal renders the compose document as YAML.
func (c *Compose) Marshal() ([]byte, error) {
	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode compose file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// WriteFile generates and writes docker-compose.yml under the config's
// data dir, creating the volume directories alongside it. Returns the
// compose file path.
func WriteFile(cfg ComposeConfig) (string, error) {
	compose, err := Generate(cfg)
	if err != nil {
		return "", err
	}
	data, err := compose.Marshal()
	if err != nil {
		return "", err
	}

	dataDir := cfg.withDefaults().DataDir
	for _, d := range []string{dataDir, filepath.Join(dataDir, "postgres"), filepath.Join(dataDir, "redis")} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
	}

	path := filepath.Join(dataDir, "docker-compose.yml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write compose file: %w", err)
	}
	return path, nil
}
