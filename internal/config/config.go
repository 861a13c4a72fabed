package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration shared by the directory and
// worker processes. Listen ports always come from the command line; the
// config file only carries tunables.
type Config struct {
	Auth        AuthConfig        `yaml:"auth"`
	Game        GameConfig        `yaml:"game"`
	Matchmaking MatchmakingConfig `yaml:"matchmaking"`
	Net         NetConfig         `yaml:"net"`
	Files       FilesConfig       `yaml:"files"`
	Database    DatabaseConfig    `yaml:"database"`
}

// AuthConfig holds join-ticket settings.
type AuthConfig struct {
	TicketSecret string        `yaml:"ticket_secret"`
	TicketTTL    time.Duration `yaml:"ticket_ttl"`
}

// GameConfig holds contest pacing and capacity.
type GameConfig struct {
	Capacity         int           `yaml:"capacity"`
	LobbyCountdown   time.Duration `yaml:"lobby_countdown"`
	LobbyTick        time.Duration `yaml:"lobby_tick"`
	ContestCountdown time.Duration `yaml:"contest_countdown"`
	ContestTick      time.Duration `yaml:"contest_tick"`
}

// MatchmakingConfig holds directory-side probe settings.
type MatchmakingConfig struct {
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// NetConfig holds connection-level timeouts.
type NetConfig struct {
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// FilesConfig holds the flat-file persistence paths.
type FilesConfig struct {
	Accounts string `yaml:"accounts"`
	Prompts  string `yaml:"prompts"`
}

// DatabaseConfig holds contest-history SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies defaults. An empty
// path yields the defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Auth.TicketTTL == 0 {
		c.Auth.TicketTTL = time.Minute
	}
	if c.Game.Capacity == 0 {
		c.Game.Capacity = 5
	}
	if c.Game.LobbyCountdown == 0 {
		c.Game.LobbyCountdown = 30 * time.Second
	}
	if c.Game.LobbyTick == 0 {
		c.Game.LobbyTick = 5 * time.Second
	}
	if c.Game.ContestCountdown == 0 {
		c.Game.ContestCountdown = 60 * time.Second
	}
	if c.Game.ContestTick == 0 {
		c.Game.ContestTick = 15 * time.Second
	}
	if c.Matchmaking.ProbeTimeout == 0 {
		c.Matchmaking.ProbeTimeout = 2 * time.Second
	}
	if c.Net.WriteTimeout == 0 {
		c.Net.WriteTimeout = 10 * time.Second
	}
	if c.Net.HandshakeTimeout == 0 {
		c.Net.HandshakeTimeout = 5 * time.Second
	}
	if c.Files.Accounts == "" {
		c.Files.Accounts = "users.txt"
	}
	if c.Files.Prompts == "" {
		c.Files.Prompts = "prompts.txt"
	}
	if c.Database.Path == "" {
		c.Database.Path = "typerace.db"
	}
}
