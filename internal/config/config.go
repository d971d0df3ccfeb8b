package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/netsiege/netsiege/internal/constants"
)

// GameServer holds all configuration for the training game server.
type GameServer struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// P2P attack ports: player with index N listens on AttackPortBase+N.
	AttackPortBase int `yaml:"attack_port_base"`

	// Admission
	MaxPlayers int `yaml:"max_players"`

	// Session layer
	SendQueueSize  int           `yaml:"send_queue_size"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Match pacing. Defaults match the classroom exercise; integration
	// tests shrink these to run rounds in milliseconds.
	PreparationTime time.Duration `yaml:"preparation_time"`
	RoundTime       time.Duration `yaml:"round_time"`
	DefenseTime     time.Duration `yaml:"defense_time"`
	GameStartPause  time.Duration `yaml:"game_start_pause"`
	RoundEndPause   time.Duration `yaml:"round_end_pause"`
	AttackTimeout   time.Duration `yaml:"attack_timeout"`

	// Observability
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"` // 0 disables the /metrics listener
}

// Default returns GameServer config with the standard exercise values.
func Default() GameServer {
	return GameServer{
		BindAddress:     constants.DefaultHost,
		Port:            constants.DefaultPort,
		AttackPortBase:  constants.PlayerAttackPortBase,
		MaxPlayers:      constants.MaxPlayers,
		SendQueueSize:   64,
		WriteTimeout:    5 * time.Second,
		ConnectTimeout:  constants.ConnectDeadline,
		PreparationTime: constants.PreparationTime,
		RoundTime:       constants.RoundTime,
		DefenseTime:     constants.DefenseTime,
		GameStartPause:  constants.GameStartPause,
		RoundEndPause:   constants.RoundEndPause,
		AttackTimeout:   constants.AttackApprovalTimeout,
		LogLevel:        "info",
		MetricsPort:     0,
	}
}

// Load loads game server config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (GameServer, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot run with.
func (c GameServer) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.AttackPortBase <= 0 || c.AttackPortBase > 65535 {
		return fmt.Errorf("invalid attack_port_base: %d", c.AttackPortBase)
	}
	if c.MaxPlayers < constants.MinPlayers {
		return fmt.Errorf("max_players %d below minimum %d", c.MaxPlayers, constants.MinPlayers)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("send_queue_size must be positive, got %d", c.SendQueueSize)
	}
	return nil
}
